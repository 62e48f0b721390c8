package support

import (
	"errors"
	"fmt"

	"supportdesk/backend/internal/storage"
)

type ErrorCode string

const (
	ErrorValidation   ErrorCode = "VALIDATION"
	ErrorAccessDenied ErrorCode = "ACCESS_DENIED"
	ErrorNotFound     ErrorCode = "NOT_FOUND"
	ErrorUpstream     ErrorCode = "UPSTREAM"
	ErrorPersistence  ErrorCode = "PERSISTENCE"
)

// Error is returned by every Service operation that fails.
type Error struct {
	Code   ErrorCode
	Reason string
	// Fields holds per-field problems for VALIDATION errors.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("support: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("support: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

func validationError(fields map[string]string) *Error {
	return &Error{Code: ErrorValidation, Reason: "invalid input", Fields: fields}
}

// CodeOf returns the code of the first *Error in err's chain, or "" when there is none.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// FieldsOf returns field level validation problems carried by err, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// fromStore classifies a store error.
func fromStore(reason string, err error) *Error {
	var verr *storage.ValidationError
	switch {
	case errors.As(err, &verr):
		return &Error{Code: ErrorValidation, Reason: reason, Fields: verr.Fields, Err: err}
	case errors.Is(err, storage.ErrNotFound):
		return newError(ErrorNotFound, reason, err)
	default:
		return newError(ErrorPersistence, reason, err)
	}
}
