package media

import (
	"errors"
	"fmt"
	"strings"

	"supportdesk/backend/internal/config"

	"github.com/gabriel-vasile/mimetype"
)

var (
	ErrEmpty       = errors.New("media: file is empty")
	ErrTooLarge    = errors.New("media: file exceeds the size limit")
	ErrContentType = errors.New("media: content type not allowed")
)

// Policy bounds what may be stored, for user uploads and operator attachments alike.
type Policy struct {
	MaxBytes int64
	Allowed  map[string]bool
}

func DefaultPolicy() Policy {
	allowed := make(map[string]bool, len(config.AllowedContentTypes))
	for _, ct := range config.AllowedContentTypes {
		allowed[ct] = true
	}
	return Policy{MaxBytes: config.MaxUploadBytes, Allowed: allowed}
}

// Check sniffs the real content type of data and returns it when the file is
// acceptable. The type a client declares is never trusted.
func (p Policy) Check(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if int64(len(data)) > p.MaxBytes {
		return "", fmt.Errorf("%w (%d > %d bytes)", ErrTooLarge, len(data), p.MaxBytes)
	}

	detected := baseType(mimetype.Detect(data).String())
	if !p.Allowed[detected] {
		return "", fmt.Errorf("%w: %s", ErrContentType, detected)
	}
	return detected, nil
}

// Extension returns the canonical file extension for an allowed content type.
func Extension(contentType string) string {
	if m := mimetype.Lookup(contentType); m != nil {
		return m.Extension()
	}
	return ""
}

func baseType(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}
