// Package handler exposes the conversation orchestrator over HTTP.
package handler

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"supportdesk/backend/internal/chathub"
	"supportdesk/backend/internal/media"
	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/support"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

// ConversationService is the part of support.Service the handlers call.
type ConversationService interface {
	CreateConversation(ctx context.Context, anonymousID, name, email string) (*support.Result, error)
	ListConversations(ctx context.Context, anonymousID, status string) ([]models.Conversation, error)
	GetConversation(ctx context.Context, id, anonymousID string) (*support.ConversationDetail, error)
	ListMessages(ctx context.Context, id, anonymousID string, limit int, before uint) (*support.MessagePage, error)
	HandleUserMessage(ctx context.Context, id, anonymousID, text, attachmentURL string) (*support.Result, error)
	UpdateStatus(ctx context.Context, id, anonymousID, status string) (*support.Result, error)
	MarkRead(ctx context.Context, id, anonymousID string) (int64, error)
	UploadMedia(ctx context.Context, id, anonymousID, filename string, data []byte) (*media.Object, error)
	HandleOperatorReply(ctx context.Context, raw []byte) support.Outcome
	Authorize(ctx context.Context, id, anonymousID string) error
}

// Handler holds the dependencies of every route.
type Handler struct {
	Service       ConversationService
	Hub           *chathub.ManagerService
	jwtSecret     []byte
	webhookSecret string
	log           *zap.Logger
}

func NewHandler(service ConversationService, hub *chathub.ManagerService, jwtSecret, webhookSecret string, log *zap.Logger) *Handler {
	return &Handler{
		Service:       service,
		Hub:           hub,
		jwtSecret:     []byte(jwtSecret),
		webhookSecret: webhookSecret,
		log:           log,
	}
}

var registerTagNames sync.Once

// useJSONFieldNames makes binding errors report json field names.
func useJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{f.Tag.Get("json"), f.Tag.Get("form")} {
				name := strings.SplitN(tag, ",", 2)[0]
				if name != "" && name != "-" {
					return name
				}
			}
			return f.Name
		})
	})
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// respondError maps orchestrator errors onto HTTP statuses. Access problems get a
// generic body so they say nothing about whether the conversation exists.
func (h *Handler) respondError(c *gin.Context, operation string, err error) {
	var e *support.Error
	if !errors.As(err, &e) {
		h.log.Error("Unclassified handler error", zap.String("operation", operation), zap.Error(err))
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}

	switch e.Code {
	case support.ErrorValidation:
		c.JSON(http.StatusBadRequest, errorResponse{Error: e.Reason, Fields: e.Fields})
	case support.ErrorAccessDenied:
		c.JSON(http.StatusForbidden, errorResponse{Error: "access denied"})
	case support.ErrorNotFound:
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case support.ErrorUpstream:
		c.JSON(http.StatusBadGateway, errorResponse{Error: e.Reason})
	default:
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// respondBindError turns a gin binding failure into a 400.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid input", Fields: map[string]string{"body": "malformed request"}})
		return
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describeTag(fe)
	}
	c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid input", Fields: fields})
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	case "max":
		return "is too long"
	case "oneof":
		return "must be one of " + fe.Param()
	}
	return "is invalid"
}

func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
