package handler

import (
	"crypto/subtle"
	"io"
	"net/http"

	"supportdesk/backend/internal/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// OperatorWebhook receives operator channel updates. Anything past the shared
// secret check is acknowledged with 200 so the sender never retries.
func (h *Handler) OperatorWebhook(c *gin.Context) {
	got := c.GetHeader(webhookSecretHeader)
	if h.webhookSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(h.webhookSecret)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "unauthorized"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, config.OperatorPayloadLimit))
	if err != nil {
		h.log.Warn("Failed to read operator webhook body", zap.String("operation", "operator_webhook"), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	outcome := h.Service.HandleOperatorReply(c.Request.Context(), raw)
	c.JSON(http.StatusOK, gin.H{"ok": true, "outcome": outcome})
}
