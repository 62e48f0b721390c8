package handler

import (
	"net/http"

	"supportdesk/backend/internal/chathub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// the widget is embedded on other origins; the token is the credential
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeStream upgrades to a websocket streaming the events of one conversation.
// Browsers cannot set headers on websocket requests, so the token travels in the
// query string, with a bearer header accepted as well.
func (h *Handler) ServeStream(c *gin.Context) {
	tokenString := c.Query("token")
	if authHeader := c.GetHeader("Authorization"); tokenString == "" && len(authHeader) > 7 && authHeader[:7] == "Bearer " {
		tokenString = authHeader[7:]
	}
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "token missing"})
		return
	}

	anonID, err := h.validateAndGetAnonID(tokenString)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid or expired token"})
		return
	}

	convID := c.Param("id")
	if err := h.Service.Authorize(c.Request.Context(), convID, anonID); err != nil {
		h.respondError(c, "stream", err)
		c.Abort()
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.log.Info("Websocket upgrade failed", zap.String("conversation_id", convID), zap.Error(err))
		return
	}

	client := chathub.NewWebSocketClient(h.Hub, conn, convID, h.log)
	if !h.Hub.Register(client) {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
		_ = conn.Close()
		return
	}
	client.Run()
}
