package chathub

import (
	"supportdesk/backend/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketClient streams the events of one conversation to a browser.
type WebSocketClient struct {
	ID             string
	ConversationID string
	Conn           *websocket.Conn
	Hub            *ManagerService
	Send           chan models.Event
	log            *zap.Logger
}

func NewWebSocketClient(hub *ManagerService, conn *websocket.Conn, conversationID string, log *zap.Logger) *WebSocketClient {
	return &WebSocketClient{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Conn:           conn,
		Hub:            hub,
		Send:           make(chan models.Event, 64),
		log:            log,
	}
}

func (c *WebSocketClient) GetID() string                       { return c.ID }
func (c *WebSocketClient) GetConversationID() string           { return c.ConversationID }
func (c *WebSocketClient) GetSendChannel() chan<- models.Event { return c.Send }

// Run starts the read and write pumps.
func (c *WebSocketClient) Run() {
	go c.writePump()
	go c.readPump()
}

// Close closes Send, which stops writePump.
func (c *WebSocketClient) Close() {
	close(c.Send)
}
