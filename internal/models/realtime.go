package models

// EventType names the kind of realtime event pushed to widget subscribers.
type EventType string

const (
	EventMessageCreated      EventType = "message.created"
	EventConversationUpdated EventType = "conversation.updated"
)

// Event is published on the conversation channel after a change is committed.
type Event struct {
	Type           EventType     `json:"type"`
	ConversationID string        `json:"conversation_id"`
	Message        *Message      `json:"message,omitempty"`
	Conversation   *Conversation `json:"conversation,omitempty"`
}
