package models

import (
	"errors"
	"strings"
	"time"
)

// SenderType identifies who authored a message.
type SenderType string

const (
	SenderUser    SenderType = "user"
	SenderBot     SenderType = "bot"
	SenderSupport SenderType = "support"
	SenderSystem  SenderType = "system"
)

// ErrEmptyMessage is returned when a message has neither content nor an attachment.
var ErrEmptyMessage = errors.New("message must have content or attachment")

// Message is a single immutable entry of a conversation.
// The auto-increment ID doubles as the insertion-order tie breaker for messages that
// share the same CreatedAt.
type Message struct {
	ID             uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string `gorm:"type:varchar(36);not null;index:idx_msg_conv_created,priority:1" json:"conversation_id"`

	SenderType SenderType `gorm:"type:varchar(16);not null" json:"sender_type"`
	SenderName string     `gorm:"type:text" json:"sender_name,omitempty"`
	// SenderOperatorID is only populated for support senders.
	SenderOperatorID *string `gorm:"type:varchar(64)" json:"sender_operator_id,omitempty"`

	Content       *string `gorm:"type:text" json:"content,omitempty"`
	AttachmentURL *string `gorm:"type:text" json:"attachment_url,omitempty"`
	// OperatorMessageID is the message id on the operator channel, if any.
	OperatorMessageID *string `gorm:"type:varchar(64);index" json:"operator_message_id,omitempty"`

	IsRead bool       `gorm:"not null;default:false" json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`

	CreatedAt time.Time `gorm:"index:idx_msg_conv_created,priority:2" json:"created_at"`
}

// Validate checks the content/attachment invariant.
func (m *Message) Validate() error {
	if m.Text() == "" && m.Attachment() == "" {
		return ErrEmptyMessage
	}
	return nil
}

// Text returns the trimmed content or an empty string.
func (m *Message) Text() string {
	if m.Content == nil {
		return ""
	}
	return strings.TrimSpace(*m.Content)
}

// Attachment returns the attachment URL or an empty string.
func (m *Message) Attachment() string {
	if m.AttachmentURL == nil {
		return ""
	}
	return strings.TrimSpace(*m.AttachmentURL)
}

// StringPtr returns nil for blank strings, a pointer to the trimmed value otherwise.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
