package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Mode says which actor currently produces replies for a conversation.
type Mode string

const (
	ModeAIBot      Mode = "ai_bot"
	ModeHumanAgent Mode = "human_agent"
)

// Status is the human workflow state of a conversation. It is independent of Mode.
type Status string

const (
	StatusOpen     Status = "open"
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusClosed   Status = "closed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusOpen, StatusPending, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Conversation represents one support conversation started from the web widget.
// OperatorThreadID stays nil until the first hand-off establishes a thread on the
// operator channel, and is never replaced afterwards.
type Conversation struct {
	// ID is the unique identifier of the conversation (UUID).
	ID string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	// AnonymousID is the client generated token that owns the conversation.
	AnonymousID string `gorm:"type:varchar(128);not null;index" json:"anonymous_id"`
	// ContactName and ContactEmail come from the contact form.
	ContactName  string `gorm:"type:text;not null" json:"contact_name"`
	ContactEmail string `gorm:"type:text;not null" json:"contact_email"`
	// Mode is the actor that owns message generation.
	Mode Mode `gorm:"type:varchar(16);not null;default:ai_bot" json:"mode"`
	// Status is the workflow state.
	Status Status `gorm:"type:varchar(16);not null;default:open;index" json:"status"`
	// OperatorThreadID references the external discussion thread.
	OperatorThreadID *string `gorm:"type:varchar(64);uniqueIndex" json:"operator_thread_id,omitempty"`

	CreatedAt     time.Time `json:"created_at"`
	LastMessageAt time.Time `gorm:"index" json:"last_message_at"`
}

// BeforeCreate generates a UUID for the conversation if none was set.
func (c *Conversation) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return
}

// HasThread reports whether an operator thread is attached.
func (c *Conversation) HasThread() bool {
	return c.OperatorThreadID != nil && *c.OperatorThreadID != ""
}

// ConversationUpdate lists the fields that may change after creation.
// Nil fields are left untouched.
type ConversationUpdate struct {
	Mode             *Mode
	Status           *Status
	OperatorThreadID *string
	LastMessageAt    *time.Time
}

// IsEmpty reports whether the update carries no change.
func (u ConversationUpdate) IsEmpty() bool {
	return u.Mode == nil && u.Status == nil && u.OperatorThreadID == nil && u.LastMessageAt == nil
}
