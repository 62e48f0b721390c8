package telegram

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrUnsupportedUpdate is returned for webhook payloads that are not a message update.
var ErrUnsupportedUpdate = errors.New("telegram: unsupported update")

// AttachmentRef points at a file posted on the operator channel.
type AttachmentRef struct {
	FileID   string
	FileName string
	MimeType string
	Size     int64
}

// ParsedReply is the validated form of an inbound operator event.
type ParsedReply struct {
	UpdateID   int64
	ChatID     int64
	ThreadID   string
	MessageID  string
	SenderID   string
	SenderName string
	IsBot      bool
	Text       string
	Attachment *AttachmentRef
}

// HasContent reports whether the reply carries text or an attachment.
func (p *ParsedReply) HasContent() bool {
	return strings.TrimSpace(p.Text) != "" || p.Attachment != nil
}

// webhook payload, limited to the fields the bridge reads
type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message" validate:"required"`
}

type message struct {
	MessageID       int64            `json:"message_id" validate:"required,gt=0"`
	MessageThreadID int64            `json:"message_thread_id" validate:"gte=0"`
	IsTopicMessage  bool             `json:"is_topic_message"`
	From            *user            `json:"from" validate:"required"`
	Chat            chat             `json:"chat"`
	Text            string           `json:"text"`
	Caption         string           `json:"caption"`
	Photo           []photoSize      `json:"photo" validate:"omitempty,dive"`
	Document        *document        `json:"document" validate:"omitempty"`
	ForumTopic      *json.RawMessage `json:"forum_topic_created"`
}

type user struct {
	ID        int64  `json:"id" validate:"required"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	UserName  string `json:"username"`
}

type chat struct {
	ID int64 `json:"id" validate:"required"`
}

type photoSize struct {
	FileID   string `json:"file_id" validate:"required"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size"`
}

type document struct {
	FileID   string `json:"file_id" validate:"required"`
	FileName string `json:"file_name"`
	MimeType string `json:"mime_type"`
	FileSize int64  `json:"file_size"`
}

var payloadValidator = validator.New()

// ParseInbound decodes and validates a raw webhook body. It never touches storage.
// Messages outside a forum topic come back with an empty ThreadID.
func ParseInbound(raw []byte) (*ParsedReply, error) {
	var u update
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, fmt.Errorf("telegram: decode update: %w", err)
	}
	if u.Message == nil {
		return nil, ErrUnsupportedUpdate
	}
	if err := payloadValidator.Struct(u); err != nil {
		return nil, fmt.Errorf("telegram: invalid update: %w", err)
	}

	m := u.Message
	reply := &ParsedReply{
		UpdateID:   u.UpdateID,
		ChatID:     m.Chat.ID,
		MessageID:  strconv.FormatInt(m.MessageID, 10),
		SenderID:   strconv.FormatInt(m.From.ID, 10),
		SenderName: displayName(m.From),
		IsBot:      m.From.IsBot,
		Text:       strings.TrimSpace(firstNonEmpty(m.Text, m.Caption)),
	}
	if m.IsTopicMessage && m.MessageThreadID > 0 && m.ForumTopic == nil {
		reply.ThreadID = strconv.FormatInt(m.MessageThreadID, 10)
	}

	switch {
	case m.Document != nil:
		reply.Attachment = &AttachmentRef{
			FileID:   m.Document.FileID,
			FileName: m.Document.FileName,
			MimeType: m.Document.MimeType,
			Size:     m.Document.FileSize,
		}
	case len(m.Photo) > 0:
		// sizes are ordered smallest first
		largest := m.Photo[len(m.Photo)-1]
		reply.Attachment = &AttachmentRef{
			FileID:   largest.FileID,
			FileName: "photo.jpg",
			MimeType: "image/jpeg",
			Size:     largest.FileSize,
		}
	}
	return reply, nil
}

func displayName(u *user) string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.UserName != "" {
		return "@" + u.UserName
	}
	return "Support"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
