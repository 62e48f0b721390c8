package models_test

import (
	"reflect"
	"testing"

	"supportdesk/backend/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

// TestConversationBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestConversationBeforeCreate_GeneratesUUID(t *testing.T) {
	conv := &models.Conversation{AnonymousID: "anon-1", ContactName: "Ana", ContactEmail: "ana@x.com"}
	assert.Empty(t, conv.ID)

	err := conv.BeforeCreate(nil)

	assert.NoError(t, err)
	_, parseErr := uuid.Parse(conv.ID)
	assert.NoError(t, parseErr, "conversation ID must be a valid UUID")
}

// TestConversationBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestConversationBeforeCreate_PreservesExistingID(t *testing.T) {
	existing := uuid.New().String()
	conv := &models.Conversation{ID: existing}

	assert.NoError(t, conv.BeforeCreate(nil))
	assert.Equal(t, existing, conv.ID)
}

func TestConversation_HasThread(t *testing.T) {
	empty := ""
	thread := "42"

	assert.False(t, (&models.Conversation{}).HasThread())
	assert.False(t, (&models.Conversation{OperatorThreadID: &empty}).HasThread())
	assert.True(t, (&models.Conversation{OperatorThreadID: &thread}).HasThread())
}

func TestStatus_Valid(t *testing.T) {
	for _, s := range []models.Status{models.StatusOpen, models.StatusPending, models.StatusResolved, models.StatusClosed} {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, models.Status("archived").Valid())
	assert.False(t, models.Status("").Valid())
}

func TestMessage_Validate(t *testing.T) {
	tests := []struct {
		name    string
		msg     models.Message
		wantErr bool
	}{
		{name: "text only", msg: models.Message{Content: models.StringPtr("hi")}},
		{name: "attachment only", msg: models.Message{AttachmentURL: models.StringPtr("https://cdn/x.png")}},
		{name: "both", msg: models.Message{Content: models.StringPtr("see"), AttachmentURL: models.StringPtr("https://cdn/x.png")}},
		{name: "neither", msg: models.Message{}, wantErr: true},
		{name: "whitespace content", msg: models.Message{Content: func() *string { s := "   "; return &s }()}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrEmptyMessage)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestStringPtr(t *testing.T) {
	assert.Nil(t, models.StringPtr(""))
	assert.Nil(t, models.StringPtr("  \n"))
	if p := models.StringPtr("  hello "); assert.NotNil(t, p) {
		assert.Equal(t, "hello", *p)
	}
}

// TestConversationStructTags guards the gorm tags the store relies on.
func TestConversationStructTags(t *testing.T) {
	convType := reflect.TypeOf(models.Conversation{})

	idField, found := convType.FieldByName("ID")
	assert.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")

	threadField, found := convType.FieldByName("OperatorThreadID")
	assert.True(t, found)
	assert.Contains(t, threadField.Tag.Get("gorm"), "uniqueIndex", "thread id must be unique across conversations")

	msgType := reflect.TypeOf(models.Message{})
	idField, found = msgType.FieldByName("ID")
	assert.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "autoIncrement", "message ID provides insertion order")
}
