package handler_test

import (
	"context"

	"supportdesk/backend/internal/media"
	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/support"

	"github.com/stretchr/testify/mock"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CreateConversation(ctx context.Context, anonymousID, name, email string) (*support.Result, error) {
	args := m.Called(ctx, anonymousID, name, email)
	if r := args.Get(0); r != nil {
		return r.(*support.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) ListConversations(ctx context.Context, anonymousID, status string) ([]models.Conversation, error) {
	args := m.Called(ctx, anonymousID, status)
	if r := args.Get(0); r != nil {
		return r.([]models.Conversation), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) GetConversation(ctx context.Context, id, anonymousID string) (*support.ConversationDetail, error) {
	args := m.Called(ctx, id, anonymousID)
	if r := args.Get(0); r != nil {
		return r.(*support.ConversationDetail), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) ListMessages(ctx context.Context, id, anonymousID string, limit int, before uint) (*support.MessagePage, error) {
	args := m.Called(ctx, id, anonymousID, limit, before)
	if r := args.Get(0); r != nil {
		return r.(*support.MessagePage), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) HandleUserMessage(ctx context.Context, id, anonymousID, text, attachmentURL string) (*support.Result, error) {
	args := m.Called(ctx, id, anonymousID, text, attachmentURL)
	if r := args.Get(0); r != nil {
		return r.(*support.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) UpdateStatus(ctx context.Context, id, anonymousID, status string) (*support.Result, error) {
	args := m.Called(ctx, id, anonymousID, status)
	if r := args.Get(0); r != nil {
		return r.(*support.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) MarkRead(ctx context.Context, id, anonymousID string) (int64, error) {
	args := m.Called(ctx, id, anonymousID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockService) UploadMedia(ctx context.Context, id, anonymousID, filename string, data []byte) (*media.Object, error) {
	args := m.Called(ctx, id, anonymousID, filename, data)
	if r := args.Get(0); r != nil {
		return r.(*media.Object), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) HandleOperatorReply(ctx context.Context, raw []byte) support.Outcome {
	args := m.Called(ctx, raw)
	return args.Get(0).(support.Outcome)
}

func (m *MockService) Authorize(ctx context.Context, id, anonymousID string) error {
	args := m.Called(ctx, id, anonymousID)
	return args.Error(0)
}
