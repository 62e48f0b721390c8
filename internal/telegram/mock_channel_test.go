package telegram_test

import (
	"context"

	"supportdesk/backend/internal/telegram"

	"github.com/stretchr/testify/mock"
)

// MockChannel is a mock implementation of telegram.Channel.
type MockChannel struct {
	mock.Mock
}

func (m *MockChannel) CreateThread(ctx context.Context, title string) (string, error) {
	args := m.Called(ctx, title)
	return args.String(0), args.Error(1)
}

func (m *MockChannel) PostText(ctx context.Context, threadID, text string) (string, error) {
	args := m.Called(ctx, threadID, text)
	return args.String(0), args.Error(1)
}

func (m *MockChannel) PostAttachment(ctx context.Context, threadID, url, caption string) (string, error) {
	args := m.Called(ctx, threadID, url, caption)
	return args.String(0), args.Error(1)
}

func (m *MockChannel) GetAttachmentInfo(ctx context.Context, ref string) (*telegram.AttachmentInfo, error) {
	args := m.Called(ctx, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*telegram.AttachmentInfo), args.Error(1)
}

func (m *MockChannel) DownloadAttachment(ctx context.Context, downloadPath string, maxBytes int64) ([]byte, error) {
	args := m.Called(ctx, downloadPath, maxBytes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
