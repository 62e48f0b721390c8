package chathub_test

import (
	"sync/atomic"

	"supportdesk/backend/internal/models"
)

type MockClient struct {
	id             string
	conversationID string
	RecvChannel    chan models.Event
	closed         atomic.Int32
}

func newMockClient(id, conversationID string, buffer int) *MockClient {
	return &MockClient{
		id:             id,
		conversationID: conversationID,
		RecvChannel:    make(chan models.Event, buffer),
	}
}

func (c *MockClient) GetID() string {
	return c.id
}

func (c *MockClient) GetConversationID() string {
	return c.conversationID
}

func (c *MockClient) GetSendChannel() chan<- models.Event {
	return c.RecvChannel
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.closed.Add(1)
}

func (c *MockClient) Closed() int {
	return int(c.closed.Load())
}
