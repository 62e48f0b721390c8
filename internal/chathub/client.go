// Package chathub pushes committed conversation events to connected widgets.
// Events arrive over Redis Pub/Sub, so every instance of the service sees every
// event and delivers it to the sockets it holds.
package chathub

import "supportdesk/backend/internal/models"

// Client is one subscriber connection.
type Client interface {
	// GetID returns the unique identifier of the connection.
	GetID() string
	// GetConversationID returns the conversation the connection follows.
	GetConversationID() string

	// GetSendChannel returns the channel the hub delivers events on.
	GetSendChannel() chan<- models.Event

	// Run starts the connection's pumps.
	Run()
	// Close shuts the connection down. The hub calls it exactly once.
	Close()
}
