package config

import "time"

const (
	// Media
	MaxUploadBytes = 10 << 20

	// Messages
	DefaultPageSize = 50
	MaxPageSize     = 100

	// Operator channel
	ThreadTitleMaxLen    = 128
	ThreadIDPrefixLen    = 8
	TranscriptChunkLimit = 4000
	OperatorPayloadLimit = 1 << 20

	// AI
	MaxReplyRunes = 1200

	// Dispatcher
	DispatchQueueSize  = 256
	DispatchJobTimeout = 15 * time.Second
)

// AllowedContentTypes are the media types accepted for uploads and operator attachments.
var AllowedContentTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
	"text/plain",
}

// HandoffPhrases trigger a hand-off to a human agent when found in a user message.
// Matching is case-insensitive; single words match whole words only.
var HandoffPhrases = []string{
	"talk to a human",
	"speak to a human",
	"talk to a person",
	"speak to a person",
	"real person",
	"human agent",
	"live agent",
	"customer service",
	"customer support",
	"talk to someone",
	"speak with someone",
	"agent",
	"representative",
	"operator",
	"human",
}
