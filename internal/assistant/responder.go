// Package assistant produces automated replies for conversations in ai_bot mode
// and the canned strings shown around hand-offs and status changes.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"supportdesk/backend/internal/analysis"
	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/localization"
	"supportdesk/backend/internal/models"
)

// ErrEmptyReply is returned when the generator answered with blank text.
var ErrEmptyReply = errors.New("assistant: empty reply")

// Generator is the external text-generation capability.
type Generator interface {
	Generate(ctx context.Context, systemPrompt string, window []Turn) (string, error)
}

type Options struct {
	HistoryWindow   int
	MaxReplyRunes   int
	Timeout         time.Duration
	BusinessName    string
	BusinessContext string
}

type Responder struct {
	gen       Generator
	localizer *localization.Localizer
	opts      Options
}

func NewResponder(gen Generator, localizer *localization.Localizer, opts Options) (*Responder, error) {
	if gen == nil {
		return nil, errors.New("assistant: generator must not be nil")
	}
	if localizer == nil {
		return nil, errors.New("assistant: localizer must not be nil")
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = 12
	}
	if opts.MaxReplyRunes <= 0 {
		opts.MaxReplyRunes = config.MaxReplyRunes
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if strings.TrimSpace(opts.BusinessName) == "" {
		opts.BusinessName = "our studio"
	}
	return &Responder{gen: gen, localizer: localizer, opts: opts}, nil
}

// IsHandoffRequest reports whether text asks for a human agent.
func (r *Responder) IsHandoffRequest(text string) bool {
	return analysis.IsHandoffRequest(text)
}

// GenerateReply asks the generator for the next bot message. Only the most recent
// HistoryWindow turns are sent, and the reply is cut to MaxReplyRunes.
func (r *Responder) GenerateReply(ctx context.Context, conv *models.Conversation, history []models.Message, latest string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	pc := promptContext{
		businessName:    r.opts.BusinessName,
		businessContext: r.opts.BusinessContext,
	}
	if conv != nil {
		pc.contactName = conv.ContactName
	}

	raw, err := r.gen.Generate(ctx, buildSystemPrompt(pc), buildWindow(history, latest, r.opts.HistoryWindow))
	if err != nil {
		return "", fmt.Errorf("assistant: generate reply: %w", err)
	}
	reply := strings.TrimSpace(raw)
	if reply == "" {
		return "", ErrEmptyReply
	}
	return truncateRunes(reply, r.opts.MaxReplyRunes), nil
}

func (r *Responder) WelcomeMessage(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "there"
	}
	return r.localizer.Format("welcome", name)
}

func (r *Responder) HandoffMessage() string {
	return r.localizer.Format("handoff")
}

func (r *Responder) FallbackMessage() string {
	return r.localizer.Format("fallback_reply")
}

// StatusUpdateMessage describes a status change from the visitor's point of view.
func (r *Responder) StatusUpdateMessage(status models.Status, userInitiated bool) string {
	label := r.localizer.GetString(localization.DefaultLanguage, "status_label_"+string(status))
	if userInitiated {
		return r.localizer.Format("status_changed_by_user", label)
	}
	return r.localizer.Format("status_changed_by_team", label)
}
