// Package support is the conversation orchestrator. It owns every write to a
// conversation: user messages, hand-offs, status changes and operator replies, and
// decides which of the assistant, the operator bridge and the media store to involve.
package support

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/media"
	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/storage"
	"supportdesk/backend/internal/telegram"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const maxMessageRunes = 4000

// Responder produces bot replies and canned strings.
type Responder interface {
	IsHandoffRequest(text string) bool
	GenerateReply(ctx context.Context, conv *models.Conversation, history []models.Message, latest string) (string, error)
	WelcomeMessage(name string) string
	HandoffMessage() string
	StatusUpdateMessage(status models.Status, userInitiated bool) string
	FallbackMessage() string
}

// Bridge is the operator channel boundary.
type Bridge interface {
	SupportChatID() int64
	EnsureThread(ctx context.Context, conv *models.Conversation) (threadID string, created bool, err error)
	RelayOutbound(ctx context.Context, conv *models.Conversation, msg *models.Message) (string, error)
	RelayInbound(raw []byte) (*telegram.ParsedReply, error)
	FetchAttachment(ctx context.Context, ref *telegram.AttachmentRef, maxBytes int64) ([]byte, error)
	NotifyStatusChange(ctx context.Context, conv *models.Conversation, from, to models.Status)
}

type Options struct {
	// RelayTimeout bounds inline operator channel calls made while serving a user request.
	RelayTimeout time.Duration
	// AttachmentTimeout bounds fetching and storing one operator attachment.
	AttachmentTimeout time.Duration
	Policy            media.Policy
}

type Service struct {
	store      storage.Storage
	responder  Responder
	bridge     Bridge
	media      media.Store
	dispatcher Dispatcher
	log        *zap.Logger
	opts       Options
	validate   *validator.Validate
}

// NewService wires the orchestrator. mediaStore may be nil, in which case uploads
// fail and operator attachments are skipped.
func NewService(store storage.Storage, responder Responder, bridge Bridge, mediaStore media.Store, dispatcher Dispatcher, log *zap.Logger, opts Options) *Service {
	if opts.RelayTimeout <= 0 {
		opts.RelayTimeout = 10 * time.Second
	}
	if opts.AttachmentTimeout <= 0 {
		opts.AttachmentTimeout = 20 * time.Second
	}
	if opts.Policy.MaxBytes <= 0 {
		opts.Policy = media.DefaultPolicy()
	}
	return &Service{
		store:      store,
		responder:  responder,
		bridge:     bridge,
		media:      mediaStore,
		dispatcher: dispatcher,
		log:        log,
		opts:       opts,
		validate:   validator.New(),
	}
}

// ConversationDetail is a conversation with its most recent page of messages.
type ConversationDetail struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []models.Message     `json:"messages"`
	UnreadCount  int64                `json:"unread_count"`
	HasMore      bool                 `json:"has_more"`
}

type MessagePage struct {
	Messages []models.Message `json:"messages"`
	HasMore  bool             `json:"has_more"`
}

// Result is the outcome of a write: the conversation after the write and the
// messages it created, oldest first.
type Result struct {
	Conversation *models.Conversation `json:"conversation"`
	Messages     []models.Message     `json:"messages"`
}

// CreateConversation opens a conversation and greets the contact.
func (s *Service) CreateConversation(ctx context.Context, anonymousID, name, email string) (*Result, error) {
	conv, err := s.store.CreateConversation(ctx, anonymousID, name, email)
	if err != nil {
		return nil, s.storeFailure("create_conversation", "", err)
	}

	welcome := &models.Message{
		ConversationID: conv.ID,
		SenderType:     models.SenderBot,
		Content:        models.StringPtr(s.responder.WelcomeMessage(conv.ContactName)),
	}
	if err := s.appendMessage(ctx, welcome); err != nil {
		return nil, s.storeFailure("create_conversation", conv.ID, err)
	}

	conv = s.reload(ctx, conv)
	s.publish(conv, welcome)
	return &Result{Conversation: conv, Messages: []models.Message{*welcome}}, nil
}

func (s *Service) ListConversations(ctx context.Context, anonymousID, status string) ([]models.Conversation, error) {
	if strings.TrimSpace(anonymousID) == "" {
		return nil, validationError(map[string]string{"anonymous_id": "is required"})
	}
	st := models.Status(status)
	if status != "" && !st.Valid() {
		return nil, validationError(map[string]string{"status": "must be one of open, pending, resolved, closed"})
	}
	convs, err := s.store.ListConversations(ctx, anonymousID, st)
	if err != nil {
		return nil, s.storeFailure("list_conversations", "", err)
	}
	return convs, nil
}

func (s *Service) GetConversation(ctx context.Context, id, anonymousID string) (*ConversationDetail, error) {
	conv, err := s.owned(ctx, id, anonymousID)
	if err != nil {
		return nil, err
	}
	page, err := s.listMessages(ctx, conv.ID, config.DefaultPageSize, 0)
	if err != nil {
		return nil, err
	}
	unread, err := s.store.CountUnread(ctx, conv.ID)
	if err != nil {
		return nil, s.storeFailure("get_conversation", conv.ID, err)
	}
	return &ConversationDetail{
		Conversation: conv,
		Messages:     page.Messages,
		UnreadCount:  unread,
		HasMore:      page.HasMore,
	}, nil
}

// ListMessages returns up to limit messages older than before (0 for the newest page).
// limit is clamped to [1, MaxPageSize] and defaults to DefaultPageSize.
func (s *Service) ListMessages(ctx context.Context, id, anonymousID string, limit int, before uint) (*MessagePage, error) {
	conv, err := s.owned(ctx, id, anonymousID)
	if err != nil {
		return nil, err
	}
	return s.listMessages(ctx, conv.ID, ClampLimit(limit), before)
}

// ClampLimit applies the page size policy.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return config.DefaultPageSize
	case limit > config.MaxPageSize:
		return config.MaxPageSize
	}
	return limit
}

func (s *Service) listMessages(ctx context.Context, conversationID string, limit int, before uint) (*MessagePage, error) {
	msgs, err := s.store.ListMessages(ctx, conversationID, limit, before)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, validationError(map[string]string{"before": "unknown message id"})
		}
		return nil, s.storeFailure("list_messages", conversationID, err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	return &MessagePage{Messages: msgs, HasMore: len(msgs) == limit}, nil
}

// MarkRead marks every message in the conversation as read and returns the unread count.
func (s *Service) MarkRead(ctx context.Context, id, anonymousID string) (int64, error) {
	conv, err := s.owned(ctx, id, anonymousID)
	if err != nil {
		return 0, err
	}
	if err := s.store.MarkRead(ctx, conv.ID); err != nil {
		return 0, s.storeFailure("mark_read", conv.ID, err)
	}
	unread, err := s.store.CountUnread(ctx, conv.ID)
	if err != nil {
		return 0, s.storeFailure("mark_read", conv.ID, err)
	}
	return unread, nil
}

// UpdateStatus applies a status change requested by the conversation owner. Setting
// the current status is a no-op and returns no messages.
func (s *Service) UpdateStatus(ctx context.Context, id, anonymousID, status string) (*Result, error) {
	conv, err := s.owned(ctx, id, anonymousID)
	if err != nil {
		return nil, err
	}
	return s.applyStatus(ctx, conv, models.Status(status), true)
}

// ChangeStatus applies a status change on behalf of the support team. It skips the
// ownership check and words the system message accordingly.
func (s *Service) ChangeStatus(ctx context.Context, id, status string) (*Result, error) {
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, s.storeFailure("change_status", id, err)
	}
	if conv == nil {
		return nil, newError(ErrorNotFound, "conversation not found", nil)
	}
	return s.applyStatus(ctx, conv, models.Status(status), false)
}

func (s *Service) applyStatus(ctx context.Context, conv *models.Conversation, requested models.Status, userInitiated bool) (*Result, error) {
	changed, err := statusChange(conv.Status, requested)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &Result{Conversation: conv, Messages: []models.Message{}}, nil
	}

	previous := conv.Status
	updated, err := s.store.UpdateConversation(ctx, conv.ID, models.ConversationUpdate{Status: &requested})
	if err != nil {
		return nil, s.storeFailure("update_status", conv.ID, err)
	}

	notice := &models.Message{
		ConversationID: conv.ID,
		SenderType:     models.SenderSystem,
		Content:        models.StringPtr(s.responder.StatusUpdateMessage(requested, userInitiated)),
	}
	if err := s.appendMessage(ctx, notice); err != nil {
		return nil, s.storeFailure("update_status", conv.ID, err)
	}
	updated = s.reload(ctx, updated)

	s.publish(updated, notice)
	snapshot := *updated
	s.dispatcher.Dispatch(conv.ID, "notify_status_change", func(ctx context.Context) {
		s.bridge.NotifyStatusChange(ctx, &snapshot, previous, requested)
	})

	return &Result{Conversation: updated, Messages: []models.Message{*notice}}, nil
}

type userMessageInput struct {
	AttachmentURL string `validate:"omitempty,url,startswith=http,max=2048"`
}

// HandleUserMessage stores a message from the conversation owner and produces the
// reaction to it: a bot reply, a hand-off, or a relay to the operator thread. The user
// message is persisted before anything else happens, and upstream failures never fail
// the call.
func (s *Service) HandleUserMessage(ctx context.Context, id, anonymousID, text, attachmentURL string) (*Result, error) {
	text = strings.TrimSpace(text)
	attachmentURL = strings.TrimSpace(attachmentURL)
	if text == "" && attachmentURL == "" {
		return nil, validationError(map[string]string{"content": "text or attachment_url is required"})
	}
	if utf8.RuneCountInString(text) > maxMessageRunes {
		return nil, validationError(map[string]string{"content": "is too long"})
	}
	if err := s.validate.Struct(userMessageInput{AttachmentURL: attachmentURL}); err != nil {
		return nil, validationError(map[string]string{"attachment_url": "must be an http(s) URL"})
	}

	conv, err := s.owned(ctx, id, anonymousID)
	if err != nil {
		return nil, err
	}

	userMsg := &models.Message{
		ConversationID: conv.ID,
		SenderType:     models.SenderUser,
		SenderName:     conv.ContactName,
		Content:        models.StringPtr(text),
		AttachmentURL:  models.StringPtr(attachmentURL),
	}
	if err := s.appendMessage(ctx, userMsg); err != nil {
		return nil, s.storeFailure("handle_user_message", conv.ID, err)
	}
	created := []*models.Message{userMsg}

	switch {
	case shouldHandOff(conv, text != "" && s.responder.IsHandoffRequest(text)):
		notice, err := s.handOff(ctx, conv, userMsg)
		if err != nil {
			return nil, err
		}
		created = append(created, notice)

	case conv.Mode == models.ModeAIBot:
		reply, err := s.botReply(ctx, conv, text)
		if err != nil {
			return nil, err
		}
		created = append(created, reply)

	default:
		s.relayToOperators(ctx, conv, userMsg)
	}

	conv = s.reload(ctx, conv)
	s.publish(conv, created...)

	out := make([]models.Message, 0, len(created))
	for _, m := range created {
		out = append(out, *m)
	}
	return &Result{Conversation: conv, Messages: out}, nil
}

// handOff flips the conversation to human_agent, announces it, and opens the
// operator thread. The thread transcript already contains the triggering message.
func (s *Service) handOff(ctx context.Context, conv *models.Conversation, userMsg *models.Message) (*models.Message, error) {
	mode := models.ModeHumanAgent
	updated, err := s.store.UpdateConversation(ctx, conv.ID, models.ConversationUpdate{Mode: &mode})
	if err != nil {
		return nil, s.storeFailure("handoff", conv.ID, err)
	}
	*conv = *updated

	notice := &models.Message{
		ConversationID: conv.ID,
		SenderType:     models.SenderSystem,
		Content:        models.StringPtr(s.responder.HandoffMessage()),
	}
	if err := s.appendMessage(ctx, notice); err != nil {
		return nil, s.storeFailure("handoff", conv.ID, err)
	}
	handoffsTotal.Inc()
	s.log.Info("Conversation handed off", zap.String("conversation_id", conv.ID), zap.String("operation", "handoff"))

	relayCtx, cancel := context.WithTimeout(ctx, s.opts.RelayTimeout)
	defer cancel()
	_, created, err := s.bridge.EnsureThread(relayCtx, conv)
	if err != nil {
		s.upstreamFailure(conv.ID, "ensure_thread", err)
		return notice, nil
	}
	if !created {
		// thread predates this hand-off, so the transcript does not carry the message
		if _, err := s.bridge.RelayOutbound(relayCtx, conv, userMsg); err != nil {
			s.upstreamFailure(conv.ID, "relay_outbound", err)
		}
	}
	return notice, nil
}

func (s *Service) botReply(ctx context.Context, conv *models.Conversation, text string) (*models.Message, error) {
	history, err := s.store.ListMessages(ctx, conv.ID, config.DefaultPageSize, 0)
	if err != nil {
		return nil, s.storeFailure("generate_reply", conv.ID, err)
	}
	content, err := s.responder.GenerateReply(ctx, conv, history, text)
	if err != nil {
		s.upstreamFailure(conv.ID, "generate_reply", err)
		content = s.responder.FallbackMessage()
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderType:     models.SenderBot,
		Content:        models.StringPtr(content),
	}
	if err := s.appendMessage(ctx, msg); err != nil {
		return nil, s.storeFailure("generate_reply", conv.ID, err)
	}
	return msg, nil
}

// relayToOperators forwards a message in human_agent mode, creating the thread if
// an earlier hand-off could not.
func (s *Service) relayToOperators(ctx context.Context, conv *models.Conversation, msg *models.Message) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.RelayTimeout)
	defer cancel()

	_, created, err := s.bridge.EnsureThread(ctx, conv)
	if err != nil {
		s.upstreamFailure(conv.ID, "ensure_thread", err)
		return
	}
	if created {
		return
	}
	if _, err := s.bridge.RelayOutbound(ctx, conv, msg); err != nil {
		s.upstreamFailure(conv.ID, "relay_outbound", err)
	}
}

// UploadMedia stores a file for the conversation after checking it against the media policy.
func (s *Service) UploadMedia(ctx context.Context, id, anonymousID, filename string, data []byte) (*media.Object, error) {
	conv, err := s.owned(ctx, id, anonymousID)
	if err != nil {
		return nil, err
	}
	contentType, err := s.opts.Policy.Check(data)
	if err != nil {
		return nil, &Error{Code: ErrorValidation, Reason: "file rejected", Fields: map[string]string{"file": err.Error()}, Err: err}
	}
	if s.media == nil {
		return nil, newError(ErrorUpstream, "media storage not configured", nil)
	}
	obj, err := s.media.Upload(ctx, conv.ID, data, filename, contentType)
	if err != nil {
		s.upstreamFailure(conv.ID, "upload_media", err)
		return nil, newError(ErrorUpstream, "media upload failed", err)
	}
	return obj, nil
}

// Authorize checks that anonymousID owns the conversation.
func (s *Service) Authorize(ctx context.Context, id, anonymousID string) error {
	_, err := s.owned(ctx, id, anonymousID)
	return err
}

// owned loads a conversation and checks that anonymousID owns it.
func (s *Service) owned(ctx context.Context, id, anonymousID string) (*models.Conversation, error) {
	if strings.TrimSpace(anonymousID) == "" {
		return nil, validationError(map[string]string{"anonymous_id": "is required"})
	}
	conv, err := s.store.GetConversation(ctx, id)
	if err != nil {
		return nil, s.storeFailure("load_conversation", id, err)
	}
	if conv == nil {
		return nil, newError(ErrorNotFound, "conversation not found", nil)
	}
	if conv.AnonymousID != anonymousID {
		return nil, newError(ErrorAccessDenied, "access denied", nil)
	}
	return conv, nil
}

func (s *Service) appendMessage(ctx context.Context, msg *models.Message) error {
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return err
	}
	messagesTotal.WithLabelValues(string(msg.SenderType)).Inc()
	return nil
}

// reload returns the stored conversation, or conv itself when the read fails.
func (s *Service) reload(ctx context.Context, conv *models.Conversation) *models.Conversation {
	fresh, err := s.store.GetConversation(ctx, conv.ID)
	if err != nil || fresh == nil {
		s.log.Warn("Failed to reload conversation", zap.String("conversation_id", conv.ID),
			zap.String("operation", "reload"), zap.Error(err))
		return conv
	}
	return fresh
}

func (s *Service) storeFailure(operation, conversationID string, err error) error {
	e := fromStore(operation, err)
	if e.Code == ErrorPersistence {
		s.log.Error("Store operation failed", zap.String("conversation_id", conversationID),
			zap.String("operation", operation), zap.Error(err))
	}
	return e
}

func (s *Service) upstreamFailure(conversationID, operation string, err error) {
	upstreamFailures.WithLabelValues(operation).Inc()
	s.log.Warn("Upstream call failed", zap.String("conversation_id", conversationID),
		zap.String("operation", operation), zap.Error(err))
}

// publish sends the message events of one write, oldest first, followed by the
// conversation snapshot taken after it. They go out as a single job on the
// conversation's lane, so subscribers see them in commit order.
func (s *Service) publish(conv *models.Conversation, msgs ...*models.Message) {
	events := make([]models.Event, 0, len(msgs)+1)
	for _, m := range msgs {
		msg := *m
		events = append(events, models.Event{Type: models.EventMessageCreated, ConversationID: conv.ID, Message: &msg})
	}
	snapshot := *conv
	events = append(events, models.Event{Type: models.EventConversationUpdated, ConversationID: conv.ID, Conversation: &snapshot})

	s.dispatcher.Dispatch(conv.ID, "publish_event", func(ctx context.Context) {
		for _, event := range events {
			if err := s.store.PublishEvent(ctx, event); err != nil {
				s.log.Warn("Failed to publish event", zap.String("conversation_id", event.ConversationID),
					zap.String("operation", "publish_event"), zap.String("event", string(event.Type)), zap.Error(err))
			}
		}
	})
}
