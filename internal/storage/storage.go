package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"supportdesk/backend/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a conversation or message id is unknown.
var ErrNotFound = errors.New("storage: not found")

// ValidationError carries field level problems with a write request.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, problem := range e.Fields {
		parts = append(parts, field+": "+problem)
	}
	return "storage: validation failed: " + strings.Join(parts, "; ")
}

// Storage is the single source of truth for conversations and messages.
type Storage interface {
	CreateConversation(ctx context.Context, anonymousID, name, email string) (*models.Conversation, error)
	GetConversation(ctx context.Context, id string) (*models.Conversation, error)
	ListConversations(ctx context.Context, anonymousID string, status models.Status) ([]models.Conversation, error)
	UpdateConversation(ctx context.Context, id string, upd models.ConversationUpdate) (*models.Conversation, error)
	SetOperatorThread(ctx context.Context, id, threadID string) (*models.Conversation, error)
	FindByOperatorThread(ctx context.Context, threadID string) (*models.Conversation, error)

	AppendMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string, limit int, beforeID uint) ([]models.Message, error)
	CountUnread(ctx context.Context, conversationID string) (int64, error)
	MarkRead(ctx context.Context, conversationID string) error

	PublishEvent(ctx context.Context, event models.Event) error
}

type Service struct {
	DB       *gorm.DB
	Redis    *redis.Client
	validate *validator.Validate
}

// NewStorageService Constructor. rdb may be nil, in which case events are not published.
func NewStorageService(db *gorm.DB, rdb *redis.Client) *Service {
	return &Service{
		DB:       db,
		Redis:    rdb,
		validate: validator.New(),
	}
}

// AutoMigrate creates or updates the tables used by the store.
func (s *Service) AutoMigrate() error {
	return s.DB.AutoMigrate(&models.Conversation{}, &models.Message{})
}

type contactInput struct {
	AnonymousID string `validate:"required,max=128"`
	Name        string `validate:"required,max=120"`
	Email       string `validate:"required,email,max=254"`
}

func (s *Service) CreateConversation(ctx context.Context, anonymousID, name, email string) (*models.Conversation, error) {
	in := contactInput{
		AnonymousID: strings.TrimSpace(anonymousID),
		Name:        strings.TrimSpace(name),
		Email:       strings.TrimSpace(email),
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, toValidationError(err)
	}

	now := nowUTC()
	conv := &models.Conversation{
		AnonymousID:   in.AnonymousID,
		ContactName:   in.Name,
		ContactEmail:  strings.ToLower(in.Email),
		Mode:          models.ModeAIBot,
		Status:        models.StatusOpen,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	if err := s.DB.WithContext(ctx).Create(conv).Error; err != nil {
		return nil, fmt.Errorf("storage: create conversation: %w", err)
	}
	return conv, nil
}

// GetConversation returns nil without an error when the id is unknown.
func (s *Service) GetConversation(ctx context.Context, id string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.WithContext(ctx).Where("id = ?", id).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: get conversation %s: %w", id, err)
	}
	return &conv, nil
}

// ListConversations returns the conversations owned by anonymousID, most recent activity first.
// An empty status matches every status.
func (s *Service) ListConversations(ctx context.Context, anonymousID string, status models.Status) ([]models.Conversation, error) {
	var convs []models.Conversation
	q := s.DB.WithContext(ctx).Where("anonymous_id = ?", anonymousID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Order("last_message_at desc").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("storage: list conversations: %w", err)
	}
	return convs, nil
}

func (s *Service) UpdateConversation(ctx context.Context, id string, upd models.ConversationUpdate) (*models.Conversation, error) {
	db := s.DB.WithContext(ctx)

	var conv models.Conversation
	if err := db.Where("id = ?", id).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("storage: update conversation %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("storage: update conversation %s: %w", id, err)
	}
	if upd.IsEmpty() {
		return &conv, nil
	}

	changes := map[string]interface{}{}
	if upd.Mode != nil {
		changes["mode"] = *upd.Mode
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, &ValidationError{Fields: map[string]string{"status": "unknown status"}}
		}
		changes["status"] = *upd.Status
	}
	if upd.OperatorThreadID != nil {
		changes["operator_thread_id"] = *upd.OperatorThreadID
	}
	if upd.LastMessageAt != nil {
		changes["last_message_at"] = upd.LastMessageAt.UTC()
	}

	if err := db.Model(&models.Conversation{}).Where("id = ?", id).Updates(changes).Error; err != nil {
		return nil, fmt.Errorf("storage: update conversation %s: %w", id, err)
	}
	if err := db.Where("id = ?", id).First(&conv).Error; err != nil {
		return nil, fmt.Errorf("storage: reload conversation %s: %w", id, err)
	}
	return &conv, nil
}

// SetOperatorThread attaches threadID only if the conversation has no thread yet.
// The returned conversation carries whichever thread id ended up persisted, so a caller
// that lost a race sees the winner's id.
func (s *Service) SetOperatorThread(ctx context.Context, id, threadID string) (*models.Conversation, error) {
	db := s.DB.WithContext(ctx)
	res := db.Model(&models.Conversation{}).
		Where("id = ? AND operator_thread_id IS NULL", id).
		Update("operator_thread_id", threadID)
	if res.Error != nil {
		return nil, fmt.Errorf("storage: set operator thread %s: %w", id, res.Error)
	}

	var conv models.Conversation
	if err := db.Where("id = ?", id).First(&conv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("storage: set operator thread %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("storage: reload conversation %s: %w", id, err)
	}
	return &conv, nil
}

// FindByOperatorThread returns nil without an error when no conversation uses the thread.
func (s *Service) FindByOperatorThread(ctx context.Context, threadID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.DB.WithContext(ctx).Where("operator_thread_id = ?", threadID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: find by operator thread %s: %w", threadID, err)
	}
	return &conv, nil
}

// AppendMessage persists msg and bumps the conversation's last_message_at in one transaction.
// User messages are stored as read; everything else starts unread.
func (s *Service) AppendMessage(ctx context.Context, msg *models.Message) error {
	if err := msg.Validate(); err != nil {
		return &ValidationError{Fields: map[string]string{"content": err.Error()}}
	}
	if strings.TrimSpace(msg.ConversationID) == "" {
		return &ValidationError{Fields: map[string]string{"conversation_id": "required"}}
	}

	now := nowUTC()
	msg.ID = 0
	msg.CreatedAt = now
	if msg.SenderType == models.SenderUser {
		msg.IsRead = true
		msg.ReadAt = &now
	} else {
		msg.IsRead = false
		msg.ReadAt = nil
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Conversation{}).
			Where("id = ?", msg.ConversationID).
			Update("last_message_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Create(msg).Error
	})
	if err != nil {
		return fmt.Errorf("storage: append message to %s: %w", msg.ConversationID, err)
	}
	return nil
}

// ListMessages returns at most limit messages, oldest first. With beforeID set, only
// messages strictly older than that message are considered; otherwise the most recent
// window is returned.
func (s *Service) ListMessages(ctx context.Context, conversationID string, limit int, beforeID uint) ([]models.Message, error) {
	if limit <= 0 {
		return []models.Message{}, nil
	}
	db := s.DB.WithContext(ctx)

	q := db.Where("conversation_id = ?", conversationID)
	if beforeID != 0 {
		var cursor models.Message
		err := db.Where("id = ? AND conversation_id = ?", beforeID, conversationID).First(&cursor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("storage: cursor message %d: %w", beforeID, ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("storage: load cursor message %d: %w", beforeID, err)
		}
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var msgs []models.Message
	if err := q.Order("created_at desc").Order("id desc").Limit(limit).Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("storage: list messages for %s: %w", conversationID, err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// CountUnread counts unread messages not sent by the user.
func (s *Service) CountUnread(ctx context.Context, conversationID string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_type <> ? AND is_read = ?", conversationID, models.SenderUser, false).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("storage: count unread for %s: %w", conversationID, err)
	}
	return n, nil
}

// MarkRead marks every unread non-user message of the conversation as read.
func (s *Service) MarkRead(ctx context.Context, conversationID string) error {
	err := s.DB.WithContext(ctx).Model(&models.Message{}).
		Where("conversation_id = ? AND sender_type <> ? AND is_read = ?", conversationID, models.SenderUser, false).
		Updates(map[string]interface{}{
			"is_read": true,
			"read_at": nowUTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("storage: mark read for %s: %w", conversationID, err)
	}
	return nil
}

// EventChannel is the redis channel that carries events for one conversation.
func EventChannel(conversationID string) string {
	return EventChannelPrefix + conversationID
}

const EventChannelPrefix = "conversation:"

// PublishEvent publishes the event on the conversation channel in Redis Pub/Sub.
func (s *Service) PublishEvent(ctx context.Context, event models.Event) error {
	if s.Redis == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("storage: marshal event: %w", err)
	}
	if err := s.Redis.Publish(ctx, EventChannel(event.ConversationID), payload).Err(); err != nil {
		return fmt.Errorf("storage: publish event: %w", err)
	}
	return nil
}

// SubscribeToConversations subscribes to the event channels of every conversation.
func (s *Service) SubscribeToConversations(ctx context.Context) *redis.PubSub {
	return s.Redis.PSubscribe(ctx, EventChannelPrefix+"*")
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Fields: map[string]string{"input": err.Error()}}
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fieldName(fe.Field())] = describeTag(fe.Tag())
	}
	return &ValidationError{Fields: fields}
}

func fieldName(structField string) string {
	switch structField {
	case "AnonymousID":
		return "anonymous_id"
	case "Name":
		return "name"
	case "Email":
		return "email"
	}
	return strings.ToLower(structField)
}

func describeTag(tag string) string {
	switch tag {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "max":
		return "is too long"
	}
	return "is invalid"
}

// nowUTC is truncated to microseconds so ordering matches what postgres stores.
var nowUTC = func() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}
