// Package telegram bridges support conversations to a Telegram supergroup with
// forum topics enabled. Each conversation that is handed off to a human gets its
// own topic; operators reply inside the topic and the webhook brings the replies back.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"supportdesk/backend/internal/config"
	"supportdesk/backend/internal/localization"
	"supportdesk/backend/internal/models"

	"go.uber.org/zap"
)

// ErrNoThread is returned when relaying into a conversation without an operator thread.
var ErrNoThread = errors.New("telegram: conversation has no operator thread")

// ThreadStore is the part of the conversation store the bridge needs.
type ThreadStore interface {
	SetOperatorThread(ctx context.Context, id, threadID string) (*models.Conversation, error)
	ListMessages(ctx context.Context, conversationID string, limit int, beforeID uint) ([]models.Message, error)
}

type Bridge struct {
	channel   Channel
	store     ThreadStore
	localizer *localization.Localizer
	chatID    int64
	log       *zap.Logger
}

func NewBridge(channel Channel, store ThreadStore, localizer *localization.Localizer, supportChatID int64, log *zap.Logger) *Bridge {
	return &Bridge{
		channel:   channel,
		store:     store,
		localizer: localizer,
		chatID:    supportChatID,
		log:       log,
	}
}

// SupportChatID is the only chat whose events are accepted.
func (b *Bridge) SupportChatID() int64 {
	return b.chatID
}

// EnsureThread returns the conversation's thread, creating it on first use. A new
// thread opens with the contact details and a transcript of the conversation so far,
// in which case created is true. conv is updated with the persisted thread id.
//
// Concurrent callers may both create a topic; only the first persisted id is kept
// and the losing topic is logged and left unused.
func (b *Bridge) EnsureThread(ctx context.Context, conv *models.Conversation) (threadID string, created bool, err error) {
	if conv.HasThread() {
		return *conv.OperatorThreadID, false, nil
	}

	newID, err := b.channel.CreateThread(ctx, ThreadTitle(conv))
	if err != nil {
		return "", false, fmt.Errorf("create thread: %w", err)
	}

	persisted, err := b.store.SetOperatorThread(ctx, conv.ID, newID)
	if err != nil {
		return "", false, fmt.Errorf("persist thread: %w", err)
	}
	if !persisted.HasThread() {
		return "", false, fmt.Errorf("persist thread: conversation %s has no thread after update", conv.ID)
	}
	*conv = *persisted

	if *persisted.OperatorThreadID != newID {
		b.log.Warn("Lost operator thread race, orphaned topic left behind",
			zap.String("conversation_id", conv.ID),
			zap.String("operation", "ensure_thread"),
			zap.String("orphan_thread_id", newID),
			zap.String("thread_id", *persisted.OperatorThreadID))
		return *persisted.OperatorThreadID, false, nil
	}

	if err := b.postTranscript(ctx, conv, newID); err != nil {
		b.log.Warn("Failed to post hand-off transcript",
			zap.String("conversation_id", conv.ID),
			zap.String("operation", "ensure_thread"),
			zap.Error(err))
	}
	return newID, true, nil
}

func (b *Bridge) postTranscript(ctx context.Context, conv *models.Conversation, threadID string) error {
	intro := b.localizer.Format("operator_thread_intro", conv.ContactName, conv.ContactEmail, conv.ID)
	if _, err := b.channel.PostText(ctx, threadID, intro); err != nil {
		return err
	}

	history, err := b.store.ListMessages(ctx, conv.ID, config.MaxPageSize, 0)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	if len(history) == 0 {
		return nil
	}

	lines := make([]string, 0, len(history))
	for i := range history {
		lines = append(lines, b.transcriptLine(&history[i]))
	}
	header := b.localizer.Format("operator_transcript_header")
	for _, chunk := range chunkLines(header, lines, config.TranscriptChunkLimit) {
		if _, err := b.channel.PostText(ctx, threadID, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) transcriptLine(m *models.Message) string {
	who := b.senderLabel(m)
	parts := make([]string, 0, 2)
	if text := m.Text(); text != "" {
		parts = append(parts, text)
	}
	if url := m.Attachment(); url != "" {
		parts = append(parts, "📎 "+url)
	}
	return fmt.Sprintf("[%s] %s: %s", m.CreatedAt.UTC().Format("15:04"), who, strings.Join(parts, " "))
}

func (b *Bridge) senderLabel(m *models.Message) string {
	label := b.localizer.Format("sender_" + string(m.SenderType))
	if m.SenderType == models.SenderSupport && m.SenderName != "" {
		return m.SenderName
	}
	return label
}

// RelayOutbound posts a user or system message into the conversation's thread.
// Text and attachment are delivered as two calls; the id of the last one is returned.
func (b *Bridge) RelayOutbound(ctx context.Context, conv *models.Conversation, msg *models.Message) (string, error) {
	if !conv.HasThread() {
		return "", ErrNoThread
	}
	threadID := *conv.OperatorThreadID

	var externalID string
	if text := msg.Text(); text != "" {
		id, err := b.channel.PostText(ctx, threadID, fmt.Sprintf("%s: %s", b.outboundName(conv, msg), text))
		if err != nil {
			return "", fmt.Errorf("relay text: %w", err)
		}
		externalID = id
	}
	if url := msg.Attachment(); url != "" {
		caption := b.localizer.Format("operator_user_attachment", b.outboundName(conv, msg))
		id, err := b.channel.PostAttachment(ctx, threadID, url, caption)
		if err != nil {
			return externalID, fmt.Errorf("relay attachment: %w", err)
		}
		externalID = id
	}
	return externalID, nil
}

func (b *Bridge) outboundName(conv *models.Conversation, msg *models.Message) string {
	if msg.SenderType == models.SenderUser && conv.ContactName != "" {
		return conv.ContactName
	}
	return b.senderLabel(msg)
}

// RelayInbound parses a webhook body. See ParseInbound.
func (b *Bridge) RelayInbound(raw []byte) (*ParsedReply, error) {
	return ParseInbound(raw)
}

// FetchAttachment downloads an operator attachment, refusing files over maxBytes.
func (b *Bridge) FetchAttachment(ctx context.Context, ref *AttachmentRef, maxBytes int64) ([]byte, error) {
	if ref.Size > maxBytes {
		return nil, ErrAttachmentTooLarge
	}
	info, err := b.channel.GetAttachmentInfo(ctx, ref.FileID)
	if err != nil {
		return nil, err
	}
	if info.Size > maxBytes {
		return nil, ErrAttachmentTooLarge
	}
	return b.channel.DownloadAttachment(ctx, info.DownloadPath, maxBytes)
}

// NotifyStatusChange tells operators about a status change. Failures are logged only.
func (b *Bridge) NotifyStatusChange(ctx context.Context, conv *models.Conversation, from, to models.Status) {
	if !conv.HasThread() {
		return
	}
	text := b.localizer.Format("operator_status_changed", from, to)
	if _, err := b.channel.PostText(ctx, *conv.OperatorThreadID, text); err != nil {
		b.log.Warn("Failed to notify operators of status change",
			zap.String("conversation_id", conv.ID),
			zap.String("operation", "notify_status_change"),
			zap.Error(err))
	}
}

// ThreadTitle names a topic "#<short id> · <contact name>", bounded to the topic name limit.
func ThreadTitle(conv *models.Conversation) string {
	var short strings.Builder
	for _, r := range conv.ID {
		if short.Len() == config.ThreadIDPrefixLen {
			break
		}
		if r < utf8.RuneSelf && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			short.WriteRune(r)
		}
	}

	name := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, conv.ContactName)
	name = strings.Join(strings.Fields(name), " ")

	title := "#" + short.String()
	if name != "" {
		title += " · " + name
	}
	return truncateRunes(title, config.ThreadTitleMaxLen)
}

// chunkLines packs header and lines into messages of at most limit runes.
// Lines longer than limit are split.
func chunkLines(header string, lines []string, limit int) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0

	flush := func() {
		if curLen > 0 {
			chunks = append(chunks, cur.String())
			cur.Reset()
			curLen = 0
		}
	}
	add := func(line string) {
		n := utf8.RuneCountInString(line)
		sep := 0
		if curLen > 0 {
			sep = 1
		}
		if curLen+sep+n > limit {
			flush()
			sep = 0
		}
		if sep == 1 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
		curLen += sep + n
	}

	for _, line := range append([]string{header}, lines...) {
		for utf8.RuneCountInString(line) > limit {
			runes := []rune(line)
			add(string(runes[:limit]))
			line = string(runes[limit:])
		}
		add(line)
	}
	flush()
	return chunks
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
