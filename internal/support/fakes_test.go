package support

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"supportdesk/backend/internal/assistant"
	"supportdesk/backend/internal/localization"
	"supportdesk/backend/internal/media"
	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/storage"
	"supportdesk/backend/internal/storage/storagetest"
	"supportdesk/backend/internal/telegram"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const supportChatID int64 = -100123

type fakeGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, _ []assistant.Turn) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.reply, g.err
}

func (g *fakeGenerator) Calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// fakeBridge persists threads through the real store and records every outbound call.
type fakeBridge struct {
	mu         sync.Mutex
	store      storage.Storage
	nextThread string
	ensureErr  error
	relayErr   error
	fetchData  []byte
	fetchErr   error

	ensureCalls int
	relayed     []models.Message
	notified    []models.Status
}

func (b *fakeBridge) SupportChatID() int64 { return supportChatID }

func (b *fakeBridge) EnsureThread(ctx context.Context, conv *models.Conversation) (string, bool, error) {
	b.mu.Lock()
	b.ensureCalls++
	ensureErr, next := b.ensureErr, b.nextThread
	b.mu.Unlock()

	if conv.HasThread() {
		return *conv.OperatorThreadID, false, nil
	}
	if ensureErr != nil {
		return "", false, ensureErr
	}
	persisted, err := b.store.SetOperatorThread(ctx, conv.ID, next)
	if err != nil {
		return "", false, err
	}
	*conv = *persisted
	return *persisted.OperatorThreadID, true, nil
}

func (b *fakeBridge) RelayOutbound(_ context.Context, conv *models.Conversation, msg *models.Message) (string, error) {
	if !conv.HasThread() {
		return "", telegram.ErrNoThread
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.relayErr != nil {
		return "", b.relayErr
	}
	b.relayed = append(b.relayed, *msg)
	return fmt.Sprintf("%d", len(b.relayed)), nil
}

func (b *fakeBridge) RelayInbound(raw []byte) (*telegram.ParsedReply, error) {
	return telegram.ParseInbound(raw)
}

func (b *fakeBridge) FetchAttachment(_ context.Context, ref *telegram.AttachmentRef, maxBytes int64) ([]byte, error) {
	if ref.Size > maxBytes {
		return nil, telegram.ErrAttachmentTooLarge
	}
	return b.fetchData, b.fetchErr
}

func (b *fakeBridge) NotifyStatusChange(_ context.Context, _ *models.Conversation, _, to models.Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notified = append(b.notified, to)
}

type fakeMedia struct {
	mu      sync.Mutex
	err     error
	uploads []string
	deleted []string
}

func (m *fakeMedia) Upload(_ context.Context, conversationID string, data []byte, filename, contentType string) (*media.Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	path := "conversations/" + conversationID + "/" + filename
	m.uploads = append(m.uploads, path)
	return &media.Object{
		PublicURL:   "https://cdn.test/" + path,
		StoragePath: path,
		ContentType: contentType,
		Size:        int64(len(data)),
	}, nil
}

func (m *fakeMedia) Delete(_ context.Context, storagePath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, storagePath)
	return nil
}

// supportWriteFailingStore refuses to append support messages.
type supportWriteFailingStore struct {
	storage.Storage
}

func (s supportWriteFailingStore) AppendMessage(ctx context.Context, msg *models.Message) error {
	if msg.SenderType == models.SenderSupport {
		return errors.New("disk full")
	}
	return s.Storage.AppendMessage(ctx, msg)
}

// publishRecordingStore records published events, taking a little time for each.
type publishRecordingStore struct {
	storage.Storage
	mu     sync.Mutex
	events []models.Event
}

func (s *publishRecordingStore) PublishEvent(_ context.Context, event models.Event) error {
	time.Sleep(time.Duration(rand.Intn(300)) * time.Microsecond)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *publishRecordingStore) Events() []models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Event(nil), s.events...)
}

type harness struct {
	svc       *Service
	responder *assistant.Responder
	store     *storage.Service
	gen       *fakeGenerator
	bridge    *fakeBridge
	media     *fakeMedia
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := storagetest.New(t)
	loc, err := localization.NewDefault()
	require.NoError(t, err)

	gen := &fakeGenerator{reply: "We design and build websites."}
	responder, err := assistant.NewResponder(gen, loc, assistant.Options{BusinessName: "Acme Studio"})
	require.NoError(t, err)

	bridge := &fakeBridge{store: store, nextThread: "42"}
	mediaStore := &fakeMedia{}
	svc := NewService(store, responder, bridge, mediaStore, InlineDispatcher{}, zap.NewNop(), Options{})

	return &harness{svc: svc, responder: responder, store: store, gen: gen, bridge: bridge, media: mediaStore}
}

// rewire rebuilds the service over store and dispatcher, keeping the other fakes.
func (h *harness) rewire(store storage.Storage, dispatcher Dispatcher) {
	h.svc = NewService(store, h.responder, h.bridge, h.media, dispatcher, zap.NewNop(), Options{})
}

func (h *harness) create(t *testing.T, anonID string) *models.Conversation {
	t.Helper()
	res, err := h.svc.CreateConversation(context.Background(), anonID, "Ana", "ana@x.com")
	require.NoError(t, err)
	return res.Conversation
}

func (h *harness) messages(t *testing.T, convID string) []models.Message {
	t.Helper()
	msgs, err := h.store.ListMessages(context.Background(), convID, 100, 0)
	require.NoError(t, err)
	return msgs
}

func countSender(msgs []models.Message, sender models.SenderType) int {
	n := 0
	for _, m := range msgs {
		if m.SenderType == sender {
			n++
		}
	}
	return n
}

func operatorUpdate(chatID int64, threadID int, text string, isBot bool) []byte {
	return []byte(fmt.Sprintf(`{"update_id":1,"message":{"message_id":900,"message_thread_id":%d,"is_topic_message":true,
		"from":{"id":555,"is_bot":%t,"first_name":"Olena"},"chat":{"id":%d},"text":%q}}`, threadID, isBot, chatID, text))
}

var errUpstream = errors.New("upstream timeout")
