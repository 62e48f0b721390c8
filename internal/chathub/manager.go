package chathub

import (
	"context"
	"sync/atomic"

	"supportdesk/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventSubscriber opens the Pub/Sub subscription carrying conversation events.
type EventSubscriber interface {
	SubscribeToConversations(ctx context.Context) *redis.PubSub
}

// ManagerService owns the set of live connections. All mutations happen on the Run
// goroutine, fed by the channels below.
type ManagerService struct {
	clients map[string]map[string]Client

	RegisterCh   chan Client
	UnregisterCh chan Client
	PubSubCh     chan models.Event

	subscriber EventSubscriber
	log        *zap.Logger
	count      atomic.Int64
	done       chan struct{}
}

// NewManagerService creates the hub. subscriber may be nil, in which case only
// events pushed to PubSubCh are delivered.
func NewManagerService(subscriber EventSubscriber, log *zap.Logger) *ManagerService {
	return &ManagerService{
		clients:      make(map[string]map[string]Client),
		RegisterCh:   make(chan Client),
		UnregisterCh: make(chan Client),
		PubSubCh:     make(chan models.Event, 256),
		subscriber:   subscriber,
		log:          log,
		done:         make(chan struct{}),
	}
}

// Register hands c to the hub. It reports false when the hub has stopped.
func (m *ManagerService) Register(c Client) bool {
	select {
	case m.RegisterCh <- c:
		return true
	case <-m.done:
		return false
	}
}

// Unregister removes c from the hub if it is still registered.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// ClientCount returns the number of registered connections.
func (m *ManagerService) ClientCount() int {
	return int(m.count.Load())
}

// Run processes registrations and events until ctx is cancelled, then closes every client.
func (m *ManagerService) Run(ctx context.Context) {
	defer close(m.done)
	if m.subscriber != nil {
		m.StartPubSubListener(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			for _, byID := range m.clients {
				for _, c := range byID {
					m.remove(c)
				}
			}
			return

		case c := <-m.RegisterCh:
			byID, ok := m.clients[c.GetConversationID()]
			if !ok {
				byID = make(map[string]Client)
				m.clients[c.GetConversationID()] = byID
			}
			byID[c.GetID()] = c
			m.count.Add(1)

		case c := <-m.UnregisterCh:
			m.remove(c)

		case event := <-m.PubSubCh:
			m.broadcast(event)
		}
	}
}

func (m *ManagerService) broadcast(event models.Event) {
	for _, c := range m.clients[event.ConversationID] {
		select {
		case c.GetSendChannel() <- event:
		default:
			// slow consumer
			m.log.Warn("Dropping slow realtime client",
				zap.String("conversation_id", event.ConversationID),
				zap.String("client_id", c.GetID()))
			m.remove(c)
		}
	}
}

func (m *ManagerService) remove(c Client) {
	byID, ok := m.clients[c.GetConversationID()]
	if !ok {
		return
	}
	if _, ok := byID[c.GetID()]; !ok {
		return
	}
	delete(byID, c.GetID())
	if len(byID) == 0 {
		delete(m.clients, c.GetConversationID())
	}
	m.count.Add(-1)
	c.Close()
}
