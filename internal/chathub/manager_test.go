package chathub_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"supportdesk/backend/internal/chathub"
	"supportdesk/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T) (*chathub.ManagerService, context.CancelFunc) {
	t.Helper()
	hub := chathub.NewManagerService(nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func event(convID, content string) models.Event {
	return models.Event{
		Type:           models.EventMessageCreated,
		ConversationID: convID,
		Message:        &models.Message{ConversationID: convID, SenderType: models.SenderBot, Content: models.StringPtr(content)},
	}
}

func TestManager_RegisterUnregister(t *testing.T) {
	hub, _ := startHub(t)
	client := newMockClient("c1", "conv-1", 4)

	require.True(t, hub.Register(client))
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	hub.Unregister(client)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, client.Closed())

	// unknown client is ignored
	hub.Unregister(client)
	assert.Never(t, func() bool { return client.Closed() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestManager_BroadcastsByConversation(t *testing.T) {
	hub, _ := startHub(t)
	a1 := newMockClient("a1", "conv-a", 4)
	a2 := newMockClient("a2", "conv-a", 4)
	b := newMockClient("b", "conv-b", 4)
	for _, c := range []*MockClient{a1, a2, b} {
		require.True(t, hub.Register(c))
	}

	hub.PubSubCh <- event("conv-a", "hello")

	for _, c := range []*MockClient{a1, a2} {
		select {
		case got := <-c.RecvChannel:
			assert.Equal(t, "hello", got.Message.Text())
		case <-time.After(time.Second):
			t.Fatalf("client %s did not receive the event", c.GetID())
		}
	}
	select {
	case <-b.RecvChannel:
		t.Error("client of another conversation received the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManager_DropsSlowClient(t *testing.T) {
	hub, _ := startHub(t)
	slow := newMockClient("slow", "conv-1", 1)
	require.True(t, hub.Register(slow))

	hub.PubSubCh <- event("conv-1", "one")
	hub.PubSubCh <- event("conv-1", "two")

	assert.Eventually(t, func() bool { return slow.Closed() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestManager_ShutdownClosesClients(t *testing.T) {
	hub, cancel := startHub(t)
	client := newMockClient("c1", "conv-1", 1)
	require.True(t, hub.Register(client))

	cancel()
	assert.Eventually(t, func() bool { return client.Closed() == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !hub.Register(newMockClient("late", "conv-1", 1)) }, time.Second, 5*time.Millisecond)
}

func TestWebSocketClient_StreamsEvents(t *testing.T) {
	hub, _ := startHub(t)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := chathub.NewWebSocketClient(hub, conn, "conv-1", zap.NewNop())
		if hub.Register(client) {
			client.Run()
		}
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	hub.PubSubCh <- event("conv-1", "Hi Ana!")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got models.Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, models.EventMessageCreated, got.Type)
	assert.Equal(t, "conv-1", got.ConversationID)
	assert.Equal(t, "Hi Ana!", got.Message.Text())

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}
