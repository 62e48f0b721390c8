package chathub

import (
	"context"
	"encoding/json"
	"strings"

	"supportdesk/backend/internal/models"
	"supportdesk/backend/internal/storage"

	"go.uber.org/zap"
)

// StartPubSubListener subscribes to every conversation channel and forwards decoded
// events to the hub until ctx is cancelled.
func (m *ManagerService) StartPubSubListener(ctx context.Context) {
	pubsub := m.subscriber.SubscribeToConversations(ctx)

	go func() {
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				event, err := decodeEvent(msg.Channel, msg.Payload)
				if err != nil {
					m.log.Warn("Discarding malformed realtime event", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case m.PubSubCh <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
}

// decodeEvent parses a payload and fills the conversation id from the channel name
// when the payload lacks one.
func decodeEvent(channel, payload string) (models.Event, error) {
	var event models.Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return models.Event{}, err
	}
	if event.ConversationID == "" {
		event.ConversationID = strings.TrimPrefix(channel, storage.EventChannelPrefix)
	}
	return event, nil
}
