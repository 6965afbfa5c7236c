package app

import (
	"context"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
	"direct_chat_service/pkg/logger"
	"direct_chat_service/pkg/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier fans out change notices and chat events after a committed write.
// Failures are logged and counted, never returned: the write already happened.
type Notifier struct {
	pubsub repository.PubSub
	events repository.EventPublisher
}

// NewNotifier create Notifier, events may be nil
func NewNotifier(pubsub repository.PubSub, events repository.EventPublisher) *Notifier {
	if events == nil {
		events = repository.NewNoopEventPublisher()
	}
	return &Notifier{pubsub: pubsub, events: events}
}

// MessagesChanged wake every feed watching the room
func (n *Notifier) MessagesChanged(ctx context.Context, roomID string) {
	if err := n.pubsub.Publish(ctx, repository.RoomChannel(roomID), domain.RoomNotice{RoomID: roomID}); err != nil {
		metrics.NotifyFailuresTotal.WithLabelValues("room").Inc()
		logger.Log.Error("publish room notice", zap.String("room_id", roomID), zap.Error(err))
	}
}

// RoomChanged tell both participants their conversation list changed
func (n *Notifier) RoomChanged(ctx context.Context, roomID string) {
	a, b, ok := domain.SplitRoomID(roomID)
	if !ok {
		return
	}
	for _, partyID := range []string{a, b} {
		if err := n.pubsub.Publish(ctx, repository.UserChannel(partyID), domain.RoomNotice{RoomID: roomID}); err != nil {
			metrics.NotifyFailuresTotal.WithLabelValues("user").Inc()
			logger.Log.Error("publish user notice", zap.String("room_id", roomID), zap.String("party_id", partyID), zap.Error(err))
		}
	}
}

// Emit publish a chat event on the event bus
func (n *Notifier) Emit(ctx context.Context, typ domain.EventType, roomID, messageID, actorID string) {
	evt := domain.ChatEvent{
		ID:         uuid.NewString(),
		Type:       typ,
		RoomID:     roomID,
		MessageID:  messageID,
		ActorID:    actorID,
		OccurredAt: time.Now().UnixMilli(),
	}
	if err := n.events.Publish(ctx, evt); err != nil {
		metrics.NotifyFailuresTotal.WithLabelValues("events").Inc()
		logger.Log.Error("publish chat event", zap.String("type", string(typ)), zap.String("room_id", roomID), zap.Error(err))
	}
}
