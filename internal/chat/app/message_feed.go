package app

import (
	"context"
	"sort"
	"sync"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
	"direct_chat_service/pkg/logger"
	"direct_chat_service/pkg/metrics"

	"go.uber.org/zap"
)

const feedRetryInterval = time.Second

// MessageFeed serves a viewer's live, filtered view of a room's messages.
// Every change notice triggers a full reload, so a view always replaces the previous one.
type MessageFeed struct {
	messages repository.MessageRepository
	pubsub   repository.PubSub
}

// NewMessageFeed create MessageFeed
func NewMessageFeed(messages repository.MessageRepository, pubsub repository.PubSub) *MessageFeed {
	return &MessageFeed{messages: messages, pubsub: pubsub}
}

// Subscription a live message feed, see MessageFeed.Subscribe
type Subscription struct {
	updates chan []domain.ChatMessage
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// Updates deliver each new view; closed after Close
func (s *Subscription) Updates() <-chan []domain.ChatMessage {
	return s.updates
}

// Close stop the feed. When Close returns nothing more is delivered.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
		metrics.ActiveSubscriptions.Dec()
	})
}

// View decode, order and filter messages for viewerID
func View(messages []domain.ChatMessage, viewerID string) []domain.ChatMessage {
	view := make([]domain.ChatMessage, 0, len(messages))
	for _, m := range messages {
		if m.VisibleTo(viewerID) {
			view = append(view, m)
		}
	}
	sort.Stable(domain.MessagesByTime(view))
	return view
}

// Snapshot the current view, one shot
func (f *MessageFeed) Snapshot(ctx context.Context, roomID, viewerID string) ([]domain.ChatMessage, error) {
	messages, err := f.messages.FindByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return View(messages, viewerID), nil
}

// Subscribe watch the room. The first view is the current full set; later views follow
// every change. The subscription ends on Close or when ctx is done.
func (f *MessageFeed) Subscribe(ctx context.Context, roomID, viewerID string) (*Subscription, error) {
	subCtx, cancel := context.WithCancel(ctx)
	dirty := make(chan struct{}, 1)
	signal := func([]byte) {
		select {
		case dirty <- struct{}{}:
		default:
		}
	}

	// 先訂閱再讀取，讀取期間的變更會留在 dirty
	if err := f.pubsub.Subscribe(subCtx, repository.RoomChannel(roomID), signal); err != nil {
		cancel()
		return nil, err
	}
	signal(nil)

	sub := &Subscription{
		updates: make(chan []domain.ChatMessage),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	metrics.ActiveSubscriptions.Inc()
	go f.run(subCtx, sub, roomID, viewerID, dirty)
	return sub, nil
}

func (f *MessageFeed) run(ctx context.Context, sub *Subscription, roomID, viewerID string, dirty <-chan struct{}) {
	defer close(sub.done)
	defer close(sub.updates)

	var retry <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-dirty:
		case <-retry:
		}
		retry = nil

		view, err := f.Snapshot(ctx, roomID, viewerID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Log.Warn("feed reload failed", zap.String("room_id", roomID), zap.Error(err))
			retry = time.After(feedRetryInterval)
			continue
		}

		select {
		case sub.updates <- view:
		case <-ctx.Done():
			return
		}
	}
}
