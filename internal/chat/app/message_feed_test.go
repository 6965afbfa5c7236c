package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func nextView(t *testing.T, sub *Subscription) []domain.ChatMessage {
	t.Helper()
	select {
	case view, ok := <-sub.Updates():
		require.True(t, ok, "feed closed")
		return view
	case <-time.After(2 * time.Second):
		t.Fatal("no feed update")
		return nil
	}
}

// waitView drain updates until one satisfies cond
func waitView(t *testing.T, sub *Subscription, cond func([]domain.ChatMessage) bool) []domain.ChatMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case view, ok := <-sub.Updates():
			require.True(t, ok, "feed closed")
			if cond(view) {
				return view
			}
		case <-deadline:
			t.Fatal("feed never reached the expected view")
			return nil
		}
	}
}

func texts(view []domain.ChatMessage) []string {
	out := make([]string, 0, len(view))
	for _, m := range view {
		out = append(out, m.Text)
	}
	return out
}

func TestView(t *testing.T) {
	messages := []domain.ChatMessage{
		{ID: "b", Text: "2", Timestamp: 20},
		{ID: "a", Text: "1", Timestamp: 10},
		{ID: "d", Text: "hidden", Timestamp: 15, DeletedFor: domain.PartySet{"bob": true}},
		{ID: "c", Text: "3", Timestamp: 20},
	}

	assert.Equal(t, []string{"1", "2", "3"}, texts(View(messages, "bob")))
	assert.Equal(t, []string{"1", "hidden", "2", "3"}, texts(View(messages, "alice")))
	assert.Empty(t, View(nil, "bob"))
}

func TestMessageFeed_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f, roomID := newRoomFixture(t)
	_, err := f.store.Append(ctx, roomID, alice.ID, alice.Email, "first", "")
	require.NoError(t, err)
	id, err := f.store.Append(ctx, roomID, alice.ID, alice.Email, "hello", "")
	require.NoError(t, err)

	for _, viewer := range []string{alice.ID, bob.ID} {
		sub, err := f.feed.Subscribe(ctx, roomID, viewer)
		require.NoError(t, err)

		view := nextView(t, sub)
		require.Len(t, view, 2)
		assert.Equal(t, id, view[len(view)-1].ID)
		sub.Close()
	}
}

func TestMessageFeed_FollowsChanges(t *testing.T) {
	ctx := context.Background()
	f, roomID := newRoomFixture(t)

	sub, err := f.feed.Subscribe(ctx, roomID, bob.ID)
	require.NoError(t, err)
	defer sub.Close()
	assert.Empty(t, nextView(t, sub))

	id, err := f.store.Append(ctx, roomID, alice.ID, alice.Email, "hi", "")
	require.NoError(t, err)
	waitView(t, sub, func(v []domain.ChatMessage) bool { return len(v) == 1 })

	require.NoError(t, f.store.Edit(ctx, roomID, id, alice.ID, "hi bob"))
	waitView(t, sub, func(v []domain.ChatMessage) bool { return len(v) == 1 && v[0].Text == "hi bob" && v[0].IsEdited })

	require.NoError(t, f.store.DeleteForEveryone(ctx, roomID, id, alice.ID))
	waitView(t, sub, func(v []domain.ChatMessage) bool { return len(v) == 0 })
}

func TestMessageFeed_DeleteForMeOnlyHidesForRequester(t *testing.T) {
	ctx := context.Background()
	f, roomID := newRoomFixture(t)
	id, err := f.store.Append(ctx, roomID, alice.ID, alice.Email, "secret", "")
	require.NoError(t, err)

	require.NoError(t, f.store.DeleteForMe(ctx, roomID, id, alice.ID))

	asAlice, err := f.feed.Subscribe(ctx, roomID, alice.ID)
	require.NoError(t, err)
	defer asAlice.Close()
	asBob, err := f.feed.Subscribe(ctx, roomID, bob.ID)
	require.NoError(t, err)
	defer asBob.Close()

	assert.Empty(t, nextView(t, asAlice))
	assert.Equal(t, []string{"secret"}, texts(nextView(t, asBob)))
}

func TestMessageFeed_CloseStopsDelivery(t *testing.T) {
	ctx := context.Background()
	f, roomID := newRoomFixture(t)

	sub, err := f.feed.Subscribe(ctx, roomID, bob.ID)
	require.NoError(t, err)
	nextView(t, sub)

	sub.Close()
	sub.Close()

	_, ok := <-sub.Updates()
	assert.False(t, ok)
	assert.Eventually(t, func() bool {
		return f.pubsub.subscribers(repository.RoomChannel(roomID)) == 0
	}, time.Second, 10*time.Millisecond)

	_, err = f.store.Append(ctx, roomID, alice.ID, alice.Email, "after close", "")
	require.NoError(t, err)
	_, ok = <-sub.Updates()
	assert.False(t, ok)
}

func TestMessageFeed_ContextCancelEndsFeed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f, roomID := newRoomFixture(t)

	sub, err := f.feed.Subscribe(ctx, roomID, bob.ID)
	require.NoError(t, err)
	nextView(t, sub)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, ok := <-sub.Updates():
			return !ok
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
	sub.Close()
}

func TestMessageFeed_SubscribeFailure(t *testing.T) {
	ctx := context.Background()
	pubsub := new(MockPubSub)
	pubsub.On("Subscribe", mock.Anything, "chat:room:alice_bob", mock.Anything).Return(domain.ErrStoreUnavailable)

	feed := NewMessageFeed(newFakeMessages(), pubsub)
	sub, err := feed.Subscribe(ctx, "alice_bob", "bob")
	assert.Nil(t, sub)
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestMessageFeed_RetriesFailedReload(t *testing.T) {
	ctx := context.Background()
	f, roomID := newRoomFixture(t)
	_, err := f.store.Append(ctx, roomID, alice.ID, alice.Email, "hi", "")
	require.NoError(t, err)

	f.messages.mu.Lock()
	f.messages.failFindRoom = errors.New("cursor timeout")
	f.messages.mu.Unlock()

	sub, err := f.feed.Subscribe(ctx, roomID, bob.ID)
	require.NoError(t, err)
	defer sub.Close()

	time.AfterFunc(100*time.Millisecond, func() {
		f.messages.mu.Lock()
		f.messages.failFindRoom = nil
		f.messages.mu.Unlock()
	})
	assert.Equal(t, []string{"hi"}, texts(nextView(t, sub)))
}
