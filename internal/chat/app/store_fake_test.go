package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
)

// fakeRooms in-memory RoomRepository with the same clock and conditional-write rules as mongo
type fakeRooms struct {
	mu    sync.Mutex
	rooms map[string]*domain.ChatRoom

	failSummary error
	failFind    error
}

func newFakeRooms() *fakeRooms {
	return &fakeRooms{rooms: map[string]*domain.ChatRoom{}}
}

func copyRoom(r *domain.ChatRoom) *domain.ChatRoom {
	c := *r
	c.Participants = append([]string(nil), r.Participants...)
	c.ParticipantEmails = append([]string(nil), r.ParticipantEmails...)
	if r.LastMessage != nil {
		s := *r.LastMessage
		c.LastMessage = &s
	}
	return &c
}

func (f *fakeRooms) tick(r *domain.ChatRoom) int64 {
	r.Clock++
	r.UpdatedAt = r.Clock
	return r.Clock
}

func (f *fakeRooms) summary(roomID string) *domain.MessageSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok || r.LastMessage == nil {
		return nil
	}
	s := *r.LastMessage
	return &s
}

func (f *fakeRooms) CreateRoomIfAbsent(_ context.Context, room *domain.ChatRoom) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rooms[room.ID]; ok {
		return false, nil
	}
	f.rooms[room.ID] = copyRoom(room)
	return true, nil
}

func (f *fakeRooms) FindByID(_ context.Context, roomID string) (*domain.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFind != nil {
		return nil, f.failFind
	}
	r, ok := f.rooms[roomID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRoom(r), nil
}

func (f *fakeRooms) FindByParticipant(_ context.Context, partyID string) ([]*domain.ChatRoom, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rooms := []*domain.ChatRoom{}
	for _, r := range f.rooms {
		if r.HasParticipant(partyID) {
			rooms = append(rooms, copyRoom(r))
		}
	}
	sort.Slice(rooms, func(i, j int) bool {
		if rooms[i].UpdatedAt != rooms[j].UpdatedAt {
			return rooms[i].UpdatedAt > rooms[j].UpdatedAt
		}
		return rooms[i].ID < rooms[j].ID
	})
	return rooms, nil
}

func (f *fakeRooms) NextTimestamp(_ context.Context, roomID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rooms[roomID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	r.Clock++
	return r.Clock, nil
}

func (f *fakeRooms) SetLastMessage(_ context.Context, roomID string, summary *domain.MessageSummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSummary != nil {
		return f.failSummary
	}
	r, ok := f.rooms[roomID]
	if !ok {
		return domain.ErrNotFound
	}
	f.tick(r)
	s := *summary
	r.LastMessage = &s
	return nil
}

func (f *fakeRooms) ReplaceLastMessage(_ context.Context, roomID string, expect domain.SummaryKey, summary *domain.MessageSummary) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSummary != nil {
		return false, f.failSummary
	}
	r, ok := f.rooms[roomID]
	if !ok || !r.LastMessage.MatchesKey(expect) {
		return false, nil
	}
	f.tick(r)
	if summary == nil {
		r.LastMessage = nil
		return true, nil
	}
	s := *summary
	r.LastMessage = &s
	return true, nil
}

func (f *fakeRooms) PatchLastMessageText(_ context.Context, roomID string, expect domain.SummaryKey, text string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSummary != nil {
		return false, f.failSummary
	}
	r, ok := f.rooms[roomID]
	if !ok || !r.LastMessage.MatchesKey(expect) {
		return false, nil
	}
	r.LastMessage.Text = text
	r.LastMessage.Timestamp = f.tick(r)
	return true, nil
}

func (f *fakeRooms) EnsureIndexes(context.Context) error { return nil }

// fakeMessages in-memory MessageRepository
type fakeMessages struct {
	mu       sync.Mutex
	seq      int
	messages map[string]*domain.ChatMessage

	failFindRoom error
	failInsert   error
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{messages: map[string]*domain.ChatMessage{}}
}

func copyMessage(m *domain.ChatMessage) domain.ChatMessage {
	c := *m
	if m.DeletedFor != nil {
		c.DeletedFor = domain.PartySet{}
		for id := range m.DeletedFor {
			c.DeletedFor[id] = true
		}
	}
	return c
}

func (f *fakeMessages) Insert(_ context.Context, msg *domain.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failInsert != nil {
		return "", f.failInsert
	}
	if msg.ID == "" {
		f.seq++
		msg.ID = fmt.Sprintf("m%04d", f.seq)
	}
	c := copyMessage(msg)
	f.messages[msg.ID] = &c
	return msg.ID, nil
}

func (f *fakeMessages) FindByID(_ context.Context, roomID, messageID string) (*domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok || m.RoomID != roomID {
		return nil, domain.ErrNotFound
	}
	c := copyMessage(m)
	return &c, nil
}

func (f *fakeMessages) FindByRoom(_ context.Context, roomID string) ([]domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFindRoom != nil {
		return nil, f.failFindRoom
	}
	out := []domain.ChatMessage{}
	for _, m := range f.messages {
		if m.RoomID == roomID {
			out = append(out, copyMessage(m))
		}
	}
	sort.Sort(domain.MessagesByTime(out))
	return out, nil
}

func (f *fakeMessages) UpdateText(_ context.Context, roomID, messageID, text string, editedAt int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok || m.RoomID != roomID {
		return domain.ErrNotFound
	}
	m.Text, m.IsEdited, m.EditedAt = text, true, editedAt
	return nil
}

func (f *fakeMessages) AddDeletedFor(_ context.Context, roomID, messageID, partyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok || m.RoomID != roomID {
		return domain.ErrNotFound
	}
	m.DeletedFor = m.DeletedFor.Add(partyID)
	return nil
}

func (f *fakeMessages) Delete(_ context.Context, roomID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok || m.RoomID != roomID {
		return domain.ErrNotFound
	}
	delete(f.messages, messageID)
	return nil
}

func (f *fakeMessages) EnsureIndexes(context.Context) error { return nil }

// memPubSub in-process PubSub, every handler of a channel runs on its own goroutine
type memPubSub struct {
	mu       sync.Mutex
	channels map[string][]chan []byte
	failPub  error
}

func newMemPubSub() *memPubSub {
	return &memPubSub{channels: map[string][]chan []byte{}}
}

func (p *memPubSub) Publish(_ context.Context, channel string, message interface{}) error {
	if p.failPub != nil {
		return p.failPub
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	p.mu.Lock()
	subs := append([]chan []byte(nil), p.channels[channel]...)
	p.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- data:
		default:
		}
	}
	return nil
}

func (p *memPubSub) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	ch := make(chan []byte, 64)
	p.mu.Lock()
	p.channels[channel] = append(p.channels[channel], ch)
	p.mu.Unlock()

	go func() {
		defer p.remove(channel, ch)
		for {
			select {
			case data := <-ch:
				handler(data)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (p *memPubSub) remove(channel string, ch chan []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	subs := p.channels[channel]
	for i, c := range subs {
		if c == ch {
			p.channels[channel] = append(subs[:i], subs[i+1:]...)
			return
		}
	}
}

func (p *memPubSub) subscribers(channel string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.channels[channel])
}

// fakeModeration blocks any text containing one of blocked
type fakeModeration struct {
	mu      sync.Mutex
	blocked []string
	err     error
	calls   int
}

func (m *fakeModeration) Check(_ context.Context, text string) (*domain.ModerationVerdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	for _, b := range m.blocked {
		if b != "" && strings.Contains(strings.ToLower(text), strings.ToLower(b)) {
			return &domain.ModerationVerdict{Safe: false, Reason: "contains " + b}, nil
		}
	}
	return &domain.ModerationVerdict{Safe: true}, nil
}

// fakeImages keeps object keys only and hands out predictable urls
type fakeImages struct {
	mu      sync.Mutex
	n       int
	err     error
	objects map[string]bool
}

func (s *fakeImages) Upload(_ context.Context, roomID, contentType string, r io.Reader, size int64) (*repository.StoredImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return nil, err
	}
	s.n++
	object := fmt.Sprintf("%s/%d", roomID, s.n)
	if s.objects == nil {
		s.objects = map[string]bool{}
	}
	s.objects[object] = true
	return &repository.StoredImage{Object: object, URL: "https://img.test/" + object}, nil
}

func (s *fakeImages) Remove(_ context.Context, object string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, object)
	return nil
}

// stored object keys still held
func (s *fakeImages) stored() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := []string{}
	for k := range s.objects {
		keys = append(keys, k)
	}
	return keys
}

// chatFixture full chat core over the in-memory fakes
type chatFixture struct {
	rooms      *fakeRooms
	messages   *fakeMessages
	pubsub     *memPubSub
	moderation *fakeModeration
	images     *fakeImages
	parties    map[string]domain.Party

	notifier   *Notifier
	gate       *ModerationGate
	reconciler *SummaryReconciler
	store      *MessageStore
	feed       *MessageFeed
	uc         ChatUseCase
}

func newChatFixture(parties ...domain.Party) *chatFixture {
	f := &chatFixture{
		rooms:      newFakeRooms(),
		messages:   newFakeMessages(),
		pubsub:     newMemPubSub(),
		moderation: &fakeModeration{},
		images:     &fakeImages{},
		parties:    map[string]domain.Party{},
	}
	for _, p := range parties {
		f.parties[p.ID] = p
	}
	directory := PartyDirectoryFunc(func(_ context.Context, id string) (*domain.Party, error) {
		p, ok := f.parties[id]
		if !ok {
			return nil, domain.ErrNotFound
		}
		return &p, nil
	})

	f.notifier = NewNotifier(f.pubsub, nil)
	f.gate = NewModerationGate(f.moderation)
	f.reconciler = NewSummaryReconciler(f.rooms, f.messages, f.notifier)
	f.store = NewMessageStore(f.rooms, f.messages, f.gate, f.reconciler, f.notifier)
	f.feed = NewMessageFeed(f.messages, f.pubsub)
	f.uc = NewChatUseCase(f.rooms, directory, f.store, f.gate, f.feed, f.images, f.notifier)
	return f
}
