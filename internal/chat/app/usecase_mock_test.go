package app

import (
	"context"
	"io"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"

	"github.com/stretchr/testify/mock"
)

// MockRoomRepository Mock RoomRepository
type MockRoomRepository struct {
	mock.Mock
}

// CreateRoomIfAbsent moke create room
func (m *MockRoomRepository) CreateRoomIfAbsent(ctx context.Context, room *domain.ChatRoom) (bool, error) {
	args := m.Called(ctx, room)
	return args.Bool(0), args.Error(1)
}

// FindByID moke find room by room id
func (m *MockRoomRepository) FindByID(ctx context.Context, roomID string) (*domain.ChatRoom, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ChatRoom), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByParticipant moke list rooms
func (m *MockRoomRepository) FindByParticipant(ctx context.Context, partyID string) ([]*domain.ChatRoom, error) {
	args := m.Called(ctx, partyID)
	if args.Get(0) != nil {
		return args.Get(0).([]*domain.ChatRoom), args.Error(1)
	}
	return nil, args.Error(1)
}

// NextTimestamp moke tick room clock
func (m *MockRoomRepository) NextTimestamp(ctx context.Context, roomID string) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

// SetLastMessage moke overwrite summary
func (m *MockRoomRepository) SetLastMessage(ctx context.Context, roomID string, summary *domain.MessageSummary) error {
	args := m.Called(ctx, roomID, summary)
	return args.Error(0)
}

// ReplaceLastMessage moke conditional summary swap
func (m *MockRoomRepository) ReplaceLastMessage(ctx context.Context, roomID string, expect domain.SummaryKey, summary *domain.MessageSummary) (bool, error) {
	args := m.Called(ctx, roomID, expect, summary)
	return args.Bool(0), args.Error(1)
}

// PatchLastMessageText moke conditional summary patch
func (m *MockRoomRepository) PatchLastMessageText(ctx context.Context, roomID string, expect domain.SummaryKey, text string) (bool, error) {
	args := m.Called(ctx, roomID, expect, text)
	return args.Bool(0), args.Error(1)
}

// EnsureIndexes moke
func (m *MockRoomRepository) EnsureIndexes(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockMessageRepository Mock MessageRepository
type MockMessageRepository struct {
	mock.Mock
}

// Insert moke insert msg
func (m *MockMessageRepository) Insert(ctx context.Context, msg *domain.ChatMessage) (string, error) {
	args := m.Called(ctx, msg)
	return args.String(0), args.Error(1)
}

// FindByID moke find msg
func (m *MockMessageRepository) FindByID(ctx context.Context, roomID, messageID string) (*domain.ChatMessage, error) {
	args := m.Called(ctx, roomID, messageID)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ChatMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// FindByRoom moke list room msg
func (m *MockMessageRepository) FindByRoom(ctx context.Context, roomID string) ([]domain.ChatMessage, error) {
	args := m.Called(ctx, roomID)
	if args.Get(0) != nil {
		return args.Get(0).([]domain.ChatMessage), args.Error(1)
	}
	return nil, args.Error(1)
}

// UpdateText moke edit msg
func (m *MockMessageRepository) UpdateText(ctx context.Context, roomID, messageID, text string, editedAt int64) error {
	return m.Called(ctx, roomID, messageID, text, editedAt).Error(0)
}

// AddDeletedFor moke hide msg
func (m *MockMessageRepository) AddDeletedFor(ctx context.Context, roomID, messageID, partyID string) error {
	return m.Called(ctx, roomID, messageID, partyID).Error(0)
}

// Delete moke delete msg
func (m *MockMessageRepository) Delete(ctx context.Context, roomID, messageID string) error {
	return m.Called(ctx, roomID, messageID).Error(0)
}

// EnsureIndexes moke
func (m *MockMessageRepository) EnsureIndexes(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockPubSub Mock PubSub
type MockPubSub struct {
	mock.Mock
}

// Publish moke publish
func (m *MockPubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	return m.Called(ctx, channel, message).Error(0)
}

// Subscribe moke subscribe, never delivers
func (m *MockPubSub) Subscribe(ctx context.Context, channel string, handler func(payload []byte)) error {
	return m.Called(ctx, channel, handler).Error(0)
}

// MockModerationClient Mock ModerationClient
type MockModerationClient struct {
	mock.Mock
}

// Check moke moderation
func (m *MockModerationClient) Check(ctx context.Context, text string) (*domain.ModerationVerdict, error) {
	args := m.Called(ctx, text)
	if args.Get(0) != nil {
		return args.Get(0).(*domain.ModerationVerdict), args.Error(1)
	}
	return nil, args.Error(1)
}

// MockImageStore Mock ImageStore
type MockImageStore struct {
	mock.Mock
}

// Upload moke upload
func (m *MockImageStore) Upload(ctx context.Context, roomID, contentType string, r io.Reader, size int64) (*repository.StoredImage, error) {
	args := m.Called(ctx, roomID, contentType, r, size)
	if args.Get(0) != nil {
		return args.Get(0).(*repository.StoredImage), args.Error(1)
	}
	return nil, args.Error(1)
}

// Remove moke remove
func (m *MockImageStore) Remove(ctx context.Context, object string) error {
	return m.Called(ctx, object).Error(0)
}

// MockEventPublisher Mock EventPublisher
type MockEventPublisher struct {
	mock.Mock
}

// Publish moke publish event
func (m *MockEventPublisher) Publish(ctx context.Context, evt domain.ChatEvent) error {
	return m.Called(ctx, evt).Error(0)
}

// Close moke
func (m *MockEventPublisher) Close() error {
	return m.Called().Error(0)
}
