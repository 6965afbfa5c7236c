package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
	errprocess "direct_chat_service/pkg/err"
	"direct_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// PartyDirectory identity provider lookups the chat core needs
type PartyDirectory interface {
	// FindParty domain.ErrNotFound when the party does not exist
	FindParty(ctx context.Context, partyID string) (*domain.Party, error)
}

// PartyDirectoryFunc adapt a function to PartyDirectory
type PartyDirectoryFunc func(ctx context.Context, partyID string) (*domain.Party, error)

// FindParty call f
func (f PartyDirectoryFunc) FindParty(ctx context.Context, partyID string) (*domain.Party, error) {
	return f(ctx, partyID)
}

// ChatUseCase 這裡封裝了對外提供的聊天服務
type ChatUseCase interface {
	EnsureRoom(ctx context.Context, self domain.Party, contactID string) (string, error)
	ListRooms(ctx context.Context, partyID string) ([]*domain.ChatRoom, error)
	SendMessage(ctx context.Context, roomID string, sender domain.Party, text string, image *ImageUpload) (string, error)
	EditMessage(ctx context.Context, roomID, messageID, editorID, newText string) error
	// DeleteMessage delete for everyone when requesterID sent the message, for requesterID only otherwise
	DeleteMessage(ctx context.Context, roomID, messageID, requesterID string) error
	DeleteForEveryone(ctx context.Context, roomID, messageID, requesterID string) error
	DeleteForMe(ctx context.Context, roomID, messageID, requesterID string) error
	History(ctx context.Context, roomID, viewerID string) ([]domain.ChatMessage, error)
	// SubscribeMessages onChange gets every new view until the returned unsubscribe is called.
	// unsubscribe must not be called from inside onChange.
	SubscribeMessages(ctx context.Context, roomID, viewerID string, onChange func([]domain.ChatMessage)) (func(), error)
}

type chatUseCase struct {
	rooms     repository.RoomRepository
	directory PartyDirectory
	store     *MessageStore
	gate      *ModerationGate
	feed      *MessageFeed
	images    repository.ImageStore
	notifier  *Notifier
}

// NewChatUseCase create ChatUseCase
func NewChatUseCase(
	rooms repository.RoomRepository,
	directory PartyDirectory,
	store *MessageStore,
	gate *ModerationGate,
	feed *MessageFeed,
	images repository.ImageStore,
	notifier *Notifier,
) ChatUseCase {
	return &chatUseCase{
		rooms:     rooms,
		directory: directory,
		store:     store,
		gate:      gate,
		feed:      feed,
		images:    images,
		notifier:  notifier,
	}
}

func (uc *chatUseCase) EnsureRoom(ctx context.Context, self domain.Party, contactID string) (string, error) {
	if !domain.ValidPartyID(self.ID) || !domain.ValidPartyID(contactID) || self.ID == contactID {
		return "", fmt.Errorf("%w: room needs two distinct parties", domain.ErrInvalidArgument)
	}

	contact, err := uc.directory.FindParty(ctx, contactID)
	if err != nil {
		return "", err
	}

	room := domain.NewChatRoom(self, *contact, time.Now().UnixMilli())
	created, err := uc.rooms.CreateRoomIfAbsent(ctx, room)
	if err != nil {
		return "", err
	}
	if created {
		logger.Log.Info("room created", zap.String("room_id", room.ID))
		uc.notifier.RoomChanged(ctx, room.ID)
		uc.notifier.Emit(ctx, domain.EventRoomCreated, room.ID, "", self.ID)
	}
	return room.ID, nil
}

func (uc *chatUseCase) ListRooms(ctx context.Context, partyID string) ([]*domain.ChatRoom, error) {
	return uc.rooms.FindByParticipant(ctx, partyID)
}

// authorize room exists and partyID is one of its participants
func (uc *chatUseCase) authorize(ctx context.Context, roomID, partyID string) (*domain.ChatRoom, error) {
	room, err := uc.rooms.FindByID(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if !room.HasParticipant(partyID) {
		return nil, domain.ErrForbidden
	}
	return room, nil
}

func (uc *chatUseCase) SendMessage(ctx context.Context, roomID string, sender domain.Party, text string, image *ImageUpload) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" && image == nil {
		return "", domain.ErrEmptyMessage
	}
	if _, err := uc.authorize(ctx, roomID, sender.ID); err != nil {
		return "", err
	}
	if err := uc.gate.Require(ctx, text); err != nil {
		return "", err
	}

	var stored *repository.StoredImage
	imageURL := ""
	if image != nil {
		img, err := uc.images.Upload(ctx, roomID, image.ContentType, image.Reader, image.Size)
		if err != nil {
			return "", errprocess.Wrap("image upload", fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err), zap.String("room_id", roomID))
		}
		stored, imageURL = img, img.URL
	}

	id, err := uc.store.Append(ctx, roomID, sender.ID, sender.Email, text, imageURL)
	if id != "" {
		uc.notifier.Emit(ctx, domain.EventMessageSent, roomID, id, sender.ID)
	}
	if !committed(err) && stored != nil {
		// 訊息沒寫入，圖片不會被引用
		if rmErr := uc.images.Remove(ctx, stored.Object); rmErr != nil {
			logger.Log.Warn("orphaned image", zap.String("room_id", roomID), zap.String("object", stored.Object), zap.Error(rmErr))
		}
	}
	return id, err
}

func (uc *chatUseCase) EditMessage(ctx context.Context, roomID, messageID, editorID, newText string) error {
	if _, err := uc.authorize(ctx, roomID, editorID); err != nil {
		return err
	}
	err := uc.store.Edit(ctx, roomID, messageID, editorID, newText)
	if committed(err) {
		uc.notifier.Emit(ctx, domain.EventMessageEdited, roomID, messageID, editorID)
	}
	return err
}

func (uc *chatUseCase) DeleteMessage(ctx context.Context, roomID, messageID, requesterID string) error {
	if _, err := uc.authorize(ctx, roomID, requesterID); err != nil {
		return err
	}
	msg, err := uc.store.Message(ctx, roomID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID == requesterID {
		return uc.deleteForEveryone(ctx, roomID, messageID, requesterID)
	}
	return uc.deleteForMe(ctx, roomID, messageID, requesterID)
}

func (uc *chatUseCase) DeleteForEveryone(ctx context.Context, roomID, messageID, requesterID string) error {
	if _, err := uc.authorize(ctx, roomID, requesterID); err != nil {
		return err
	}
	return uc.deleteForEveryone(ctx, roomID, messageID, requesterID)
}

func (uc *chatUseCase) DeleteForMe(ctx context.Context, roomID, messageID, requesterID string) error {
	if _, err := uc.authorize(ctx, roomID, requesterID); err != nil {
		return err
	}
	return uc.deleteForMe(ctx, roomID, messageID, requesterID)
}

func (uc *chatUseCase) deleteForEveryone(ctx context.Context, roomID, messageID, requesterID string) error {
	err := uc.store.DeleteForEveryone(ctx, roomID, messageID, requesterID)
	if committed(err) {
		uc.notifier.Emit(ctx, domain.EventMessageDeleted, roomID, messageID, requesterID)
	}
	return err
}

func (uc *chatUseCase) deleteForMe(ctx context.Context, roomID, messageID, requesterID string) error {
	err := uc.store.DeleteForMe(ctx, roomID, messageID, requesterID)
	if err == nil {
		uc.notifier.Emit(ctx, domain.EventMessageHidden, roomID, messageID, requesterID)
	}
	return err
}

func (uc *chatUseCase) History(ctx context.Context, roomID, viewerID string) ([]domain.ChatMessage, error) {
	if _, err := uc.authorize(ctx, roomID, viewerID); err != nil {
		return nil, err
	}
	return uc.feed.Snapshot(ctx, roomID, viewerID)
}

func (uc *chatUseCase) SubscribeMessages(ctx context.Context, roomID, viewerID string, onChange func([]domain.ChatMessage)) (func(), error) {
	if _, err := uc.authorize(ctx, roomID, viewerID); err != nil {
		return nil, err
	}
	sub, err := uc.feed.Subscribe(ctx, roomID, viewerID)
	if err != nil {
		return nil, err
	}

	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for view := range sub.Updates() {
			onChange(view)
		}
	}()

	return func() {
		sub.Close()
		<-forwarded
	}, nil
}

// committed the primary write happened, possibly with a failed summary step
func committed(err error) bool {
	var partial *domain.PartialFailureError
	return err == nil || errors.As(err, &partial)
}
