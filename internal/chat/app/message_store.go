package app

import (
	"context"
	"strings"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
	"direct_chat_service/pkg/logger"
	"direct_chat_service/pkg/metrics"

	"go.uber.org/zap"
)

// MessageStore owns message writes and drives the summary reconciler after each one.
// A failed message write leaves no state behind. A failed summary step after a
// committed write is returned as *domain.PartialFailureError.
type MessageStore struct {
	rooms      repository.RoomRepository
	messages   repository.MessageRepository
	gate       *ModerationGate
	reconciler *SummaryReconciler
	notifier   *Notifier
}

// NewMessageStore create MessageStore
func NewMessageStore(
	rooms repository.RoomRepository,
	messages repository.MessageRepository,
	gate *ModerationGate,
	reconciler *SummaryReconciler,
	notifier *Notifier,
) *MessageStore {
	return &MessageStore{
		rooms:      rooms,
		messages:   messages,
		gate:       gate,
		reconciler: reconciler,
		notifier:   notifier,
	}
}

// Message load one message of the room
func (s *MessageStore) Message(ctx context.Context, roomID, messageID string) (*domain.ChatMessage, error) {
	return s.messages.FindByID(ctx, roomID, messageID)
}

// Append write a new message with a server timestamp and make it the room summary
func (s *MessageStore) Append(ctx context.Context, roomID, senderID, senderEmail, text, imageURL string) (string, error) {
	msg, err := domain.NewChatMessage(roomID, senderID, senderEmail, text, imageURL)
	if err != nil {
		return "", err
	}

	ts, err := s.rooms.NextTimestamp(ctx, roomID)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("send", "error").Inc()
		return "", err
	}
	msg.Timestamp = ts

	id, err := s.messages.Insert(ctx, msg)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("send", "error").Inc()
		return "", err
	}
	metrics.MessagesTotal.WithLabelValues("send", "ok").Inc()
	s.notifier.MessagesChanged(ctx, roomID)

	if err := s.reconciler.OnAppend(ctx, msg); err != nil {
		return id, s.partial("append", domain.StepSummaryUpdate, roomID, id, err)
	}
	return id, nil
}

// Edit replace the text of a message owned by editorID. Moderation runs before any write;
// a rejected edit leaves the message untouched. Editing to the current text is a no-op.
func (s *MessageStore) Edit(ctx context.Context, roomID, messageID, editorID, newText string) error {
	msg, err := s.messages.FindByID(ctx, roomID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != editorID {
		return domain.ErrForbidden
	}

	newText = strings.TrimSpace(newText)
	if newText == "" && msg.ImageURL == "" {
		return domain.ErrEmptyMessage
	}
	if newText == msg.Text {
		return nil
	}
	if err := s.gate.Require(ctx, newText); err != nil {
		return err
	}

	before := msg.SummaryKey()
	editedAt, err := s.rooms.NextTimestamp(ctx, roomID)
	if err != nil {
		metrics.MessagesTotal.WithLabelValues("edit", "error").Inc()
		return err
	}
	if err := s.messages.UpdateText(ctx, roomID, messageID, newText, editedAt); err != nil {
		metrics.MessagesTotal.WithLabelValues("edit", "error").Inc()
		return err
	}
	metrics.MessagesTotal.WithLabelValues("edit", "ok").Inc()
	s.notifier.MessagesChanged(ctx, roomID)

	msg.Text = newText
	if err := s.reconciler.OnEdit(ctx, roomID, editorID, before, msg.DisplayText()); err != nil {
		return s.partial("edit", domain.StepSummaryUpdate, roomID, messageID, err)
	}
	return nil
}

// DeleteForEveryone hard remove a message, sender only
func (s *MessageStore) DeleteForEveryone(ctx context.Context, roomID, messageID, requesterID string) error {
	msg, err := s.messages.FindByID(ctx, roomID, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		return domain.ErrForbidden
	}

	if err := s.messages.Delete(ctx, roomID, messageID); err != nil {
		metrics.MessagesTotal.WithLabelValues("delete_everyone", "error").Inc()
		return err
	}
	metrics.MessagesTotal.WithLabelValues("delete_everyone", "ok").Inc()
	s.notifier.MessagesChanged(ctx, roomID)

	if err := s.reconciler.OnDelete(ctx, msg); err != nil {
		return s.partial("delete", domain.StepSummaryRecompute, roomID, messageID, err)
	}
	return nil
}

// DeleteForMe hide a message for requesterID only, the room summary is not touched
func (s *MessageStore) DeleteForMe(ctx context.Context, roomID, messageID, requesterID string) error {
	room, err := s.rooms.FindByID(ctx, roomID)
	if err != nil {
		return err
	}
	if !room.HasParticipant(requesterID) {
		return domain.ErrForbidden
	}

	err = s.messages.AddDeletedFor(ctx, roomID, messageID, requesterID)
	metrics.MessagesTotal.WithLabelValues("delete_me", metrics.Result(err)).Inc()
	if err != nil {
		return err
	}
	s.notifier.MessagesChanged(ctx, roomID)
	return nil
}

func (s *MessageStore) partial(op string, step domain.Step, roomID, messageID string, err error) error {
	metrics.SummaryFailuresTotal.WithLabelValues(string(step)).Inc()
	logger.Log.Error("room summary step failed",
		zap.String("op", op),
		zap.String("step", string(step)),
		zap.String("room_id", roomID),
		zap.String("message_id", messageID),
		zap.Error(err),
	)
	return &domain.PartialFailureError{Op: op, Step: step, MessageID: messageID, Err: err}
}
