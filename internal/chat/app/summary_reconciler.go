package app

import (
	"context"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
	"direct_chat_service/pkg/logger"

	"go.uber.org/zap"
)

// SummaryReconciler keeps the room's cached last message in step with its messages.
// The cache holds no message id, so "is this the cached message" is answered with
// MessageSummary.Matches. Conditional writes re-check the match inside the store, so a
// summary that moved on in the meantime is left alone.
type SummaryReconciler struct {
	rooms    repository.RoomRepository
	messages repository.MessageRepository
	notifier *Notifier
}

// NewSummaryReconciler create SummaryReconciler
func NewSummaryReconciler(rooms repository.RoomRepository, messages repository.MessageRepository, notifier *Notifier) *SummaryReconciler {
	return &SummaryReconciler{rooms: rooms, messages: messages, notifier: notifier}
}

// OnAppend the appended message is always the newest one
func (r *SummaryReconciler) OnAppend(ctx context.Context, msg *domain.ChatMessage) error {
	if err := r.rooms.SetLastMessage(ctx, msg.RoomID, msg.Summary()); err != nil {
		return err
	}
	r.notifier.RoomChanged(ctx, msg.RoomID)
	return nil
}

// OnDelete recompute the summary when the removed message was the cached one
func (r *SummaryReconciler) OnDelete(ctx context.Context, deleted *domain.ChatMessage) error {
	room, err := r.rooms.FindByID(ctx, deleted.RoomID)
	if err != nil {
		return err
	}
	if !room.LastMessage.Matches(deleted) {
		return nil
	}

	remaining, err := r.messages.FindByRoom(ctx, deleted.RoomID)
	if err != nil {
		return err
	}

	var newest *domain.ChatMessage
	for i := range remaining {
		m := &remaining[i]
		if m.ID == deleted.ID {
			continue
		}
		if newest == nil || m.Newer(newest) {
			newest = m
		}
	}

	var summary *domain.MessageSummary
	if newest != nil {
		summary = newest.Summary()
	}

	applied, err := r.rooms.ReplaceLastMessage(ctx, deleted.RoomID, deleted.SummaryKey(), summary)
	if err != nil {
		return err
	}
	if !applied {
		logger.Log.Debug("summary moved on before recompute", zap.String("room_id", deleted.RoomID))
		return nil
	}
	r.notifier.RoomChanged(ctx, deleted.RoomID)
	return nil
}

// OnEdit patch summary text when the edited message, as it was before the edit, is the cached one.
// Sender and email on the summary are left as they are.
func (r *SummaryReconciler) OnEdit(ctx context.Context, roomID, editorID string, before domain.SummaryKey, newText string) error {
	if before.SenderID != editorID {
		return nil
	}
	applied, err := r.rooms.PatchLastMessageText(ctx, roomID, before, newText)
	if err != nil {
		return err
	}
	if applied {
		r.notifier.RoomChanged(ctx, roomID)
	}
	return nil
}
