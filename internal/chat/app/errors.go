package app

import (
	"errors"

	"direct_chat_service/internal/chat/domain"

	"github.com/gofiber/fiber/v2"
)

// StatusOf map a chat error to its http status
func StatusOf(err error) int {
	var partial *domain.PartialFailureError
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.As(err, &partial):
		return fiber.StatusMultiStatus
	case errors.Is(err, domain.ErrEmptyMessage), errors.Is(err, domain.ErrInvalidArgument):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, domain.ErrStoreUnavailable), errors.Is(err, domain.ErrModerationUnavailable):
		return fiber.StatusServiceUnavailable
	}
	if _, ok := domain.IsModerationRejected(err); ok {
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

// ErrorPayload body describing err, names the failed step of a partial failure
func ErrorPayload(err error) map[string]interface{} {
	body := map[string]interface{}{"error": err.Error()}
	if rejected, ok := domain.IsModerationRejected(err); ok {
		body["reason"] = rejected.Reason
	}
	var partial *domain.PartialFailureError
	if errors.As(err, &partial) {
		body["step"] = string(partial.Step)
		body["message_id"] = partial.MessageID
	}
	return body
}
