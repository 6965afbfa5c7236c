package repository

import (
	"errors"
	"fmt"

	"direct_chat_service/internal/chat/domain"

	"go.mongodb.org/mongo-driver/mongo"
)

// storeErr translate driver errors into the chat error taxonomy
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w: %v", op, domain.ErrStoreUnavailable, err)
}
