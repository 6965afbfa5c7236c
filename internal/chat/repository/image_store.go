package repository

import (
	"context"
	"fmt"
	"io"
	"mime"
	"time"

	"direct_chat_service/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const defaultImageURLExpiry = 7 * 24 * time.Hour

// StoredImage an uploaded image, Object is the key Remove takes
type StoredImage struct {
	Object string
	URL    string
}

// ImageStore blob store for message images
type ImageStore interface {
	// Upload store size bytes of an image and return its object key and a retrievable url
	Upload(ctx context.Context, roomID, contentType string, r io.Reader, size int64) (*StoredImage, error)
	// Remove delete an image no message refers to
	Remove(ctx context.Context, object string) error
}

// objectStorage subset of database.MinIOClient the image store needs
type objectStorage interface {
	PutObject(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	PresignGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	RemoveObject(ctx context.Context, objectName string) error
}

type minioImageStore struct {
	storage objectStorage
	expiry  time.Duration
}

// NewMinIOImageStore create image store on a minio bucket
func NewMinIOImageStore(storage objectStorage, expiry time.Duration) ImageStore {
	if expiry <= 0 || expiry > defaultImageURLExpiry {
		expiry = defaultImageURLExpiry
	}
	return &minioImageStore{storage: storage, expiry: expiry}
}

func (s *minioImageStore) Upload(ctx context.Context, roomID, contentType string, r io.Reader, size int64) (*StoredImage, error) {
	ext := ""
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		ext = exts[0]
	}
	objectName := fmt.Sprintf("%s/%s%s", roomID, uuid.NewString(), ext)

	if err := s.storage.PutObject(ctx, objectName, r, size, contentType); err != nil {
		return nil, fmt.Errorf("upload image %s: %w", objectName, err)
	}
	url, err := s.storage.PresignGetURL(ctx, objectName, s.expiry)
	if err != nil {
		// 沒有 url 的物件不會再被引用
		if rmErr := s.storage.RemoveObject(ctx, objectName); rmErr != nil {
			logger.Log.Warn("remove unsigned image", zap.String("object", objectName), zap.Error(rmErr))
		}
		return nil, fmt.Errorf("sign image %s: %w", objectName, err)
	}
	return &StoredImage{Object: objectName, URL: url}, nil
}

func (s *minioImageStore) Remove(ctx context.Context, object string) error {
	if err := s.storage.RemoveObject(ctx, object); err != nil {
		return fmt.Errorf("remove image %s: %w", object, err)
	}
	return nil
}
