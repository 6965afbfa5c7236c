package app

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"

	"direct_chat_service/internal/chat/domain"
)

// DefaultMaxImageBytes upper bound of one uploaded image
const DefaultMaxImageBytes = 5 << 20

// ImageUpload an image attached to an outbound message
type ImageUpload struct {
	ContentType string
	Size        int64
	Reader      io.Reader
}

// ParseImageDataURL decode "data:image/<type>;base64,<payload>"
func ParseImageDataURL(dataURL string, maxBytes int64) (*ImageUpload, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: image is not a data url", domain.ErrInvalidArgument)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: malformed data url", domain.ErrInvalidArgument)
	}
	contentType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return nil, fmt.Errorf("%w: data url must be base64", domain.ErrInvalidArgument)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: image payload: %v", domain.ErrInvalidArgument, err)
	}
	return NewImageUpload(contentType, bytes.NewReader(data), int64(len(data)), maxBytes)
}

// NewImageUpload validate an image payload, only image/* is accepted
func NewImageUpload(contentType string, r io.Reader, size, maxBytes int64) (*ImageUpload, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	if size <= 0 {
		return nil, fmt.Errorf("%w: empty image", domain.ErrInvalidArgument)
	}
	if size > maxBytes {
		return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidArgument, maxBytes)
	}

	// 以內容判斷類型，不信任用戶端宣告
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("%w: read image: %v", domain.ErrInvalidArgument, err)
	}
	head = head[:n]
	sniffed := http.DetectContentType(head)
	if !strings.HasPrefix(sniffed, "image/") || !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: only images can be attached", domain.ErrInvalidArgument)
	}

	return &ImageUpload{
		ContentType: sniffed,
		Size:        size,
		Reader:      io.MultiReader(bytes.NewReader(head), r),
	}, nil
}
