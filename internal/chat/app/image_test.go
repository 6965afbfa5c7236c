package app

import (
	"bytes"
	"encoding/base64"
	"io"
	"testing"

	"direct_chat_service/internal/chat/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 1x1 png
var pngPixel, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNk+M9QDwADhgGAWjR9awAAAABJRU5ErkJggg==")

func pngDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngPixel)
}

func TestParseImageDataURL(t *testing.T) {
	img, err := ParseImageDataURL(pngDataURL(), 0)
	require.NoError(t, err)
	assert.Equal(t, "image/png", img.ContentType)
	assert.Equal(t, int64(len(pngPixel)), img.Size)

	data, err := io.ReadAll(img.Reader)
	require.NoError(t, err)
	assert.Equal(t, pngPixel, data)
}

func TestParseImageDataURL_Invalid(t *testing.T) {
	cases := map[string]string{
		"not a data url":  "https://example.com/cat.png",
		"no payload":      "data:image/png;base64",
		"not base64":      "data:image/png,rawbytes",
		"broken base64":   "data:image/png;base64,@@@",
		"empty image":     "data:image/png;base64,",
		"text disguised":  "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("hello world")),
		"declared as pdf": "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pngPixel),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseImageDataURL(in, 0)
			assert.ErrorIs(t, err, domain.ErrInvalidArgument)
		})
	}
}

func TestNewImageUpload_TooLarge(t *testing.T) {
	_, err := NewImageUpload("image/png", bytes.NewReader(pngPixel), int64(len(pngPixel)), 10)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}
