package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/pkg/middlewares"
	"direct_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRESTApp(f *chatFixture) *fiber.App {
	h := NewChatRESTHandler(f.uc, 0)
	r := fiber.New()
	r.Use(middlewares.JWTMiddleware())
	r.Get("/rooms", h.ListRooms)
	r.Post("/rooms", h.EnsureRoom)
	r.Get("/rooms/:roomID/messages", h.History)
	r.Post("/rooms/:roomID/messages", h.SendMessage)
	r.Patch("/rooms/:roomID/messages/:messageID", h.EditMessage)
	r.Delete("/rooms/:roomID/messages/:messageID", h.DeleteMessage)
	return r
}

func authHeader(t *testing.T, p domain.Party) string {
	t.Helper()
	jwt, err := token.GenerateJWTWrapper(p.ID, p.Email, "member")
	require.NoError(t, err)
	return "Bearer " + jwt
}

func doJSON(t *testing.T, r *fiber.App, as domain.Party, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	req.Header.Set(fiber.HeaderAuthorization, authHeader(t, as))

	resp, err := r.Test(req, -1)
	require.NoError(t, err)
	out := map[string]interface{}{}
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp, out
}

func TestChatRESTHandler_Unauthorized(t *testing.T) {
	r := newRESTApp(newChatFixture(alice, bob))
	resp, err := r.Test(httptest.NewRequest(http.MethodGet, "/rooms", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestChatRESTHandler_Conversation(t *testing.T) {
	f := newChatFixture(alice, bob, carol)
	r := newRESTApp(f)

	resp, body := doJSON(t, r, alice, http.MethodPost, "/rooms", map[string]string{"contact_id": bob.ID})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	roomID := body["room_id"].(string)
	assert.Equal(t, "alice_bob", roomID)

	resp, body = doJSON(t, r, alice, http.MethodPost, "/rooms/"+roomID+"/messages", map[string]string{"text": "hi bob"})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	messageID := body["message_id"].(string)

	resp, _ = doJSON(t, r, alice, http.MethodPatch, "/rooms/"+roomID+"/messages/"+messageID, map[string]string{"text": "hi bob!"})
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, body = doJSON(t, r, bob, http.MethodGet, "/rooms/"+roomID+"/messages", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	messages := body["messages"].([]interface{})
	require.Len(t, messages, 1)
	assert.Equal(t, "hi bob!", messages[0].(map[string]interface{})["text"])

	resp, body = doJSON(t, r, bob, http.MethodGet, "/rooms", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	rooms := body["rooms"].([]interface{})
	require.Len(t, rooms, 1)
	last := rooms[0].(map[string]interface{})["last_message"].(map[string]interface{})
	assert.Equal(t, "hi bob!", last["text"])

	resp, _ = doJSON(t, r, bob, http.MethodDelete, "/rooms/"+roomID+"/messages/"+messageID+"?scope=everyone", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, r, bob, http.MethodDelete, "/rooms/"+roomID+"/messages/"+messageID+"?scope=me", nil)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, r, bob, http.MethodDelete, "/rooms/"+roomID+"/messages/"+messageID+"?scope=all", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, r, carol, http.MethodGet, "/rooms/"+roomID+"/messages", nil)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestChatRESTHandler_ErrorStatus(t *testing.T) {
	f := newChatFixture(alice, bob)
	r := newRESTApp(f)
	_, body := doJSON(t, r, alice, http.MethodPost, "/rooms", map[string]string{"contact_id": bob.ID})
	roomID := body["room_id"].(string)
	path := "/rooms/" + roomID + "/messages"

	resp, _ := doJSON(t, r, alice, http.MethodPost, path, map[string]string{"text": " "})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = doJSON(t, r, alice, http.MethodPost, path, map[string]string{"image": "data:text/plain;base64,aGk="})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	f.moderation.blocked = []string{"spam"}
	resp, body = doJSON(t, r, alice, http.MethodPost, path, map[string]string{"text": "buy spam"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "contains spam", body["reason"])

	f.moderation.blocked = nil
	f.moderation.err = errors.New("down")
	resp, _ = doJSON(t, r, alice, http.MethodPost, path, map[string]string{"text": "hi"})
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)

	f.moderation.err = nil
	f.rooms.failSummary = errors.New("write conflict")
	resp, body = doJSON(t, r, alice, http.MethodPost, path, map[string]string{"text": "hi"})
	assert.Equal(t, fiber.StatusMultiStatus, resp.StatusCode)
	assert.Equal(t, string(domain.StepSummaryUpdate), body["step"])
	assert.NotEmpty(t, body["message_id"])

	resp, _ = doJSON(t, r, alice, http.MethodPost, "/rooms", map[string]string{"contact_id": "ghost"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestChatRESTHandler_SendImageMultipart(t *testing.T) {
	f := newChatFixture(alice, bob)
	r := newRESTApp(f)
	_, body := doJSON(t, r, alice, http.MethodPost, "/rooms", map[string]string{"contact_id": bob.ID})
	roomID := body["room_id"].(string)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.WriteField("text", "cat"))
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="cat.png"`)
	hdr.Set(fiber.HeaderContentType, "image/png")
	part, err := w.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(pngPixel)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/rooms/"+roomID+"/messages", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	req.Header.Set(fiber.HeaderAuthorization, authHeader(t, alice))
	resp, err := r.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	summary := f.rooms.summary(roomID)
	assert.Equal(t, "cat", summary.Text)
	assert.Contains(t, summary.ImageURL, "https://img.test/")
}

func TestStatusOf(t *testing.T) {
	cases := map[error]int{
		domain.ErrEmptyMessage:                               fiber.StatusBadRequest,
		domain.ErrInvalidArgument:                            fiber.StatusBadRequest,
		domain.ErrForbidden:                                  fiber.StatusForbidden,
		domain.ErrNotFound:                                   fiber.StatusNotFound,
		domain.ErrRateLimited:                                fiber.StatusTooManyRequests,
		domain.ErrStoreUnavailable:                           fiber.StatusServiceUnavailable,
		domain.ErrModerationUnavailable:                      fiber.StatusServiceUnavailable,
		&domain.ModerationRejectedError{Reason: "x"}:         fiber.StatusUnprocessableEntity,
		&domain.PartialFailureError{Err: errors.New("boom")}: fiber.StatusMultiStatus,
		errors.New("unknown"):                                fiber.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, StatusOf(err), err.Error())
	}
}
