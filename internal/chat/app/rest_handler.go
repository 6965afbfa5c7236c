package app

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/pkg/logger"
	"direct_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// ChatRESTHandler REST surface of the chat core
type ChatRESTHandler struct {
	chatUC        ChatUseCase
	maxImageBytes int64
}

// NewChatRESTHandler create ChatRESTHandler
func NewChatRESTHandler(chatUC ChatUseCase, maxImageBytes int64) *ChatRESTHandler {
	return &ChatRESTHandler{chatUC: chatUC, maxImageBytes: maxImageBytes}
}

// EnsureRoomRequest body of POST /rooms
type EnsureRoomRequest struct {
	ContactID string `json:"contact_id"`
}

// MessageRequest body of send and edit, Image is a data url and ignored on edit
type MessageRequest struct {
	Text  string `json:"text" form:"text"`
	Image string `json:"image,omitempty" form:"-"`
}

// RoomIDResponse room key of a two-party room
type RoomIDResponse struct {
	RoomID string `json:"room_id"`
}

// RoomsResponse rooms of the caller, most recently updated first
type RoomsResponse struct {
	Rooms []*domain.ChatRoom `json:"rooms"`
}

// MessagesResponse the caller's visible messages, oldest first
type MessagesResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// MessageIDResponse id of the written message
type MessageIDResponse struct {
	MessageID string `json:"message_id"`
}

// ErrorResponse body written by ErrorPayload. Reason is set for moderation rejections,
// Step and MessageID for partial failures.
type ErrorResponse struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	Step      string `json:"step,omitempty"`
	MessageID string `json:"message_id,omitempty"`
}

func self(c *fiber.Ctx) domain.Party {
	return domain.Party{ID: middlewares.MemberID(c), Email: middlewares.MemberEmail(c)}
}

func (h *ChatRESTHandler) fail(c *fiber.Ctx, op string, err error) error {
	status := StatusOf(err)
	if status >= fiber.StatusInternalServerError {
		logger.Log.Error(op, zap.String("member_id", middlewares.MemberID(c)), zap.Error(err))
	}
	return c.Status(status).JSON(ErrorPayload(err))
}

// EnsureRoom godoc
// @Summary Open the direct room with a contact
// @Description Creates the room on first contact, returns the same room id for either party afterwards
// @Tags Rooms
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body EnsureRoomRequest true "Contact"
// @Success 200 {object} RoomIDResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse "Contact not found"
// @Failure 429 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /rooms [post]
func (h *ChatRESTHandler) EnsureRoom(c *fiber.Ctx) error {
	var req EnsureRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	roomID, err := h.chatUC.EnsureRoom(c.UserContext(), self(c), req.ContactID)
	if err != nil {
		return h.fail(c, "EnsureRoom", err)
	}
	return c.JSON(RoomIDResponse{RoomID: roomID})
}

// ListRooms godoc
// @Summary List the caller's rooms
// @Tags Rooms
// @Produce json
// @Security BearerAuth
// @Success 200 {object} RoomsResponse
// @Failure 503 {object} ErrorResponse
// @Router /rooms [get]
func (h *ChatRESTHandler) ListRooms(c *fiber.Ctx) error {
	rooms, err := h.chatUC.ListRooms(c.UserContext(), middlewares.MemberID(c))
	if err != nil {
		return h.fail(c, "ListRooms", err)
	}
	return c.JSON(RoomsResponse{Rooms: rooms})
}

// History godoc
// @Summary Current messages of a room
// @Description Messages ordered by timestamp, without the ones the caller deleted for themselves
// @Tags Messages
// @Produce json
// @Security BearerAuth
// @Param roomID path string true "Room ID"
// @Success 200 {object} MessagesResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /rooms/{roomID}/messages [get]
func (h *ChatRESTHandler) History(c *fiber.Ctx) error {
	messages, err := h.chatUC.History(c.UserContext(), c.Params("roomID"), middlewares.MemberID(c))
	if err != nil {
		return h.fail(c, "History", err)
	}
	return c.JSON(MessagesResponse{Messages: messages})
}

// SendMessage godoc
// @Summary Send a message
// @Description JSON {text, image data url} or multipart text + image file. Text is moderated before anything is written.
// @Tags Messages
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param roomID path string true "Room ID"
// @Param body body MessageRequest false "Text and optional image data url"
// @Param image formData file false "Image file"
// @Success 201 {object} MessageIDResponse
// @Success 207 {object} ErrorResponse "Message written, room summary update failed"
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Rejected by moderation"
// @Failure 429 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /rooms/{roomID}/messages [post]
func (h *ChatRESTHandler) SendMessage(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	image, err := h.image(c, req.Image)
	if err != nil {
		return h.fail(c, "SendMessage", err)
	}

	id, err := h.chatUC.SendMessage(c.UserContext(), c.Params("roomID"), self(c), req.Text, image)
	if err != nil {
		return h.fail(c, "SendMessage", err)
	}
	return c.Status(fiber.StatusCreated).JSON(MessageIDResponse{MessageID: id})
}

func (h *ChatRESTHandler) image(c *fiber.Ctx, dataURL string) (*ImageUpload, error) {
	if strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		file, err := c.FormFile("image")
		if err != nil {
			// 沒有附圖
			return nil, nil
		}
		limit := h.maxImageBytes
		if limit <= 0 {
			limit = DefaultMaxImageBytes
		}
		if file.Size > limit {
			return nil, fmt.Errorf("%w: image exceeds %d bytes", domain.ErrInvalidArgument, limit)
		}
		f, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open image: %v", domain.ErrInvalidArgument, err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("%w: read image: %v", domain.ErrInvalidArgument, err)
		}
		return NewImageUpload(file.Header.Get(fiber.HeaderContentType), bytes.NewReader(data), int64(len(data)), limit)
	}
	if dataURL == "" {
		return nil, nil
	}
	return ParseImageDataURL(dataURL, h.maxImageBytes)
}

// EditMessage godoc
// @Summary Edit the text of an own message
// @Tags Messages
// @Accept json
// @Security BearerAuth
// @Param roomID path string true "Room ID"
// @Param messageID path string true "Message ID"
// @Param body body MessageRequest true "New text"
// @Success 204
// @Success 207 {object} ErrorResponse "Message edited, room summary update failed"
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse "Rejected by moderation"
// @Failure 429 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /rooms/{roomID}/messages/{messageID} [patch]
func (h *ChatRESTHandler) EditMessage(c *fiber.Ctx) error {
	var req MessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	err := h.chatUC.EditMessage(c.UserContext(), c.Params("roomID"), c.Params("messageID"), middlewares.MemberID(c), req.Text)
	if err != nil {
		return h.fail(c, "EditMessage", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteMessage godoc
// @Summary Delete a message
// @Description scope=everyone removes it for both parties (sender only), scope=me hides it for the caller,
// @Description no scope picks everyone for the sender and me otherwise
// @Tags Messages
// @Security BearerAuth
// @Param roomID path string true "Room ID"
// @Param messageID path string true "Message ID"
// @Param scope query string false "everyone or me" Enums(everyone, me)
// @Success 204
// @Success 207 {object} ErrorResponse "Message deleted, room summary recompute failed"
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 429 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /rooms/{roomID}/messages/{messageID} [delete]
func (h *ChatRESTHandler) DeleteMessage(c *fiber.Ctx) error {
	ctx := c.UserContext()
	roomID, messageID, memberID := c.Params("roomID"), c.Params("messageID"), middlewares.MemberID(c)

	var err error
	switch c.Query("scope") {
	case "everyone":
		err = h.chatUC.DeleteForEveryone(ctx, roomID, messageID, memberID)
	case "me":
		err = h.chatUC.DeleteForMe(ctx, roomID, messageID, memberID)
	case "":
		err = h.chatUC.DeleteMessage(ctx, roomID, messageID, memberID)
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "scope must be everyone or me"})
	}
	if err != nil {
		return h.fail(c, "DeleteMessage", err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
