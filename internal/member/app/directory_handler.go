package app

import (
	"direct_chat_service/internal/member/domain"
	"direct_chat_service/pkg/logger"
	"direct_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// DirectoryHandler REST handler of the member directory
type DirectoryHandler struct {
	Usecase DirectoryUseCase
}

// NewDirectoryHandler create DirectoryHandler
func NewDirectoryHandler(uc DirectoryUseCase) *DirectoryHandler {
	return &DirectoryHandler{Usecase: uc}
}

// MembersResponse contacts the caller can open a room with
type MembersResponse struct {
	Members []*domain.Member `json:"members"`
}

// ListMembers godoc
// @Summary Search contacts
// @Description Every reachable member except the caller, ordered by email
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param search query string false "Case-insensitive email substring"
// @Success 200 {object} MembersResponse
// @Failure 503 {object} map[string]string
// @Router /members [get]
func (h *DirectoryHandler) ListMembers(c *fiber.Ctx) error {
	viewerID := middlewares.MemberID(c)
	members, err := h.Usecase.ListMembers(c.UserContext(), viewerID, c.Query("search"))
	if err != nil {
		logger.Log.Error("ListMembers", zap.String("viewer_id", viewerID), zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "directory unavailable"})
	}
	return c.JSON(MembersResponse{Members: members})
}
