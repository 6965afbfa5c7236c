package router

import (
	"context"

	"direct_chat_service/internal/chat/app"
	memberApp "direct_chat_service/internal/member/app"
	"direct_chat_service/pkg/metrics"
	"direct_chat_service/pkg/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	"github.com/gofiber/websocket/v2"
)

// Handlers every handler the chat service exposes
type Handlers struct {
	Websocket *app.ChatWebsocketHandler
	REST      *app.ChatRESTHandler
	Directory *memberApp.DirectoryHandler
	Limiter   *middlewares.MemberLimiter
}

// RegisterRoutes 注册 chat 相關的路由
// @title Direct Chat Service API
// @version 1.0
// @description Two-party rooms and messages. Live updates are pushed over GET /ws.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func RegisterRoutes(r *fiber.App, h Handlers) {
	r.Get("/swagger/*", swagger.HandlerDefault)
	r.Get("/metrics", metrics.Handler())

	r.Use(middlewares.JWTMiddleware())

	r.Get("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		h.Websocket.HandleConnection(context.Background(), c)
	}))

	if h.Directory != nil {
		r.Get("/members", h.Directory.ListMembers)
	}

	limit := middlewares.RateLimit(h.Limiter)
	rooms := r.Group("/rooms")
	rooms.Get("/", h.REST.ListRooms)
	rooms.Post("/", limit, h.REST.EnsureRoom)
	rooms.Get("/:roomID/messages", h.REST.History)
	rooms.Post("/:roomID/messages", limit, h.REST.SendMessage)
	rooms.Patch("/:roomID/messages/:messageID", limit, h.REST.EditMessage)
	rooms.Delete("/:roomID/messages/:messageID", limit, h.REST.DeleteMessage)
}
