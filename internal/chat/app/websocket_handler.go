package app

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"direct_chat_service/internal/chat/domain"
	"direct_chat_service/internal/chat/repository"
	"direct_chat_service/pkg/logger"
	"direct_chat_service/pkg/metrics"
	"direct_chat_service/pkg/middlewares"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

const pingInterval = 10 * time.Minute

// ChatWebsocketHandler 可包含所有需要的 UseCase
type ChatWebsocketHandler struct {
	chatUC        ChatUseCase
	pubsub        repository.PubSub
	limiter       *middlewares.MemberLimiter
	maxImageBytes int64
}

// NewChatWebsocketHandler create ChatWebsocketHandler, a nil limiter never throttles
func NewChatWebsocketHandler(chatUC ChatUseCase, pubsub repository.PubSub, limiter *middlewares.MemberLimiter, maxImageBytes int64) *ChatWebsocketHandler {
	return &ChatWebsocketHandler{
		chatUC:        chatUC,
		pubsub:        pubsub,
		limiter:       limiter,
		maxImageBytes: maxImageBytes,
	}
}

// writeActions 與 REST 寫入路由共用同一個 member limiter
var writeActions = map[domain.Action]bool{
	domain.EnsureRoom:    true,
	domain.SendMessage:   true,
	domain.EditMessage:   true,
	domain.DeleteMessage: true,
}

// wsSession state of one connection, at most one entered room at a time
type wsSession struct {
	conn     *websocket.Conn
	memberID string
	email    string

	writeMu sync.Mutex

	feedMu      sync.Mutex
	roomID      string
	unsubscribe func()
}

// HandleConnection 是 WebSocket 連線的進入點
func (h *ChatWebsocketHandler) HandleConnection(ctx context.Context, conn *websocket.Conn) {
	memberID, _ := conn.Locals(middlewares.TokenMemberID).(string)
	email, _ := conn.Locals(middlewares.TokenEmail).(string)
	s := &wsSession{conn: conn, memberID: memberID, email: email}
	logger.Log.Info("websocket open", zap.String("member_id", memberID))

	metrics.WebsocketConnections.Inc()
	ticker := time.NewTicker(pingInterval)
	ctxClose, cancel := context.WithCancel(ctx)

	defer func() {
		ticker.Stop()
		cancel()
		s.leave()
		metrics.WebsocketConnections.Dec()
		logger.Log.Info("websocket close", zap.String("member_id", memberID))
		conn.Close()
	}()

	conn.SetCloseHandler(func(code int, text string) error {
		logger.Log.Debug("websocket close frame", zap.Int("code", code), zap.String("text", text))
		return nil
	})

	conn.SetPongHandler(func(appData string) error {
		logger.Log.Debug("received pong", zap.String("member_id", memberID))
		return nil
	})

	conn.SetPingHandler(func(appData string) error {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(time.Second))
	})

	// 訂閱自己的 room list 變更
	err := h.pubsub.Subscribe(ctxClose, repository.UserChannel(memberID), func(payload []byte) {
		h.pushRooms(ctxClose, s, payload)
	})
	if err != nil {
		logger.Log.Errorf("subscribe user channel", err, zap.String("member_id", memberID))
		h.sendError(s, string(domain.NotifyRoom), err)
		return
	}

	go func() {
		for {
			select {
			case <-ticker.C:
				s.writeMu.Lock()
				err := conn.WriteMessage(websocket.PingMessage, []byte("ping"))
				s.writeMu.Unlock()
				if err != nil {
					logger.Log.Errorf("ping", err, zap.String("member_id", memberID))
					return
				}
			case <-ctxClose.Done():
				return
			}
		}
	}()

	for {
		mt, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Log.Debug("connection closed", zap.String("member_id", memberID))
			} else {
				logger.Log.Errorf("websocket read", err, zap.String("member_id", memberID))
			}
			return
		}
		h.execWebsocketAction(ctxClose, s, mt, message)
	}
}

func (h *ChatWebsocketHandler) execWebsocketAction(ctx context.Context, s *wsSession, mt int, message []byte) {
	switch mt {
	case websocket.TextMessage:
		h.textMessageAction(ctx, s, message)
	default:
		logger.Log.Warn("unsupported websocket message type", zap.Int("type", mt))
	}
}

func (h *ChatWebsocketHandler) textMessageAction(ctx context.Context, s *wsSession, message []byte) {
	var req domain.WSRequest
	if err := json.Unmarshal(message, &req); err != nil {
		h.sendError(s, "", domain.ErrInvalidArgument)
		return
	}
	self := domain.Party{ID: s.memberID, Email: s.email}

	if writeActions[domain.Action(req.Action)] && !h.limiter.Allow(s.memberID) {
		h.sendError(s, req.Action, domain.ErrRateLimited)
		return
	}

	switch domain.Action(req.Action) {
	case domain.EnsureRoom:
		roomID, err := h.chatUC.EnsureRoom(ctx, self, req.ContactID)
		if err != nil {
			h.sendError(s, req.Action, err)
			return
		}
		h.sendSuccess(s, req.Action, map[string]interface{}{"room_id": roomID})

	case domain.ListRooms:
		rooms, err := h.chatUC.ListRooms(ctx, s.memberID)
		if err != nil {
			h.sendError(s, req.Action, err)
			return
		}
		h.sendSuccess(s, req.Action, map[string]interface{}{"rooms": rooms})

	case domain.EnterRoom:
		if err := h.enter(ctx, s, req.RoomID); err != nil {
			h.sendError(s, req.Action, err)
			return
		}
		h.sendSuccess(s, req.Action, map[string]interface{}{"room_id": req.RoomID})

	case domain.LeaveRoom:
		s.leave()
		h.sendSuccess(s, req.Action, nil)

	case domain.SendMessage:
		var image *ImageUpload
		if req.Image != "" {
			var err error
			if image, err = ParseImageDataURL(req.Image, h.maxImageBytes); err != nil {
				h.sendError(s, req.Action, err)
				return
			}
		}
		id, err := h.chatUC.SendMessage(ctx, req.RoomID, self, req.Text, image)
		if err != nil {
			h.sendError(s, req.Action, err)
			return
		}
		h.sendSuccess(s, req.Action, map[string]interface{}{"message_id": id})

	case domain.EditMessage:
		if err := h.chatUC.EditMessage(ctx, req.RoomID, req.MessageID, s.memberID, req.Text); err != nil {
			h.sendError(s, req.Action, err)
			return
		}
		h.sendSuccess(s, req.Action, map[string]interface{}{"message_id": req.MessageID})

	case domain.DeleteMessage:
		if err := h.chatUC.DeleteMessage(ctx, req.RoomID, req.MessageID, s.memberID); err != nil {
			h.sendError(s, req.Action, err)
			return
		}
		h.sendSuccess(s, req.Action, map[string]interface{}{"message_id": req.MessageID})

	default:
		h.sendError(s, req.Action, domain.ErrInvalidArgument)
	}
}

// enter switch the session feed to roomID
func (h *ChatWebsocketHandler) enter(ctx context.Context, s *wsSession, roomID string) error {
	s.leave()

	unsubscribe, err := h.chatUC.SubscribeMessages(ctx, roomID, s.memberID, func(messages []domain.ChatMessage) {
		h.sendSuccess(s, string(domain.NotifyMessages), map[string]interface{}{
			"room_id":  roomID,
			"messages": messages,
		})
	})
	if err != nil {
		return err
	}

	s.feedMu.Lock()
	s.roomID, s.unsubscribe = roomID, unsubscribe
	s.feedMu.Unlock()
	return nil
}

func (s *wsSession) leave() {
	s.feedMu.Lock()
	unsubscribe := s.unsubscribe
	s.roomID, s.unsubscribe = "", nil
	s.feedMu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (h *ChatWebsocketHandler) pushRooms(ctx context.Context, s *wsSession, payload []byte) {
	var notice domain.RoomNotice
	if err := json.Unmarshal(payload, &notice); err != nil {
		logger.Log.Errorf("decode room notice", err)
		return
	}
	rooms, err := h.chatUC.ListRooms(ctx, s.memberID)
	if err != nil {
		h.sendError(s, string(domain.NotifyRoom), err)
		return
	}
	h.sendSuccess(s, string(domain.NotifyRoom), map[string]interface{}{
		"room_id": notice.RoomID,
		"rooms":   rooms,
	})
}

func (h *ChatWebsocketHandler) sendSuccess(s *wsSession, action string, payload map[string]interface{}) {
	h.sendResponse(s, domain.WSResponse{Action: action, Success: true, Payload: payload})
}

func (h *ChatWebsocketHandler) sendError(s *wsSession, action string, err error) {
	if StatusOf(err) >= 500 {
		logger.Log.Errorf("websocket "+action, err, zap.String("member_id", s.memberID))
	}
	h.sendResponse(s, domain.WSResponse{
		Action:  action,
		Success: false,
		Payload: ErrorPayload(err),
		Error:   err.Error(),
	})
}

func (h *ChatWebsocketHandler) sendResponse(s *wsSession, resp domain.WSResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		logger.Log.Errorf("marshal websocket response", err)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		logger.Log.Errorf("websocket write", err, zap.String("member_id", s.memberID))
	}
}
