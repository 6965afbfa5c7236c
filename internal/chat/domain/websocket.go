package domain

// Action websocket request action
type Action string

const (
	// EnsureRoom websocket action ensure_room
	EnsureRoom Action = "ensure_room"
	// ListRooms websocket action list_rooms
	ListRooms Action = "list_rooms"

	// EnterRoom websocket action enter_room, starts the room message feed
	EnterRoom Action = "enter_room"
	// LeaveRoom websocket action leave_room, stops the room message feed
	LeaveRoom Action = "leave_room"

	// SendMessage websocket action send_message
	SendMessage Action = "send_message"
	// EditMessage websocket action edit_message
	EditMessage Action = "edit_message"
	// DeleteMessage websocket action delete_message
	DeleteMessage Action = "delete_message"

	// NotifyMessages websocket push of a room's full visible message list
	NotifyMessages Action = "notify_messages"
	// NotifyRoom websocket push of a changed room summary
	NotifyRoom Action = "notify_room"
)

// WSRequest websocket Request
type WSRequest struct {
	Action    string `json:"action"`
	RoomID    string `json:"room_id"`
	ContactID string `json:"contact_id"`
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
	// Image data url, "data:image/png;base64,..."
	Image string `json:"image"`
}

// WSResponse websocket Response
type WSResponse struct {
	Action  string                 `json:"action"`
	Success bool                   `json:"success"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Error   string                 `json:"error,omitempty"`
}

// RoomNotice is published on a participant's user channel when a room summary changes.
type RoomNotice struct {
	RoomID string `json:"room_id"`
}
