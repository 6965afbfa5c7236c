package domain

// EventType chat event type on the event bus
type EventType string

const (
	// EventRoomCreated first contact between two parties
	EventRoomCreated EventType = "room.created"
	// EventMessageSent message appended
	EventMessageSent EventType = "message.sent"
	// EventMessageEdited message text changed
	EventMessageEdited EventType = "message.edited"
	// EventMessageDeleted message removed for everyone
	EventMessageDeleted EventType = "message.deleted"
	// EventMessageHidden message hidden for one party
	EventMessageHidden EventType = "message.hidden"
)

// ChatEvent is emitted after a successful write. Content is never included.
type ChatEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	RoomID     string    `json:"room_id"`
	MessageID  string    `json:"message_id,omitempty"`
	ActorID    string    `json:"actor_id"`
	OccurredAt int64     `json:"occurred_at"`
}
