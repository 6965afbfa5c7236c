package domain

import "strings"

// ImagePlaceholder stands in for the text of an image-only message in a room summary.
const ImagePlaceholder = "[Image]"

// ChatMessage 表示一則聊天訊息
type ChatMessage struct {
	ID          string   `bson:"_id" json:"id"`
	RoomID      string   `bson:"room_id" json:"room_id"`
	SenderID    string   `bson:"sender_id" json:"sender_id"`
	SenderEmail string   `bson:"sender_email" json:"sender_email"`
	Text        string   `bson:"text,omitempty" json:"text,omitempty"`
	ImageURL    string   `bson:"image_url,omitempty" json:"image_url,omitempty"`
	Timestamp   int64    `bson:"timestamp" json:"timestamp"`
	IsEdited    bool     `bson:"is_edited,omitempty" json:"is_edited,omitempty"`
	EditedAt    int64    `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	DeletedFor  PartySet `bson:"deleted_for,omitempty" json:"deleted_for,omitempty"`
}

// PartySet is a set of party ids, persisted as {id: true}.
type PartySet map[string]bool

// Has check id in set
func (s PartySet) Has(id string) bool {
	return s[id]
}

// Add put id into the set, allocating it when needed
func (s PartySet) Add(id string) PartySet {
	if s == nil {
		s = PartySet{}
	}
	s[id] = true
	return s
}

// NewChatMessage validates a new message. Text is trimmed; a message needs text or an image.
// ID and Timestamp are assigned by the store on append.
func NewChatMessage(roomID, senderID, senderEmail, text, imageURL string) (*ChatMessage, error) {
	text = strings.TrimSpace(text)
	imageURL = strings.TrimSpace(imageURL)
	if text == "" && imageURL == "" {
		return nil, ErrEmptyMessage
	}
	return &ChatMessage{
		RoomID:      roomID,
		SenderID:    senderID,
		SenderEmail: senderEmail,
		Text:        text,
		ImageURL:    imageURL,
	}, nil
}

// DisplayText is the text shown in summaries: the text, or the image placeholder for image-only messages.
func (m *ChatMessage) DisplayText() string {
	if m.Text != "" {
		return m.Text
	}
	if m.ImageURL != "" {
		return ImagePlaceholder
	}
	return ""
}

// Summary copy the fields cached on the room as last message
func (m *ChatMessage) Summary() *MessageSummary {
	return &MessageSummary{
		Text:        m.DisplayText(),
		ImageURL:    m.ImageURL,
		SenderID:    m.SenderID,
		SenderEmail: m.SenderEmail,
		Timestamp:   m.Timestamp,
	}
}

// SummaryKey capture the fields a cached summary is matched on
func (m *ChatMessage) SummaryKey() SummaryKey {
	return SummaryKey{SenderID: m.SenderID, Text: m.Text, ImageURL: m.ImageURL}
}

// VisibleTo reports whether viewerID has not hidden the message for themselves.
func (m *ChatMessage) VisibleTo(viewerID string) bool {
	return !m.DeletedFor.Has(viewerID)
}

// Newer orders messages for "most recent": higher timestamp wins, ties go to the higher id.
func (m *ChatMessage) Newer(other *ChatMessage) bool {
	if m.Timestamp != other.Timestamp {
		return m.Timestamp > other.Timestamp
	}
	return m.ID > other.ID
}

// MessagesByTime sort messages ascending by timestamp, ties by id
type MessagesByTime []ChatMessage

func (s MessagesByTime) Len() int           { return len(s) }
func (s MessagesByTime) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s MessagesByTime) Less(i, j int) bool { return s[j].Newer(&s[i]) }
