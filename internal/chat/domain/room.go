package domain

import (
	"sort"
	"strings"
)

// RoomIDSeparator joins the two party ids of a room key. Party ids never contain it.
const RoomIDSeparator = "_"

// ChatRoom definition 1 on 1 chat room
type ChatRoom struct {
	ID                string          `bson:"_id" json:"id"`
	Participants      []string        `bson:"participants" json:"participants"`
	ParticipantEmails []string        `bson:"participant_emails" json:"participant_emails"`
	LastMessage       *MessageSummary `bson:"last_message,omitempty" json:"last_message,omitempty"`
	UpdatedAt         int64           `bson:"updated_at" json:"updated_at"`
	// Clock 房間的 server timestamp, 每次寫入都會遞增
	Clock int64 `bson:"clock" json:"-"`
}

// MessageSummary is the denormalized copy of the newest message kept on the room.
// It carries no message id, see MessageSummary.Matches.
type MessageSummary struct {
	Text        string `bson:"text" json:"text"`
	ImageURL    string `bson:"image_url,omitempty" json:"image_url,omitempty"`
	SenderID    string `bson:"sender_id" json:"sender_id"`
	SenderEmail string `bson:"sender_email" json:"sender_email"`
	Timestamp   int64  `bson:"timestamp" json:"timestamp"`
}

// Party is an authenticated user as seen by the chat core.
type Party struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// DeriveRoomID returns the canonical key of the room shared by a and b.
// DeriveRoomID(a, b) == DeriveRoomID(b, a).
func DeriveRoomID(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return strings.Join(ids, RoomIDSeparator)
}

// ValidPartyID reports whether id can take part in a room key.
func ValidPartyID(id string) bool {
	return strings.TrimSpace(id) != "" && !strings.Contains(id, RoomIDSeparator) && !strings.ContainsAny(id, ".$")
}

// NewChatRoom build the room record for a first contact between two parties
func NewChatRoom(a, b Party, now int64) *ChatRoom {
	return &ChatRoom{
		ID:                DeriveRoomID(a.ID, b.ID),
		Participants:      []string{a.ID, b.ID},
		ParticipantEmails: []string{a.Email, b.Email},
		UpdatedAt:         now,
		Clock:             now,
	}
}

// HasParticipant check party is one of the two room members
func (r *ChatRoom) HasParticipant(partyID string) bool {
	for _, p := range r.Participants {
		if p == partyID {
			return true
		}
	}
	return false
}

// OtherParticipant returns the counterpart of partyID, or "" if partyID is not a member.
func (r *ChatRoom) OtherParticipant(partyID string) string {
	if !r.HasParticipant(partyID) {
		return ""
	}
	for _, p := range r.Participants {
		if p != partyID {
			return p
		}
	}
	return ""
}

// SummaryKey is the content a cached summary is compared against, since it carries no message id.
type SummaryKey struct {
	SenderID string
	Text     string
	ImageURL string
}

// Matches reports whether the cached summary denotes msg: same sender and either the same
// text or, when msg carries an image, the same image url. Two messages from one sender with
// identical content are indistinguishable here.
func (s *MessageSummary) Matches(msg *ChatMessage) bool {
	if msg == nil {
		return false
	}
	return s.MatchesKey(msg.SummaryKey())
}

// MatchesKey is Matches against a key captured before the message changed.
func (s *MessageSummary) MatchesKey(k SummaryKey) bool {
	if s == nil || s.SenderID != k.SenderID {
		return false
	}
	if s.Text == k.Text {
		return true
	}
	return k.ImageURL != "" && s.ImageURL == k.ImageURL
}

// SplitRoomID recovers the two party ids of a room key.
func SplitRoomID(roomID string) (string, string, bool) {
	parts := strings.Split(roomID, RoomIDSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
