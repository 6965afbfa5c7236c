package domain

import "errors"

// ErrMemberNotFound no member matches the query
var ErrMemberNotFound = errors.New("member not found")

// MemberStatus 用來表示使用者狀態
type MemberStatus int

// 状态: 0=offline, 1=online, 2=ban ,3=delete
const (
	// MemberStatusOffLine 使用者離線
	MemberStatusOffLine MemberStatus = iota
	// MemberStatusOnLine 使用者在線
	MemberStatusOnLine
	// MemberStatusBan 使用者被封鎖
	MemberStatusBan
	// MemberStatusDelete 使用者已刪除
	MemberStatusDelete
)

// Member 用來表示使用者
type Member struct {
	ID          int64        `json:"-"`
	MemberID    string       `json:"member_id"`
	Email       string       `json:"email"`
	DisplayName string       `json:"display_name,omitempty"`
	AvatarURL   string       `json:"avatar_url,omitempty"`
	Status      MemberStatus `json:"status"`
}

// Reachable banned and deleted members can not be contacted
func (m *Member) Reachable() bool {
	return m.Status != MemberStatusBan && m.Status != MemberStatusDelete
}

// MemberQuery join conditions are used to query members
type MemberQuery struct {
	ID       *int64  `db:"id"`
	MemberID *string `db:"member_id"`
	Email    *string `db:"email"`
}

// DirectoryQuery list members for a viewer
type DirectoryQuery struct {
	// ExcludeMemberID the viewer, never listed
	ExcludeMemberID string
	// EmailContains case-insensitive substring, empty lists everyone
	EmailContains string
	Limit         int
}
