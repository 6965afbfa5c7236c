package domain

// ModerationVerdict answer of the moderation service for one text
type ModerationVerdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason,omitempty"`
}
