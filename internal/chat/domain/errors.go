package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyMessage message has neither text nor image
	ErrEmptyMessage = errors.New("message must contain text or an image")
	// ErrForbidden caller does not own the message or is not a room participant
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound room or message no longer exists
	ErrNotFound = errors.New("not found")
	// ErrStoreUnavailable backing store failed
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrModerationUnavailable moderation service failed, the write is refused
	ErrModerationUnavailable = errors.New("moderation unavailable")
	// ErrInvalidArgument malformed party id, image payload, etc.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRateLimited member sent writes faster than allowed
	ErrRateLimited = errors.New("too many requests")
)

// ModerationRejectedError content was blocked by moderation
type ModerationRejectedError struct {
	Reason string
}

func (e *ModerationRejectedError) Error() string {
	if e.Reason == "" {
		return "message rejected by moderation"
	}
	return "message rejected by moderation: " + e.Reason
}

// Step names one write of a multi-step operation.
type Step string

const (
	// StepSummaryUpdate room summary overwrite after append or edit
	StepSummaryUpdate Step = "summary_update"
	// StepSummaryRecompute room summary recompute after delete
	StepSummaryRecompute Step = "summary_recompute"
)

// PartialFailureError the primary write committed but a follow-up step failed.
// Nothing is rolled back.
type PartialFailureError struct {
	Op        string
	Step      Step
	MessageID string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s committed for message %s, %s failed: %v", e.Op, e.MessageID, e.Step, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}

// IsModerationRejected unwrap err as ModerationRejectedError
func IsModerationRejected(err error) (*ModerationRejectedError, bool) {
	var rejected *ModerationRejectedError
	if errors.As(err, &rejected) {
		return rejected, true
	}
	return nil, false
}
