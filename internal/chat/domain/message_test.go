package domain

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChatMessage(t *testing.T) {
	t.Run("text is trimmed", func(t *testing.T) {
		m, err := NewChatMessage("r", "a", "a@x.io", "  hello \n", "")
		require.NoError(t, err)
		assert.Equal(t, "hello", m.Text)
	})
	t.Run("image only", func(t *testing.T) {
		m, err := NewChatMessage("r", "a", "a@x.io", "", "http://img/1")
		require.NoError(t, err)
		assert.Equal(t, ImagePlaceholder, m.DisplayText())
	})
	t.Run("empty", func(t *testing.T) {
		_, err := NewChatMessage("r", "a", "a@x.io", "   ", "")
		assert.True(t, errors.Is(err, ErrEmptyMessage))
	})
}

func TestChatMessage_VisibleTo(t *testing.T) {
	m := &ChatMessage{SenderID: "a", Text: "hi"}
	assert.True(t, m.VisibleTo("b"))

	m.DeletedFor = m.DeletedFor.Add("b")
	assert.False(t, m.VisibleTo("b"))
	assert.True(t, m.VisibleTo("a"))
}

func TestMessagesByTime(t *testing.T) {
	msgs := []ChatMessage{
		{ID: "m3", Timestamp: 30},
		{ID: "m2", Timestamp: 10},
		{ID: "m1", Timestamp: 10},
		{ID: "m0", Timestamp: 5},
	}
	sort.Stable(MessagesByTime(msgs))

	var ids []string
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []string{"m0", "m1", "m2", "m3"}, ids)
	assert.True(t, msgs[2].Newer(&msgs[1]))
}

func TestPartialFailureError(t *testing.T) {
	err := &PartialFailureError{Op: "append", Step: StepSummaryUpdate, MessageID: "m1", Err: ErrStoreUnavailable}

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.Contains(t, err.Error(), "summary_update")

	var pf *PartialFailureError
	assert.True(t, errors.As(error(err), &pf))
	assert.Equal(t, "m1", pf.MessageID)
}

func TestModerationRejectedError(t *testing.T) {
	var err error = &ModerationRejectedError{Reason: "violent"}
	r, ok := IsModerationRejected(err)
	require.True(t, ok)
	assert.Equal(t, "violent", r.Reason)

	_, ok = IsModerationRejected(ErrForbidden)
	assert.False(t, ok)
}
