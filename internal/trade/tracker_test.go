package trade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_MergeOverlaysOnlyPresentFields(t *testing.T) {
	tr := NewTracker()

	tr.Apply("trade:invite", map[string]any{
		"id":        "t1",
		"gameId":    "g1",
		"partnerId": "u2",
		"note":      "macca for a bead",
	}, "", "u1")

	// A later partial update touches items only; everything else must
	// survive the merge.
	tr.Apply("trade:update", map[string]any{
		"id":    "t1",
		"items": []any{map[string]any{"itemId": "bead", "count": 1}},
	}, "", "")

	s, ok := tr.Get("t1")
	require.True(t, ok)
	assert.Equal(t, "trade:update", s.LastEvent)
	assert.Equal(t, "u2", s.Fields["partnerId"])
	assert.Equal(t, "macca for a bead", s.Fields["note"])
	assert.NotNil(t, s.Fields["items"])
}

func TestTracker_SequentialUpdatesEqualMergeInArrivalOrder(t *testing.T) {
	tr := NewTracker()

	frames := []map[string]any{
		{"id": "t1", "status": "open", "offerA": "macca"},
		{"id": "t1", "offerB": "chakra drop"},
		{"id": "t1", "status": "countered", "offerA": "macca x2"},
	}
	for _, f := range frames {
		tr.Apply("trade:update", f, "", "")
	}

	s, _ := tr.Get("t1")
	assert.Equal(t, "countered", s.Fields["status"])
	assert.Equal(t, "macca x2", s.Fields["offerA"])
	assert.Equal(t, "chakra drop", s.Fields["offerB"])
}

func TestTracker_ApplyWithoutIDIsDropped(t *testing.T) {
	tr := NewTracker()
	require.Nil(t, tr.Apply("trade:update", map[string]any{"status": "open"}, "", ""))
	assert.Empty(t, tr.Sessions())
}

func TestTracker_CancelledKeepsRecordUntilDismissed(t *testing.T) {
	tr := NewTracker()
	tr.Apply("trade:invite", map[string]any{"id": "t1"}, "", "u1")
	tr.Apply("trade:cancelled", map[string]any{"id": "t1"}, "partner declined", "")

	s, ok := tr.Get("t1")
	require.True(t, ok)
	assert.Equal(t, "trade:cancelled", s.LastEvent)
	assert.Equal(t, "partner declined", s.Reason)

	require.True(t, tr.Dismiss("t1"))
	_, ok = tr.Get("t1")
	assert.False(t, ok)
	assert.False(t, tr.Dismiss("t1"))
}

func TestTracker_SessionsInFirstSeenOrder(t *testing.T) {
	tr := NewTracker()
	tr.Apply("trade:invite", map[string]any{"id": "b"}, "", "")
	tr.Apply("trade:invite", map[string]any{"id": "a"}, "", "")
	tr.Apply("trade:update", map[string]any{"id": "b"}, "", "")

	got := tr.Sessions()
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
}

func TestTracker_CopiesAreIsolated(t *testing.T) {
	tr := NewTracker()
	tr.Apply("trade:invite", map[string]any{"id": "t1", "note": "hi"}, "", "")

	s, _ := tr.Get("t1")
	s.Fields["note"] = "mutated"

	again, _ := tr.Get("t1")
	assert.Equal(t, "hi", again.Fields["note"])
}
