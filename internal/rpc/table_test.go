package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbranch/campaign-sync/pkg/types"
)

func TestTable_ResolvesExactlyOnce(t *testing.T) {
	tbl := NewTable()
	ch := tbl.Register("nonce-1")

	ok := tbl.Resolve("nonce-1", types.ImpersonationStatus{RequestID: "r1", Status: "approved"})
	require.True(t, ok)

	// Second frame with the same nonce must be a no-op.
	ok = tbl.Resolve("nonce-1", types.ImpersonationStatus{RequestID: "r1", Status: "denied"})
	assert.False(t, ok)

	res := <-ch
	require.NoError(t, res.Err)
	assert.Equal(t, "approved", res.Status.Status)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected second result: %+v", extra)
	default:
	}
}

func TestTable_ResolveUnknownNonce(t *testing.T) {
	tbl := NewTable()
	assert.False(t, tbl.Resolve("ghost", types.ImpersonationStatus{}))
}

func TestTable_RejectAllDrainsEveryPendingCall(t *testing.T) {
	tbl := NewTable()
	a := tbl.Register("a")
	b := tbl.Register("b")
	require.Equal(t, 2, tbl.Pending())

	tbl.RejectAll(ErrConnectionClosed)
	assert.Equal(t, 0, tbl.Pending())

	for _, ch := range []<-chan Result{a, b} {
		res := <-ch
		assert.ErrorIs(t, res.Err, ErrConnectionClosed)
	}

	// Rejection after the drain touches nothing.
	tbl.RejectAll(ErrConnectionClosed)
}

func TestTable_UnregisterSkipsSettlement(t *testing.T) {
	tbl := NewTable()
	ch := tbl.Register("a")
	tbl.Unregister("a")

	tbl.RejectAll(ErrConnectionClosed)
	select {
	case res := <-ch:
		t.Fatalf("unregistered call was settled: %+v", res)
	default:
	}
}

func TestTable_PromptRemovedWhenStatusLeavesPending(t *testing.T) {
	tbl := NewTable()
	tbl.UpsertPrompt(types.ImpersonationRequest{ID: "r1", Content: "say hello"})
	tbl.UpsertPrompt(types.ImpersonationRequest{ID: "r2", Content: "wave"})

	tbl.RecordStatus(types.ImpersonationStatus{RequestID: "r1", Status: StatusPending})
	require.Len(t, tbl.Prompts(), 2)

	tbl.RecordStatus(types.ImpersonationStatus{RequestID: "r1", Status: "denied"})
	prompts := tbl.Prompts()
	require.Len(t, prompts, 1)
	assert.Equal(t, "r2", prompts[0].ID)

	st, ok := tbl.Status("r1")
	require.True(t, ok)
	assert.Equal(t, "denied", st.Status)
}

func TestTable_UpsertPromptReplacesByID(t *testing.T) {
	tbl := NewTable()
	tbl.UpsertPrompt(types.ImpersonationRequest{ID: "r1", Content: "v1"})
	tbl.UpsertPrompt(types.ImpersonationRequest{ID: "r2", Content: "other"})
	tbl.UpsertPrompt(types.ImpersonationRequest{ID: "r1", Content: "v2"})

	prompts := tbl.Prompts()
	require.Len(t, prompts, 2)
	// Replacement re-appends, so r1 is now newest.
	assert.Equal(t, "r2", prompts[0].ID)
	assert.Equal(t, "r1", prompts[1].ID)
	assert.Equal(t, "v2", prompts[1].Content)
}

func TestTable_IgnoresEmptyIDs(t *testing.T) {
	tbl := NewTable()
	tbl.UpsertPrompt(types.ImpersonationRequest{})
	tbl.RecordStatus(types.ImpersonationStatus{Status: "approved"})
	assert.Empty(t, tbl.Prompts())
}
