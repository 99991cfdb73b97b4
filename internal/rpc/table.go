// Package rpc correlates outbound impersonation requests with the
// status frames that eventually answer them.
package rpc

import (
	"errors"

	"github.com/tbranch/campaign-sync/pkg/types"
)

// ErrConnectionClosed rejects every pending call when the connection
// drops or the session is torn down.
var ErrConnectionClosed = errors.New("connection_closed")

// StatusPending is the only status that keeps a prompt visible.
const StatusPending = "pending"

// Result settles one impersonation call: either a status or an error,
// never both.
type Result struct {
	Status types.ImpersonationStatus
	Err    error
}

// Table is the pending-call table keyed by nonce, plus the status map
// and prompt list that outlive the original caller.
//
// Not safe for concurrent use; the session loop owns it.
type Table struct {
	pending  map[string]chan Result
	statuses map[string]types.ImpersonationStatus
	prompts  []types.ImpersonationRequest
}

func NewTable() *Table {
	return &Table{
		pending:  make(map[string]chan Result),
		statuses: make(map[string]types.ImpersonationStatus),
	}
}

// Register creates the result channel for a fresh nonce. The channel is
// buffered so resolution never blocks the loop on an absent caller.
func (t *Table) Register(nonce string) <-chan Result {
	ch := make(chan Result, 1)
	t.pending[nonce] = ch
	return ch
}

// Unregister drops a nonce without settling it, used when the send
// right after registration fails.
func (t *Table) Unregister(nonce string) {
	delete(t.pending, nonce)
}

// Resolve settles the call registered under nonce. A nonce that was
// already resolved (or never registered) is a no-op; this is what makes
// resolution exactly-once.
func (t *Table) Resolve(nonce string, st types.ImpersonationStatus) bool {
	ch, ok := t.pending[nonce]
	if !ok {
		return false
	}
	delete(t.pending, nonce)
	ch <- Result{Status: st}
	return true
}

// RejectAll drains the table, settling every pending call with err.
func (t *Table) RejectAll(err error) {
	for nonce, ch := range t.pending {
		delete(t.pending, nonce)
		ch <- Result{Err: err}
	}
}

// Pending reports the number of unsettled calls.
func (t *Table) Pending() int { return len(t.pending) }

// UpsertPrompt adds a visible prompt, replacing any prompt that shares
// its request id. Newest prompts go to the back.
func (t *Table) UpsertPrompt(req types.ImpersonationRequest) {
	if req.ID == "" {
		return
	}
	t.removePrompt(req.ID)
	t.prompts = append(t.prompts, req)
}

// RecordStatus stores the latest status for a request id and drops the
// matching prompt once the status is no longer pending, regardless of
// which client asked.
func (t *Table) RecordStatus(st types.ImpersonationStatus) {
	if st.RequestID == "" {
		return
	}
	t.statuses[st.RequestID] = st
	if st.Status != StatusPending {
		t.removePrompt(st.RequestID)
	}
}

// Status returns the latest recorded status for a request id.
func (t *Table) Status(requestID string) (types.ImpersonationStatus, bool) {
	st, ok := t.statuses[requestID]
	return st, ok
}

// Statuses returns a copy of the status map.
func (t *Table) Statuses() map[string]types.ImpersonationStatus {
	out := make(map[string]types.ImpersonationStatus, len(t.statuses))
	for k, v := range t.statuses {
		out[k] = v
	}
	return out
}

// Prompts returns a copy of the visible prompt list, oldest first.
func (t *Table) Prompts() []types.ImpersonationRequest {
	out := make([]types.ImpersonationRequest, len(t.prompts))
	copy(out, t.prompts)
	return out
}

func (t *Table) removePrompt(requestID string) {
	for i, p := range t.prompts {
		if p.ID == requestID {
			t.prompts = append(t.prompts[:i], t.prompts[i+1:]...)
			return
		}
	}
}
