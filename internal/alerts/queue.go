package alerts

import (
	"strings"
	"time"

	"github.com/tbranch/campaign-sync/pkg/types"
)

const (
	// DefaultTTL is how long an alert stays visible unless dismissed.
	DefaultTTL = 20 * time.Second

	// MaxVisible bounds the list to the most recent entries.
	MaxVisible = 5

	// UnknownSender fills in for broadcasts that arrive without a name.
	UnknownSender = "Unknown"
)

// Entry is one normalized broadcast notice. gen distinguishes it from
// earlier entries that carried the same id.
type Entry struct {
	ID         string
	Message    string
	SenderName string
	SenderID   string
	IssuedAt   time.Time

	gen uint64
}

// Queue keeps the bounded, time-expiring alert list. Expiry timers fire
// on their own goroutines, so the expire callback must hand the id and
// generation back to whatever owns the queue instead of touching it
// directly; the owner applies the fire through Expire.
//
// Not safe for concurrent use; the session loop owns it.
type Queue struct {
	ttl     time.Duration
	expire  func(id string, gen uint64)
	seq     uint64
	entries []Entry
	timers  map[string]*time.Timer
	lastErr string
}

func NewQueue(ttl time.Duration, expire func(id string, gen uint64)) *Queue {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Queue{
		ttl:    ttl,
		expire: expire,
		timers: make(map[string]*time.Timer),
	}
}

// Show validates and appends one alert:show payload. Entries missing an
// id or message after trimming are dropped. A duplicate id replaces the
// old entry and its timer; overflow evicts the oldest entries. A valid
// alert clears any transient error.
func (q *Queue) Show(info *types.AlertInfo, now time.Time) bool {
	if info == nil {
		return false
	}
	e := Entry{
		ID:         strings.TrimSpace(info.ID),
		Message:    strings.TrimSpace(info.Message),
		SenderName: info.SenderName,
		SenderID:   info.SenderID,
		IssuedAt:   now,
	}
	if e.ID == "" || e.Message == "" {
		return false
	}
	if e.SenderName == "" {
		e.SenderName = UnknownSender
	}
	if info.IssuedAt > 0 {
		e.IssuedAt = time.UnixMilli(info.IssuedAt)
	}
	q.seq++
	e.gen = q.seq

	q.remove(e.ID)
	q.entries = append(q.entries, e)
	for len(q.entries) > MaxVisible {
		q.remove(q.entries[0].ID)
	}

	if q.expire != nil {
		id, gen := e.ID, e.gen
		q.timers[id] = time.AfterFunc(q.ttl, func() { q.expire(id, gen) })
	}
	q.lastErr = ""
	return true
}

// Dismiss removes an entry and cancels its timer.
func (q *Queue) Dismiss(id string) bool {
	return q.remove(id)
}

// Expire applies a timer fire. A fire can race a duplicate alert:show:
// the timer posts its callback, then the replacement lands before the
// fire is handled. The replacement carries a newer generation and gets
// its own full TTL, so a fire for an older generation is dropped.
func (q *Queue) Expire(id string, gen uint64) bool {
	for _, e := range q.entries {
		if e.ID == id {
			if e.gen != gen {
				return false
			}
			return q.remove(id)
		}
	}
	return false
}

// SetError records a transient broadcast error, overwritten by the next
// error or cleared by the next valid alert.
func (q *Queue) SetError(msg string) { q.lastErr = msg }

func (q *Queue) Error() string { return q.lastErr }

// Entries returns the visible alerts in insertion order.
func (q *Queue) Entries() []Entry {
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out
}

// DrainTimers stops every expiry timer. Must run on teardown so no
// callback fires against a dead session.
func (q *Queue) DrainTimers() {
	for id, timer := range q.timers {
		timer.Stop()
		delete(q.timers, id)
	}
}

func (q *Queue) remove(id string) bool {
	if timer, ok := q.timers[id]; ok {
		timer.Stop()
		delete(q.timers, id)
	}
	for i, e := range q.entries {
		if e.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}
