package story

import "encoding/json"

// Topic caches the latest narrative snapshot and fans it out to
// subscribers. A late subscriber is replayed the cached snapshot
// immediately, the same way a client joining a lobby gets the current
// state before any deltas.
//
// Not safe for concurrent use; the session loop owns it.
type Topic struct {
	last   json.RawMessage
	seen   bool
	nextID int
	subs   map[int]func(json.RawMessage)
}

func NewTopic() *Topic {
	return &Topic{subs: make(map[int]func(json.RawMessage))}
}

// Publish stores snap as the latest snapshot and notifies every
// subscriber. Latest write wins.
func (t *Topic) Publish(snap json.RawMessage) {
	t.last = snap
	t.seen = true
	for _, fn := range t.subs {
		fn(snap)
	}
}

// Subscribe registers fn and replays the cached snapshot to it, if any.
// The returned disposer removes the subscription and is safe to call
// more than once.
func (t *Topic) Subscribe(fn func(json.RawMessage)) func() {
	id := t.nextID
	t.nextID++
	t.subs[id] = fn
	if t.seen {
		fn(t.last)
	}
	return func() { delete(t.subs, id) }
}

// Latest returns the cached snapshot and whether one has been published.
func (t *Topic) Latest() (json.RawMessage, bool) {
	return t.last, t.seen
}

// Len reports the number of live subscribers.
func (t *Topic) Len() int { return len(t.subs) }
