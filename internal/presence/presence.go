package presence

import "sort"

// Tracker keeps the set of users currently online in the active game.
//
// Not safe for concurrent use; the session loop owns it.
type Tracker struct {
	online map[string]bool
}

func NewTracker() *Tracker {
	return &Tracker{online: make(map[string]bool)}
}

// Replace swaps the whole set for the ids in a presence:state frame.
// Entries that are not non-empty strings are ignored.
func (t *Tracker) Replace(entries []any) {
	next := make(map[string]bool, len(entries))
	for _, e := range entries {
		id, ok := e.(string)
		if !ok || id == "" {
			continue
		}
		next[id] = true
	}
	t.online = next
}

// Set applies one presence:update: adds or removes exactly one user.
// Empty ids are ignored.
func (t *Tracker) Set(userID string, online bool) {
	if userID == "" {
		return
	}
	if online {
		t.online[userID] = true
		return
	}
	delete(t.online, userID)
}

// Clear empties the set, e.g. when the connection drops.
func (t *Tracker) Clear() {
	t.online = make(map[string]bool)
}

func (t *Tracker) IsOnline(userID string) bool { return t.online[userID] }

func (t *Tracker) Len() int { return len(t.online) }

// Online returns the user ids sorted for stable output.
func (t *Tracker) Online() []string {
	ids := make([]string, 0, len(t.online))
	for id := range t.online {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
