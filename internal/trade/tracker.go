package trade

// Session is one trade negotiation as last reported by the server.
// Fields carries whatever the server sent for this trade so far; each
// frame overlays only the keys it actually contains.
type Session struct {
	ID          string
	LastEvent   string
	Reason      string
	InitiatedBy string
	Fields      map[string]any
}

// Tracker merges partial trade snapshots keyed by trade id.
//
// Not safe for concurrent use; the session loop owns it.
type Tracker struct {
	sessions map[string]*Session
	order    []string
}

func NewTracker() *Tracker {
	return &Tracker{sessions: make(map[string]*Session)}
}

// Apply upserts the trade carried by one frame. The payload is
// shallow-merged over the existing record; lastEvent, reason and
// initiatedBy are overlaid from the frame envelope. Returns the merged
// session, or nil when the payload has no usable id.
func (t *Tracker) Apply(event string, payload map[string]any, reason, initiatedBy string) *Session {
	id, _ := payload["id"].(string)
	if id == "" {
		return nil
	}

	s, ok := t.sessions[id]
	if !ok {
		s = &Session{ID: id, Fields: make(map[string]any, len(payload))}
		t.sessions[id] = s
		t.order = append(t.order, id)
	}
	for k, v := range payload {
		s.Fields[k] = v
	}
	s.LastEvent = event
	s.Reason = reason
	s.InitiatedBy = initiatedBy
	return s
}

// Dismiss removes the trade locally. Reports whether it existed.
func (t *Tracker) Dismiss(id string) bool {
	if _, ok := t.sessions[id]; !ok {
		return false
	}
	delete(t.sessions, id)
	for i, v := range t.order {
		if v == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns a copy of the trade, if tracked.
func (t *Tracker) Get(id string) (Session, bool) {
	s, ok := t.sessions[id]
	if !ok {
		return Session{}, false
	}
	return s.clone(), true
}

// Sessions returns copies of all tracked trades in first-seen order.
func (t *Tracker) Sessions() []Session {
	out := make([]Session, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.sessions[id].clone())
	}
	return out
}

func (s *Session) clone() Session {
	cp := *s
	cp.Fields = make(map[string]any, len(s.Fields))
	for k, v := range s.Fields {
		cp.Fields[k] = v
	}
	return cp
}
