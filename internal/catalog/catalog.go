// Package catalog is the boundary to the known-track library. The real
// catalog lives in the campaign backend; the session only needs to
// resolve ids before trusting a music snapshot.
package catalog

// Track is one playable background track.
type Track struct {
	ID    string
	Title string
}

// Resolver looks up tracks by id.
type Resolver interface {
	Track(id string) (Track, bool)
}

// Static is an in-memory Resolver for tests and the dev server.
type Static struct {
	tracks map[string]Track
}

func NewStatic(tracks ...Track) *Static {
	s := &Static{tracks: make(map[string]Track, len(tracks))}
	for _, tr := range tracks {
		s.tracks[tr.ID] = tr
	}
	return s
}

func (s *Static) Track(id string) (Track, bool) {
	tr, ok := s.tracks[id]
	return tr, ok
}
