package music

import (
	"time"

	"github.com/tbranch/campaign-sync/internal/catalog"
	"github.com/tbranch/campaign-sync/pkg/types"
)

// State is the currently playing track, nil when nothing plays.
type State struct {
	TrackID   string
	Title     string
	UpdatedAt time.Time
}

// Player holds the single music snapshot for a session. Any snapshot
// referencing a track the catalog cannot resolve clears the state
// rather than leaving a stale track behind.
//
// Not safe for concurrent use; the session loop owns it.
type Player struct {
	catalog catalog.Resolver
	current *State
}

func NewPlayer(c catalog.Resolver) *Player {
	return &Player{catalog: c}
}

// Sync validates and applies a snapshot. A nil snapshot, an empty track
// id, or an id missing from the catalog all normalize to "no music".
// Returns true when the snapshot resolved.
func (p *Player) Sync(info *types.MusicInfo) bool {
	if info == nil || info.TrackID == "" {
		p.current = nil
		return false
	}
	track, ok := p.catalog.Track(info.TrackID)
	if !ok {
		p.current = nil
		return false
	}
	at := time.Now()
	if info.UpdatedAt > 0 {
		at = time.UnixMilli(info.UpdatedAt)
	}
	p.current = &State{TrackID: track.ID, Title: track.Title, UpdatedAt: at}
	return true
}

// Current returns the playing track, nil when silent.
func (p *Player) Current() *State {
	if p.current == nil {
		return nil
	}
	cp := *p.current
	return &cp
}
