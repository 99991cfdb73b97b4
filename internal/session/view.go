package session

import (
	"github.com/tbranch/campaign-sync/internal/alerts"
	"github.com/tbranch/campaign-sync/internal/music"
	"github.com/tbranch/campaign-sync/internal/trade"
	"github.com/tbranch/campaign-sync/pkg/types"
)

// View is a point-in-time copy of everything a consumer renders.
type View struct {
	State      ConnState
	Online     []string
	Trades     []trade.Session
	Prompts    []types.ImpersonationRequest
	Statuses   map[string]types.ImpersonationStatus
	Alerts     []alerts.Entry
	AlertError string
	Music      *music.State
	Pending    int
}

// View snapshots the session state through the loop, so it never races
// a frame being handled. After teardown it reports an idle session.
func (s *Session) View() View {
	reply := make(chan View, 1)
	if !s.post(viewReq{reply: reply}) {
		return View{State: StateIdle}
	}
	select {
	case v := <-reply:
		return v
	case <-s.done:
		return View{State: StateIdle}
	}
}

func (s *Session) view() View {
	return View{
		State:      s.state,
		Online:     s.online.Online(),
		Trades:     s.trades.Sessions(),
		Prompts:    s.calls.Prompts(),
		Statuses:   s.calls.Statuses(),
		Alerts:     s.alerts.Entries(),
		AlertError: s.alerts.Error(),
		Music:      s.player.Current(),
		Pending:    s.calls.Pending(),
	}
}
