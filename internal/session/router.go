package session

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/tbranch/campaign-sync/pkg/types"
)

// handleFrame decodes and dispatches one inbound frame. Everything
// here runs to completion on the loop before the next frame is seen.
// Malformed, unknown and out-of-scope frames are dropped, never fatal.
func (s *Session) handleFrame(data []byte) {
	var f types.ServerFrame
	if err := json.Unmarshal(data, &f); err != nil {
		s.log.Warn("dropping malformed frame", zap.Error(err))
		return
	}

	switch f.Type {
	case types.SvWelcome:
		s.log.Debug("welcome", zap.String("gameId", s.gameID))

	case types.SvStoryUpdate:
		if !s.inScope(f.Type, f.GameID) {
			return
		}
		s.story.Publish(f.Snapshot)

	case types.SvImpersonationPrompt:
		if f.Request == nil || !s.inScope(f.Type, f.Request.GameID) {
			return
		}
		s.calls.UpsertPrompt(*f.Request)

	case types.SvImpersonationStatus:
		if !s.inScope(f.Type, f.GameID) {
			return
		}
		st := types.ImpersonationStatus{
			RequestID: f.RequestID,
			Status:    f.Status,
			Message:   f.Message,
		}
		if f.Nonce != "" {
			s.calls.Resolve(f.Nonce, st)
		}
		s.calls.RecordStatus(st)

	case types.SvTradeInvite, types.SvTradeActive, types.SvTradeUpdate,
		types.SvTradeCancelled, types.SvTradeCompleted:
		s.handleTradeFrame(f)

	case types.SvTradeError:
		s.log.Warn("trade error", zap.String("error", f.Error))

	case types.SvMusicState:
		if !s.inScope(f.Type, f.GameID) {
			return
		}
		s.player.Sync(f.Music)

	case types.SvMusicError:
		if !s.inScope(f.Type, f.GameID) {
			return
		}
		s.log.Warn("music error", zap.String("error", f.Error))

	case types.SvAlertShow:
		if !s.inScope(f.Type, f.GameID) {
			return
		}
		s.alerts.Show(f.Alert, time.Now())

	case types.SvAlertError:
		if !s.inScope(f.Type, f.GameID) {
			return
		}
		s.alerts.SetError(f.Error)

	case types.SvGameUpdate:
		if !s.inScope(f.Type, f.GameID) {
			return
		}
		s.reloads.Trigger()

	case types.SvGameDeleted:
		if !s.inScope(f.Type, f.GameID) {
			return
		}
		s.onGameDeleted(s.gameID)

	case types.SvPresenceState:
		if !s.inScope(f.Type, f.GameID) {
			return
		}
		var entries []any
		if err := json.Unmarshal(f.Online, &entries); err != nil {
			s.log.Warn("bad presence list", zap.Error(err))
			return
		}
		s.online.Replace(entries)

	case types.SvPresenceUpdate:
		if !s.inScope(f.Type, f.GameID) || f.UserID == "" {
			return
		}
		var on bool
		if err := json.Unmarshal(f.Online, &on); err != nil {
			s.log.Warn("bad presence flag", zap.Error(err))
			return
		}
		s.online.Set(f.UserID, on)

	case types.SvError:
		s.log.Warn("server error", zap.String("error", f.Error))

	default:
		s.log.Debug("ignoring unknown frame", zap.String("type", f.Type))
	}
}

// handleTradeFrame merges one trade snapshot. The scoping id lives
// inside the trade payload for these frames.
func (s *Session) handleTradeFrame(f types.ServerFrame) {
	if f.Trade == nil {
		return
	}
	gameID, _ := f.Trade["gameId"].(string)
	if !s.inScope(f.Type, gameID) {
		return
	}
	if s.trades.Apply(f.Type, f.Trade, f.Reason, f.InitiatedBy) == nil {
		s.log.Warn("trade frame without id", zap.String("type", f.Type))
		return
	}
	if f.Type == types.SvTradeCompleted {
		s.reloads.Trigger()
	}
}

func (s *Session) inScope(frameType, gameID string) bool {
	if gameID == s.gameID {
		return true
	}
	s.log.Debug("dropping out-of-scope frame",
		zap.String("type", frameType),
		zap.String("gameId", gameID))
	return false
}
