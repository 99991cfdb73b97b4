package session

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/tbranch/campaign-sync/internal/rpc"
	"github.com/tbranch/campaign-sync/pkg/types"
)

// Impersonate asks targetUserID's player for permission to speak as
// them. The returned channel settles exactly once: with the final
// status frame, or with ErrConnectionClosed if the connection drops
// first. Fails immediately when the target is empty or the transport
// is down; no frame is sent in that case.
func (s *Session) Impersonate(targetUserID, content string) (<-chan rpc.Result, error) {
	reply := make(chan impersonateReply, 1)
	if !s.post(impersonateReq{target: targetUserID, content: content, reply: reply}) {
		return nil, rpc.ErrConnectionClosed
	}
	select {
	case r := <-reply:
		return r.result, r.err
	case <-s.done:
		return nil, rpc.ErrConnectionClosed
	}
}

// RespondImpersonation answers a prompt. Local state changes only when
// the follow-up status frame arrives.
func (s *Session) RespondImpersonation(requestID string, approve bool) error {
	reply := make(chan error, 1)
	if !s.post(respondReq{requestID: requestID, approve: approve, reply: reply}) {
		return rpc.ErrConnectionClosed
	}
	return s.awaitErr(reply)
}

// StartTrade opens a negotiation with another player. Fire-and-forget;
// send failures are logged, not returned.
func (s *Session) StartTrade(partnerID, note string) {
	if partnerID == "" {
		s.log.Warn("trade.start without partner")
		return
	}
	s.post(tradeOp{frame: types.ClientFrame{
		Type:      types.CmTradeStart,
		GameID:    s.gameID,
		PartnerID: partnerID,
		Note:      note,
	}})
}

// RespondTrade accepts or declines an invite.
func (s *Session) RespondTrade(tradeID string, accept bool) {
	if !s.checkTradeID(types.CmTradeRespond, tradeID) {
		return
	}
	s.post(tradeOp{frame: types.ClientFrame{
		Type:    types.CmTradeRespond,
		TradeID: tradeID,
		Accept:  &accept,
	}})
}

// UpdateTradeOffer replaces this side's offered items.
func (s *Session) UpdateTradeOffer(tradeID string, items []types.TradeItem) {
	if !s.checkTradeID(types.CmTradeUpdate, tradeID) {
		return
	}
	s.post(tradeOp{frame: types.ClientFrame{
		Type:    types.CmTradeUpdate,
		TradeID: tradeID,
		Items:   items,
	}})
}

func (s *Session) ConfirmTrade(tradeID string)   { s.simpleTradeOp(types.CmTradeConfirm, tradeID) }
func (s *Session) UnconfirmTrade(tradeID string) { s.simpleTradeOp(types.CmTradeUnconfirm, tradeID) }
func (s *Session) CancelTrade(tradeID string)    { s.simpleTradeOp(types.CmTradeCancel, tradeID) }

// DismissTrade drops the trade locally. Nothing goes over the wire.
func (s *Session) DismissTrade(tradeID string) {
	s.post(tradeDismiss{id: tradeID})
}

// PlayMusic starts a catalog track for the whole game.
func (s *Session) PlayMusic(trackID string) error {
	if s.gameID == "" {
		return ErrNoGame
	}
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return ErrEmptyTrack
	}
	reply := make(chan error, 1)
	if !s.post(musicPlay{trackID: trackID, reply: reply}) {
		return rpc.ErrConnectionClosed
	}
	return s.awaitErr(reply)
}

// StopMusic silences the game. Without a bound game there is nothing
// to silence, so it returns nil and sends no frame.
func (s *Session) StopMusic() error {
	if s.gameID == "" {
		return nil
	}
	reply := make(chan error, 1)
	if !s.post(musicStop{reply: reply}) {
		return rpc.ErrConnectionClosed
	}
	return s.awaitErr(reply)
}

// SyncMusic applies a snapshot obtained out of band, e.g. from the
// initial game load. Validated exactly like an inbound music:state.
func (s *Session) SyncMusic(info *types.MusicInfo) {
	s.post(musicSync{info: info})
}

// SendAlert broadcasts a notice to everyone in the game.
func (s *Session) SendAlert(message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	reply := make(chan error, 1)
	if !s.post(alertSend{message: message, reply: reply}) {
		return rpc.ErrConnectionClosed
	}
	return s.awaitErr(reply)
}

// DismissAlert removes an alert before its timer expires.
func (s *Session) DismissAlert(id string) {
	s.post(alertDismiss{id: id})
}

// SubscribeStory registers fn for narrative snapshots. The latest
// snapshot, if any, is replayed before SubscribeStory returns. fn runs
// on the session loop; keep it fast. The returned cancel is idempotent.
func (s *Session) SubscribeStory(fn func(json.RawMessage)) (func(), error) {
	reply := make(chan func(), 1)
	if !s.post(storySub{fn: fn, reply: reply}) {
		return nil, rpc.ErrConnectionClosed
	}
	select {
	case dispose := <-reply:
		return func() { s.post(storyUnsub{dispose: dispose}) }, nil
	case <-s.done:
		return nil, rpc.ErrConnectionClosed
	}
}

func (s *Session) simpleTradeOp(op, tradeID string) {
	if !s.checkTradeID(op, tradeID) {
		return
	}
	s.post(tradeOp{frame: types.ClientFrame{Type: op, TradeID: tradeID}})
}

func (s *Session) checkTradeID(op, tradeID string) bool {
	if tradeID == "" {
		s.log.Warn("trade op without id", zap.String("op", op))
		return false
	}
	return true
}

func (s *Session) awaitErr(reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return rpc.ErrConnectionClosed
	}
}
