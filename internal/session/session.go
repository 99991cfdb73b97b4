// Package session owns the live connection to a campaign game and the
// state machines layered on top of it: story snapshots, impersonation
// calls, trade negotiations, presence, alerts, music and the refresh
// coalescer. One Session per active game; tear it down before creating
// another for a different game.
//
// All state is owned by a single goroutine fed through an inbox of
// typed messages, so frames are handled one at a time, start to finish,
// and no locks are needed.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tbranch/campaign-sync/internal/alerts"
	"github.com/tbranch/campaign-sync/internal/catalog"
	"github.com/tbranch/campaign-sync/internal/music"
	"github.com/tbranch/campaign-sync/internal/presence"
	"github.com/tbranch/campaign-sync/internal/refresh"
	"github.com/tbranch/campaign-sync/internal/rpc"
	"github.com/tbranch/campaign-sync/internal/story"
	"github.com/tbranch/campaign-sync/internal/trade"
	"github.com/tbranch/campaign-sync/internal/ws"
	"github.com/tbranch/campaign-sync/pkg/types"
)

var (
	ErrNotConnected   = errors.New("not_connected")
	ErrNoGame         = errors.New("no active game")
	ErrEmptyTarget    = errors.New("target user id is empty")
	ErrEmptyRequestID = errors.New("request id is empty")
	ErrEmptyTrack     = errors.New("track id is empty")
	ErrEmptyMessage   = errors.New("message is empty")
)

// ConnState is the transport lifecycle state.
type ConnState string

const (
	StateIdle         ConnState = "idle"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateDisconnected ConnState = "disconnected"
)

const (
	defaultReconnectDelay = 2 * time.Second
	defaultWriteTimeout   = 3 * time.Second
)

// Options configures a Session. URL and Catalog are required in
// practice; everything else has a usable default.
type Options struct {
	URL     string
	Dialer  ws.Dialer
	Logger  *zap.Logger
	Catalog catalog.Resolver

	// ReconnectDelay is the fixed wait before re-dialing. No backoff.
	ReconnectDelay time.Duration
	WriteTimeout   time.Duration
	AlertTTL       time.Duration

	// RefreshGame reloads the full game from the data layer. Called
	// through the coalescer, never more than once concurrently.
	RefreshGame func(ctx context.Context, gameID string) error

	// OnGameDeleted runs when the server reports the game gone.
	OnGameDeleted func(gameID string)

	// OnStateChange observes transport state transitions. Runs on the
	// session loop; keep it fast.
	OnStateChange func(ConnState)
}

// Msg is a message for the session loop.
type Msg interface{ isSessionMsg() }

type connRequested struct{}

type connOpened struct {
	gen  int
	conn ws.Conn
}

type connClosed struct {
	gen int
	err error
}

type frameRecv struct {
	gen  int
	data []byte
}

type impersonateReply struct {
	result <-chan rpc.Result
	err    error
}

type impersonateReq struct {
	target  string
	content string
	reply   chan impersonateReply
}

type respondReq struct {
	requestID string
	approve   bool
	reply     chan error
}

type tradeOp struct{ frame types.ClientFrame }

type tradeDismiss struct{ id string }

type musicPlay struct {
	trackID string
	reply   chan error
}

type musicStop struct{ reply chan error }

type musicSync struct{ info *types.MusicInfo }

type alertSend struct {
	message string
	reply   chan error
}

type alertDismiss struct{ id string }

type alertExpired struct {
	id  string
	gen uint64
}

type refreshDone struct{}

type storySub struct {
	fn    func(json.RawMessage)
	reply chan func()
}

type storyUnsub struct{ dispose func() }

type viewReq struct{ reply chan View }

func (connRequested) isSessionMsg()  {}
func (connOpened) isSessionMsg()     {}
func (connClosed) isSessionMsg()     {}
func (frameRecv) isSessionMsg()      {}
func (impersonateReq) isSessionMsg() {}
func (respondReq) isSessionMsg()     {}
func (tradeOp) isSessionMsg()        {}
func (tradeDismiss) isSessionMsg()   {}
func (musicPlay) isSessionMsg()      {}
func (musicStop) isSessionMsg()      {}
func (musicSync) isSessionMsg()      {}
func (alertSend) isSessionMsg()      {}
func (alertDismiss) isSessionMsg()   {}
func (alertExpired) isSessionMsg()   {}
func (refreshDone) isSessionMsg()    {}
func (storySub) isSessionMsg()       {}
func (storyUnsub) isSessionMsg()     {}
func (viewReq) isSessionMsg()        {}

// Session is the realtime sync client for one game.
type Session struct {
	gameID         string
	url            string
	dialer         ws.Dialer
	log            *zap.Logger
	reconnectDelay time.Duration
	writeTimeout   time.Duration
	refreshGame    func(ctx context.Context, gameID string) error
	onGameDeleted  func(gameID string)
	onStateChange  func(ConnState)

	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan Msg
	done   chan struct{}

	// Everything below is owned by the loop goroutine.
	state     ConnState
	conn      ws.Conn
	gen       int
	reconnect *time.Timer

	story   *story.Topic
	calls   *rpc.Table
	trades  *trade.Tracker
	online  *presence.Tracker
	alerts  *alerts.Queue
	player  *music.Player
	reloads *refresh.Coalescer
}

// New creates a Session bound to gameID and starts its loop. The
// transport stays closed until Connect.
func New(parent context.Context, gameID string, opts Options) *Session {
	ctx, cancel := context.WithCancel(parent)

	s := &Session{
		gameID:         gameID,
		url:            opts.URL,
		dialer:         opts.Dialer,
		log:            opts.Logger,
		reconnectDelay: opts.ReconnectDelay,
		writeTimeout:   opts.WriteTimeout,
		refreshGame:    opts.RefreshGame,
		onGameDeleted:  opts.OnGameDeleted,
		onStateChange:  opts.OnStateChange,
		ctx:            ctx,
		cancel:         cancel,
		inbox:          make(chan Msg, 64),
		done:           make(chan struct{}),
		state:          StateIdle,
		story:          story.NewTopic(),
		calls:          rpc.NewTable(),
		trades:         trade.NewTracker(),
		online:         presence.NewTracker(),
	}
	if s.dialer == nil {
		s.dialer = ws.NewDialer()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.reconnectDelay <= 0 {
		s.reconnectDelay = defaultReconnectDelay
	}
	if s.writeTimeout <= 0 {
		s.writeTimeout = defaultWriteTimeout
	}
	if s.refreshGame == nil {
		s.refreshGame = func(context.Context, string) error { return nil }
	}
	if s.onGameDeleted == nil {
		s.onGameDeleted = func(string) {}
	}

	cat := opts.Catalog
	if cat == nil {
		cat = catalog.NewStatic()
	}
	s.player = music.NewPlayer(cat)
	s.alerts = alerts.NewQueue(opts.AlertTTL, func(id string, gen uint64) {
		s.post(alertExpired{id: id, gen: gen})
	})
	s.reloads = refresh.NewCoalescer(func() { go s.runRefresh() })

	go s.loop()
	return s
}

// GameID returns the game this session is bound to.
func (s *Session) GameID() string { return s.gameID }

// Connect opens the transport. Safe to call while already connected;
// the request is ignored in that case.
func (s *Session) Connect() {
	s.post(connRequested{})
}

// Teardown closes the transport, cancels every timer, rejects pending
// impersonation calls and stops the loop. Idempotent.
func (s *Session) Teardown() {
	s.cancel()
	<-s.done
}

// post delivers m to the loop unless the session is shut down.
func (s *Session) post(m Msg) bool {
	select {
	case s.inbox <- m:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return
		case m := <-s.inbox:
			s.handle(m)
		}
	}
}

func (s *Session) handle(m Msg) {
	switch msg := m.(type) {
	case connRequested:
		if s.state == StateConnected || s.state == StateConnecting {
			return
		}
		s.setState(StateConnecting)
		s.gen++
		go s.dial(s.gen)

	case connOpened:
		if msg.gen != s.gen {
			_ = msg.conn.Close()
			return
		}
		s.conn = msg.conn
		s.setState(StateConnected)
		s.sendHandshake()
		go s.readLoop(msg.gen, msg.conn)

	case connClosed:
		s.handleClosed(msg)

	case frameRecv:
		if msg.gen != s.gen {
			return
		}
		s.handleFrame(msg.data)

	case impersonateReq:
		msg.reply <- s.impersonate(msg.target, msg.content)

	case respondReq:
		msg.reply <- s.respond(msg.requestID, msg.approve)

	case tradeOp:
		if err := s.send(msg.frame); err != nil {
			s.log.Warn("trade op failed",
				zap.String("op", msg.frame.Type), zap.Error(err))
		}

	case tradeDismiss:
		s.trades.Dismiss(msg.id)

	case musicPlay:
		msg.reply <- s.send(types.ClientFrame{
			Type:    types.CmMusicPlay,
			GameID:  s.gameID,
			TrackID: msg.trackID,
		})

	case musicStop:
		msg.reply <- s.send(types.ClientFrame{
			Type:   types.CmMusicStop,
			GameID: s.gameID,
		})

	case musicSync:
		s.player.Sync(msg.info)

	case alertSend:
		msg.reply <- s.send(types.ClientFrame{
			Type:    types.CmAlertBroadcast,
			GameID:  s.gameID,
			Message: msg.message,
		})

	case alertDismiss:
		s.alerts.Dismiss(msg.id)

	case alertExpired:
		s.alerts.Expire(msg.id, msg.gen)

	case refreshDone:
		s.reloads.Settle()

	case storySub:
		msg.reply <- s.story.Subscribe(msg.fn)

	case storyUnsub:
		msg.dispose()

	case viewReq:
		msg.reply <- s.view()
	}
}

func (s *Session) dial(gen int) {
	conn, err := s.dialer.Dial(s.ctx, s.url)
	if err != nil {
		s.post(connClosed{gen: gen, err: err})
		return
	}
	if !s.post(connOpened{gen: gen, conn: conn}) {
		_ = conn.Close()
	}
}

func (s *Session) readLoop(gen int, conn ws.Conn) {
	for {
		data, err := conn.Read(s.ctx)
		if err != nil {
			s.post(connClosed{gen: gen, err: err})
			return
		}
		if !s.post(frameRecv{gen: gen, data: data}) {
			return
		}
	}
}

func (s *Session) handleClosed(msg connClosed) {
	if msg.gen != s.gen || s.state == StateIdle {
		return
	}
	if msg.err != nil {
		s.log.Info("connection lost",
			zap.String("gameId", s.gameID), zap.Error(msg.err))
	}
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.setState(StateDisconnected)
	s.calls.RejectAll(rpc.ErrConnectionClosed)
	s.online.Clear()

	if s.reconnect != nil {
		s.reconnect.Stop()
	}
	s.reconnect = time.AfterFunc(s.reconnectDelay, func() {
		s.post(connRequested{})
	})
}

// sendHandshake declares channel interest; required after every
// (re)connect because the server keeps no subscription state across
// connections.
func (s *Session) sendHandshake() {
	for _, ch := range types.Channels {
		err := s.send(types.ClientFrame{
			Type:    types.CmSubscribe,
			Channel: ch,
			GameID:  s.gameID,
		})
		if err != nil {
			s.log.Warn("subscribe failed",
				zap.String("channel", ch), zap.Error(err))
		}
	}
}

// send writes one frame. No buffering: callers get ErrNotConnected when
// the transport is down.
func (s *Session) send(frame types.ClientFrame) error {
	if s.state != StateConnected || s.conn == nil {
		return ErrNotConnected
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.writeTimeout)
	defer cancel()
	return s.conn.Write(ctx, data)
}

func (s *Session) impersonate(target, content string) impersonateReply {
	if target == "" {
		return impersonateReply{err: ErrEmptyTarget}
	}
	if s.state != StateConnected {
		return impersonateReply{err: ErrNotConnected}
	}
	nonce := uuid.NewString()
	ch := s.calls.Register(nonce)
	err := s.send(types.ClientFrame{
		Type:         types.CmImpersonationRequest,
		GameID:       s.gameID,
		TargetUserID: target,
		Content:      content,
		Nonce:        nonce,
	})
	if err != nil {
		s.calls.Unregister(nonce)
		return impersonateReply{err: err}
	}
	return impersonateReply{result: ch}
}

func (s *Session) respond(requestID string, approve bool) error {
	if requestID == "" {
		return ErrEmptyRequestID
	}
	return s.send(types.ClientFrame{
		Type:      types.CmImpersonationRespond,
		RequestID: requestID,
		Approve:   &approve,
	})
}

func (s *Session) runRefresh() {
	// Teardown must not cancel a reload already under way; a stale
	// result is simply discarded.
	if err := s.refreshGame(context.WithoutCancel(s.ctx), s.gameID); err != nil {
		s.log.Warn("game refresh failed",
			zap.String("gameId", s.gameID), zap.Error(err))
	}
	s.post(refreshDone{})
}

func (s *Session) setState(st ConnState) {
	if s.state == st {
		return
	}
	s.state = st
	if s.onStateChange != nil {
		s.onStateChange(st)
	}
}

func (s *Session) shutdown() {
	if s.reconnect != nil {
		s.reconnect.Stop()
		s.reconnect = nil
	}
	s.alerts.DrainTimers()
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.calls.RejectAll(rpc.ErrConnectionClosed)
	s.online.Clear()
	s.state = StateIdle
}
