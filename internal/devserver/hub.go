// Package devserver is a relay for local development: it accepts
// campaign session clients, tracks per-game rooms and presence, and
// translates client operations into the broadcast frames the real
// backend would emit. It keeps no durable state.
package devserver

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tbranch/campaign-sync/internal/catalog"
	"github.com/tbranch/campaign-sync/pkg/types"
)

type HubMsg interface{ isHubMsg() }

type Join struct {
	GameID   string
	ClientID string
	UserID   string
	Outbox   chan []byte
}

type Leave struct {
	GameID   string
	ClientID string
}

type FromClient struct {
	GameID   string
	ClientID string
	UserID   string
	Frame    types.ClientFrame
}

type GetStats struct {
	Reply chan Stats
}

type ShutdownHub struct{}

func (Join) isHubMsg()        {}
func (Leave) isHubMsg()       {}
func (FromClient) isHubMsg()  {}
func (GetStats) isHubMsg()    {}
func (ShutdownHub) isHubMsg() {}

// Stats mirrors the current room bookkeeping, for tests and /stats.
type Stats struct {
	Rooms   int
	Clients int
}

type client struct {
	id       string
	userID   string
	outbox   chan []byte
	channels map[string]bool
}

type room struct {
	clients map[string]*client
}

// Hub owns every room. One goroutine, one inbox, run-to-completion per
// message.
type Hub struct {
	inbox   chan HubMsg
	rooms   map[string]*room
	tracks  catalog.Resolver
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewHub(parent context.Context, tracks catalog.Resolver, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if log == nil {
		log = zap.NewNop()
	}
	if tracks == nil {
		tracks = catalog.NewStatic()
	}
	h := &Hub{
		inbox:  make(chan HubMsg, 64),
		rooms:  make(map[string]*room),
		tracks: tracks,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case Join:
				h.join(msg)

			case Leave:
				h.leave(msg.GameID, msg.ClientID)

			case FromClient:
				h.fromClient(msg)

			case GetStats:
				s := Stats{Rooms: len(h.rooms)}
				for _, r := range h.rooms {
					s.Clients += len(r.clients)
				}
				msg.Reply <- s

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

func (h *Hub) join(msg Join) {
	r := h.rooms[msg.GameID]
	if r == nil {
		r = &room{clients: make(map[string]*client)}
		h.rooms[msg.GameID] = r
	}
	c := &client{
		id:       msg.ClientID,
		userID:   msg.UserID,
		outbox:   msg.Outbox,
		channels: make(map[string]bool),
	}
	r.clients[msg.ClientID] = c

	h.sendTo(c, types.ServerFrame{Type: types.SvWelcome})
	h.sendTo(c, h.presenceState(msg.GameID))
	h.broadcast(msg.GameID, "game", types.ServerFrame{
		Type:   types.SvPresenceUpdate,
		GameID: msg.GameID,
		UserID: msg.UserID,
		Online: json.RawMessage("true"),
	})
	h.log.Info("client joined",
		zap.String("gameId", msg.GameID), zap.String("userId", msg.UserID))
}

func (h *Hub) leave(gameID, clientID string) {
	r := h.rooms[gameID]
	if r == nil {
		return
	}
	c, ok := r.clients[clientID]
	if !ok {
		return
	}
	close(c.outbox)
	delete(r.clients, clientID)
	if len(r.clients) == 0 {
		delete(h.rooms, gameID)
		return
	}
	h.broadcast(gameID, "game", types.ServerFrame{
		Type:   types.SvPresenceUpdate,
		GameID: gameID,
		UserID: c.userID,
		Online: json.RawMessage("false"),
	})
}

func (h *Hub) fromClient(msg FromClient) {
	r := h.rooms[msg.GameID]
	if r == nil {
		return
	}
	c := r.clients[msg.ClientID]
	if c == nil {
		return
	}
	f := msg.Frame

	switch f.Type {
	case types.CmSubscribe:
		if f.Channel != "" {
			c.channels[f.Channel] = true
		}

	case types.CmImpersonationRequest:
		requestID := uuid.NewString()
		h.broadcast(msg.GameID, "story", types.ServerFrame{
			Type: types.SvImpersonationPrompt,
			Request: &types.ImpersonationRequest{
				ID:         requestID,
				GameID:     msg.GameID,
				FromUserID: msg.UserID,
				Content:    f.Content,
			},
		})
		h.sendTo(c, types.ServerFrame{
			Type:      types.SvImpersonationStatus,
			GameID:    msg.GameID,
			Nonce:     f.Nonce,
			RequestID: requestID,
			Status:    "pending",
		})

	case types.CmImpersonationRespond:
		status := "denied"
		if f.Approve != nil && *f.Approve {
			status = "approved"
		}
		h.broadcast(msg.GameID, "story", types.ServerFrame{
			Type:      types.SvImpersonationStatus,
			GameID:    msg.GameID,
			RequestID: f.RequestID,
			Status:    status,
		})

	case types.CmTradeStart:
		h.broadcast(msg.GameID, "trade", types.ServerFrame{
			Type: types.SvTradeInvite,
			Trade: map[string]any{
				"id":        uuid.NewString(),
				"gameId":    msg.GameID,
				"partnerId": f.PartnerID,
				"note":      f.Note,
			},
			InitiatedBy: msg.UserID,
		})

	case types.CmTradeRespond:
		if f.Accept != nil && *f.Accept {
			h.broadcast(msg.GameID, "trade", types.ServerFrame{
				Type:        types.SvTradeActive,
				Trade:       map[string]any{"id": f.TradeID, "gameId": msg.GameID},
				InitiatedBy: msg.UserID,
			})
			return
		}
		h.broadcast(msg.GameID, "trade", types.ServerFrame{
			Type:        types.SvTradeCancelled,
			Trade:       map[string]any{"id": f.TradeID, "gameId": msg.GameID},
			Reason:      "declined",
			InitiatedBy: msg.UserID,
		})

	case types.CmTradeUpdate:
		h.broadcast(msg.GameID, "trade", types.ServerFrame{
			Type: types.SvTradeUpdate,
			Trade: map[string]any{
				"id":     f.TradeID,
				"gameId": msg.GameID,
				"items":  f.Items,
			},
			InitiatedBy: msg.UserID,
		})

	case types.CmTradeConfirm, types.CmTradeUnconfirm:
		h.broadcast(msg.GameID, "trade", types.ServerFrame{
			Type: types.SvTradeUpdate,
			Trade: map[string]any{
				"id":        f.TradeID,
				"gameId":    msg.GameID,
				"confirmed": f.Type == types.CmTradeConfirm,
			},
			InitiatedBy: msg.UserID,
		})

	case types.CmTradeCancel:
		h.broadcast(msg.GameID, "trade", types.ServerFrame{
			Type:        types.SvTradeCancelled,
			Trade:       map[string]any{"id": f.TradeID, "gameId": msg.GameID},
			Reason:      "cancelled",
			InitiatedBy: msg.UserID,
		})

	case types.CmMusicPlay:
		if _, ok := h.tracks.Track(f.TrackID); !ok {
			h.sendTo(c, types.ServerFrame{
				Type:   types.SvMusicError,
				GameID: msg.GameID,
				Error:  "unknown track",
			})
			return
		}
		h.broadcast(msg.GameID, "game", types.ServerFrame{
			Type:   types.SvMusicState,
			GameID: msg.GameID,
			Music: &types.MusicInfo{
				TrackID:   f.TrackID,
				UpdatedAt: time.Now().UnixMilli(),
			},
		})

	case types.CmMusicStop:
		h.broadcast(msg.GameID, "game", types.ServerFrame{
			Type:   types.SvMusicState,
			GameID: msg.GameID,
		})

	case types.CmAlertBroadcast:
		h.broadcast(msg.GameID, "game", types.ServerFrame{
			Type:   types.SvAlertShow,
			GameID: msg.GameID,
			Alert: &types.AlertInfo{
				ID:         uuid.NewString(),
				Message:    f.Message,
				SenderName: msg.UserID,
				SenderID:   msg.UserID,
				IssuedAt:   time.Now().UnixMilli(),
			},
		})

	default:
		h.log.Debug("ignoring client frame", zap.String("type", f.Type))
	}
}

func (h *Hub) presenceState(gameID string) types.ServerFrame {
	r := h.rooms[gameID]
	ids := make([]string, 0, len(r.clients))
	for _, c := range r.clients {
		ids = append(ids, c.userID)
	}
	online, _ := json.Marshal(ids)
	return types.ServerFrame{
		Type:   types.SvPresenceState,
		GameID: gameID,
		Online: online,
	}
}

// broadcast fans a frame out to every room member subscribed to the
// channel. Clients with a full outbox are dropped, like any slow
// consumer.
func (h *Hub) broadcast(gameID, channel string, f types.ServerFrame) {
	r := h.rooms[gameID]
	if r == nil {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		h.log.Warn("marshal broadcast", zap.Error(err))
		return
	}
	for id, c := range r.clients {
		if !c.channels[channel] {
			continue
		}
		select {
		case c.outbox <- data:
		default:
			h.log.Warn("dropping slow client", zap.String("clientId", id))
			close(c.outbox)
			delete(r.clients, id)
		}
	}
}

func (h *Hub) sendTo(c *client, f types.ServerFrame) {
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	select {
	case c.outbox <- data:
	default:
	}
}

func (h *Hub) shutdown() {
	for gameID, r := range h.rooms {
		for id, c := range r.clients {
			close(c.outbox)
			delete(r.clients, id)
		}
		delete(h.rooms, gameID)
	}
	h.cancel()
}
