package devserver

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbranch/campaign-sync/internal/catalog"
	"github.com/tbranch/campaign-sync/pkg/types"
)

// recvFrame reads one frame from a client outbox with a timeout so
// tests never hang.
func recvFrame(t *testing.T, ch <-chan []byte, within time.Duration) types.ServerFrame {
	t.Helper()
	select {
	case data, ok := <-ch:
		if !ok {
			t.Fatal("outbox closed unexpectedly")
		}
		var f types.ServerFrame
		require.NoError(t, json.Unmarshal(data, &f))
		return f
	case <-time.After(within):
		t.Fatal("timed out waiting for frame")
		return types.ServerFrame{}
	}
}

func recvNoFrame(t *testing.T, ch <-chan []byte, within time.Duration) {
	t.Helper()
	select {
	case data, ok := <-ch:
		if !ok {
			return
		}
		t.Fatalf("expected no frame, got: %s", data)
	case <-time.After(within):
	}
}

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, catalog.NewStatic(
		catalog.Track{ID: "velvet-room", Title: "Velvet Room"},
	), nil)
}

func joinClient(t *testing.T, h *Hub, gameID, clientID, userID string, channels ...string) chan []byte {
	t.Helper()
	out := make(chan []byte, 16)
	h.Inbox() <- Join{GameID: gameID, ClientID: clientID, UserID: userID, Outbox: out}

	f := recvFrame(t, out, time.Second)
	require.Equal(t, types.SvWelcome, f.Type)
	f = recvFrame(t, out, time.Second)
	require.Equal(t, types.SvPresenceState, f.Type)

	for _, ch := range channels {
		h.Inbox() <- FromClient{
			GameID: gameID, ClientID: clientID, UserID: userID,
			Frame: types.ClientFrame{Type: types.CmSubscribe, Channel: ch, GameID: gameID},
		}
	}
	return out
}

func TestHub_JoinSendsWelcomeAndPresence(t *testing.T) {
	h := newTestHub(t)

	a := joinClient(t, h, "g1", "c1", "alice", "game")
	b := joinClient(t, h, "g1", "c2", "bob", "game")

	// alice subscribed to "game", so bob's arrival reaches her.
	f := recvFrame(t, a, time.Second)
	assert.Equal(t, types.SvPresenceUpdate, f.Type)
	assert.Equal(t, "bob", f.UserID)
	assert.Equal(t, "true", string(f.Online))

	_ = b
}

func TestHub_TradeFlowFansOutToTradeSubscribers(t *testing.T) {
	h := newTestHub(t)

	a := joinClient(t, h, "g1", "c1", "alice", "trade")
	b := joinClient(t, h, "g1", "c2", "bob", "trade")
	other := joinClient(t, h, "g2", "c3", "carol", "trade")

	h.Inbox() <- FromClient{
		GameID: "g1", ClientID: "c1", UserID: "alice",
		Frame: types.ClientFrame{
			Type: types.CmTradeStart, GameID: "g1",
			PartnerID: "bob", Note: "bead for macca",
		},
	}

	for _, out := range []chan []byte{a, b} {
		f := recvFrame(t, out, time.Second)
		require.Equal(t, types.SvTradeInvite, f.Type)
		assert.Equal(t, "alice", f.InitiatedBy)
		assert.Equal(t, "g1", f.Trade["gameId"])
		assert.Equal(t, "bob", f.Trade["partnerId"])
		assert.NotEmpty(t, f.Trade["id"])
	}

	// Different game, nothing heard.
	recvNoFrame(t, other, 100*time.Millisecond)
}

func TestHub_ImpersonationPendingAckAndPromptFanout(t *testing.T) {
	h := newTestHub(t)

	a := joinClient(t, h, "g1", "c1", "alice", "story")
	b := joinClient(t, h, "g1", "c2", "bob", "story")

	h.Inbox() <- FromClient{
		GameID: "g1", ClientID: "c1", UserID: "alice",
		Frame: types.ClientFrame{
			Type: types.CmImpersonationRequest, GameID: "g1",
			TargetUserID: "bob", Content: "kneel", Nonce: "n-1",
		},
	}

	// Both story subscribers get the prompt; only the requester gets
	// the nonce-bearing pending ack.
	var sawPrompt, sawAck bool
	for i := 0; i < 2; i++ {
		f := recvFrame(t, a, time.Second)
		switch f.Type {
		case types.SvImpersonationPrompt:
			sawPrompt = true
			require.NotNil(t, f.Request)
			assert.Equal(t, "alice", f.Request.FromUserID)
		case types.SvImpersonationStatus:
			sawAck = true
			assert.Equal(t, "n-1", f.Nonce)
			assert.Equal(t, "pending", f.Status)
		}
	}
	assert.True(t, sawPrompt)
	assert.True(t, sawAck)

	f := recvFrame(t, b, time.Second)
	require.Equal(t, types.SvImpersonationPrompt, f.Type)
	assert.Empty(t, f.Nonce)
}

func TestHub_MusicPlayValidatesCatalog(t *testing.T) {
	h := newTestHub(t)

	a := joinClient(t, h, "g1", "c1", "alice", "game")

	h.Inbox() <- FromClient{
		GameID: "g1", ClientID: "c1", UserID: "alice",
		Frame: types.ClientFrame{Type: types.CmMusicPlay, GameID: "g1", TrackID: "nope"},
	}
	f := recvFrame(t, a, time.Second)
	assert.Equal(t, types.SvMusicError, f.Type)

	h.Inbox() <- FromClient{
		GameID: "g1", ClientID: "c1", UserID: "alice",
		Frame: types.ClientFrame{Type: types.CmMusicPlay, GameID: "g1", TrackID: "velvet-room"},
	}
	f = recvFrame(t, a, time.Second)
	require.Equal(t, types.SvMusicState, f.Type)
	require.NotNil(t, f.Music)
	assert.Equal(t, "velvet-room", f.Music.TrackID)
}

func TestHub_LeaveBroadcastsOfflineAndEmptyRoomIsRemoved(t *testing.T) {
	h := newTestHub(t)

	a := joinClient(t, h, "g1", "c1", "alice", "game")
	_ = joinClient(t, h, "g1", "c2", "bob", "game")

	// Drain bob's arrival on alice's outbox.
	f := recvFrame(t, a, time.Second)
	require.Equal(t, types.SvPresenceUpdate, f.Type)

	h.Inbox() <- Leave{GameID: "g1", ClientID: "c2"}
	f = recvFrame(t, a, time.Second)
	assert.Equal(t, types.SvPresenceUpdate, f.Type)
	assert.Equal(t, "bob", f.UserID)
	assert.Equal(t, "false", string(f.Online))

	h.Inbox() <- Leave{GameID: "g1", ClientID: "c1"}

	reply := make(chan Stats, 1)
	h.Inbox() <- GetStats{Reply: reply}
	s := <-reply
	assert.Equal(t, 0, s.Rooms)
	assert.Equal(t, 0, s.Clients)
}
