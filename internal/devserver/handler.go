package devserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tbranch/campaign-sync/pkg/types"
)

// Routes builds the dev server's HTTP surface.
func Routes(h *Hub, log *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", Healthz)
	r.Get("/stats", StatsHandler(h))
	r.Get("/ws", WSHandler(h, log))
	return r
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func StatsHandler(h *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan Stats, 1)
		h.Inbox() <- GetStats{Reply: reply}
		s := <-reply
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(struct {
			Rooms   int `json:"rooms"`
			Clients int `json:"clients"`
		}{s.Rooms, s.Clients})
	}
}

// WSHandler accepts one client connection. The game and user come from
// query params; real authentication is the production backend's job.
func WSHandler(h *Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	return func(w http.ResponseWriter, r *http.Request) {
		gameID := r.URL.Query().Get("game")
		userID := r.URL.Query().Get("user")
		if gameID == "" || userID == "" {
			http.Error(w, "missing game or user", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		outbox := make(chan []byte, 32)

		h.Inbox() <- Join{GameID: gameID, ClientID: clientID, UserID: userID, Outbox: outbox}
		defer func() { h.Inbox() <- Leave{GameID: gameID, ClientID: clientID} }()

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for data := range outbox {
				ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
				_ = conn.Write(ctx, websocket.MessageText, data)
				cancel()
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var f types.ClientFrame
			if err := json.Unmarshal(data, &f); err != nil {
				log.Warn("bad client frame",
					zap.String("clientId", clientID), zap.Error(err))
				continue
			}

			h.Inbox() <- FromClient{
				GameID:   gameID,
				ClientID: clientID,
				UserID:   userID,
				Frame:    f,
			}
		}
	}
}
