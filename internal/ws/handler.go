package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/colibrishin/dx-api-sub000/internal/feed"
	"github.com/colibrishin/dx-api-sub000/internal/hub"
	"github.com/colibrishin/dx-api-sub000/internal/types"
)

// Handler streams one room's lifecycle events to a spectator.
// GET /ws?room=N, where room 0 (the default) is the lobby.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		room := int64(0)
		if q := r.URL.Query().Get("room"); q != "" {
			n, err := strconv.ParseInt(q, 10, 32)
			if err != nil || n < 0 {
				http.Error(w, "bad room", http.StatusBadRequest)
				return
			}
			room = n
		}

		f := h.Feed(r.Context(), int32(room), true)
		if f == nil {
			http.Error(w, "feed unavailable", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		out := make(chan feed.Event, feed.History+8)
		clientID := uuid.NewString()
		log := log.With(zap.String("spectator", clientID), zap.Int64("room", room))

		select {
		case f.Inbox() <- feed.Subscribe{ClientID: clientID, Outbox: out}:
		case <-f.Done():
			return
		}
		defer func() {
			select {
			case f.Inbox() <- feed.Unsubscribe{ClientID: clientID}:
			case <-f.Done():
			}
		}()
		log.Debug("spectator subscribed")

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		write := func(msg types.ServerMessage) {
			payload, _ := json.Marshal(msg)
			ctx, cancel := context.WithTimeout(writeCtx, 3*time.Second)
			_ = conn.Write(ctx, websocket.MessageText, payload)
			cancel()
		}

		// Writer goroutine
		go func() {
			for ev := range out {
				e := types.Event(ev)
				write(types.ServerMessage{Type: "Event", Event: &e})
			}
			// the feed dropped us or shut down
			conn.Close(websocket.StatusGoingAway, "feed closed")
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					log.Debug("spectator read", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				write(types.ServerMessage{Type: "Error", Error: "bad json"})
				continue
			}

			switch cm.Type {
			case "Snapshot":
				reply := make(chan feed.View, 1)
				select {
				case f.Inbox() <- feed.GetState{Reply: reply}:
				case <-f.Done():
					return
				}
				snap := types.Snapshot(<-reply)
				write(types.ServerMessage{Type: "Snapshot", Snapshot: &snap})
			default:
				write(types.ServerMessage{Type: "Error", Error: "unknown type"})
			}
		}
	}
}
