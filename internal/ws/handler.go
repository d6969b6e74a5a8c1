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

	"github.com/typeloop/typerace-backend/internal/race"
	"github.com/typeloop/typerace-backend/internal/registry"
	"github.com/typeloop/typerace-backend/internal/room"
	"github.com/typeloop/typerace-backend/internal/types"
)

const writeTimeout = 3 * time.Second

// Handler upgrades the connection, resolves (or creates) the room from
// query parameters, and shuttles messages between the socket and the
// room actor. A missing room key is the single fatal join error: the
// client gets an error message and is disconnected without touching
// any race state.
func Handler(reg *registry.Registry, log *zap.Logger, originPatterns []string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		q := r.URL.Query()
		key := q.Get("room")
		if key == "" {
			writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: "missing room key"})
			conn.Close(websocket.StatusPolicyViolation, "missing room key")
			return
		}
		cfg := joinConfig(q)

		reply := make(chan *room.Room, 1)
		reg.Inbox() <- registry.Ensure{Key: key, Config: cfg, Reply: reply}
		rm := <-reply

		out := make(chan race.Snapshot, 8)
		clientID := uuid.NewString()
		name := q.Get("name")
		if name == "" {
			name = "Anonymous"
		}

		rm.Inbox() <- room.Join{ID: clientID, Name: name, Outbox: out}
		defer func() { rm.Inbox() <- room.Leave{ID: clientID} }()

		log.Info("client joined",
			zap.String("room", key),
			zap.String("client", clientID),
			zap.String("name", name))

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				writeMsg(writeCtx, conn, types.ServerMessage{Type: "state", State: &snap})
			}
			// Outbox closed: the room dropped this client or was torn
			// down (retention sweep, empty-room removal). Close the
			// socket so the reader unblocks and the handler exits
			// instead of feeding a dead inbox.
			conn.Close(websocket.StatusGoingAway, "room closed")
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				// Treat clean close/going-away as normal:
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				// Otherwise, just exit (room.Leave in defer):
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: "bad json"})
				continue
			}

			switch cm.Type {
			case "start":
				rm.Inbox() <- room.Start{}
			case "progress":
				rm.Inbox() <- room.Telemetry{
					ID:       clientID,
					Progress: cm.Progress,
					Position: cm.Position,
					Errors:   cm.Errors,
				}
			case "finish":
				rm.Inbox() <- room.Finish{ID: clientID}
			default:
				writeMsg(r.Context(), conn, types.ServerMessage{Type: "error", Error: "unknown type"})
			}
		}
	}
}

// joinConfig reads the room-creation parameters. They only take effect
// when this connection is the one that creates the room.
func joinConfig(q map[string][]string) registry.Config {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}

	computer, _ := strconv.ParseBool(get("computer"))
	numBots, _ := strconv.Atoi(get("bots"))
	return registry.Config{
		ComputerMode: computer,
		NumBots:      numBots,
		Difficulty:   get("difficulty"),
	}
}

func writeMsg(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) {
	payload, _ := json.Marshal(msg)
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
