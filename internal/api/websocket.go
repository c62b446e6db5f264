package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/gwlsn/mediavault/internal/logger"
)

// heartbeat is the message shape clients may send to keep a connection
// alive through idle proxies; it is accepted and ignored.
type heartbeat struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// handleWebSocket upgrades to a broadcast stream of Progress Bus
// messages, optionally filtered to a single task via ?task_id=.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer conn.CloseNow()

	var taskFilter *uuid.UUID
	if q := r.URL.Query().Get("task_id"); q != "" {
		if id, err := uuid.Parse(q); err == nil {
			taskFilter = &id
		}
	}

	sub := s.bus.Subscribe(taskFilter)
	defer s.bus.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go s.readHeartbeats(ctx, conn, cancel)

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, msg); err != nil {
				return
			}
		}
	}
}

func (s *Server) readHeartbeats(ctx context.Context, conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		var raw json.RawMessage
		if err := wsjson.Read(ctx, conn, &raw); err != nil {
			return
		}
		var hb heartbeat
		if err := json.Unmarshal(raw, &hb); err != nil {
			continue
		}
		if hb.Type != "heartbeat" {
			logger.Debug("ignoring unrecognized websocket message", "type", hb.Type)
		}
	}
}
