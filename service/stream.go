package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"rampart/core/events"
	"rampart/core/types"
)

const streamWriteTimeout = 10 * time.Second

// payloadCarrier is satisfied by bus events wrapping a structured payload.
type payloadCarrier interface {
	Event() *types.Event
}

type streamFrame struct {
	Seq        uint64            `json:"seq"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func frameFor(entry events.BusEvent) streamFrame {
	frame := streamFrame{Seq: entry.Seq, Type: entry.Event.EventType()}
	if carrier, ok := entry.Event.(payloadCarrier); ok {
		if evt := carrier.Event(); evt != nil {
			frame.Attributes = evt.Clone().Attributes
		}
	}
	return frame
}

// handleEventStream upgrades to a websocket and pushes engine events.
// Clients resume with ?cursor=<seq>; the retained backlog past the cursor is
// replayed before live delivery begins.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, http.StatusNotImplemented, errors.New("event streaming not configured"))
		return
	}
	var cursor uint64
	if raw := strings.TrimSpace(r.URL.Query().Get("cursor")); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, errors.New("invalid cursor"))
			return
		}
		cursor = parsed
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err.Error())
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream terminated")

	ch, cancel, replay := s.bus.Subscribe(cursor)
	defer cancel()

	ctx := r.Context()
	for _, entry := range replay {
		if err := writeFrame(ctx, conn, frameFor(entry)); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "client gone")
			return
		case entry, ok := <-ch:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "bus closed")
				return
			}
			if err := writeFrame(ctx, conn, frameFor(entry)); err != nil {
				return
			}
		}
	}
}

func writeFrame(ctx context.Context, conn *websocket.Conn, frame streamFrame) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, frame)
}
