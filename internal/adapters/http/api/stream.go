// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/naja/internal/adapters/events"
	"github.com/okian/naja/pkg/logger"
	"github.com/okian/naja/pkg/metrics"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamReadLimit    = 4 << 10
)

// StreamDependencies defines the interface for the live event feed.
type StreamDependencies interface {
	Subscribe() (string, <-chan events.Event)
	Unsubscribe(id string)
	ConnState() string
	ResolvePlayer(ctx context.Context, name string)
}

// StreamHandler upgrades /stream requests to a WebSocket and relays bus
// events to the client. Clients may also answer name prompts by sending
// {"name":"..."} frames on the same socket.
type StreamHandler struct {
	deps     StreamDependencies
	upgrader websocket.Upgrader
	clients  atomic.Int64
	logger   logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(deps StreamDependencies) *StreamHandler {
	return &StreamHandler{
		deps: deps,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(_ *http.Request) bool { return true },
		},
		logger: logger.Get().Named("stream"),
	}
}

// streamReply mirrors inbound client frames.
type streamReply struct {
	Name string `json:"name"`
}

// HandleStream handles GET /stream requests.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	id, ch := h.deps.Subscribe()
	defer h.deps.Unsubscribe(id)

	metrics.UpdateStreamClients(int(h.clients.Add(1)))
	defer func() { metrics.UpdateStreamClients(int(h.clients.Add(-1))) }()

	// Tell the client where the device connection stands before any
	// bus traffic arrives.
	initial := events.Event{
		Kind:  events.KindConnState,
		At:    time.Now(),
		State: h.deps.ConnState(),
	}
	if err := h.writeEvent(conn, initial); err != nil {
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go h.readLoop(ctx, cancel, conn)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := h.writeEvent(conn, ev); err != nil {
				h.logger.Debug(ctx, "stream client write failed",
					logger.String("subscriber", id),
					logger.Error(err))
				return
			}
		}
	}
}

func (h *StreamHandler) writeEvent(conn *websocket.Conn, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// readLoop drains inbound frames so control messages are processed and
// turns {"name":...} frames into prompt resolutions.
func (h *StreamHandler) readLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn) {
	defer cancel()
	conn.SetReadLimit(streamReadLimit)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var reply streamReply
		if err := json.Unmarshal(data, &reply); err != nil {
			continue
		}
		if name := strings.TrimSpace(reply.Name); name != "" {
			h.deps.ResolvePlayer(ctx, name)
		}
	}
}
