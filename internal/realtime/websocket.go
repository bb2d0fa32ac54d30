package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const maxInboundMessageBytes = 64 << 10

var errChannelClosed = errors.New("channel closed")

// wsChannel is a Channel over a gorilla websocket. gorilla allows one
// concurrent writer, so writes are serialized with writeMu.
type wsChannel struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

func newWSChannel(conn *websocket.Conn, writeTimeout time.Duration) *wsChannel {
	return &wsChannel{conn: conn, writeTimeout: writeTimeout, closed: make(chan struct{})}
}

func (c *wsChannel) Deliver(ctx context.Context, payload []byte) DeliveryResult {
	select {
	case <-c.closed:
		return Failed(errChannelClosed)
	default:
	}
	if err := ctx.Err(); err != nil {
		return Failed(err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	var deadline time.Time
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if c.writeTimeout > 0 {
		if d := time.Now().Add(c.writeTimeout); deadline.IsZero() || d.Before(deadline) {
			deadline = d
		}
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return Failed(err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return Failed(err)
	}
	return Delivered()
}

func (c *wsChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// WebsocketHandler upgrades requests into realtime channels registered with
// a Hub. Each connection is acknowledged, registered, then read until the
// client goes away; inbound messages are discarded.
type WebsocketHandler struct {
	hub          *Hub
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	logger       *slog.Logger
}

func NewWebsocketHandler(hub *Hub, writeTimeout time.Duration, logger *slog.Logger) *WebsocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsocketHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		writeTimeout: writeTimeout,
		logger:       logger,
	}
}

func (h *WebsocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		h.logger.Debug("websocket upgrade", "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(maxInboundMessageBytes)

	ch := newWSChannel(conn, h.writeTimeout)
	ack, err := json.Marshal(NewConnected())
	if err != nil {
		h.logger.Error("encode realtime event", "type", TypeConnected, "error", err)
		_ = ch.Close()
		return
	}
	if result := ch.Deliver(context.Background(), ack); !result.OK() {
		h.logger.Debug("websocket ack failed", "remote", r.RemoteAddr, "error", result.Err)
		_ = ch.Close()
		return
	}

	h.hub.Register(ch)
	defer h.hub.Unregister(ch)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				h.logger.Debug("websocket read", "remote", r.RemoteAddr, "error", err)
			}
			return
		}
	}
}
