package hub

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dananaoo/bazarlink/chat-service/internal/config"
	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/pkg/log"
)

// CloseLivenessTimeout is sent when a connection misses its heartbeats.
const CloseLivenessTimeout = 4408

// Client is one live socket attached to a link.
type Client struct {
	ID       string
	LinkID   uint
	Identity domain.Identity
	Conn     *websocket.Conn

	send     chan []byte
	lastSeen atomic.Int64
	config   config.WebSocketConfig

	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string
}

// NewClient creates a client. conn may be nil for connections that are
// driven without a socket.
func NewClient(id string, linkID uint, identity domain.Identity, conn *websocket.Conn, cfg config.WebSocketConfig) *Client {
	size := cfg.SendBuffer
	if size <= 0 {
		size = 256
	}
	c := &Client{
		ID:       id,
		LinkID:   linkID,
		Identity: identity,
		Conn:     conn,
		send:     make(chan []byte, size),
		config:   cfg,
	}
	c.Touch(time.Now())
	return c
}

// Touch records liveness.
func (c *Client) Touch(now time.Time) {
	c.lastSeen.Store(now.UnixNano())
}

// LastSeen returns the last time the peer proved it was alive.
func (c *Client) LastSeen() time.Time {
	return time.Unix(0, c.lastSeen.Load())
}

// Outbox exposes queued frames.
func (c *Client) Outbox() <-chan []byte {
	return c.send
}

// Enqueue queues raw frame data without blocking. It reports false when the
// client is closed or its buffer is full.
func (c *Client) Enqueue(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// SendMessage marshals v and enqueues it.
func (c *Client) SendMessage(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		l := log.L()
		l.Error().Err(err).Str(log.FieldConnID, c.ID).Msg("failed to marshal outbound frame")
		return false
	}
	return c.Enqueue(data)
}

// Closed reports whether the client has been closed.
func (c *Client) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CloseStatus returns the close code and reason, if closed.
func (c *Client) CloseStatus() (int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode, c.closeReason
}

// close stops further deliveries. The write pump flushes queued frames and
// then sends a close frame with code and reason. Only the first call wins.
func (c *Client) close(code int, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.send)
	return true
}

// ReadPump reads frames until the socket fails and hands each one to
// handler. On exit the client is unregistered.
func (c *Client) ReadPump(ctx context.Context, h *Hub, handler func(context.Context, *Client, []byte)) {
	l := log.Ctx(ctx)
	defer func() {
		h.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(c.config.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(c.config.LivenessTimeout()))
	c.Conn.SetPongHandler(func(string) error {
		c.Touch(time.Now())
		return c.Conn.SetReadDeadline(time.Now().Add(c.config.LivenessTimeout()))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				l.Debug().Err(err).Msg("websocket read failed")
			}
			return
		}
		c.Conn.SetReadDeadline(time.Now().Add(c.config.LivenessTimeout()))
		handler(ctx, c, message)
	}
}

// WritePump drains the outbox to the socket and sends a transport ping
// every heartbeat interval.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.config.HeartbeatInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if !ok {
				code, reason := c.CloseStatus()
				c.Conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
