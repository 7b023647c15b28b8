package hub

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dananaoo/bazarlink/chat-service/internal/config"
	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/pkg/log"
)

// group is the set of live clients of one link. dead is set once the group
// has been emptied and dropped from the hub; a register that raced with the
// drop retries on a fresh group.
type group struct {
	mu      sync.Mutex
	clients map[string]*Client
	dead    bool
}

// Hub is the connection registry. The hub lock only guards the link->group
// map; membership changes lock the link's own group, so links never
// contend with each other.
type Hub struct {
	mu     sync.RWMutex
	groups map[uint]*group
	config config.WebSocketConfig
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		groups: make(map[uint]*group),
		config: cfg,
	}
}

func (h *Hub) lookup(linkID uint) *group {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.groups[linkID]
}

// Register adds c to its link's set and returns its token.
func (h *Hub) Register(c *Client) string {
	for {
		g := h.lookup(c.LinkID)
		if g == nil {
			h.mu.Lock()
			g = h.groups[c.LinkID]
			if g == nil {
				g = &group{clients: make(map[string]*Client)}
				h.groups[c.LinkID] = g
			}
			h.mu.Unlock()
		}

		g.mu.Lock()
		if g.dead {
			g.mu.Unlock()
			continue
		}
		g.clients[c.ID] = c
		n := len(g.clients)
		g.mu.Unlock()

		l := log.L()
		l.Debug().Uint(log.FieldLinkID, c.LinkID).Str(log.FieldConnID, c.ID).Int("connections", n).Msg("client registered")
		return c.ID
	}
}

// Unregister removes c and closes it. Removing an already removed client is
// a no-op.
func (h *Hub) Unregister(c *Client) {
	c.close(websocket.CloseNormalClosure, "")

	g := h.lookup(c.LinkID)
	if g == nil {
		return
	}

	g.mu.Lock()
	if g.clients[c.ID] != c {
		g.mu.Unlock()
		return
	}
	delete(g.clients, c.ID)
	empty := len(g.clients) == 0
	if empty {
		g.dead = true
	}
	g.mu.Unlock()

	if empty {
		h.mu.Lock()
		if h.groups[c.LinkID] == g {
			delete(h.groups, c.LinkID)
		}
		h.mu.Unlock()
	}

	l := log.L()
	l.Debug().Uint(log.FieldLinkID, c.LinkID).Str(log.FieldConnID, c.ID).Msg("client unregistered")
}

// Evict closes c with code and reason and unregisters it.
func (h *Hub) Evict(c *Client, code int, reason string) {
	c.close(code, reason)
	h.Unregister(c)
}

// ForEach calls fn for a snapshot of the link's clients. fn runs without
// any registry lock held and may unregister clients.
func (h *Hub) ForEach(linkID uint, fn func(*Client)) {
	for _, c := range h.snapshot(linkID) {
		fn(c)
	}
}

func (h *Hub) snapshot(linkID uint) []*Client {
	g := h.lookup(linkID)
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	clients := make([]*Client, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	return clients
}

// Count returns the number of live clients of a link.
func (h *Hub) Count(linkID uint) int {
	g := h.lookup(linkID)
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Active reports whether the link has any live client.
func (h *Hub) Active(linkID uint) bool {
	return h.Count(linkID) > 0
}

// Links returns the ids of links with live clients.
func (h *Hub) Links() []uint {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]uint, 0, len(h.groups))
	for id := range h.groups {
		ids = append(ids, id)
	}
	return ids
}

// CloseLink evicts every client of a link and returns how many were closed.
func (h *Hub) CloseLink(linkID uint, code int, reason string) int {
	clients := h.snapshot(linkID)
	for _, c := range clients {
		h.Evict(c, code, reason)
	}
	return len(clients)
}

// Sweep evicts clients that have been silent longer than the liveness
// timeout as of now and returns how many were evicted.
func (h *Hub) Sweep(now time.Time) int {
	deadline := now.Add(-h.config.LivenessTimeout())
	evicted := 0
	for _, linkID := range h.Links() {
		for _, c := range h.snapshot(linkID) {
			if c.LastSeen().Before(deadline) {
				h.Evict(c, CloseLivenessTimeout, domain.ErrLiveness.Error())
				evicted++
			}
		}
	}
	return evicted
}

// RunSweeper sweeps twice per heartbeat interval until ctx is cancelled.
func (h *Hub) RunSweeper(ctx context.Context) error {
	l := log.Ctx(ctx)
	ticker := time.NewTicker(h.config.HeartbeatInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			if n := h.Sweep(now); n > 0 {
				l.Info().Err(domain.ErrLiveness).Int("evicted", n).Msg("evicted silent connections")
			}
		}
	}
}

// Shutdown closes every client.
func (h *Hub) Shutdown(code int, reason string) {
	for _, linkID := range h.Links() {
		h.CloseLink(linkID, code, reason)
	}
}
