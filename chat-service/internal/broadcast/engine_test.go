package broadcast

import (
	"fmt"
	"testing"
	"time"

	"github.com/dananaoo/bazarlink/chat-service/internal/config"
	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/chat-service/internal/hub"
)

var wsConfig = config.WebSocketConfig{HeartbeatInterval: time.Second, WriteWait: time.Second, SendBuffer: 2}

func setup(t *testing.T, k int) (*hub.Hub, *Engine, []*hub.Client) {
	t.Helper()
	h := hub.NewHub(wsConfig)
	clients := make([]*hub.Client, k)
	for i := range clients {
		clients[i] = hub.NewClient(fmt.Sprintf("c%d", i), 1, domain.Identity{UserID: uint(i + 1)}, nil, wsConfig)
		h.Register(clients[i])
	}
	return h, NewEngine(h), clients
}

func received(c *hub.Client) int {
	n := 0
	for {
		select {
		case _, ok := <-c.Outbox():
			if !ok {
				return n
			}
			n++
		default:
			return n
		}
	}
}

func TestPublishReachesAllOrAllButSender(t *testing.T) {
	const k = 5
	_, e, clients := setup(t, k)

	report := e.Publish(1, []byte(`{"type":"new_message"}`), "")
	if len(report.Delivered) != k {
		t.Fatalf("message delivered to %d, want %d", len(report.Delivered), k)
	}
	for _, c := range clients {
		if n := received(c); n != 1 {
			t.Fatalf("%s received %d frames, want 1", c.ID, n)
		}
	}

	report = e.Publish(1, []byte(`{"type":"typing"}`), clients[0].ID)
	if len(report.Delivered) != k-1 {
		t.Fatalf("typing delivered to %d, want %d", len(report.Delivered), k-1)
	}
	if n := received(clients[0]); n != 0 {
		t.Fatalf("sender received its own typing frame")
	}
}

func TestPublishEvictsDeadConnections(t *testing.T) {
	h, e, clients := setup(t, 3)

	// c1 stops draining: fill its buffer
	for i := 0; i < wsConfig.SendBuffer; i++ {
		clients[1].Enqueue([]byte("backlog"))
	}
	// c2 is already closed but still registered from the engine's view
	h.Evict(clients[2], 1000, "")
	h.Register(clients[2])

	report := e.Publish(1, []byte("x"), "")
	if len(report.Delivered) != 1 || report.Delivered[0] != "c0" {
		t.Fatalf("delivered = %v, want [c0]", report.Delivered)
	}
	if len(report.Evicted) != 2 {
		t.Fatalf("evicted = %v, want two connections", report.Evicted)
	}
	if n := h.Count(1); n != 1 {
		t.Fatalf("registry holds %d, want 1", n)
	}

	// later broadcasts skip the evicted connections
	report = e.Publish(1, []byte("y"), "")
	if len(report.Delivered) != 1 || len(report.Evicted) != 0 {
		t.Fatalf("second publish = %+v", report)
	}
}

func TestPublishToEmptyLink(t *testing.T) {
	h := hub.NewHub(wsConfig)
	report := NewEngine(h).Publish(42, []byte("x"), "")
	if len(report.Delivered) != 0 || len(report.Evicted) != 0 {
		t.Fatalf("report = %+v", report)
	}
}
