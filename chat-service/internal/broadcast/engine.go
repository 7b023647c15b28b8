package broadcast

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"

	"github.com/dananaoo/bazarlink/chat-service/internal/hub"
	"github.com/dananaoo/bazarlink/pkg/log"
)

// DeliveryReport lists the connections a publish reached and the ones it
// evicted.
type DeliveryReport struct {
	Delivered []string
	Evicted   []string
}

// Engine fans frames out to the live connections of a link.
type Engine struct {
	hub *hub.Hub
}

func NewEngine(h *hub.Hub) *Engine {
	return &Engine{hub: h}
}

// Publish queues payload on every connection of linkID except the one
// whose id is exclude (empty to reach all). Queuing never blocks: a
// connection that is closed or whose buffer is full is evicted and left out
// of the report.
func (e *Engine) Publish(linkID uint, payload []byte, exclude string) DeliveryReport {
	var report DeliveryReport
	e.hub.ForEach(linkID, func(c *hub.Client) {
		if c.ID == exclude {
			return
		}
		if c.Enqueue(payload) {
			report.Delivered = append(report.Delivered, c.ID)
			return
		}
		e.hub.Evict(c, websocket.CloseTryAgainLater, "send buffer full")
		report.Evicted = append(report.Evicted, c.ID)
	})

	if len(report.Evicted) > 0 {
		l := log.L()
		l.Warn().Uint(log.FieldLinkID, linkID).Strs("evicted", report.Evicted).Msg("evicted unresponsive connections")
	}
	return report
}

// PublishJSON marshals v and publishes it.
func (e *Engine) PublishJSON(linkID uint, v any, exclude string) (DeliveryReport, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return DeliveryReport{}, fmt.Errorf("failed to marshal broadcast frame: %w", err)
	}
	return e.Publish(linkID, data, exclude), nil
}
