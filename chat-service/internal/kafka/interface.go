package kafka

import (
	"context"

	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
)

// MessageProducer emits persisted chat messages for downstream consumers
// such as the archival job.
type MessageProducer interface {
	ProduceMessage(ctx context.Context, msg *domain.ChatMessage) error
	Close() error
}

// NopProducer drops every message. Used when kafka is disabled.
type NopProducer struct{}

func (NopProducer) ProduceMessage(context.Context, *domain.ChatMessage) error { return nil }
func (NopProducer) Close() error                                              { return nil }
