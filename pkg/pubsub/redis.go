package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/dananaoo/bazarlink/pkg/log"
)

const eventBuffer = 100

// RedisPubSub implements PubSub on Redis channels.
type RedisPubSub struct {
	client *redis.Client

	mu   sync.Mutex
	subs []*redis.PubSub
}

// NewRedisPubSub wraps an already connected client. Close does not close
// the client.
func NewRedisPubSub(client *redis.Client) *RedisPubSub {
	return &RedisPubSub{client: client}
}

// Publish publishes an event to channel.
func (r *RedisPubSub) Publish(ctx context.Context, channel string, event *Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.client.Publish(ctx, channel, data).Err()
}

// Subscribe subscribes to channel and waits for the server to confirm the
// subscription before returning.
func (r *RedisPubSub) Subscribe(ctx context.Context, channel string) (<-chan *Event, error) {
	sub := r.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	r.mu.Lock()
	r.subs = append(r.subs, sub)
	r.mu.Unlock()

	events := make(chan *Event, eventBuffer)
	go r.forward(ctx, channel, sub, events)
	return events, nil
}

// Close closes every subscription.
func (r *RedisPubSub) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, sub := range r.subs {
		if err := sub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.subs = nil
	return firstErr
}

func (r *RedisPubSub) forward(ctx context.Context, channel string, sub *redis.PubSub, events chan<- *Event) {
	defer close(events)
	l := log.Ctx(ctx)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			sub.Close()
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				l.Warn().Err(err).Str("channel", channel).Msg("dropping malformed event")
				continue
			}

			select {
			case events <- &event:
			case <-ctx.Done():
				sub.Close()
				return
			default:
				l.Warn().Str("channel", channel).Str("type", event.Type).Msg("event buffer full, dropping event")
			}
		}
	}
}
