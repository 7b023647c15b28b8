package handler

import (
	"context"

	"github.com/dananaoo/bazarlink/chat-service/internal/hub"
)

// ackQueue resolves one connection's queued messages in the order they were
// read. Only the read loop pushes.
type ackQueue struct {
	waits chan func() error
	done  chan struct{}
}

func newAckQueue(size int) *ackQueue {
	if size < 1 {
		size = 1
	}
	return &ackQueue{
		waits: make(chan func() error, size),
		done:  make(chan struct{}),
	}
}

func (q *ackQueue) full() bool {
	return len(q.waits) == cap(q.waits)
}

func (q *ackQueue) push(wait func() error) {
	q.waits <- wait
}

// run waits on each queued message and reports failures to the sender.
func (q *ackQueue) run(ctx context.Context, client *hub.Client, report func(context.Context, *hub.Client, error)) {
	defer close(q.done)
	for wait := range q.waits {
		if err := wait(); err != nil {
			report(ctx, client, err)
		}
	}
}

// close stops accepting messages and returns once every queued one has
// been resolved.
func (q *ackQueue) close() {
	close(q.waits)
	<-q.done
}
