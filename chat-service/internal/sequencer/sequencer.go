// Package sequencer serializes work per link. Each link gets a
// single-consumer queue, created on first use and retired once it has been
// idle for a grace period while the link has no live connection.
package sequencer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dananaoo/bazarlink/pkg/log"
)

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("sequencer stopped")

// Job is one unit of ordered work. Its context is detached from the
// submitter's, so a submitter giving up never cancels a started job.
type Job func(ctx context.Context) error

// ActivityFunc reports whether a link still has live connections.
type ActivityFunc func(linkID uint) bool

type task struct {
	job  Job
	done chan error
}

type unit struct {
	linkID uint
	tasks  chan *task

	enqueueMu sync.Mutex
	queued    atomic.Int64

	// guarded by Arena.mu
	pending int
}

// Arena owns the per-link units.
type Arena struct {
	mu      sync.Mutex
	units   map[uint]*unit
	stopped bool

	active    ActivityFunc
	idleGrace time.Duration
	queueSize int

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewArena creates an arena. active may be nil, in which case links are
// always treated as inactive.
func NewArena(active ActivityFunc, idleGrace time.Duration, queueSize int) *Arena {
	if active == nil {
		active = func(uint) bool { return false }
	}
	if queueSize <= 0 {
		queueSize = 64
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Arena{
		units:     make(map[uint]*unit),
		active:    active,
		idleGrace: idleGrace,
		queueSize: queueSize,
		baseCtx:   ctx,
		cancel:    cancel,
	}
}

// Submit queues job on linkID's unit and waits for it to finish. Jobs of one
// link run one at a time in the order they were queued. If ctx ends first
// Submit returns ctx.Err() while the job still runs to completion.
func (a *Arena) Submit(ctx context.Context, linkID uint, job Job) error {
	done, err := a.Enqueue(ctx, linkID, job)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Enqueue queues job on linkID's unit without waiting for it to run. The
// returned channel receives the job's result exactly once. Enqueue blocks
// only while the unit's queue is full.
func (a *Arena) Enqueue(ctx context.Context, linkID uint, job Job) (<-chan error, error) {
	u, err := a.acquire(linkID)
	if err != nil {
		return nil, err
	}

	t := &task{job: job, done: make(chan error, 1)}

	u.enqueueMu.Lock()
	defer u.enqueueMu.Unlock()
	select {
	case u.tasks <- t:
		u.queued.Add(1)
		return t.done, nil
	case <-ctx.Done():
		a.release(u)
		return nil, ctx.Err()
	}
}

func (a *Arena) acquire(linkID uint) (*unit, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.stopped {
		return nil, ErrStopped
	}
	u := a.units[linkID]
	if u == nil {
		u = &unit{linkID: linkID, tasks: make(chan *task, a.queueSize)}
		a.units[linkID] = u
		a.wg.Add(1)
		go a.run(u)
	}
	u.pending++
	return u, nil
}

func (a *Arena) release(u *unit) {
	a.mu.Lock()
	u.pending--
	a.mu.Unlock()
}

func (a *Arena) run(u *unit) {
	defer a.wg.Done()
	l := log.L()

	idle := time.NewTimer(a.idleGrace)
	defer idle.Stop()

	for {
		select {
		case t := <-u.tasks:
			t.done <- a.execute(u, t.job)
			a.release(u)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(a.idleGrace)

		case <-idle.C:
			if a.retire(u) {
				l.Debug().Uint(log.FieldLinkID, u.linkID).Msg("sequencer unit retired")
				return
			}
			idle.Reset(a.idleGrace)

		case <-a.baseCtx.Done():
			a.drain(u)
			return
		}
	}
}

func (a *Arena) execute(u *unit, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			l := log.L()
			l.Error().Interface("panic", r).Uint(log.FieldLinkID, u.linkID).Msg("sequencer job panicked")
			err = errors.New("sequencer job panicked")
		}
	}()
	return job(context.WithoutCancel(a.baseCtx))
}

// retire drops u if nothing is queued or waiting and the link is idle.
func (a *Arena) retire(u *unit) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if u.pending > 0 || a.active(u.linkID) {
		return false
	}
	delete(a.units, u.linkID)
	return true
}

// drain runs what is already queued so accepted work is not lost on stop.
func (a *Arena) drain(u *unit) {
	for {
		select {
		case t := <-u.tasks:
			t.done <- a.execute(u, t.job)
			a.release(u)
		default:
			return
		}
	}
}

// Units returns the number of live units.
func (a *Arena) Units() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.units)
}

// Queued returns how many jobs have ever been queued on linkID's current
// unit.
func (a *Arena) Queued(linkID uint) int64 {
	a.mu.Lock()
	u := a.units[linkID]
	a.mu.Unlock()
	if u == nil {
		return 0
	}
	return u.queued.Load()
}

// Stop rejects new submissions, runs queued jobs and waits for every unit
// to exit or ctx to end.
func (a *Arena) Stop(ctx context.Context) error {
	a.mu.Lock()
	a.stopped = true
	a.mu.Unlock()
	a.cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
