package revalidate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dananaoo/bazarlink/chat-service/internal/audit"
	"github.com/dananaoo/bazarlink/chat-service/internal/authz"
	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/chat-service/internal/hub"
	"github.com/dananaoo/bazarlink/chat-service/internal/repository"
	"github.com/dananaoo/bazarlink/pkg/log"
	"github.com/dananaoo/bazarlink/pkg/pubsub"
)

// Announcer records that a link's chat was closed.
type Announcer interface {
	AnnounceClosure(ctx context.Context, linkID uint, reason string) error
}

// Revalidator re-checks live connections against the current state of their
// link and user, periodically and whenever a link status event arrives.
type Revalidator struct {
	hub       *hub.Hub
	gate      *authz.Gate
	links     repository.LinkStore
	announcer Announcer
	events    pubsub.Subscriber
	channel   string
	interval  time.Duration
}

// NewRevalidator creates a revalidator. events may be nil, in which case
// only the periodic pass runs.
func NewRevalidator(h *hub.Hub, gate *authz.Gate, links repository.LinkStore, announcer Announcer, events pubsub.Subscriber, channel string, interval time.Duration) *Revalidator {
	if channel == "" {
		channel = pubsub.ChannelLinkStatus
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Revalidator{
		hub:       h,
		gate:      gate,
		links:     links,
		announcer: announcer,
		events:    events,
		channel:   channel,
		interval:  interval,
	}
}

// Run blocks until ctx is cancelled. A failed subscription degrades to
// periodic checks only.
func (r *Revalidator) Run(ctx context.Context) error {
	l := log.Ctx(ctx)

	var events <-chan *pubsub.Event
	if r.events != nil {
		ch, err := r.events.Subscribe(ctx, r.channel)
		if err != nil {
			l.Warn().Err(err).Str("channel", r.channel).Msg("link status events unavailable, falling back to periodic checks")
		} else {
			events = ch
		}
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			r.RevalidateAll(ctx)

		case event, ok := <-events:
			if !ok {
				l.Warn().Str("channel", r.channel).Msg("link status subscription ended")
				events = nil
				continue
			}
			if event.Type != pubsub.EventLinkStatusChanged {
				continue
			}
			// the store stays authoritative; the payload is only logged
			var payload pubsub.LinkStatusPayload
			if err := event.UnmarshalPayload(&payload); err != nil {
				l.Warn().Err(err).Uint(log.FieldLinkID, event.LinkID).Msg("malformed link status payload")
			} else {
				l.Debug().Uint(log.FieldLinkID, event.LinkID).Str("status", payload.Status).Msg("link status changed")
			}
			if err := r.RevalidateLink(ctx, event.LinkID); err != nil {
				l.Warn().Err(err).Uint(log.FieldLinkID, event.LinkID).Msg("revalidation failed")
			}
		}
	}
}

// RevalidateAll checks every link with live connections.
func (r *Revalidator) RevalidateAll(ctx context.Context) {
	l := log.Ctx(ctx)
	for _, linkID := range r.hub.Links() {
		if err := r.RevalidateLink(ctx, linkID); err != nil {
			l.Warn().Err(err).Uint(log.FieldLinkID, linkID).Msg("revalidation failed")
		}
	}
}

// RevalidateLink closes the link's chat when it is no longer accepted and
// otherwise evicts the connections whose user lost access. Store failures
// leave connections untouched.
func (r *Revalidator) RevalidateLink(ctx context.Context, linkID uint) error {
	if !r.hub.Active(linkID) {
		return nil
	}

	link, err := r.links.GetLink(ctx, linkID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		r.closeChat(ctx, linkID, "link was removed")
		return nil
	case err != nil:
		return fmt.Errorf("%w: load link: %v", domain.ErrStoreUnavailable, err)
	}

	if link.Status != domain.LinkStatusAccepted {
		r.closeChat(ctx, linkID, fmt.Sprintf("link is %s", link.Status))
		return nil
	}

	r.hub.ForEach(linkID, func(c *hub.Client) {
		r.recheck(ctx, link, c)
	})
	return nil
}

func (r *Revalidator) closeChat(ctx context.Context, linkID uint, reason string) {
	l := log.Ctx(ctx)

	if err := r.announcer.AnnounceClosure(ctx, linkID, reason); err != nil {
		l.Error().Err(err).Uint(log.FieldLinkID, linkID).Msg("failed to record chat closure")
	}
	n := r.hub.CloseLink(linkID, websocket.ClosePolicyViolation, reason)

	audit.LogWithDetail(ctx, audit.ActionRevoke, 0, fmt.Sprintf("link=%d connections=%d", linkID, n), reason)
}

func (r *Revalidator) recheck(ctx context.Context, link *domain.Link, c *hub.Client) {
	id, err := r.gate.Reload(ctx, c.Identity.UserID)
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return
	}
	if err == nil {
		err = authz.CheckParty(id, link)
	}
	if err == nil {
		return
	}

	reason, _ := domain.ReasonOf(err)
	r.hub.Evict(c, websocket.ClosePolicyViolation, string(reason))
	audit.LogWithDetail(ctx, audit.ActionRevoke, c.Identity.UserID, fmt.Sprintf("link=%d conn=%s", link.ID, c.ID), string(reason))
}
