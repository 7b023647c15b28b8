package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/dananaoo/bazarlink/chat-service/internal/audit"
	"github.com/dananaoo/bazarlink/chat-service/internal/authz"
	"github.com/dananaoo/bazarlink/chat-service/internal/broadcast"
	"github.com/dananaoo/bazarlink/chat-service/internal/config"
	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/chat-service/internal/hub"
	"github.com/dananaoo/bazarlink/chat-service/internal/kafka"
	"github.com/dananaoo/bazarlink/chat-service/internal/ratelimit"
	"github.com/dananaoo/bazarlink/chat-service/internal/repository"
	"github.com/dananaoo/bazarlink/chat-service/internal/sequencer"
	"github.com/dananaoo/bazarlink/pkg/log"
)

var ErrRateLimited = errors.New("too many messages")

type chatService struct {
	hub      *hub.Hub
	gate     *authz.Gate
	arena    *sequencer.Arena
	engine   *broadcast.Engine
	store    repository.MessageStore
	producer kafka.MessageProducer
	limiter  ratelimit.Limiter
	cfg      config.ChatConfig
}

func NewChatService(
	h *hub.Hub,
	gate *authz.Gate,
	arena *sequencer.Arena,
	engine *broadcast.Engine,
	store repository.MessageStore,
	producer kafka.MessageProducer,
	limiter ratelimit.Limiter,
	cfg config.ChatConfig,
) ChatService {
	if producer == nil {
		producer = kafka.NopProducer{}
	}
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 5 * time.Second
	}
	return &chatService{
		hub:      h,
		gate:     gate,
		arena:    arena,
		engine:   engine,
		store:    store,
		producer: producer,
		limiter:  limiter,
		cfg:      cfg,
	}
}

func (s *chatService) Attach(ctx context.Context, token string, linkID uint) (domain.Identity, error) {
	id, err := s.gate.Authenticate(ctx, token)
	if err != nil {
		return domain.Identity{}, err
	}
	if _, err := s.gate.CanAttach(ctx, id, linkID); err != nil {
		return id, err
	}
	return id, nil
}

func (s *chatService) HandleConnect(ctx context.Context, c *hub.Client) {
	s.hub.Register(c)
	c.SendMessage(domain.NewConnectionMessage(c.LinkID, c.Identity.UserID))
	audit.LogWithDetail(ctx, audit.ActionConnect, c.Identity.UserID, fmt.Sprintf("link=%d", c.LinkID), "chat connected")
}

func (s *chatService) HandleDisconnect(ctx context.Context, c *hub.Client) {
	s.hub.Unregister(c)
	audit.LogWithDetail(ctx, audit.ActionDisconnect, c.Identity.UserID, fmt.Sprintf("link=%d", c.LinkID), "chat disconnected")
}

func (s *chatService) HandlePing(ctx context.Context, c *hub.Client) {
	now := time.Now()
	c.Touch(now)
	c.SendMessage(domain.NewPongMessage(now))
}

func (s *chatService) HandleTyping(ctx context.Context, c *hub.Client, frame *domain.TypingFrame) error {
	if frame.LinkID != nil && *frame.LinkID != c.LinkID {
		return fmt.Errorf("%w: typing frame for link %d on link %d", domain.ErrValidation, *frame.LinkID, c.LinkID)
	}
	_, err := s.engine.PublishJSON(c.LinkID, domain.NewTypingOut(c.LinkID, c.Identity.UserID, frame.IsTyping), c.ID)
	return err
}

// HandleMessage queues a message frame and waits until it is persisted,
// broadcast and acknowledged.
func (s *chatService) HandleMessage(ctx context.Context, c *hub.Client, frame *domain.MessageFrame) error {
	wait, err := s.QueueMessage(ctx, c, frame)
	if err != nil {
		return err
	}
	return wait()
}

// QueueMessage validates a message frame and queues it on the link's
// sequencer without waiting for it to run. The returned wait func blocks
// until the message is persisted and broadcast, then acknowledges it to the
// sending connection. The broadcast copy reaches every other connection of
// the link, including the sender's other devices.
func (s *chatService) QueueMessage(ctx context.Context, c *hub.Client, frame *domain.MessageFrame) (func() error, error) {
	l := log.Ctx(ctx)

	msg, err := s.buildMessage(c, frame)
	if err != nil {
		return nil, err
	}

	allowed, err := s.limiter.Allow(ctx, c.Identity.UserID)
	if err != nil {
		l.Warn().Err(err).Msg("rate limiter unavailable, allowing message")
	} else if !allowed {
		return nil, ErrRateLimited
	}

	done, err := s.arena.Enqueue(ctx, c.LinkID, func(jobCtx context.Context) error {
		jobCtx = log.WithLogger(jobCtx, l)
		if err := s.gate.CanPost(jobCtx, c.Identity, c.LinkID); err != nil {
			return err
		}
		return s.deliver(jobCtx, msg, c.ID)
	})
	if err != nil {
		return nil, err
	}

	return func() error {
		if err := <-done; err != nil {
			return err
		}
		if !c.SendMessage(domain.NewMessageSent(msg)) {
			s.hub.Evict(c, websocket.CloseTryAgainLater, "send buffer full")
		}
		audit.LogWithDetail(ctx, audit.ActionSendMessage, c.Identity.UserID, fmt.Sprintf("link=%d message=%d", msg.LinkID, msg.ID), "chat message sent")
		return nil
	}, nil
}

func (s *chatService) AnnounceClosure(ctx context.Context, linkID uint, reason string) error {
	l := log.Ctx(ctx)
	msg := domain.NewSystemMessage(linkID, "chat closed: "+reason)

	return s.arena.Submit(ctx, linkID, func(jobCtx context.Context) error {
		return s.deliver(log.WithLogger(jobCtx, l), msg, "")
	})
}

// deliver persists msg, fans it out and queues its event. It runs inside
// the link's sequencer, so events are produced in persisted order.
func (s *chatService) deliver(ctx context.Context, msg *domain.ChatMessage, exclude string) error {
	if err := s.persist(ctx, msg); err != nil {
		return err
	}
	if _, err := s.engine.PublishJSON(msg.LinkID, domain.NewMessageBroadcast(msg), exclude); err != nil {
		return err
	}
	if err := s.producer.ProduceMessage(ctx, msg); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Uint(log.FieldMessageID, msg.ID).Msg("failed to publish message event")
	}
	return nil
}

func (s *chatService) Stop(ctx context.Context) error {
	return s.arena.Stop(ctx)
}

func (s *chatService) persist(ctx context.Context, msg *domain.ChatMessage) error {
	persistCtx, cancel := context.WithTimeout(ctx, s.cfg.PersistTimeout)
	defer cancel()

	if err := s.store.Persist(persistCtx, msg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *chatService) buildMessage(c *hub.Client, frame *domain.MessageFrame) (*domain.ChatMessage, error) {
	content := strings.TrimSpace(frame.Content)
	attachment := strings.TrimSpace(frame.AttachmentURL)

	kind := domain.KindText
	switch domain.MessageKind(frame.MessageType) {
	case "", domain.KindText:
		if attachment != "" {
			kind = domain.KindAttachment
		}
	case domain.KindAttachment:
		if attachment == "" {
			return nil, fmt.Errorf("%w: attachment_url is required", domain.ErrValidation)
		}
		kind = domain.KindAttachment
	default:
		return nil, fmt.Errorf("%w: unsupported message_type %q", domain.ErrValidation, frame.MessageType)
	}

	if content == "" && attachment == "" {
		return nil, fmt.Errorf("%w: message content is required", domain.ErrValidation)
	}
	if s.cfg.MaxContentRunes > 0 && utf8.RuneCountInString(content) > s.cfg.MaxContentRunes {
		return nil, fmt.Errorf("%w: message exceeds %d characters", domain.ErrValidation, s.cfg.MaxContentRunes)
	}

	return domain.NewUserMessage(c.LinkID, c.Identity, kind, content, attachment, strings.TrimSpace(frame.AttachmentType)), nil
}
