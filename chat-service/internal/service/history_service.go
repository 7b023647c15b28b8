package service

import (
	"context"
	"fmt"

	"github.com/dananaoo/bazarlink/chat-service/internal/audit"
	"github.com/dananaoo/bazarlink/chat-service/internal/authz"
	"github.com/dananaoo/bazarlink/chat-service/internal/config"
	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/chat-service/internal/repository"
	"github.com/dananaoo/bazarlink/pkg/log"
)

// ErrOwnMessage is returned when a reader marks a message from their own
// side as read.
var ErrOwnMessage = fmt.Errorf("%w: only received messages can be marked read", domain.ErrAuthorization)

type historyService struct {
	gate  *authz.Gate
	store repository.MessageStore
	cfg   config.ChatConfig
}

func NewHistoryService(gate *authz.Gate, store repository.MessageStore, cfg config.ChatConfig) HistoryService {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	if cfg.HistoryMaxLimit < cfg.HistoryLimit {
		cfg.HistoryMaxLimit = cfg.HistoryLimit
	}
	return &historyService{gate: gate, store: store, cfg: cfg}
}

// History returns the newest window of a link's messages in creation order
// and first marks everything the other side wrote as read.
func (s *historyService) History(ctx context.Context, reader domain.Identity, linkID uint, skip, limit int) ([]domain.ChatMessage, error) {
	if _, err := s.gate.CanView(ctx, reader, linkID); err != nil {
		return nil, err
	}

	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = s.cfg.HistoryLimit
	}
	if limit > s.cfg.HistoryMaxLimit {
		limit = s.cfg.HistoryMaxLimit
	}

	n, err := s.store.MarkRead(ctx, linkID, reader.Role)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	if n > 0 {
		l := log.Ctx(ctx)
		l.Debug().Uint(log.FieldLinkID, linkID).Int64("marked", n).Msg("messages marked read")
	}

	messages, err := s.store.ListRecent(ctx, linkID, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	return messages, nil
}

func (s *historyService) MarkMessageRead(ctx context.Context, reader domain.Identity, messageID uint) (*domain.ChatMessage, error) {
	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.gate.CanView(ctx, reader, msg.LinkID); err != nil {
		return nil, err
	}
	if reader.SameSide(msg.Role) {
		return nil, ErrOwnMessage
	}
	if msg.IsRead() {
		return msg, nil
	}

	msg, err = s.store.MarkOneRead(ctx, messageID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	audit.LogWithDetail(ctx, audit.ActionMarkRead, reader.UserID, fmt.Sprintf("message=%d", messageID), "message marked read")
	return msg, nil
}
