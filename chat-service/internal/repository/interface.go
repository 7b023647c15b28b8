package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
)

var (
	ErrMessageNotFound = fmt.Errorf("message %w", domain.ErrNotFound)
	ErrLinkNotFound    = fmt.Errorf("link %w", domain.ErrNotFound)
	ErrUserNotFound    = fmt.Errorf("user %w", domain.ErrNotFound)
)

// MessageStore persists chat messages and their read state.
type MessageStore interface {
	// Persist stores msg and fills in its ID and CreatedAt.
	Persist(ctx context.Context, msg *domain.ChatMessage) error
	// ListRecent returns up to limit messages of a link, skipping the
	// newest skip, in creation order.
	ListRecent(ctx context.Context, linkID uint, skip, limit int) ([]domain.ChatMessage, error)
	// MarkRead marks every unread message of the link authored by the other
	// side than reader and returns how many changed.
	MarkRead(ctx context.Context, linkID uint, reader domain.Role) (int64, error)
	GetMessage(ctx context.Context, id uint) (*domain.ChatMessage, error)
	// MarkOneRead sets read-at on one message if unset and returns it.
	MarkOneRead(ctx context.Context, id uint) (*domain.ChatMessage, error)
}

// LinkStore reads links and writes their assignment fields.
type LinkStore interface {
	GetLink(ctx context.Context, id uint) (*domain.Link, error)
	SetAssignment(ctx context.Context, linkID uint, staffID *uint, at *time.Time) error
	ListAssignedTo(ctx context.Context, supplierID, staffID uint, skip, limit int) ([]domain.Link, error)
	ListNotAssignedTo(ctx context.Context, supplierID, staffID uint, skip, limit int) ([]domain.Link, error)
	ListByConsumer(ctx context.Context, consumerID uint, skip, limit int) ([]domain.Link, error)
}

// UserStore reads user accounts.
type UserStore interface {
	GetUser(ctx context.Context, id uint) (*domain.User, error)
}
