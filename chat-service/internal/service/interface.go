package service

import (
	"context"

	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/chat-service/internal/hub"
)

// ChatService runs the realtime side of a link's chat.
type ChatService interface {
	// Attach authenticates token and authorizes the caller on linkID.
	Attach(ctx context.Context, token string, linkID uint) (domain.Identity, error)
	HandleConnect(ctx context.Context, client *hub.Client)
	HandleMessage(ctx context.Context, client *hub.Client, frame *domain.MessageFrame) error
	// QueueMessage queues a message frame in link order and returns a func
	// that waits for its outcome and acknowledges it. Failures to queue are
	// returned directly.
	QueueMessage(ctx context.Context, client *hub.Client, frame *domain.MessageFrame) (func() error, error)
	HandleTyping(ctx context.Context, client *hub.Client, frame *domain.TypingFrame) error
	HandlePing(ctx context.Context, client *hub.Client)
	HandleDisconnect(ctx context.Context, client *hub.Client)
	// AnnounceClosure records and broadcasts, in order with the link's
	// messages, that the chat was closed.
	AnnounceClosure(ctx context.Context, linkID uint, reason string) error
	Stop(ctx context.Context) error
}

// HistoryService serves persisted messages outside the socket.
type HistoryService interface {
	History(ctx context.Context, reader domain.Identity, linkID uint, skip, limit int) ([]domain.ChatMessage, error)
	MarkMessageRead(ctx context.Context, reader domain.Identity, messageID uint) (*domain.ChatMessage, error)
}
