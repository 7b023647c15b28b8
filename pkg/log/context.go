package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// Ctx retrieves the logger from the context, falling back to the global one.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}

// WithConnection derives a context whose logger carries the link, user and
// connection identifiers of a live chat socket.
func WithConnection(ctx context.Context, linkID, userID uint, connID string) context.Context {
	l := Ctx(ctx)
	child := l.With().
		Uint(FieldLinkID, linkID).
		Uint(FieldUserID, userID).
		Str(FieldConnID, connID).
		Logger()
	return WithLogger(ctx, child)
}
