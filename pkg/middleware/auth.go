package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dananaoo/bazarlink/pkg/log"
	"github.com/dananaoo/bazarlink/pkg/response"
)

const (
	UserIDKey     = log.FieldUserID
	RoleKey       = log.FieldRole
	SubjectKey    = "subject"
	AuthHeaderKey = "Authorization"
	BearerPrefix  = "Bearer "
	TokenQueryKey = "token"
)

// Subject is an authenticated caller.
type Subject interface {
	SubjectID() uint
	SubjectRole() string
}

// Authenticator resolves a bearer token into a Subject.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (Subject, error)
}

// AuthMiddleware guards routes with bearer credentials.
type AuthMiddleware struct {
	auth Authenticator
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(auth Authenticator) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireAuth rejects requests without a valid credential and stores the
// resolved subject on the gin context.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c.Request)
		if token == "" {
			response.Unauthorized(c, "missing credentials")
			return
		}

		subject, err := m.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			l := log.Ctx(c.Request.Context())
			l.Debug().Err(err).Msg("authentication failed")
			response.Unauthorized(c, "invalid credentials")
			return
		}

		c.Set(SubjectKey, subject)
		c.Set(UserIDKey, subject.SubjectID())
		c.Set(RoleKey, subject.SubjectRole())
		c.Next()
	}
}

// BearerToken extracts the credential from the Authorization header or, for
// websocket clients that cannot set headers, the token query parameter.
func BearerToken(r *http.Request) string {
	if h := r.Header.Get(AuthHeaderKey); strings.HasPrefix(h, BearerPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(h, BearerPrefix))
	}
	return r.URL.Query().Get(TokenQueryKey)
}

// GetSubject returns the subject stored by RequireAuth.
func GetSubject(c *gin.Context) Subject {
	if v, ok := c.Get(SubjectKey); ok {
		if s, ok := v.(Subject); ok {
			return s
		}
	}
	return nil
}

// GetUserID returns the authenticated user id, or 0.
func GetUserID(c *gin.Context) uint {
	if s := GetSubject(c); s != nil {
		return s.SubjectID()
	}
	return 0
}
