package authz

import (
	"context"
	"errors"
	"fmt"

	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/chat-service/internal/repository"
	"github.com/dananaoo/bazarlink/pkg/jwt"
	"github.com/dananaoo/bazarlink/pkg/middleware"
)

// TokenVerifier verifies bearer credentials.
type TokenVerifier interface {
	Verify(token string) (*jwt.Claims, error)
}

// Gate decides who may attach to, post into and read a link's chat.
type Gate struct {
	verifier TokenVerifier
	users    repository.UserStore
	links    repository.LinkStore
}

func NewGate(verifier TokenVerifier, users repository.UserStore, links repository.LinkStore) *Gate {
	return &Gate{verifier: verifier, users: users, links: links}
}

// Authenticate resolves a bearer credential into the identity of an active
// user.
func (g *Gate) Authenticate(ctx context.Context, token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, domain.Deny(domain.ReasonInvalidCredential)
	}
	claims, err := g.verifier.Verify(token)
	if err != nil {
		return domain.Identity{}, domain.Deny(domain.ReasonInvalidCredential)
	}
	userID, err := claims.UserID()
	if err != nil {
		return domain.Identity{}, domain.Deny(domain.ReasonInvalidCredential)
	}
	return g.Reload(ctx, userID)
}

// Reload re-reads a user's account and fails if it is gone or inactive.
func (g *Gate) Reload(ctx context.Context, userID uint) (domain.Identity, error) {
	user, err := g.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Identity{}, domain.Deny(domain.ReasonUserNotFound)
		}
		return domain.Identity{}, fmt.Errorf("%w: load user: %v", domain.ErrStoreUnavailable, err)
	}
	if !user.IsActive {
		return domain.Identity{}, domain.Deny(domain.ReasonInactiveUser)
	}
	return domain.IdentityOf(user), nil
}

// CanAttach allows id to open a live connection on linkID and returns the
// link it checked.
func (g *Gate) CanAttach(ctx context.Context, id domain.Identity, linkID uint) (*domain.Link, error) {
	link, err := g.link(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if err := Decide(id, link); err != nil {
		return nil, err
	}
	return link, nil
}

// CanPost allows id to post into linkID. The link and the user's account
// are re-read on every call, so a status change, a deactivation or a move to
// another supplier takes effect on the next message.
func (g *Gate) CanPost(ctx context.Context, id domain.Identity, linkID uint) error {
	link, err := g.CanAttach(ctx, id, linkID)
	if err != nil {
		return err
	}
	fresh, err := g.Reload(ctx, id.UserID)
	if err != nil {
		return err
	}
	return Decide(fresh, link)
}

// CanView allows a party of the link to read its history whatever its
// status.
func (g *Gate) CanView(ctx context.Context, id domain.Identity, linkID uint) (*domain.Link, error) {
	link, err := g.link(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if err := CheckParty(id, link); err != nil {
		return nil, err
	}
	return link, nil
}

func (g *Gate) link(ctx context.Context, linkID uint) (*domain.Link, error) {
	link, err := g.links.GetLink(ctx, linkID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.Deny(domain.ReasonLinkNotFound)
		}
		return nil, fmt.Errorf("%w: load link: %v", domain.ErrStoreUnavailable, err)
	}
	return link, nil
}

// Decide is the attach/post rule: the link must be accepted and id must be
// one of its parties.
func Decide(id domain.Identity, link *domain.Link) error {
	if link.Status != domain.LinkStatusAccepted {
		return domain.Deny(domain.ReasonLinkNotAccepted)
	}
	return CheckParty(id, link)
}

// CheckParty verifies id is the link's consumer or staff of its supplier.
func CheckParty(id domain.Identity, link *domain.Link) error {
	switch {
	case id.Role == domain.RoleConsumer:
		if id.ConsumerID == nil || *id.ConsumerID != link.ConsumerID {
			return domain.Deny(domain.ReasonNotConsumerParty)
		}
	case id.Role.IsStaff():
		if id.SupplierID == nil || *id.SupplierID != link.SupplierID {
			return domain.Deny(domain.ReasonNotSupplierStaff)
		}
	default:
		return domain.Deny(domain.ReasonRoleNotAllowed)
	}
	return nil
}

// Subjects adapts the gate to the HTTP auth middleware.
func (g *Gate) Subjects() middleware.Authenticator {
	return subjectAuthenticator{g}
}

type subjectAuthenticator struct {
	gate *Gate
}

func (a subjectAuthenticator) Authenticate(ctx context.Context, token string) (middleware.Subject, error) {
	id, err := a.gate.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	return id, nil
}

// IdentityFrom returns the identity stored by the auth middleware.
func IdentityFrom(s middleware.Subject) (domain.Identity, bool) {
	id, ok := s.(domain.Identity)
	return id, ok
}
