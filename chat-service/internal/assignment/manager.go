package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dananaoo/bazarlink/chat-service/internal/audit"
	"github.com/dananaoo/bazarlink/chat-service/internal/authz"
	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/chat-service/internal/repository"
)

// ErrNotAssignee is returned when a sales representative tries to clear an
// assignment held by someone else.
var ErrNotAssignee = fmt.Errorf("%w: link is assigned to another staff member", domain.ErrAuthorization)

// Manager tracks which staff member triages a link. Assignment is
// advisory: it never affects who may attach or post.
type Manager struct {
	links repository.LinkStore
	now   func() time.Time
}

func NewManager(links repository.LinkStore) *Manager {
	return &Manager{
		links: links,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Claim assigns linkID to staff, overwriting any previous assignee. Only
// sales representatives of the link's supplier may claim, and only accepted
// links.
func (m *Manager) Claim(ctx context.Context, linkID uint, staff domain.Identity) (*domain.Link, error) {
	if staff.Role != domain.RoleSalesRepresentative {
		return nil, domain.Deny(domain.ReasonRoleNotAllowed)
	}
	link, err := m.load(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if err := authz.Decide(staff, link); err != nil {
		return nil, err
	}

	at := m.now()
	staffID := staff.UserID
	if err := m.links.SetAssignment(ctx, linkID, &staffID, &at); err != nil {
		return nil, err
	}
	link.AssignedSalesRepID = &staffID
	link.AssignedAt = &at

	audit.LogWithDetail(ctx, audit.ActionAssign, staff.UserID, fmt.Sprintf("link=%d", linkID), "link assigned")
	return link, nil
}

// Unclaim clears the assignment. The assignee may clear their own; owners
// and managers may clear anyone's.
func (m *Manager) Unclaim(ctx context.Context, linkID uint, actor domain.Identity) (*domain.Link, error) {
	if !actor.Role.IsStaff() {
		return nil, domain.Deny(domain.ReasonRoleNotAllowed)
	}
	link, err := m.load(ctx, linkID)
	if err != nil {
		return nil, err
	}
	if err := authz.CheckParty(actor, link); err != nil {
		return nil, err
	}
	if link.AssignedSalesRepID == nil {
		return link, nil
	}
	if !actor.Role.CanManageAssignments() && *link.AssignedSalesRepID != actor.UserID {
		return nil, ErrNotAssignee
	}

	if err := m.links.SetAssignment(ctx, linkID, nil, nil); err != nil {
		return nil, err
	}
	link.AssignedSalesRepID = nil
	link.AssignedAt = nil

	audit.LogWithDetail(ctx, audit.ActionUnassign, actor.UserID, fmt.Sprintf("link=%d", linkID), "link unassigned")
	return link, nil
}

// ListMine returns the accepted links of the caller's supplier assigned to
// the caller.
func (m *Manager) ListMine(ctx context.Context, staff domain.Identity, skip, limit int) ([]domain.Link, error) {
	supplierID, err := supplierScope(staff)
	if err != nil {
		return nil, err
	}
	return m.links.ListAssignedTo(ctx, supplierID, staff.UserID, skip, limit)
}

// ListOthers returns the accepted links of the caller's supplier that are
// unassigned or assigned to someone else.
func (m *Manager) ListOthers(ctx context.Context, staff domain.Identity, skip, limit int) ([]domain.Link, error) {
	supplierID, err := supplierScope(staff)
	if err != nil {
		return nil, err
	}
	return m.links.ListNotAssignedTo(ctx, supplierID, staff.UserID, skip, limit)
}

// ListForConsumer returns the accepted links of a consumer.
func (m *Manager) ListForConsumer(ctx context.Context, consumer domain.Identity, skip, limit int) ([]domain.Link, error) {
	if consumer.Role != domain.RoleConsumer || consumer.ConsumerID == nil {
		return nil, domain.Deny(domain.ReasonRoleNotAllowed)
	}
	return m.links.ListByConsumer(ctx, *consumer.ConsumerID, skip, limit)
}

func supplierScope(staff domain.Identity) (uint, error) {
	if !staff.Role.IsStaff() || staff.SupplierID == nil {
		return 0, domain.Deny(domain.ReasonRoleNotAllowed)
	}
	return *staff.SupplierID, nil
}

func (m *Manager) load(ctx context.Context, linkID uint) (*domain.Link, error) {
	link, err := m.links.GetLink(ctx, linkID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: load link: %v", domain.ErrStoreUnavailable, err)
	}
	return link, nil
}
