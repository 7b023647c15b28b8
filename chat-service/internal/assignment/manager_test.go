package assignment_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dananaoo/bazarlink/chat-service/internal/assignment"
	"github.com/dananaoo/bazarlink/chat-service/internal/authz"
	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/chat-service/internal/repository"
	"github.com/dananaoo/bazarlink/chat-service/internal/repository/repotest"
	"github.com/dananaoo/bazarlink/pkg/jwt"
)

func setup(t *testing.T) (*assignment.Manager, *authz.Gate, *repotest.Fixture) {
	t.Helper()
	f := repotest.NewFixture(t)
	links := repository.NewGormLinkRepository(f.DB)
	tokens, _ := jwt.NewManager("secret", "")
	return assignment.NewManager(links), authz.NewGate(tokens, repository.NewGormUserRepository(f.DB), links), f
}

func TestClaimIsLastWriterWinsAndNeverGatesAccess(t *testing.T) {
	m, gate, f := setup(t)
	ctx := context.Background()

	if _, err := m.Claim(ctx, f.Accepted.ID, f.RepA); err != nil {
		t.Fatalf("claim A: %v", err)
	}
	link, err := m.Claim(ctx, f.Accepted.ID, f.RepB)
	if err != nil {
		t.Fatalf("claim B: %v", err)
	}
	if link.AssignedSalesRepID == nil || *link.AssignedSalesRepID != f.RepB.UserID {
		t.Fatalf("assigned = %v, want %d", link.AssignedSalesRepID, f.RepB.UserID)
	}

	mineA, _ := m.ListMine(ctx, f.RepA, 0, 50)
	mineB, _ := m.ListMine(ctx, f.RepB, 0, 50)
	if len(mineA) != 0 || len(mineB) != 1 {
		t.Fatalf("mine A=%d B=%d, want 0 and 1", len(mineA), len(mineB))
	}
	othersA, _ := m.ListOthers(ctx, f.RepA, 0, 50)
	if len(othersA) != 1 || othersA[0].ID != f.Accepted.ID {
		t.Fatalf("others for A = %+v", othersA)
	}

	if err := gate.CanPost(ctx, f.RepA, f.Accepted.ID); err != nil {
		t.Fatalf("previous assignee lost post access: %v", err)
	}
	if err := gate.CanPost(ctx, f.Manager, f.Accepted.ID); err != nil {
		t.Fatalf("unassigned manager lost post access: %v", err)
	}
}

func TestClaimRules(t *testing.T) {
	m, _, f := setup(t)
	ctx := context.Background()

	if _, err := m.Claim(ctx, f.Accepted.ID, f.Manager); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("manager claim err = %v", err)
	}
	if _, err := m.Claim(ctx, f.Accepted.ID, f.ForeignRep); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("foreign rep claim err = %v", err)
	}
	if _, err := m.Claim(ctx, f.Pending.ID, f.RepA); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("pending claim err = %v", err)
	}
	if _, err := m.Claim(ctx, 999, f.RepA); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing link err = %v", err)
	}
}

func TestUnclaim(t *testing.T) {
	m, _, f := setup(t)
	ctx := context.Background()

	if _, err := m.Claim(ctx, f.Accepted.ID, f.RepA); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := m.Unclaim(ctx, f.Accepted.ID, f.RepB); !errors.Is(err, assignment.ErrNotAssignee) {
		t.Fatalf("other rep unclaim err = %v", err)
	}
	link, err := m.Unclaim(ctx, f.Accepted.ID, f.Manager)
	if err != nil {
		t.Fatalf("manager unclaim: %v", err)
	}
	if link.AssignedSalesRepID != nil {
		t.Fatal("assignment not cleared")
	}

	if _, err := m.Claim(ctx, f.Accepted.ID, f.RepA); err != nil {
		t.Fatalf("re-claim: %v", err)
	}
	if _, err := m.Unclaim(ctx, f.Accepted.ID, f.RepA); err != nil {
		t.Fatalf("self unclaim: %v", err)
	}
	if _, err := m.Unclaim(ctx, f.Accepted.ID, f.Consumer); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("consumer unclaim err = %v", err)
	}
}

func TestListForConsumer(t *testing.T) {
	m, _, f := setup(t)

	links, err := m.ListForConsumer(context.Background(), f.Consumer, 0, 50)
	if err != nil {
		t.Fatalf("ListForConsumer: %v", err)
	}
	if len(links) != 1 || links[0].ID != f.Accepted.ID {
		t.Fatalf("links = %+v", links)
	}
	if _, err := m.ListForConsumer(context.Background(), f.RepA, 0, 50); err == nil {
		t.Fatal("staff listed consumer chats")
	}
	if _, err := m.ListMine(context.Background(), f.Consumer, 0, 50); err == nil {
		t.Fatal("consumer listed staff chats")
	}
}
