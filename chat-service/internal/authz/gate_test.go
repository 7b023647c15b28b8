package authz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dananaoo/bazarlink/chat-service/internal/authz"
	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/chat-service/internal/repository"
	"github.com/dananaoo/bazarlink/chat-service/internal/repository/repotest"
	"github.com/dananaoo/bazarlink/pkg/jwt"
)

func newGate(t *testing.T) (*authz.Gate, *jwt.Manager, *repotest.Fixture) {
	t.Helper()
	f := repotest.NewFixture(t)
	tokens, err := jwt.NewManager("test-secret", "")
	if err != nil {
		t.Fatalf("jwt: %v", err)
	}
	gate := authz.NewGate(tokens, repository.NewGormUserRepository(f.DB), repository.NewGormLinkRepository(f.DB))
	return gate, tokens, f
}

func TestDecideDeniesEveryNonAcceptedStatus(t *testing.T) {
	supplier, consumer := uint(10), uint(100)
	identities := []domain.Identity{
		{UserID: 1, Role: domain.RoleConsumer, ConsumerID: &consumer},
		{UserID: 2, Role: domain.RoleOwner, SupplierID: &supplier},
		{UserID: 3, Role: domain.RoleManager, SupplierID: &supplier},
		{UserID: 4, Role: domain.RoleSalesRepresentative, SupplierID: &supplier},
	}
	for _, status := range []domain.LinkStatus{domain.LinkStatusPending, domain.LinkStatusRemoved, domain.LinkStatusBlocked, "unknown"} {
		link := &domain.Link{ID: 1, SupplierID: supplier, ConsumerID: consumer, Status: status}
		for _, id := range identities {
			err := authz.Decide(id, link)
			if reason, _ := domain.ReasonOf(err); reason != domain.ReasonLinkNotAccepted {
				t.Fatalf("status %s role %s: err = %v, want link not accepted", status, id.Role, err)
			}
			if !errors.Is(err, domain.ErrAuthorization) {
				t.Fatalf("err %v does not wrap ErrAuthorization", err)
			}
		}
		link.Status = domain.LinkStatusAccepted
		for _, id := range identities {
			if err := authz.Decide(id, link); err != nil {
				t.Fatalf("accepted link, role %s: %v", id.Role, err)
			}
		}
	}
}

func TestCanAttach(t *testing.T) {
	gate, _, f := newGate(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		id     domain.Identity
		linkID uint
		reason domain.DenyReason
	}{
		{"consumer party", f.Consumer, f.Accepted.ID, ""},
		{"sales rep", f.RepA, f.Accepted.ID, ""},
		{"manager", f.Manager, f.Accepted.ID, ""},
		{"owner", f.Owner, f.Accepted.ID, ""},
		{"other consumer", f.OtherConsumer, f.Accepted.ID, domain.ReasonNotConsumerParty},
		{"foreign staff", f.ForeignRep, f.Accepted.ID, domain.ReasonNotSupplierStaff},
		{"pending", f.Consumer, f.Pending.ID, domain.ReasonLinkNotAccepted},
		{"blocked", f.RepA, f.Blocked.ID, domain.ReasonLinkNotAccepted},
		{"removed", f.RepA, f.Removed.ID, domain.ReasonLinkNotAccepted},
		{"missing link", f.Consumer, 999, domain.ReasonLinkNotFound},
		{"unknown role", domain.Identity{UserID: 50, Role: "auditor"}, f.Accepted.ID, domain.ReasonRoleNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := gate.CanAttach(ctx, tt.id, tt.linkID)
			if tt.reason == "" {
				if err != nil {
					t.Fatalf("CanAttach: %v", err)
				}
				if err := gate.CanPost(ctx, tt.id, tt.linkID); err != nil {
					t.Fatalf("CanPost: %v", err)
				}
				return
			}
			if reason, ok := domain.ReasonOf(err); !ok || reason != tt.reason {
				t.Fatalf("CanAttach err = %v, want %q", err, tt.reason)
			}
			if reason, _ := domain.ReasonOf(gate.CanPost(ctx, tt.id, tt.linkID)); reason != tt.reason {
				t.Fatalf("CanPost reason = %q, want %q", reason, tt.reason)
			}
		})
	}
}

func TestCanViewIgnoresStatus(t *testing.T) {
	gate, _, f := newGate(t)

	if _, err := gate.CanView(context.Background(), f.Consumer, f.Blocked.ID); err != nil {
		t.Fatalf("party cannot view blocked link history: %v", err)
	}
	if _, err := gate.CanView(context.Background(), f.ForeignRep, f.Blocked.ID); err == nil {
		t.Fatal("foreign staff can view history")
	}
}

func TestAuthenticate(t *testing.T) {
	gate, tokens, f := newGate(t)
	ctx := context.Background()

	good, _ := tokens.Issue(f.RepA.UserID, time.Minute)
	id, err := gate.Authenticate(ctx, good)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.UserID != f.RepA.UserID || id.Role != domain.RoleSalesRepresentative {
		t.Fatalf("identity = %+v", id)
	}

	inactive, _ := tokens.Issue(f.Inactive.UserID, time.Minute)
	missing, _ := tokens.Issue(4040, time.Minute)
	expired, _ := tokens.Issue(f.RepA.UserID, -time.Minute)

	for name, token := range map[string]string{
		"empty":    "",
		"garbage":  "abc",
		"expired":  expired,
		"inactive": inactive,
		"missing":  missing,
	} {
		if _, err := gate.Authenticate(ctx, token); !errors.Is(err, domain.ErrAuthentication) {
			t.Fatalf("%s: err = %v, want ErrAuthentication", name, err)
		}
	}
}

func TestCanPostRereadsAccount(t *testing.T) {
	gate, _, f := newGate(t)
	ctx := context.Background()

	// the identity was captured while the account was still active
	err := gate.CanPost(ctx, f.Inactive, f.Accepted.ID)
	if reason, _ := domain.ReasonOf(err); reason != domain.ReasonInactiveUser || !errors.Is(err, domain.ErrAuthentication) {
		t.Fatalf("inactive CanPost = %v", err)
	}

	if err := f.DB.Model(&domain.UserModel{}).Where("id = ?", f.RepB.UserID).Update("supplier_id", repotest.ForeignSupplierID).Error; err != nil {
		t.Fatalf("move rep: %v", err)
	}
	err = gate.CanPost(ctx, f.RepB, f.Accepted.ID)
	if reason, _ := domain.ReasonOf(err); reason != domain.ReasonNotSupplierStaff {
		t.Fatalf("moved rep CanPost = %v", err)
	}
}
