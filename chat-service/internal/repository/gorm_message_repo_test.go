package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
	"github.com/dananaoo/bazarlink/chat-service/internal/repository"
	"github.com/dananaoo/bazarlink/chat-service/internal/repository/repotest"
)

func TestPersistAssignsIncreasingIDs(t *testing.T) {
	f := repotest.NewFixture(t)
	store := repository.NewGormMessageRepository(f.DB)
	ctx := context.Background()

	var prev *domain.ChatMessage
	for i := 0; i < 5; i++ {
		msg := domain.NewUserMessage(f.Accepted.ID, f.Consumer, domain.KindText, "hello", "", "")
		if err := store.Persist(ctx, msg); err != nil {
			t.Fatalf("Persist: %v", err)
		}
		if msg.ID == 0 || msg.CreatedAt.IsZero() {
			t.Fatalf("Persist left id=%d created_at=%v", msg.ID, msg.CreatedAt)
		}
		if prev != nil {
			if msg.ID <= prev.ID {
				t.Fatalf("id %d not greater than previous %d", msg.ID, prev.ID)
			}
			if msg.CreatedAt.Before(prev.CreatedAt) {
				t.Fatalf("created_at went backwards")
			}
		}
		prev = msg
	}
}

func TestStaffMessageRecordsRespondingStaff(t *testing.T) {
	f := repotest.NewFixture(t)
	store := repository.NewGormMessageRepository(f.DB)

	msg := domain.NewUserMessage(f.Accepted.ID, f.RepA, domain.KindText, "hi", "", "")
	if err := store.Persist(context.Background(), msg); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	got, err := store.GetMessage(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.RespondingStaffID == nil || *got.RespondingStaffID != f.RepA.UserID {
		t.Fatalf("responding staff = %v, want %d", got.RespondingStaffID, f.RepA.UserID)
	}
	if got.Role != domain.RoleSalesRepresentative {
		t.Fatalf("role = %q", got.Role)
	}
}

func TestListRecentReturnsNewestWindowInOrder(t *testing.T) {
	f := repotest.NewFixture(t)
	store := repository.NewGormMessageRepository(f.DB)
	ctx := context.Background()

	contents := []string{"one", "two", "three", "four", "five"}
	for _, c := range contents {
		if err := store.Persist(ctx, domain.NewUserMessage(f.Accepted.ID, f.Consumer, domain.KindText, c, "", "")); err != nil {
			t.Fatalf("Persist: %v", err)
		}
	}
	// other links never leak in
	if err := store.Persist(ctx, domain.NewUserMessage(f.Pending.ID, f.Consumer, domain.KindText, "elsewhere", "", "")); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	got, err := store.ListRecent(ctx, f.Accepted.ID, 1, 3)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	want := []string{"two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Content != want[i] {
			t.Fatalf("got[%d] = %q, want %q", i, got[i].Content, want[i])
		}
	}
}

func TestMarkReadOnlyTouchesOtherSide(t *testing.T) {
	f := repotest.NewFixture(t)
	store := repository.NewGormMessageRepository(f.DB)
	ctx := context.Background()

	for _, sender := range []domain.Identity{f.Consumer, f.RepA, f.Manager, f.Consumer} {
		if err := store.Persist(ctx, domain.NewUserMessage(f.Accepted.ID, sender, domain.KindText, "x", "", "")); err != nil {
			t.Fatalf("Persist: %v", err)
		}
	}

	n, err := store.MarkRead(ctx, f.Accepted.ID, domain.RoleSalesRepresentative)
	if err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n != 2 {
		t.Fatalf("staff marked %d, want 2 consumer messages", n)
	}

	n, err = store.MarkRead(ctx, f.Accepted.ID, domain.RoleSalesRepresentative)
	if err != nil {
		t.Fatalf("MarkRead again: %v", err)
	}
	if n != 0 {
		t.Fatalf("second MarkRead = %d, want 0", n)
	}

	n, err = store.MarkRead(ctx, f.Accepted.ID, domain.RoleConsumer)
	if err != nil {
		t.Fatalf("MarkRead consumer: %v", err)
	}
	if n != 2 {
		t.Fatalf("consumer marked %d, want 2 staff messages", n)
	}

	msgs, _ := store.ListRecent(ctx, f.Accepted.ID, 0, 10)
	for _, m := range msgs {
		if m.ReadAt == nil {
			t.Fatalf("message %d still unread", m.ID)
		}
		if m.ReadAt.Before(m.CreatedAt) {
			t.Fatalf("message %d read before it was created", m.ID)
		}
	}
}

func TestMarkOneReadKeepsFirstTimestamp(t *testing.T) {
	f := repotest.NewFixture(t)
	store := repository.NewGormMessageRepository(f.DB)
	ctx := context.Background()

	msg := domain.NewUserMessage(f.Accepted.ID, f.Consumer, domain.KindText, "x", "", "")
	if err := store.Persist(ctx, msg); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	first, err := store.MarkOneRead(ctx, msg.ID)
	if err != nil {
		t.Fatalf("MarkOneRead: %v", err)
	}
	if first.ReadAt == nil {
		t.Fatal("read_at not set")
	}
	second, err := store.MarkOneRead(ctx, msg.ID)
	if err != nil {
		t.Fatalf("MarkOneRead again: %v", err)
	}
	if !second.ReadAt.Equal(*first.ReadAt) {
		t.Fatalf("read_at changed from %v to %v", first.ReadAt, second.ReadAt)
	}

	if _, err := store.MarkOneRead(ctx, 9999); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing message err = %v, want ErrNotFound", err)
	}
}
