package service

import (
	"context"
	"errors"
	"testing"

	"github.com/dananaoo/bazarlink/chat-service/internal/domain"
)

func seed(t *testing.T, e *env, from domain.Identity, contents ...string) []*domain.ChatMessage {
	t.Helper()
	var out []*domain.ChatMessage
	for _, content := range contents {
		msg := domain.NewUserMessage(e.f.Accepted.ID, from, domain.KindText, content, "", "")
		if err := e.store.Persist(context.Background(), msg); err != nil {
			t.Fatalf("persist: %v", err)
		}
		out = append(out, msg)
	}
	return out
}

func TestHistoryMarksOtherSideRead(t *testing.T) {
	e := newEnv(t, options{})
	h := NewHistoryService(e.gate, e.store, chatConfig)
	ctx := context.Background()

	seed(t, e, e.f.Consumer, "c1", "c2")
	seed(t, e, e.f.RepA, "r1")

	got, err := h.History(ctx, e.f.RepB, e.f.Accepted.ID, 0, 0)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 3 || got[0].Content != "c1" || got[2].Content != "r1" {
		t.Fatalf("history = %+v", got)
	}

	// the consumer's messages were read by staff, the rep's were not
	stored, _ := e.store.ListRecent(ctx, e.f.Accepted.ID, 0, 10)
	for _, m := range stored {
		if m.Role == domain.RoleConsumer && !m.IsRead() {
			t.Fatalf("consumer message %d left unread", m.ID)
		}
		if m.Role.IsStaff() && m.IsRead() {
			t.Fatalf("staff message %d marked read by staff", m.ID)
		}
	}
}

func TestHistoryWindow(t *testing.T) {
	e := newEnv(t, options{})
	h := NewHistoryService(e.gate, e.store, chatConfig)
	seed(t, e, e.f.Consumer, "1", "2", "3", "4", "5")

	got, err := h.History(context.Background(), e.f.Consumer, e.f.Accepted.ID, 1, 2)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 2 || got[0].Content != "3" || got[1].Content != "4" {
		t.Fatalf("window = %+v", got)
	}
}

func TestHistoryAccess(t *testing.T) {
	e := newEnv(t, options{})
	h := NewHistoryService(e.gate, e.store, chatConfig)
	ctx := context.Background()

	if _, err := h.History(ctx, e.f.OtherConsumer, e.f.Accepted.ID, 0, 10); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("outsider err = %v", err)
	}
	if _, err := h.History(ctx, e.f.ForeignRep, e.f.Accepted.ID, 0, 10); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("foreign staff err = %v", err)
	}
	if _, err := h.History(ctx, e.f.Consumer, 999, 0, 10); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("missing link err = %v", err)
	}
	// parties keep read access to a closed chat
	if _, err := h.History(ctx, e.f.Consumer, e.f.Blocked.ID, 0, 10); err != nil {
		t.Fatalf("blocked link history: %v", err)
	}
}

func TestMarkMessageRead(t *testing.T) {
	e := newEnv(t, options{})
	h := NewHistoryService(e.gate, e.store, chatConfig)
	ctx := context.Background()

	msgs := seed(t, e, e.f.Consumer, "question")

	if _, err := h.MarkMessageRead(ctx, e.f.Consumer, msgs[0].ID); !errors.Is(err, ErrOwnMessage) {
		t.Fatalf("own message err = %v", err)
	}
	if _, err := h.MarkMessageRead(ctx, e.f.ForeignRep, msgs[0].ID); !errors.Is(err, domain.ErrAuthorization) {
		t.Fatalf("foreign staff err = %v", err)
	}

	got, err := h.MarkMessageRead(ctx, e.f.Manager, msgs[0].ID)
	if err != nil {
		t.Fatalf("MarkMessageRead: %v", err)
	}
	if !got.IsRead() {
		t.Fatal("message not read")
	}
	first := *got.ReadAt

	again, err := h.MarkMessageRead(ctx, e.f.RepA, msgs[0].ID)
	if err != nil {
		t.Fatalf("second MarkMessageRead: %v", err)
	}
	if !again.ReadAt.Equal(first) {
		t.Fatalf("read_at moved from %v to %v", first, again.ReadAt)
	}

	if _, err := h.MarkMessageRead(ctx, e.f.Manager, 12345); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("missing message err = %v", err)
	}
}
