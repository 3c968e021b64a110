package memory

import (
	"context"
	"testing"

	"github.com/loomkg/loom/pkg/model"
)

func TestAppendAndHistory(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	err := s.Append(ctx, "c1",
		model.Turn{Role: model.RoleUser, Content: "hello"},
		model.Turn{Role: model.RoleAssistant, Content: "hi"},
	)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(ctx, "c1", model.Turn{Role: model.RoleUser, Content: "more"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := s.History(ctx, "c1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 || history[0].Content != "hello" || history[2].Content != "more" {
		t.Fatalf("unexpected history: %+v", history)
	}
}

func TestHistoryIsACopy(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Append(ctx, "c1", model.Turn{Role: model.RoleUser, Content: "original"})

	history, _ := s.History(ctx, "c1")
	history[0].Content = "mutated"

	again, _ := s.History(ctx, "c1")
	if again[0].Content != "original" {
		t.Fatalf("history must not share backing storage with the store")
	}
}

func TestConversationsAreIsolated(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Append(ctx, "c1", model.Turn{Role: model.RoleUser, Content: "for c1"})

	history, err := s.History(ctx, "c2")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history for unknown conversation, got %+v", history)
	}
}

func TestClear(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	_ = s.Append(ctx, "c1", model.Turn{Role: model.RoleUser, Content: "x"})

	if err := s.Clear(ctx, "c1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	history, _ := s.History(ctx, "c1")
	if len(history) != 0 {
		t.Fatalf("expected cleared history, got %+v", history)
	}
}
