package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/naphat/mathflow/agent/contract"
)

func rec(session, turn string, role contractx.MemoryRole, content string) contractx.MemoryRecord {
	return contractx.MemoryRecord{
		SessionID: session,
		TurnID:    turn,
		Role:      role,
		Content:   content,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestConversationStoreAppendAndRecall(t *testing.T) {
	t.Parallel()

	cs := NewConversationStore()
	ctx := context.Background()

	for _, r := range []contractx.MemoryRecord{
		rec("s1", "t1", contractx.RoleUser, "what is the derivative of x^2"),
		rec("s1", "t1", contractx.RoleAgent, "the derivative is 2x"),
		rec("s1", "t2", contractx.RoleUser, "unrelated greeting"),
		rec("s2", "t9", contractx.RoleUser, "derivative talk in another session"),
	} {
		if err := cs.Append(ctx, r); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}

	hits, err := cs.Recall(ctx, "s1", "derivative", 10)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	// equal scores: turn id then append order decide
	if hits[0].Record.Content != "what is the derivative of x^2" {
		t.Fatalf("unexpected first hit: %q", hits[0].Record.Content)
	}
	for _, h := range hits {
		if h.Record.SessionID != "s1" {
			t.Fatalf("recall leaked session %s", h.Record.SessionID)
		}
	}
}

func TestConversationStoreRecallUnknownSession(t *testing.T) {
	t.Parallel()

	cs := NewConversationStore()
	hits, err := cs.Recall(context.Background(), "missing", "anything", 5)
	if err != nil {
		t.Fatalf("Recall() error = %v", err)
	}
	if len(hits) != 0 {
		t.Fatalf("expected empty recall, got %d hits", len(hits))
	}
}

func TestConversationStoreCapacity(t *testing.T) {
	t.Parallel()

	cs := NewConversationStore(WithCapacity(1))
	ctx := context.Background()

	if err := cs.Append(ctx, rec("s1", "t1", contractx.RoleUser, "first")); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	err := cs.Append(ctx, rec("s1", "t1", contractx.RoleAgent, "second"))
	if !errors.Is(err, contractx.ErrStorageExhausted) {
		t.Fatalf("expected ErrStorageExhausted, got %v", err)
	}
}

func TestConversationStoreRejectsBlankSession(t *testing.T) {
	t.Parallel()

	cs := NewConversationStore()
	err := cs.Append(context.Background(), rec("  ", "t1", contractx.RoleUser, "content"))
	if !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestLexicalScore(t *testing.T) {
	t.Parallel()

	cases := []struct {
		query, candidate string
		want             float64
	}{
		{"chain rule", "the chain rule for derivatives", 1.0},
		{"chain rule", "the product rule", 0.05},
		{"chain chain rule", "the product rule", 0.05},
		{"nothing shared", "the product rule", 0},
		{"", "anything", 0},
	}
	for _, c := range cases {
		if got := lexicalScore(c.query, c.candidate); got != c.want {
			t.Fatalf("lexicalScore(%q, %q) = %f, want %f", c.query, c.candidate, got, c.want)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	t.Parallel()

	if got := normalizeText("  The   POWER rule \n"); got != "the power rule" {
		t.Fatalf("normalizeText() = %q", got)
	}
}
