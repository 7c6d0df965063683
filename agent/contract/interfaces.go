package contract

import (
	"context"
	"time"
)

// ToolInvoker is the uniform invocation surface over external computation
// tools. The planner never calls it directly; dispatch goes through the
// orchestrator so retry, timeout, and telemetry policy live in one place.
type ToolInvoker interface {
	// Invoke runs the named tool. The returned error, when non-nil, wraps one
	// of ErrUnknownTool, ErrInvalidArguments, ErrToolTimeout, or
	// ErrToolExecution; the ToolResult always carries latency and, on
	// failure, the error description.
	Invoke(ctx context.Context, name string, args map[string]any, deadline time.Duration) (ToolResult, error)
}

// DocumentSearcher is the read side of a document corpus.
type DocumentSearcher interface {
	Search(ctx context.Context, query string, k int) ([]ScoredDocument, error)
}

type ScoredDocument struct {
	Document Document
	Score    float64
}

// MemoryStore is the append-only conversational record store.
type MemoryStore interface {
	Append(ctx context.Context, rec MemoryRecord) error
	Recall(ctx context.Context, sessionID, query string, k int) ([]ScoredMemory, error)
}

type ScoredMemory struct {
	Record MemoryRecord
	Score  float64
}

// Retriever fuses document and memory lookups into one ranked context.
type Retriever interface {
	Gather(ctx context.Context, sessionID, userID, query string) RetrievedContext
}

// EmbedFunc turns text into an embedding vector. Stores degrade to lexical
// scoring when it is nil or fails.
type EmbedFunc func(ctx context.Context, text string) ([]float64, error)
