package contract

import "time"

type TurnStatus string

const (
	TurnPending   TurnStatus = "pending"
	TurnCompleted TurnStatus = "completed"
	TurnFailed    TurnStatus = "failed"
)

type StepStatus string

const (
	StepPlanned   StepStatus = "planned"
	StepExecuting StepStatus = "executing"
	StepDone      StepStatus = "done"
	StepFailed    StepStatus = "failed"
)

type MemoryRole string

const (
	RoleUser  MemoryRole = "user"
	RoleAgent MemoryRole = "agent"
)

// ToolCall is the request half of a tool invocation. Deadline is the
// per-attempt execution budget, not a wall-clock instant.
type ToolCall struct {
	Tool     string         `json:"tool"`
	Args     map[string]any `json:"args,omitempty"`
	Deadline time.Duration  `json:"deadline"`
}

type ToolResult struct {
	Tool    string        `json:"tool"`
	OK      bool          `json:"ok"`
	Output  any           `json:"output,omitempty"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"latency"`
}

// Step is one planner-decided unit of work within a Turn. Insertion order is
// the only meaningful order; steps are never reordered after creation.
type Step struct {
	ID       string      `json:"id"`
	Intent   string      `json:"intent"`
	Status   StepStatus  `json:"status"`
	Call     *ToolCall   `json:"call,omitempty"`
	Result   *ToolResult `json:"result,omitempty"`
	Attempts int         `json:"attempts,omitempty"`
}

// Turn is one question-answer exchange. It is append-only while pending and
// immutable once completed or failed.
type Turn struct {
	ID         string     `json:"id"`
	SessionID  string     `json:"session_id"`
	Question   string     `json:"question"`
	Steps      []*Step    `json:"steps,omitempty"`
	Answer     string     `json:"answer,omitempty"`
	Status     TurnStatus `json:"status"`
	FailureLog []string   `json:"failure_log,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	EndedAt    time.Time  `json:"ended_at,omitempty"`
}

// Document is a reference text stored in a document corpus. Immutable once
// stored; the orchestration core only reads them.
type Document struct {
	ID        string    `json:"id"`
	Corpus    string    `json:"corpus"` // "global" | "user:<id>"
	Text      string    `json:"text"`
	Embedding []float64 `json:"embedding,omitempty"`
}

// MemoryRecord is one append-only conversational record.
type MemoryRecord struct {
	SessionID string     `json:"session_id"`
	TurnID    string     `json:"turn_id"`
	Role      MemoryRole `json:"role"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Embedding []float64  `json:"embedding,omitempty"`
}

type ContextSource string

const (
	SourceGlobalDoc ContextSource = "global"
	SourceUserDoc   ContextSource = "user"
	SourceMemory    ContextSource = "memory"
)

type ContextEntry struct {
	Source ContextSource `json:"source"`
	Text   string        `json:"text"`
	Score  float64       `json:"score"`
}

// RetrievedContext is the fused, ranked evidence assembled for a single
// planning decision. Assembled fresh per request; never persisted.
type RetrievedContext struct {
	Entries []ContextEntry `json:"entries,omitempty"`
	// FailedSources lists retrieval sources that errored or timed out while
	// gathering. Informational only; a partial context is still usable.
	FailedSources []string `json:"failed_sources,omitempty"`
}

func (rc RetrievedContext) Empty() bool {
	return len(rc.Entries) == 0
}
