package nodes

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/naphat/mathflow/agent/contract"
	statex "github.com/naphat/mathflow/agent/state"
)

var (
	ErrInvalidQuestion = errors.New("question is empty")
	ErrInvalidSession  = errors.New("session id is empty")
)

// Dispatcher is what the planner loop needs from the tool registry: uniform
// invocation plus registration lookup so plans only target known tools.
type Dispatcher interface {
	contractx.ToolInvoker
	Has(name string) bool
}

type GraphInput struct {
	SessionID string
	UserID    string
	Question  string
}

type GraphOutput struct {
	Turn *contractx.Turn
}

// GraphState threads one turn through the pipeline nodes.
type GraphState struct {
	SessionID string
	UserID    string
	Question  string
	Now       time.Time

	Session *statex.Session
	Turn    *contractx.Turn
	Context contractx.RetrievedContext

	Answer string
	Failed bool
	Cause  string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		return nil, ErrInvalidSession
	}
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, ErrInvalidQuestion
	}
	return &GraphState{
		SessionID: sessionID,
		UserID:    strings.TrimSpace(in.UserID),
		Question:  question,
		Now:       nowFn().UTC(),
	}, nil
}
