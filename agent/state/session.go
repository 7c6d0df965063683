package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	contractx "github.com/naphat/mathflow/agent/contract"
)

var (
	ErrSessionClosed   = errors.New("session is closed")
	ErrTurnInFlight    = errors.New("a turn is already in flight")
	ErrTurnImmutable   = errors.New("turn is already terminal")
	ErrUnknownTurn     = errors.New("turn not found")
	ErrInvalidSession  = errors.New("session id is empty")
	ErrInvalidQuestion = errors.New("question is empty")
)

// Session is the per-user conversation container. It is owned exclusively by
// the orchestrator; callers only ever see snapshots of its Turns.
type Session struct {
	ID      string            `json:"id"`
	UserID  string            `json:"user_id"`
	Turns   []*contractx.Turn `json:"turns,omitempty"`
	Scratch map[string]any    `json:"scratch,omitempty"`

	Closed    bool      `json:"closed"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewSession(sessionID, userID string, now time.Time) *Session {
	return &Session{
		ID:        sessionID,
		UserID:    userID,
		Scratch:   make(map[string]any, 8),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
}

func (s *Session) Touch(now time.Time) {
	s.UpdatedAt = now.UTC()
}

// BeginTurn appends a new pending Turn. Only one Turn may be pending at a
// time within a session; later steps depend on earlier results.
func (s *Session) BeginTurn(question string, now time.Time) (*contractx.Turn, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}
	if s.Closed {
		return nil, ErrSessionClosed
	}
	if question == "" {
		return nil, ErrInvalidQuestion
	}
	if cur := s.PendingTurn(); cur != nil {
		return nil, fmt.Errorf("%w: turn=%s", ErrTurnInFlight, cur.ID)
	}

	turn := &contractx.Turn{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		Question:  question,
		Status:    contractx.TurnPending,
		StartedAt: now.UTC(),
	}
	s.Turns = append(s.Turns, turn)
	s.Touch(now)
	return turn, nil
}

// FinishTurn transitions a pending turn to completed or failed. Terminal
// turns are immutable; a second transition is rejected.
func (s *Session) FinishTurn(turnID string, status contractx.TurnStatus, answer string, now time.Time) error {
	if s == nil {
		return errors.New("nil session")
	}
	if status != contractx.TurnCompleted && status != contractx.TurnFailed {
		return fmt.Errorf("invalid terminal status %q", status)
	}

	turn := s.findTurn(turnID)
	if turn == nil {
		return fmt.Errorf("%w: %s", ErrUnknownTurn, turnID)
	}
	if turn.Status != contractx.TurnPending {
		return fmt.Errorf("%w: turn=%s status=%s", ErrTurnImmutable, turnID, turn.Status)
	}

	turn.Status = status
	turn.Answer = answer
	turn.EndedAt = now.UTC()
	s.Touch(now)
	return nil
}

// PendingTurn returns the in-flight turn, or nil.
func (s *Session) PendingTurn() *contractx.Turn {
	if s == nil {
		return nil
	}
	for i := len(s.Turns) - 1; i >= 0; i-- {
		if s.Turns[i].Status == contractx.TurnPending {
			return s.Turns[i]
		}
	}
	return nil
}

func (s *Session) findTurn(turnID string) *contractx.Turn {
	for _, t := range s.Turns {
		if t.ID == turnID {
			return t
		}
	}
	return nil
}

// Close marks the session closed. Turns must already be terminal; the caller
// fails any in-flight turn before closing.
func (s *Session) Close(now time.Time) {
	if s == nil || s.Closed {
		return
	}
	s.Closed = true
	s.Touch(now)
}

// Validate checks the session's structural invariants: every step belongs to
// exactly one turn, turn statuses are known, a result implies a call, and a
// closed session holds no pending turns.
func (s *Session) Validate() error {
	if s == nil {
		return errors.New("nil session")
	}
	for _, t := range s.Turns {
		switch t.Status {
		case contractx.TurnPending, contractx.TurnCompleted, contractx.TurnFailed:
		default:
			return fmt.Errorf("turn %s has invalid status %q", t.ID, t.Status)
		}
		if s.Closed && t.Status == contractx.TurnPending {
			return fmt.Errorf("closed session has pending turn %s", t.ID)
		}
		for _, step := range t.Steps {
			if step.Result != nil && step.Call == nil {
				return fmt.Errorf("step %s has a result without a call", step.ID)
			}
		}
	}
	return nil
}
