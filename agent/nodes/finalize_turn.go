package nodes

import (
	"context"
	"fmt"

	contractx "github.com/naphat/mathflow/agent/contract"
	statex "github.com/naphat/mathflow/agent/state"
)

// FinalizeTurn transitions the turn to its terminal status, validates the
// session invariants, and persists the session. After this node the turn is
// immutable; a pending turn never escapes the pipeline.
func FinalizeTurn(ctx context.Context, in *GraphState, store statex.Store) (GraphOutput, error) {
	if in == nil || in.Session == nil || in.Turn == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is incomplete", contractx.ErrValidation)
	}

	status := contractx.TurnCompleted
	if in.Failed {
		status = contractx.TurnFailed
		in.Turn.FailureLog = append(in.Turn.FailureLog, in.Cause)
	}
	if err := in.Session.FinishTurn(in.Turn.ID, status, in.Answer, in.Now); err != nil {
		return GraphOutput{}, err
	}
	if err := in.Session.Validate(); err != nil {
		return GraphOutput{}, fmt.Errorf("session validation failed: %w", err)
	}

	// The turn outcome must persist even when the turn context was cancelled.
	if err := store.Save(context.WithoutCancel(ctx), in.Session); err != nil {
		return GraphOutput{}, fmt.Errorf("save session: %w", err)
	}
	return GraphOutput{Turn: in.Turn}, nil
}
