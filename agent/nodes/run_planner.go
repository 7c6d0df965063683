package nodes

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/naphat/mathflow/agent/contract"
	plannerx "github.com/naphat/mathflow/agent/planner"
)

// RunPlanner drives the per-turn planner state machine: decompose, then the
// act/observe loop with tool dispatch through the orchestrator's dispatcher,
// then finalize. Cancellation aborts the planner; the turn still gets a
// degraded answer rather than staying pending.
func RunPlanner(ctx context.Context, in *GraphState, dispatcher Dispatcher, cfg plannerx.Config) (*GraphState, error) {
	if in == nil || in.Turn == nil {
		return nil, fmt.Errorf("%w: graph turn is nil", contractx.ErrValidation)
	}

	p := plannerx.New(cfg)
	p.Decompose(in.Question, in.Context, dispatcher.Has)

	for {
		if err := ctx.Err(); err != nil {
			p.Abort(abortCause(err))
			break
		}

		step := p.Next()
		if step == nil {
			break
		}

		result, err := dispatcher.Invoke(ctx, step.Call.Tool, step.Call.Args, step.Call.Deadline)
		if err != nil && ctx.Err() != nil {
			// distinguish session cancellation from a per-step timeout
			step.Status = contractx.StepFailed
			step.Result = &result
			p.Abort(abortCause(ctx.Err()))
			break
		}
		p.Observe(step, result, err)
	}

	in.Turn.Steps = p.Steps()
	in.Answer = p.Finalize()
	if p.Phase() == plannerx.PhaseAborted {
		in.Failed = true
		in.Cause = in.Answer
	}

	log.Info().
		Str("session_id", in.SessionID).
		Str("turn_id", in.Turn.ID).
		Int("steps", len(in.Turn.Steps)).
		Bool("failed", in.Failed).
		Msg("planner finished")
	return in, nil
}

func abortCause(err error) string {
	if errors.Is(err, context.Canceled) {
		return contractx.ErrSessionClosed.Error()
	}
	return err.Error()
}
