package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	contractx "github.com/naphat/mathflow/agent/contract"
)

type Phase string

const (
	PhaseStart     Phase = "start"
	PhaseDecompose Phase = "decompose"
	PhaseAct       Phase = "act"
	PhaseObserve   Phase = "observe"
	PhaseFinalize  Phase = "finalize"
	PhaseDone      Phase = "done"
	PhaseAborted   Phase = "aborted"
)

type Config struct {
	MaxSteps    int
	ToolRetries int
	ToolTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxSteps <= 0 {
		c.MaxSteps = 8
	}
	if c.ToolRetries < 0 {
		c.ToolRetries = 0
	}
	if c.ToolTimeout <= 0 {
		c.ToolTimeout = 15 * time.Second
	}
	return c
}

// Planner is the per-turn state machine:
// START -> DECOMPOSE -> (ACT -> OBSERVE)* -> FINALIZE -> DONE, or ABORTED.
// The orchestrator drives it: Next hands out the step to execute, Observe
// feeds the result back, Finalize synthesizes the answer.
type Planner struct {
	cfg      Config
	phase    Phase
	question string

	plan    []Intent
	nextIdx int

	steps      []*contractx.Step
	scratch    []string
	caveats    []string
	abortCause string

	retrying *contractx.Step
}

func New(cfg Config) *Planner {
	return &Planner{
		cfg:   cfg.withDefaults(),
		phase: PhaseStart,
	}
}

func (p *Planner) Phase() Phase {
	return p.phase
}

func (p *Planner) Steps() []*contractx.Step {
	return p.steps
}

// Decompose builds the ordered plan from the question and its retrieved
// context. The available func reports whether a tool name is registered so
// the plan only targets dispatchable tools.
func (p *Planner) Decompose(question string, rc contractx.RetrievedContext, available func(string) bool) {
	p.phase = PhaseDecompose
	p.question = question
	if available == nil {
		available = func(string) bool { return false }
	}
	p.plan = decompose(question, rc, available)
	for _, src := range rc.FailedSources {
		p.caveats = append(p.caveats, "retrieval degraded: "+src)
	}
	log.Debug().Int("intents", len(p.plan)).Int("context_entries", len(rc.Entries)).Msg("question decomposed")
	p.phase = PhaseAct
}

// Next returns the next step requiring a tool dispatch, or nil when the
// planner has moved to FINALIZE. Pure-reasoning intents are absorbed
// immediately as done steps. The step budget is enforced here, counting
// reasoning and tool steps alike.
func (p *Planner) Next() *contractx.Step {
	if p.phase == PhaseAborted || p.phase == PhaseDone {
		return nil
	}

	if p.retrying != nil {
		step := p.retrying
		p.retrying = nil
		step.Status = contractx.StepExecuting
		p.phase = PhaseAct
		return step
	}

	for p.nextIdx < len(p.plan) {
		if len(p.steps) >= p.cfg.MaxSteps {
			p.caveats = append(p.caveats, fmt.Sprintf("step budget of %d reached with %d intents unexecuted", p.cfg.MaxSteps, len(p.plan)-p.nextIdx))
			p.phase = PhaseFinalize
			return nil
		}

		intent := p.plan[p.nextIdx]
		p.nextIdx++

		step := &contractx.Step{
			ID:     uuid.NewString(),
			Intent: intent.Text,
			Status: contractx.StepPlanned,
		}
		p.steps = append(p.steps, step)

		if intent.Tool == "" {
			step.Status = contractx.StepDone
			p.scratch = append(p.scratch, intent.Text)
			continue
		}

		step.Call = &contractx.ToolCall{
			Tool:     intent.Tool,
			Args:     intent.Args,
			Deadline: p.cfg.ToolTimeout,
		}
		step.Status = contractx.StepExecuting
		p.phase = PhaseAct
		return step
	}

	p.phase = PhaseFinalize
	return nil
}

// Observe incorporates a dispatch outcome. Timeouts and execution errors are
// retried with the same arguments up to the configured bound; past it the
// step is marked failed with the failure kept in the turn's provenance, and
// planning proceeds.
func (p *Planner) Observe(step *contractx.Step, result contractx.ToolResult, dispatchErr error) {
	if p.phase == PhaseAborted {
		return
	}
	p.phase = PhaseObserve

	step.Attempts++
	step.Result = &result

	if dispatchErr == nil {
		step.Status = contractx.StepDone
		p.scratch = append(p.scratch, fmt.Sprintf("%s -> %s", step.Call.Tool, renderOutput(result.Output)))
		return
	}

	if retryable(dispatchErr) && step.Attempts <= p.cfg.ToolRetries {
		log.Debug().Err(dispatchErr).Str("tool", step.Call.Tool).Int("attempt", step.Attempts).Msg("retrying step")
		p.retrying = step
		return
	}

	step.Status = contractx.StepFailed
	p.caveats = append(p.caveats, fmt.Sprintf("step %q failed after %d attempt(s): %v", step.Intent, step.Attempts, dispatchErr))
}

func retryable(err error) bool {
	return errors.Is(err, contractx.ErrToolTimeout) || errors.Is(err, contractx.ErrToolExecution)
}

// Abort transitions to ABORTED; Finalize then yields a degraded answer.
func (p *Planner) Abort(cause string) {
	p.phase = PhaseAborted
	p.abortCause = cause
}

// Finalize synthesizes the deterministic answer from step outcomes and the
// scratch state, then transitions to DONE (or stays ABORTED).
func (p *Planner) Finalize() string {
	if p.phase == PhaseAborted {
		return fmt.Sprintf("could not complete: %s", p.abortCause)
	}
	p.phase = PhaseFinalize

	var b strings.Builder
	for i, step := range p.steps {
		fmt.Fprintf(&b, "%d. %s", i+1, step.Intent)
		switch {
		case step.Status == contractx.StepFailed:
			fmt.Fprintf(&b, " [failed: %s]", step.Result.Error)
		case step.Call != nil && step.Result != nil:
			fmt.Fprintf(&b, " = %s", renderOutput(step.Result.Output))
		}
		b.WriteByte('\n')
	}

	if last := p.lastToolOutput(); last != "" {
		fmt.Fprintf(&b, "Answer: %s", last)
	} else if len(p.caveats) > 0 {
		fmt.Fprintf(&b, "No computed answer: %s", strings.Join(p.caveats, "; "))
	} else {
		b.WriteString("Answer: see reasoning above")
	}
	if last := p.lastToolOutput(); last != "" && len(p.caveats) > 0 {
		fmt.Fprintf(&b, " (caveats: %s)", strings.Join(p.caveats, "; "))
	}

	p.phase = PhaseDone
	return b.String()
}

func (p *Planner) lastToolOutput() string {
	for i := len(p.steps) - 1; i >= 0; i-- {
		step := p.steps[i]
		if step.Call != nil && step.Status == contractx.StepDone && step.Result != nil {
			return renderOutput(step.Result.Output)
		}
	}
	return ""
}

func renderOutput(out any) string {
	switch v := out.(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(raw)
	}
}
