package planner

import (
	"fmt"
	"strings"
	"testing"
	"time"

	contractx "github.com/naphat/mathflow/agent/contract"
	toolx "github.com/naphat/mathflow/agent/tool"
)

func TestPlannerHappyPath(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	p.Decompose("What is 2+2?", contractx.RetrievedContext{}, localTools)

	step := p.Next()
	if step == nil {
		t.Fatal("expected a tool step")
	}
	if step.Call == nil || step.Call.Tool != toolx.ToolEvaluate {
		t.Fatalf("unexpected call: %+v", step.Call)
	}
	if step.Call.Deadline != 15*time.Second {
		t.Fatalf("expected default deadline, got %s", step.Call.Deadline)
	}

	p.Observe(step, contractx.ToolResult{Tool: step.Call.Tool, OK: true, Output: "4"}, nil)
	if next := p.Next(); next != nil {
		t.Fatalf("expected exhausted plan, got %+v", next)
	}

	answer := p.Finalize()
	if !strings.Contains(answer, "Answer: 4") {
		t.Fatalf("unexpected answer: %q", answer)
	}
	if p.Phase() != PhaseDone {
		t.Fatalf("expected done, got %s", p.Phase())
	}
}

func TestPlannerRetriesBoundedByConfig(t *testing.T) {
	t.Parallel()

	p := New(Config{ToolRetries: 2})
	p.Decompose("What is 2+2?", contractx.RetrievedContext{}, localTools)

	step := p.Next()
	execErr := fmt.Errorf("%w: boom", contractx.ErrToolExecution)

	attempts := 0
	for step != nil {
		attempts++
		p.Observe(step, contractx.ToolResult{Tool: step.Call.Tool, Error: "boom"}, execErr)
		step = p.Next()
	}

	if attempts != 3 {
		t.Fatalf("expected retries+1 = 3 attempts, got %d", attempts)
	}
	if got := p.Steps()[0].Attempts; got != 3 {
		t.Fatalf("step recorded %d attempts, want 3", got)
	}
	if p.Steps()[0].Status != contractx.StepFailed {
		t.Fatalf("expected failed step, got %s", p.Steps()[0].Status)
	}
	if answer := p.Finalize(); !strings.Contains(answer, "No computed answer") {
		t.Fatalf("unexpected answer: %q", answer)
	}
}

func TestPlannerDoesNotRetryValidationErrors(t *testing.T) {
	t.Parallel()

	p := New(Config{ToolRetries: 5})
	p.Decompose("What is 2+2?", contractx.RetrievedContext{}, localTools)

	step := p.Next()
	badArgs := fmt.Errorf("%w: missing expression", contractx.ErrInvalidArguments)
	p.Observe(step, contractx.ToolResult{Tool: step.Call.Tool, Error: badArgs.Error()}, badArgs)

	if step.Status != contractx.StepFailed {
		t.Fatalf("expected failed step, got %s", step.Status)
	}
	if step.Attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", step.Attempts)
	}
	if next := p.Next(); next != nil {
		t.Fatalf("expected no further steps, got %+v", next)
	}
}

func TestPlannerStepBudget(t *testing.T) {
	t.Parallel()

	p := New(Config{MaxSteps: 2})
	p.Decompose("Compute 1+1. Compute 2+2. Compute 3+3.", contractx.RetrievedContext{}, localTools)

	for i := 0; i < 2; i++ {
		step := p.Next()
		if step == nil {
			t.Fatalf("expected step %d within budget", i+1)
		}
		p.Observe(step, contractx.ToolResult{Tool: step.Call.Tool, OK: true, Output: "ok"}, nil)
	}

	if step := p.Next(); step != nil {
		t.Fatalf("expected budget cutoff, got %+v", step)
	}
	if answer := p.Finalize(); !strings.Contains(answer, "step budget") {
		t.Fatalf("expected budget caveat, got %q", answer)
	}
}

func TestPlannerAbort(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	p.Decompose("What is 2+2?", contractx.RetrievedContext{}, localTools)

	if step := p.Next(); step == nil {
		t.Fatal("expected a step before abort")
	}
	p.Abort("session closed")

	if step := p.Next(); step != nil {
		t.Fatalf("aborted planner handed out a step: %+v", step)
	}
	answer := p.Finalize()
	if answer != "could not complete: session closed" {
		t.Fatalf("unexpected abort answer: %q", answer)
	}
	if p.Phase() != PhaseAborted {
		t.Fatalf("expected aborted phase, got %s", p.Phase())
	}
}

func TestPlannerRecordsRetrievalCaveats(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	rc := contractx.RetrievedContext{FailedSources: []string{"memory: backend down"}}
	p.Decompose("What is 2+2?", rc, localTools)

	step := p.Next()
	p.Observe(step, contractx.ToolResult{Tool: step.Call.Tool, OK: true, Output: "4"}, nil)
	p.Next()

	answer := p.Finalize()
	if !strings.Contains(answer, "Answer: 4") {
		t.Fatalf("expected answer despite degraded retrieval, got %q", answer)
	}
	if !strings.Contains(answer, "retrieval degraded") {
		t.Fatalf("expected degraded-retrieval caveat, got %q", answer)
	}
}

func TestPlannerReasoningOnlyAnswer(t *testing.T) {
	t.Parallel()

	p := New(Config{})
	p.Decompose("Explain what a limit is", contractx.RetrievedContext{}, localTools)

	if step := p.Next(); step != nil {
		t.Fatalf("expected no tool steps, got %+v", step)
	}
	answer := p.Finalize()
	if !strings.Contains(answer, "see reasoning above") {
		t.Fatalf("unexpected answer: %q", answer)
	}
}
