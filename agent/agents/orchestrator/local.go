package orchestrator

import (
	"context"

	nodex "github.com/naphat/mathflow/agent/nodes"
)

// localRunner executes the same pipeline as the compiled graph, step by
// step, with no graph engine in between. Useful when the process embeds
// the orchestrator as a plain library call.
type localRunner struct {
	o *Orchestrator
}

func newLocalRunner(o *Orchestrator) *localRunner {
	return &localRunner{o: o}
}

func (l *localRunner) Run(ctx context.Context, in nodex.GraphInput) (nodex.GraphOutput, error) {
	state, err := nodex.ValidateRequest(in, l.o.now)
	if err != nil {
		return nodex.GraphOutput{}, err
	}
	if state, err = nodex.LoadSession(ctx, state, l.o.store); err != nil {
		return nodex.GraphOutput{}, err
	}
	if state, err = nodex.GatherContext(ctx, state, l.o.retriever); err != nil {
		return nodex.GraphOutput{}, err
	}
	if state, err = nodex.RunPlanner(ctx, state, l.o.dispatcher, l.o.plannerConfig()); err != nil {
		return nodex.GraphOutput{}, err
	}
	if state, err = nodex.CommitMemory(ctx, state, l.o.memory); err != nil {
		return nodex.GraphOutput{}, err
	}
	return nodex.FinalizeTurn(ctx, state, l.o.store)
}
