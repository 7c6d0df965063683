package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/compose"

	contractx "github.com/naphat/mathflow/agent/contract"
	nodex "github.com/naphat/mathflow/agent/nodes"
)

type graphRunner struct {
	o        *Orchestrator
	runnable compose.Runnable[nodex.GraphInput, nodex.GraphOutput]
}

func newGraphRunner(ctx context.Context, o *Orchestrator) (*graphRunner, error) {
	graph := compose.NewGraph[nodex.GraphInput, nodex.GraphOutput]()

	if err := graph.AddLambdaNode("validate_request",
		compose.InvokableLambda(func(ctx context.Context, in nodex.GraphInput) (*nodex.GraphState, error) {
			return nodex.ValidateRequest(in, o.now)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node validate_request: %w", err)
	}

	if err := graph.AddLambdaNode("load_session",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.LoadSession(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node load_session: %w", err)
	}

	if err := graph.AddLambdaNode("gather_context",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.GatherContext(ctx, in, o.retriever)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node gather_context: %w", err)
	}

	if err := graph.AddLambdaNode("run_planner",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.RunPlanner(ctx, in, o.dispatcher, o.plannerConfig())
		}),
	); err != nil {
		return nil, fmt.Errorf("add node run_planner: %w", err)
	}

	if err := graph.AddLambdaNode("commit_memory",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (*nodex.GraphState, error) {
			return nodex.CommitMemory(ctx, in, o.memory)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node commit_memory: %w", err)
	}

	if err := graph.AddLambdaNode("finalize_turn",
		compose.InvokableLambda(func(ctx context.Context, in *nodex.GraphState) (nodex.GraphOutput, error) {
			return nodex.FinalizeTurn(ctx, in, o.store)
		}),
	); err != nil {
		return nil, fmt.Errorf("add node finalize_turn: %w", err)
	}

	edges := [][2]string{
		{compose.START, "validate_request"},
		{"validate_request", "load_session"},
		{"load_session", "gather_context"},
		{"gather_context", "run_planner"},
		{"run_planner", "commit_memory"},
		{"commit_memory", "finalize_turn"},
		{"finalize_turn", compose.END},
	}

	for _, edge := range edges {
		if err := graph.AddEdge(edge[0], edge[1]); err != nil {
			return nil, fmt.Errorf("add edge %s->%s: %w", edge[0], edge[1], err)
		}
	}

	runnable, err := graph.Compile(ctx, compose.WithGraphName("orchestrator.start_turn"))
	if err != nil {
		return nil, fmt.Errorf("compile orchestrator graph: %w", err)
	}
	return &graphRunner{o: o, runnable: runnable}, nil
}

func (g *graphRunner) Run(ctx context.Context, in nodex.GraphInput) (nodex.GraphOutput, error) {
	out, err := g.runnable.Invoke(ctx, in)
	if err == nil || ctx.Err() == nil {
		return out, err
	}
	return g.settleAbandonedTurn(ctx, in, err)
}

// settleAbandonedTurn finishes a turn the engine walked away from. The engine
// checks the context between nodes, so a CloseSession cancel can stop the run
// after the planner but before commit_memory and finalize_turn, stranding the
// turn as pending. The turn still has to end failed with a degraded answer.
func (g *graphRunner) settleAbandonedTurn(ctx context.Context, in nodex.GraphInput, runErr error) (nodex.GraphOutput, error) {
	calm := context.WithoutCancel(ctx)

	s, err := g.o.store.Load(calm, strings.TrimSpace(in.SessionID))
	if err != nil {
		return nodex.GraphOutput{}, runErr
	}
	turn := s.PendingTurn()
	if turn == nil {
		return nodex.GraphOutput{}, runErr
	}

	cause := ctx.Err().Error()
	if errors.Is(ctx.Err(), context.Canceled) {
		cause = contractx.ErrSessionClosed.Error()
	}
	state := &nodex.GraphState{
		SessionID: s.ID,
		UserID:    s.UserID,
		Question:  turn.Question,
		Now:       g.o.now().UTC(),
		Session:   s,
		Turn:      turn,
		Answer:    "could not complete: " + cause,
		Failed:    true,
		Cause:     cause,
	}
	if _, err := nodex.CommitMemory(calm, state, g.o.memory); err != nil {
		return nodex.GraphOutput{}, err
	}
	return nodex.FinalizeTurn(calm, state, g.o.store)
}
