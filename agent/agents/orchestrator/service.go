package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/naphat/mathflow/agent/contract"
	nodex "github.com/naphat/mathflow/agent/nodes"
	plannerx "github.com/naphat/mathflow/agent/planner"
	statex "github.com/naphat/mathflow/agent/state"
)

var (
	ErrInvalidSession  = nodex.ErrInvalidSession
	ErrInvalidQuestion = nodex.ErrInvalidQuestion
)

const (
	StrategyGraph = "graph"
	StrategyLocal = "local"
)

type Config struct {
	Strategy       string        `envconfig:"STRATEGY" split_words:"true" default:"graph"`
	MaxSteps       int           `envconfig:"MAX_STEPS" split_words:"true" default:"8"`
	ToolTimeout    time.Duration `envconfig:"TOOL_TIMEOUT" split_words:"true" default:"15s"`
	ToolRetries    int           `envconfig:"TOOL_RETRIES" split_words:"true" default:"2"`
	SessionIdleTTL time.Duration `envconfig:"SESSION_IDLE_TTL" split_words:"true" default:"30m"`
}

// runner executes one turn pipeline. Two strategies exist: the eino-compiled
// graph and a plain local state machine; the contract is identical.
type runner interface {
	Run(ctx context.Context, in nodex.GraphInput) (nodex.GraphOutput, error)
}

// Orchestrator owns session lifecycles, drives the per-turn planner loop,
// and is the only component that touches the tool registry.
type Orchestrator struct {
	store      statex.Store
	retriever  contractx.Retriever
	dispatcher nodex.Dispatcher
	memory     contractx.MemoryStore

	runner runner
	cfg    Config
	now    func() time.Time

	mu      sync.Mutex
	handles map[string]*sessionHandle
}

// sessionHandle serializes turns within one session and carries the cancel
// hook for the in-flight turn.
type sessionHandle struct {
	turnMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
}

func New(
	store statex.Store,
	retriever contractx.Retriever,
	dispatcher nodex.Dispatcher,
	memory contractx.MemoryStore,
	cfg Config,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	if retriever == nil {
		return nil, errors.New("retriever is required")
	}
	if dispatcher == nil {
		return nil, errors.New("tool dispatcher is required")
	}
	if memory == nil {
		return nil, errors.New("memory store is required")
	}

	o := &Orchestrator{
		store:      store,
		retriever:  retriever,
		dispatcher: dispatcher,
		memory:     memory,
		cfg:        cfg,
		now:        time.Now,
		handles:    make(map[string]*sessionHandle),
	}

	switch strings.TrimSpace(cfg.Strategy) {
	case StrategyLocal:
		o.runner = newLocalRunner(o)
	case StrategyGraph, "":
		gr, err := newGraphRunner(context.Background(), o)
		if err != nil {
			return nil, err
		}
		o.runner = gr
	default:
		return nil, fmt.Errorf("unknown orchestrator strategy %q", cfg.Strategy)
	}

	return o, nil
}

func (o *Orchestrator) plannerConfig() plannerx.Config {
	return plannerx.Config{
		MaxSteps:    o.cfg.MaxSteps,
		ToolRetries: o.cfg.ToolRetries,
		ToolTimeout: o.cfg.ToolTimeout,
	}
}

// StartTurn answers one question within a session, creating the session on
// first contact. Domain failures surface through the returned Turn's status
// and failure log; the call itself errors only on caller mistakes (blank
// ids, closed session).
func (o *Orchestrator) StartTurn(ctx context.Context, sessionID, userID, question string) (*contractx.Turn, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	h := o.handle(sessionID)
	h.turnMu.Lock()
	defer h.turnMu.Unlock()

	turnCtx, cancel := context.WithCancel(ctx)
	h.setCancel(cancel)
	defer func() {
		h.setCancel(nil)
		cancel()
	}()

	out, err := o.runner.Run(turnCtx, nodex.GraphInput{
		SessionID: sessionID,
		UserID:    userID,
		Question:  question,
	})
	if err != nil {
		return nil, err
	}
	return out.Turn, nil
}

// CloseSession cancels any in-flight turn, waits for it to settle, then
// closes and persists the session. Closing an unknown session is an error;
// closing twice is not.
func (o *Orchestrator) CloseSession(ctx context.Context, sessionID string) (*statex.Session, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidSession
	}

	h := o.handle(sessionID)
	h.cancelInflight()

	h.turnMu.Lock()
	defer h.turnMu.Unlock()

	s, err := o.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.Close(o.now())
	if err := o.store.Save(ctx, s); err != nil {
		return nil, err
	}

	log.Info().Str("session_id", sessionID).Int("turns", len(s.Turns)).Msg("session closed")
	return s, nil
}

// idleScanner is the optional store capability backing the idle sweep.
type idleScanner interface {
	SweepIdle(cutoff time.Time) []string
}

// CloseIdleSessions archives sessions idle past the configured TTL. Returns
// the closed session ids.
func (o *Orchestrator) CloseIdleSessions(ctx context.Context) []string {
	scanner, ok := o.store.(idleScanner)
	if !ok {
		return nil
	}
	cutoff := o.now().Add(-o.cfg.SessionIdleTTL)

	var closed []string
	for _, id := range scanner.SweepIdle(cutoff) {
		if _, err := o.CloseSession(ctx, id); err != nil {
			log.Warn().Err(err).Str("session_id", id).Msg("idle close failed")
			continue
		}
		closed = append(closed, id)
	}
	return closed
}

func (o *Orchestrator) handle(sessionID string) *sessionHandle {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.handles[sessionID]
	if !ok {
		h = &sessionHandle{}
		o.handles[sessionID] = h
	}
	return h
}

func (h *sessionHandle) setCancel(cancel context.CancelFunc) {
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()
}

func (h *sessionHandle) cancelInflight() {
	h.mu.Lock()
	cancel := h.cancel
	h.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}
