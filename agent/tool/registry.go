package tool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/rs/zerolog/log"

	contractx "github.com/naphat/mathflow/agent/contract"
)

// Tool is one registered capability. Params declares the argument schema the
// registry validates against; MaxConcurrency bounds simultaneous in-flight
// executions (0 means unbounded).
type Tool interface {
	Name() string
	Description() string
	Params() map[string]*schema.ParameterInfo
	MaxConcurrency() int
	Execute(ctx context.Context, args map[string]any) (any, error)
}

// Registry is the uniform invocation surface over registered tools. Tools
// are registered by name at process start; invocation wraps each call with
// argument validation, a deadline, and the tool's admission gate.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registration
}

type registration struct {
	tool Tool
	gate chan struct{}
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*registration)}
}

// Register validates the tool's declaration and installs it. Registering the
// same name twice is a programmer error and fails.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("%w: nil tool", contractx.ErrValidation)
	}
	name := strings.TrimSpace(t.Name())
	if name == "" {
		return fmt.Errorf("%w: tool name is empty", contractx.ErrValidation)
	}
	for field, p := range t.Params() {
		if p == nil {
			return fmt.Errorf("%w: tool=%s param=%s has no schema", contractx.ErrValidation, name, field)
		}
	}
	if t.MaxConcurrency() < 0 {
		return fmt.Errorf("%w: tool=%s negative max concurrency", contractx.ErrValidation, name)
	}

	reg := &registration{tool: t}
	if n := t.MaxConcurrency(); n > 0 {
		reg.gate = make(chan struct{}, n)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("%w: tool=%s already registered", contractx.ErrValidation, name)
	}
	r.tools[name] = reg
	log.Debug().Str("tool", name).Int("max_concurrency", t.MaxConcurrency()).Msg("tool registered")
	return nil
}

// Infos lists the registered tools' schemas, sorted by name.
func (r *Registry) Infos() []*schema.ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, reg := range r.tools {
		infos = append(infos, &schema.ToolInfo{
			Name:        reg.tool.Name(),
			Desc:        reg.tool.Description(),
			ParamsOneOf: schema.NewParamsOneOfByParams(reg.tool.Params()),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, deadline time.Duration) (contractx.ToolResult, error) {
	start := time.Now()

	r.mu.RLock()
	reg, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		err := fmt.Errorf("%w: %s", contractx.ErrUnknownTool, name)
		return failedResult(name, start, err), err
	}

	if err := validateArgs(reg.tool.Params(), args); err != nil {
		return failedResult(name, start, err), err
	}

	if deadline <= 0 {
		deadline = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	// Admission gate: rate-limited tools declare max concurrency 1 and calls
	// from concurrent turns serialize here.
	if reg.gate != nil {
		select {
		case reg.gate <- struct{}{}:
			defer func() { <-reg.gate }()
		case <-ctx.Done():
			err := fmt.Errorf("%w: tool=%s waiting for admission: %v", contractx.ErrToolTimeout, name, ctx.Err())
			return failedResult(name, start, err), err
		}
	}

	type outcome struct {
		output any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := reg.tool.Execute(ctx, args)
		done <- outcome{output: out, err: err}
	}()

	select {
	case o := <-done:
		latency := time.Since(start)
		if o.err != nil {
			err := classifyExecError(name, o.err)
			log.Debug().Err(err).Str("tool", name).Dur("latency", latency).Msg("tool execution failed")
			return contractx.ToolResult{Tool: name, OK: false, Error: err.Error(), Latency: latency}, err
		}
		log.Debug().Str("tool", name).Dur("latency", latency).Msg("tool executed")
		return contractx.ToolResult{Tool: name, OK: true, Output: o.output, Latency: latency}, nil
	case <-ctx.Done():
		err := fmt.Errorf("%w: tool=%s after %s", contractx.ErrToolTimeout, name, deadline)
		return failedResult(name, start, err), err
	}
}

func classifyExecError(name string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: tool=%s: %v", contractx.ErrToolTimeout, name, err)
	}
	return fmt.Errorf("%w: tool=%s: %v", contractx.ErrToolExecution, name, err)
}

func failedResult(name string, start time.Time, err error) contractx.ToolResult {
	return contractx.ToolResult{
		Tool:    name,
		OK:      false,
		Error:   err.Error(),
		Latency: time.Since(start),
	}
}

func validateArgs(params map[string]*schema.ParameterInfo, args map[string]any) error {
	for field, p := range params {
		val, present := args[field]
		if !present {
			if p.Required {
				return fmt.Errorf("%w: missing required argument %q", contractx.ErrInvalidArguments, field)
			}
			continue
		}
		if !typeMatches(p.Type, val) {
			return fmt.Errorf("%w: argument %q must be %s", contractx.ErrInvalidArguments, field, p.Type)
		}
	}
	for field := range args {
		if _, declared := params[field]; !declared {
			return fmt.Errorf("%w: unexpected argument %q", contractx.ErrInvalidArguments, field)
		}
	}
	return nil
}

func typeMatches(t schema.DataType, val any) bool {
	switch t {
	case schema.String:
		_, ok := val.(string)
		return ok
	case schema.Number:
		switch val.(type) {
		case float64, float32, int, int64:
			return true
		}
		return false
	case schema.Integer:
		switch v := val.(type) {
		case int, int64:
			return true
		case float64:
			return v == float64(int64(v))
		}
		return false
	case schema.Boolean:
		_, ok := val.(bool)
		return ok
	case schema.Array:
		switch val.(type) {
		case []any, []float64, []string:
			return true
		}
		return false
	case schema.Object:
		_, ok := val.(map[string]any)
		return ok
	default:
		return true
	}
}
