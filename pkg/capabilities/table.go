package capabilities

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/palaver/pkg/agents"
	"github.com/go-go-golems/palaver/pkg/turns"
)

// Result is the outcome of one capability call.
type Result struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Output   string           `json:"output,omitempty"`
	Err      *CapabilityError `json:"error,omitempty"`
	Duration time.Duration    `json:"duration"`
	Retries  int              `json:"retries,omitempty"`
}

func (r Result) Failed() bool {
	return r.Err != nil
}

func (r Result) ErrorString() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Block converts the result into a tool_use block of the acting agent's turn.
func (r Result) Block() turns.Block {
	return turns.NewToolUseBlock(r.ID, r.Name, r.Output, r.ErrorString())
}

// Dispatcher resolves capability calls for an acting agent.
type Dispatcher interface {
	// Specs lists the capabilities the agent may invoke.
	Specs(agent agents.Descriptor) ([]Spec, error)
	// Dispatch runs a call. Failures are reported in Result.Err, never as a Go error.
	Dispatch(ctx context.Context, agent agents.Descriptor, call turns.ToolCall) Result
}

// Observer receives one notification per finished call.
type Observer interface {
	ObserveCapability(capability string, status string, duration time.Duration)
}

// Table is the single dispatch table of all capabilities known to a session.
type Table struct {
	mu       sync.RWMutex
	defs     map[string]Definition
	config   Config
	observer Observer
}

var _ Dispatcher = (*Table)(nil)

type TableOption func(*Table)

func WithConfig(config Config) TableOption {
	return func(t *Table) {
		t.config = config
	}
}

func WithObserver(o Observer) TableOption {
	return func(t *Table) {
		t.observer = o
	}
}

func NewTable(opts ...TableOption) *Table {
	t := &Table{
		defs:   map[string]Definition{},
		config: DefaultConfig(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Table) Register(defs ...Definition) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, d := range defs {
		if d.Name == "" || d.Handler == nil {
			return errors.Errorf("capability %q needs a name and a handler", d.Name)
		}
		if _, ok := t.defs[d.Name]; ok {
			return errors.Wrapf(ErrDuplicateCapability, "capability %q", d.Name)
		}
		t.defs[d.Name] = d
	}
	return nil
}

func (t *Table) Lookup(name string) (Definition, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	d, ok := t.defs[name]
	return d, ok
}

// Names returns all registered capability names, sorted.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ret := make([]string, 0, len(t.defs))
	for name := range t.defs {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

func (t *Table) Specs(agent agents.Descriptor) ([]Spec, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ret := make([]Spec, 0, len(agent.Capabilities))
	for _, name := range agent.Capabilities {
		d, ok := t.defs[name]
		if !ok {
			return nil, errors.Errorf("agent %s lists unknown capability %q", agent.Name, name)
		}
		ret = append(ret, d.Spec())
	}
	return ret, nil
}

func (t *Table) Dispatch(ctx context.Context, agent agents.Descriptor, call turns.ToolCall) (res Result) {
	start := time.Now()
	res = Result{ID: call.ID, Name: call.Name}
	defer func() {
		res.Duration = time.Since(start)
		if t.observer != nil {
			status := "ok"
			if res.Err != nil {
				status = string(res.Err.Type)
			}
			t.observer.ObserveCapability(call.Name, status, res.Duration)
		}
	}()

	def, ok := t.Lookup(call.Name)
	if !ok {
		res.Err = NewCapabilityError(call.Name, ErrorTypeNotFound, "no capability named %q", call.Name)
		return res
	}
	if !agent.Allows(call.Name) {
		res.Err = NewCapabilityError(call.Name, ErrorTypeNotAllowed, "agent %s may not invoke %q", agent.Name, call.Name)
		return res
	}
	args := call.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if missing, ok := checkRequired(def.Parameters, args); !ok {
		res.Err = NewCapabilityError(call.Name, ErrorTypeValidation, "missing required argument %q", missing)
		return res
	}

	out, retries, err := t.executeWithRetry(ctx, def, args)
	res.Retries = retries
	if err != nil {
		res.Err = AsCapabilityError(call.Name, err)
		log.Warn().
			Str("agent", agent.Name).
			Str("capability", call.Name).
			Str("error_type", string(res.Err.Type)).
			Msg(res.Err.Message)
		return res
	}
	res.Output = formatOutput(out)

	log.Debug().
		Str("agent", agent.Name).
		Str("capability", call.Name).
		Int("retries", retries).
		Msg("Capability executed")
	return res
}

func (t *Table) executeWithRetry(ctx context.Context, def Definition, args map[string]any) (any, int, error) {
	retry := t.config.RetryConfig
	var lastErr error
	for attempt := 0; attempt <= retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, attempt - 1, ctx.Err()
			case <-time.After(retry.backoff(attempt)):
			}
		}
		out, err := t.executeOnce(ctx, def, args)
		if err == nil {
			return out, attempt, nil
		}
		lastErr = err
		var ce *CapabilityError
		if errors.As(err, &ce) && ce.Type != ErrorTypeExecution {
			return nil, attempt, err
		}
		if ctx.Err() != nil {
			return nil, attempt, err
		}
	}
	return nil, retry.MaxRetries, lastErr
}

type execResult struct {
	out any
	err error
}

func (t *Table) executeOnce(ctx context.Context, def Definition, args map[string]any) (any, error) {
	execCtx := ctx
	if t.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, t.config.ExecutionTimeout)
		defer cancel()
	}

	done := make(chan execResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- execResult{err: errors.Errorf("panic: %v", r)}
			}
		}()
		out, err := def.Handler(execCtx, args)
		done <- execResult{out: out, err: err}
	}()

	select {
	case r := <-done:
		return r.out, r.err
	case <-execCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, NewCapabilityError(def.Name, ErrorTypeTimeout, "no result within %s", t.config.ExecutionTimeout)
	}
}

func formatOutput(out any) string {
	switch v := out.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
