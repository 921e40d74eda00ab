package roster

import (
	"io"

	"github.com/pkg/errors"

	"github.com/go-go-golems/palaver/pkg/agents"
	"github.com/go-go-golems/palaver/pkg/capabilities"
	"github.com/go-go-golems/palaver/pkg/capabilities/builtin"
	"github.com/go-go-golems/palaver/pkg/driver"
	"github.com/go-go-golems/palaver/pkg/handoff"
	"github.com/go-go-golems/palaver/pkg/history"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/inference/toolloop"
	"github.com/go-go-golems/palaver/pkg/metrics"
	"github.com/go-go-golems/palaver/pkg/prompts"
	"github.com/go-go-golems/palaver/pkg/selection"
	"github.com/go-go-golems/palaver/pkg/termination"
)

// Deps is what a roster needs to become a runnable session.
type Deps struct {
	Service inference.Service
	// Console receives the output of the built-in capabilities
	Console io.Writer
	Metrics *metrics.Metrics
	// MaxIterations bounds the reasoning calls of one agent invocation
	MaxIterations int
	// Model selects the tokenizer of token budget reducers
	Model string
}

// Session is a roster wired to a reasoning service.
type Session struct {
	Roster   *Roster
	Registry *agents.Registry
	Table    *capabilities.Table
	Strategy driver.Strategy
	Hooks    []driver.AfterTurnHook
	// Router is only set in handoff mode
	Router *handoff.Router

	metrics *metrics.Metrics
}

// Build registers the agents and the built-in capabilities and creates the
// strategy of the roster's mode.
func (r *Roster) Build(deps Deps) (*Session, error) {
	if deps.Service == nil {
		return nil, inference.ErrNoBackend
	}
	if deps.Console == nil {
		deps.Console = io.Discard
	}

	registry := agents.NewRegistry()
	for _, d := range r.Agents {
		if err := registry.Register(d); err != nil {
			return nil, err
		}
	}

	table := capabilities.NewTable(capabilities.WithObserver(deps.Metrics))
	if err := builtin.Register(table, deps.Console); err != nil {
		return nil, err
	}
	for _, d := range r.Agents {
		for _, c := range d.Capabilities {
			if _, ok := table.Lookup(c); !ok {
				return nil, errors.Errorf("agent %s lists unknown capability %s", d.Name, c)
			}
		}
	}

	s := &Session{
		Roster:   r,
		Registry: registry,
		Table:    table,
		metrics:  deps.Metrics,
	}
	loop := toolloop.New(deps.Service, table, toolloop.WithMaxIterations(deps.MaxIterations))

	switch r.Mode {
	case ModeSelector:
		selector, err := r.buildSelector(deps, registry)
		if err != nil {
			return nil, err
		}
		evaluator, err := r.buildEvaluator(deps)
		if err != nil {
			return nil, err
		}
		s.Strategy = &driver.SelectorStrategy{
			Selector:  selector,
			Evaluator: evaluator,
			Loop:      loop,
			Rounds:    r.Selection.Rounds,
		}
	case ModeHandoff:
		graph, err := handoff.NewGraph(registry, r.Handoff.Entry, r.Handoff.Edges)
		if err != nil {
			return nil, err
		}
		s.Router = handoff.NewRouter(graph, handoff.WithObserver(deps.Metrics))
		s.Strategy = &driver.HandoffStrategy{
			Router:       s.Router,
			Capabilities: table,
			Loop:         loop,
			MaxHops:      r.Handoff.MaxHops,
		}
	default:
		return nil, errors.Errorf("unknown mode %s", r.Mode)
	}

	for _, h := range r.Hooks {
		hook, err := driver.NewCapabilityHook(h.After, h.Capability, h.Arguments, table)
		if err != nil {
			return nil, errors.Wrapf(err, "hook after %s", h.After)
		}
		s.Hooks = append(s.Hooks, hook)
	}
	return s, nil
}

func (r *Roster) buildSelector(deps Deps, registry *agents.Registry) (selection.TurnSelector, error) {
	sel := r.Selection
	if sel.Strategy == SelectionSequence {
		return selection.NewSequenceSelector(sel.Order, selection.WithEndAfterLast(sel.EndAfterLast)), nil
	}

	var policy *prompts.Template
	if sel.Policy != "" {
		var err error
		policy, err = prompts.Parse(r.Name+".selection", sel.Policy)
		if err != nil {
			return nil, err
		}
	}
	window := sel.HistoryWindow
	if window == 0 {
		window = selection.DefaultHistoryWindow
	}
	reducer, err := reducerFor(deps.Model, window, sel.TokenBudget)
	if err != nil {
		return nil, err
	}
	return selection.NewPromptSelector(deps.Service, registry, policy,
		selection.WithReducer(reducer),
		selection.WithInitialAgent(sel.InitialAgent),
		selection.WithFallback(sel.Fallback),
		selection.WithAllowEnd(sel.AllowEnd),
		selection.WithPolicyValues(sel.Values),
		selection.WithObserver(deps.Metrics),
	), nil
}

func (r *Roster) buildEvaluator(deps Deps) (termination.Evaluator, error) {
	t := r.Termination
	if t == nil {
		return termination.Never, nil
	}
	var limit termination.Evaluator
	if t.MaxAgentTurns > 0 {
		limit = termination.AgentTurnLimit{Max: t.MaxAgentTurns}
	}

	switch t.Strategy {
	case TerminationNever:
		return termination.Never, nil
	case TerminationTurnLimit:
		return limit, nil
	case TerminationPrompt:
	default:
		return nil, errors.Errorf("unknown termination strategy %s", t.Strategy)
	}

	var policy *prompts.Template
	if t.Policy != "" {
		var err error
		policy, err = prompts.Parse(r.Name+".termination", t.Policy)
		if err != nil {
			return nil, err
		}
	}
	reducer, err := reducerFor(deps.Model, t.HistoryWindow, 0)
	if err != nil {
		return nil, err
	}
	evaluator := termination.NewPromptEvaluator(deps.Service, policy,
		termination.WithReducer(reducer),
		termination.WithPolicyValues(t.Values),
	)
	if limit != nil {
		return termination.Any(evaluator, limit), nil
	}
	return evaluator, nil
}

func reducerFor(model string, window int, budget int) (history.Reducer, error) {
	var reducer history.Reducer = history.Unbounded
	if window > 0 {
		reducer = history.NewTruncation(window)
	}
	if budget > 0 {
		tb, err := history.NewTokenBudget(model, budget)
		if err != nil {
			return nil, err
		}
		reducer = history.Chain(reducer, tb)
	}
	return reducer, nil
}

// DriverOptions returns the driver options carrying the session's hooks,
// banner, opening task and turn metrics.
func (s *Session) DriverOptions() []driver.Option {
	opts := []driver.Option{
		driver.WithHooks(s.Hooks...),
		driver.WithBanner(s.Roster.Banner),
		driver.WithOpening(s.Roster.Opening),
	}
	if s.metrics != nil {
		opts = append(opts, driver.WithTurnObserver(s.metrics))
	}
	return opts
}
