// Package termination decides whether a conversation has reached its goal.
package termination

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/history"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/prompts"
	"github.com/go-go-golems/palaver/pkg/turns"
)

// ReasoningAgent is the name completion checks are made under.
const ReasoningAgent = "termination"

// CompletionPrompt is the final user message of every completion check.
const CompletionPrompt = "Is the task complete? Answer with true or false."

// Evaluator reports whether the conversation is complete. It never fails:
// anything it cannot decide is "not complete".
type Evaluator interface {
	IsComplete(ctx context.Context, history []turns.Turn) bool
}

// ParseCompletion is true only for a completion reading "true".
func ParseCompletion(raw string) bool {
	return strings.EqualFold(strings.TrimSpace(raw), "true")
}

// PromptEvaluator asks the reasoning service whether the task is complete.
type PromptEvaluator struct {
	svc     inference.Service
	policy  *prompts.Template
	reducer history.Reducer
	extra   map[string]string
}

type PromptEvaluatorOption func(*PromptEvaluator)

func WithReducer(r history.Reducer) PromptEvaluatorOption {
	return func(e *PromptEvaluator) {
		e.reducer = r
	}
}

func WithPolicyValues(values map[string]string) PromptEvaluatorOption {
	return func(e *PromptEvaluator) {
		for k, v := range values {
			e.extra[k] = v
		}
	}
}

// NewPromptEvaluator creates an evaluator rendering policy. A nil policy uses
// prompts.DefaultTerminationPolicy. The whole history is sent unless a
// reducer is set.
func NewPromptEvaluator(svc inference.Service, policy *prompts.Template, opts ...PromptEvaluatorOption) *PromptEvaluator {
	if policy == nil {
		policy = prompts.MustParse("termination", prompts.DefaultTerminationPolicy)
	}
	ret := &PromptEvaluator{
		svc:     svc,
		policy:  policy,
		reducer: history.Unbounded,
		extra:   map[string]string{},
	}
	for _, o := range opts {
		o(ret)
	}
	return ret
}

func (e *PromptEvaluator) IsComplete(ctx context.Context, hist []turns.Turn) bool {
	reduced := e.reducer.Reduce(hist)
	instructions, err := e.policy.Render(prompts.NewPolicyData(nil, reduced, e.extra))
	if err != nil {
		log.Warn().Err(err).Msg("Could not render termination policy, continuing")
		return false
	}

	resp, err := e.svc.Complete(events.WithoutEventSinks(ctx), inference.Request{
		Agent:        ReasoningAgent,
		Instructions: instructions,
		History:      reduced,
		Prompt:       CompletionPrompt,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Termination check failed, continuing")
		return false
	}

	complete := ParseCompletion(resp.Text)
	log.Debug().Bool("complete", complete).Str("raw", resp.Text).Msg("Termination check")
	return complete
}

// Never is never complete.
var Never Evaluator = EvaluatorFunc(func(context.Context, []turns.Turn) bool { return false })

// EvaluatorFunc adapts a function to Evaluator.
type EvaluatorFunc func(ctx context.Context, history []turns.Turn) bool

func (f EvaluatorFunc) IsComplete(ctx context.Context, history []turns.Turn) bool {
	return f(ctx, history)
}

// AgentTurnLimit is complete once Max agent turns are in the history.
type AgentTurnLimit struct {
	Max int
}

func (l AgentTurnLimit) IsComplete(_ context.Context, hist []turns.Turn) bool {
	if l.Max <= 0 {
		return false
	}
	n := 0
	for i := range hist {
		if !hist[i].IsUser() {
			n++
		}
	}
	return n >= l.Max
}

// Any is complete as soon as one of evaluators is. Evaluators run in order.
func Any(evaluators ...Evaluator) Evaluator {
	return EvaluatorFunc(func(ctx context.Context, hist []turns.Turn) bool {
		for _, e := range evaluators {
			if e.IsComplete(ctx, hist) {
				return true
			}
		}
		return false
	})
}
