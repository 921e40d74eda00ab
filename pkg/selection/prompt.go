package selection

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/history"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/prompts"
	"github.com/go-go-golems/palaver/pkg/turns"
)

// SelectionPrompt is the final user message of every selection call.
const SelectionPrompt = "Who takes the next turn? Answer with the name of the participant only."

// DefaultHistoryWindow is the number of turns the default reducer keeps.
const DefaultHistoryWindow = 5

// PromptSelector asks the reasoning service for the next speaker.
type PromptSelector struct {
	svc          inference.Service
	roster       Roster
	policy       *prompts.Template
	reducer      history.Reducer
	initialAgent string
	fallback     string
	allowEnd     bool
	extra        map[string]string
	observer     Observer
}

type PromptSelectorOption func(*PromptSelector)

func WithReducer(r history.Reducer) PromptSelectorOption {
	return func(s *PromptSelector) {
		s.reducer = r
	}
}

// WithInitialAgent picks name without a reasoning call while no agent has
// spoken yet.
func WithInitialAgent(name string) PromptSelectorOption {
	return func(s *PromptSelector) {
		s.initialAgent = name
	}
}

func WithFallback(name string) PromptSelectorOption {
	return func(s *PromptSelector) {
		s.fallback = name
	}
}

// WithAllowEnd lets the selector end the round by answering "end".
func WithAllowEnd(allow bool) PromptSelectorOption {
	return func(s *PromptSelector) {
		s.allowEnd = allow
	}
}

// WithPolicyValues adds values available to the policy as .Extra.
func WithPolicyValues(values map[string]string) PromptSelectorOption {
	return func(s *PromptSelector) {
		for k, v := range values {
			s.extra[k] = v
		}
	}
}

func WithObserver(o Observer) PromptSelectorOption {
	return func(s *PromptSelector) {
		s.observer = o
	}
}

// NewPromptSelector creates a selector rendering policy. A nil policy uses
// prompts.DefaultSelectionPolicy.
func NewPromptSelector(svc inference.Service, roster Roster, policy *prompts.Template, opts ...PromptSelectorOption) *PromptSelector {
	if policy == nil {
		policy = prompts.MustParse("selection", prompts.DefaultSelectionPolicy)
	}
	ret := &PromptSelector{
		svc:     svc,
		roster:  roster,
		policy:  policy,
		reducer: history.NewTruncation(DefaultHistoryWindow),
		extra:   map[string]string{},
	}
	for _, o := range opts {
		o(ret)
	}
	if ret.fallback == "" {
		if names := roster.Names(); len(names) > 0 {
			ret.fallback = names[0]
		}
	}
	return ret
}

// Fallback returns the agent used when selection fails.
func (s *PromptSelector) Fallback() string {
	return s.fallback
}

func (s *PromptSelector) Select(ctx context.Context, hist []turns.Turn) Decision {
	if s.initialAgent != "" && !hasAgentTurn(hist) {
		log.Debug().Str("agent", s.initialAgent).Msg("No agent has spoken yet, using initial agent")
		return Decision{Agent: s.initialAgent}
	}

	reduced := s.reducer.Reduce(hist)
	names := s.roster.Names()

	extra := map[string]string{}
	for k, v := range s.extra {
		extra[k] = v
	}
	if s.allowEnd {
		extra["allow_end"] = "true"
	}
	instructions, err := s.policy.Render(prompts.NewPolicyData(s.policyAgents(names), reduced, extra))
	if err != nil {
		return s.fallBack(ReasonRender, "", err)
	}

	resp, err := s.svc.Complete(events.WithoutEventSinks(ctx), inference.Request{
		Agent:        ReasoningAgent,
		Instructions: instructions,
		History:      reduced,
		Prompt:       SelectionPrompt,
	})
	if err != nil {
		return s.fallBack(ReasonReasoning, "", err)
	}

	name, err := ParseSelection(resp.Text, names)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) && pe.Err != nil {
			return s.fallBack(ReasonUnknownAgent, resp.Text, err)
		}
		return s.fallBack(ReasonParse, resp.Text, err)
	}
	if name == EndToken {
		if !s.allowEnd {
			return s.fallBack(ReasonEndNotAllowed, resp.Text, errors.New("ending is not allowed"))
		}
		log.Debug().Str("raw", resp.Text).Msg("Selector ended the round")
		return Decision{End: true, Raw: resp.Text}
	}

	log.Debug().Str("agent", name).Str("raw", resp.Text).Msg("Selected next agent")
	return Decision{Agent: name, Raw: resp.Text}
}

func (s *PromptSelector) policyAgents(names []string) []prompts.Agent {
	ret := make([]prompts.Agent, 0, len(names))
	for _, n := range names {
		d, err := s.roster.Resolve(n)
		if err != nil {
			continue
		}
		ret = append(ret, prompts.Agent{Name: d.Name, Description: d.Description})
	}
	return ret
}

func (s *PromptSelector) fallBack(reason string, raw string, err error) Decision {
	log.Warn().Err(err).
		Str("reason", reason).
		Str("fallback", s.fallback).
		Msg("Turn selection failed, using fallback agent")
	if s.observer != nil {
		s.observer.ObserveSelectionFallback(reason)
	}
	return Decision{Agent: s.fallback, Fallback: true, Raw: raw}
}

var _ TurnSelector = (*PromptSelector)(nil)
