// Package selection decides which agent takes the next turn in selector
// mode.
package selection

import (
	"context"

	"github.com/go-go-golems/palaver/pkg/agents"
	"github.com/go-go-golems/palaver/pkg/turns"
)

// EndToken is the agent name a selector returns to end the round.
const EndToken = "end"

// ReasoningAgent is the name selection reasoning calls are made under.
const ReasoningAgent = "selector"

// Decision is the outcome of one selection.
type Decision struct {
	Agent string
	// End is set when the selector chose to end the round
	End bool
	// Fallback is set when the fallback agent was used
	Fallback bool
	// Raw is the unparsed completion, if any
	Raw string
}

// TurnSelector picks the next speaker. Select never fails: implementations
// fall back to a fixed agent.
type TurnSelector interface {
	Select(ctx context.Context, history []turns.Turn) Decision
}

// Roster is the view of the agent registry a selector needs.
type Roster interface {
	Names() []string
	Resolve(name string) (agents.Descriptor, error)
}

// Observer is notified of every fallback.
type Observer interface {
	ObserveSelectionFallback(reason string)
}

// Fallback reasons.
const (
	ReasonReasoning     = "reasoning"
	ReasonParse         = "parse"
	ReasonUnknownAgent  = "unknown_agent"
	ReasonEndNotAllowed = "end_not_allowed"
	ReasonRender        = "render"
)

func hasAgentTurn(history []turns.Turn) bool {
	for i := range history {
		if !history[i].IsUser() {
			return true
		}
	}
	return false
}
