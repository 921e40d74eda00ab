// Package inference defines the reasoning service the agents, the turn
// selector and the termination evaluator delegate to.
package inference

import (
	"context"

	"github.com/go-go-golems/palaver/pkg/capabilities"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/turns"
)

// Request is one reasoning call.
type Request struct {
	// Agent is the name the call is made for, also used for events and metrics.
	Agent string
	// Model overrides the backend's default model when set.
	Model        string
	Instructions string
	History      []turns.Turn
	// Pending holds the blocks already produced for the turn in progress:
	// capability calls and their results from earlier iterations.
	Pending []turns.Block
	Tools   []capabilities.Spec
	// Prompt is appended as a final user message when set.
	Prompt string
}

type Response struct {
	Text      string
	ToolCalls []turns.ToolCall
	Usage     events.Usage
	// StopReason is backend specific and informational only.
	StopReason string
}

// Service produces a completion for a request. Backends publish streaming
// events to the sinks found in ctx.
type Service interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(ctx context.Context, req Request) (*Response, error)

func (f ServiceFunc) Complete(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
