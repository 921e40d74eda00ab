// Package toolloop runs one agent invocation: reasoning calls interleaved
// with capability calls until the agent answers without requesting more
// capabilities.
package toolloop

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/palaver/pkg/agents"
	"github.com/go-go-golems/palaver/pkg/capabilities"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/turns"
)

const DefaultMaxIterations = 5

// StopFunc ends the invocation after a dispatched call when it returns true.
type StopFunc func(call turns.ToolCall, res capabilities.Result) bool

type Loop struct {
	svc           inference.Service
	dispatcher    capabilities.Dispatcher
	maxIterations int
	stopWhen      StopFunc
}

type Option func(*Loop)

// WithMaxIterations bounds the number of reasoning calls per invocation.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		l.maxIterations = n
	}
}

func WithStopWhen(f StopFunc) Option {
	return func(l *Loop) {
		l.stopWhen = f
	}
}

func New(svc inference.Service, dispatcher capabilities.Dispatcher, opts ...Option) *Loop {
	l := &Loop{
		svc:           svc,
		dispatcher:    dispatcher,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.maxIterations <= 0 {
		l.maxIterations = DefaultMaxIterations
	}
	return l
}

// Invoke runs agent on history and returns its turn. The turn is not
// appended anywhere; on error nothing of it should be committed.
func (l *Loop) Invoke(ctx context.Context, agent agents.Descriptor, history []turns.Turn) (turns.Turn, error) {
	return l.InvokeWith(ctx, agent, history, l.dispatcher, l.stopWhen)
}

// InvokeWith is Invoke with a dispatcher and stop condition for this call only.
func (l *Loop) InvokeWith(
	ctx context.Context,
	agent agents.Descriptor,
	history []turns.Turn,
	dispatcher capabilities.Dispatcher,
	stopWhen StopFunc,
) (turns.Turn, error) {
	if l.svc == nil {
		return turns.Turn{}, inference.ErrNoBackend
	}

	var specs []capabilities.Spec
	if dispatcher != nil {
		var err error
		specs, err = dispatcher.Specs(agent)
		if err != nil {
			return turns.Turn{}, errors.Wrapf(err, "could not list capabilities of %s", agent.Name)
		}
	}

	var pending []turns.Block
	for i := 0; i < l.maxIterations; i++ {
		log.Debug().Str("agent", agent.Name).Int("iteration", i+1).Msg("toolloop: reasoning step")

		resp, err := l.svc.Complete(ctx, inference.Request{
			Agent:        agent.Name,
			Model:        agent.Model,
			Instructions: agent.Instructions,
			History:      history,
			Pending:      pending,
			Tools:        specs,
		})
		if err != nil {
			return turns.Turn{}, err
		}
		if resp.Text != "" {
			pending = append(pending, turns.NewTextBlock(resp.Text))
		}
		if len(resp.ToolCalls) == 0 {
			return build(agent, pending), nil
		}

		stop := false
		for _, call := range resp.ToolCalls {
			if call.ID == "" {
				call.ID = "call_" + xid.New().String()
			}
			pending = append(pending, turns.NewToolCallBlock(call.ID, call.Name, call.Arguments))
			res := dispatch(ctx, dispatcher, agent, call)
			pending = append(pending, res.Block())
			if stopWhen != nil && stopWhen(call, res) {
				stop = true
			}
		}
		if err := ctx.Err(); err != nil {
			return turns.Turn{}, err
		}
		if stop {
			return build(agent, pending), nil
		}
	}

	log.Warn().Str("agent", agent.Name).Int("max_iterations", l.maxIterations).Msg("toolloop: maximum iterations reached")
	return build(agent, pending), nil
}

func dispatch(ctx context.Context, dispatcher capabilities.Dispatcher, agent agents.Descriptor, call turns.ToolCall) capabilities.Result {
	metadata := events.MetadataFromContext(ctx, agent.Name)
	events.PublishEventToContext(ctx, events.NewToolCallEvent(metadata, events.ToolCall{
		ID:    call.ID,
		Name:  call.Name,
		Input: inference.ArgumentsJSON(call.Arguments),
	}))

	var res capabilities.Result
	if dispatcher == nil {
		res = capabilities.Result{
			ID:   call.ID,
			Name: call.Name,
			Err:  capabilities.NewCapabilityError(call.Name, capabilities.ErrorTypeNotFound, "no capabilities available"),
		}
	} else {
		res = dispatcher.Dispatch(ctx, agent, call)
	}

	events.PublishEventToContext(ctx, events.NewToolResultEvent(metadata, events.ToolResult{
		ID:     res.ID,
		Name:   res.Name,
		Result: res.Output,
		Error:  res.ErrorString(),
	}))
	return res
}

func build(agent agents.Descriptor, blocks []turns.Block) turns.Turn {
	return turns.NewAgentTurnBuilder(agent.Name).WithBlocks(blocks...).Build()
}
