package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/palaver/pkg/agents"
	"github.com/go-go-golems/palaver/pkg/capabilities"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/prompts"
	"github.com/go-go-golems/palaver/pkg/turns"
)

// AfterTurnHook runs after an agent produced a turn and before the turn is
// appended. Hooks may add blocks to t.
type AfterTurnHook interface {
	AfterTurn(ctx context.Context, agent agents.Descriptor, t *turns.Turn) error
}

// HookData is what CapabilityHook argument templates are rendered with.
type HookData struct {
	Agent string
	// Text is the text of the agent's turn
	Text string
}

// CapabilityHook invokes a capability on behalf of Agent after each of its
// turns. The call and its result become part of that turn. A failed call is
// recorded as a failed result and does not fail the turn.
type CapabilityHook struct {
	Agent      string
	Capability string
	// Arguments are text/template strings rendered with HookData
	Arguments  map[string]string
	Dispatcher capabilities.Dispatcher

	templates map[string]*prompts.Template
}

func NewCapabilityHook(agent, capability string, arguments map[string]string, dispatcher capabilities.Dispatcher) (*CapabilityHook, error) {
	h := &CapabilityHook{
		Agent:      agent,
		Capability: capability,
		Arguments:  arguments,
		Dispatcher: dispatcher,
		templates:  map[string]*prompts.Template{},
	}
	for k, v := range arguments {
		t, err := prompts.Parse(capability+"."+k, v)
		if err != nil {
			return nil, err
		}
		h.templates[k] = t
	}
	return h, nil
}

func (h *CapabilityHook) AfterTurn(ctx context.Context, agent agents.Descriptor, t *turns.Turn) error {
	if !strings.EqualFold(agent.Name, h.Agent) {
		return nil
	}
	text := t.Text()
	if strings.TrimSpace(text) == "" {
		return nil
	}

	data := HookData{Agent: agent.Name, Text: text}
	args := make(map[string]any, len(h.templates))
	for k, tmpl := range h.templates {
		v, err := tmpl.Render(data)
		if err != nil {
			return errors.Wrapf(err, "could not render argument %s", k)
		}
		args[k] = v
	}
	call := turns.ToolCall{ID: "call_" + xid.New().String(), Name: h.Capability, Arguments: args}

	metadata := events.MetadataFromContext(ctx, agent.Name)
	events.PublishEventToContext(ctx, events.NewToolCallEvent(metadata, events.ToolCall{
		ID:    call.ID,
		Name:  call.Name,
		Input: inference.ArgumentsJSON(call.Arguments),
	}))
	res := h.Dispatcher.Dispatch(ctx, agent, call)
	events.PublishEventToContext(ctx, events.NewToolResultEvent(metadata, events.ToolResult{
		ID:     res.ID,
		Name:   res.Name,
		Result: res.Output,
		Error:  res.ErrorString(),
	}))
	if res.Failed() {
		log.Warn().Str("agent", agent.Name).Str("capability", h.Capability).Msg(res.ErrorString())
		events.PublishEventToContext(ctx, events.NewLogEvent(metadata, "warn",
			fmt.Sprintf("%s after %s failed: %s", h.Capability, agent.Name, res.ErrorString()),
			map[string]interface{}{"capability": h.Capability},
		))
	}

	t.Blocks = append(t.Blocks, turns.NewToolCallBlock(call.ID, call.Name, call.Arguments), res.Block())
	return nil
}

var _ AfterTurnHook = (*CapabilityHook)(nil)
