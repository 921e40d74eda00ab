package scripted

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/turns"
)

const handoffScript = `
default_reply: "How can I help?"
rules:
  - agent: TriageAgent
    contains: order
    calls:
      - name: transfer_to_OrderStatusAgent
  - agent: OrderStatusAgent
    calls:
      - name: check_order_status
        arguments:
          order_id: '{{ regexFind "[0-9]+" .LastMessage }}'
  - agent: OrderStatusAgent
    after_tools: true
    reply: "{{ .ToolResult }}"
  - agent: selector
    last_speaker: user
    reply: TriageAgent
`

func TestEngine_RulesInOrder(t *testing.T) {
	script, err := ParseScript([]byte(handoffScript))
	require.NoError(t, err)
	e := NewEngine(script)
	ctx := context.Background()
	history := []turns.Turn{turns.NewUserTurn("Where is my order 4711?")}

	resp, err := e.Complete(ctx, inference.Request{Agent: "TriageAgent", History: history})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "transfer_to_OrderStatusAgent", resp.ToolCalls[0].Name)
	assert.True(t, strings.HasPrefix(resp.ToolCalls[0].ID, "call_"))

	resp, err = e.Complete(ctx, inference.Request{Agent: "OrderStatusAgent", History: history})
	require.NoError(t, err)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, map[string]any{"order_id": "4711"}, resp.ToolCalls[0].Arguments)

	resp, err = e.Complete(ctx, inference.Request{
		Agent:   "OrderStatusAgent",
		History: history,
		Pending: []turns.Block{
			turns.NewToolCallBlock("c1", "check_order_status", map[string]any{"order_id": "4711"}),
			turns.NewToolUseBlock("c1", "check_order_status", "Order 4711 is shipped and will arrive in 2-3 days.", ""),
		},
	})
	require.NoError(t, err)
	assert.Empty(t, resp.ToolCalls)
	assert.Equal(t, "Order 4711 is shipped and will arrive in 2-3 days.", resp.Text)

	resp, err = e.Complete(ctx, inference.Request{Agent: "selector", History: history})
	require.NoError(t, err)
	assert.Equal(t, "TriageAgent", resp.Text)

	resp, err = e.Complete(ctx, inference.Request{Agent: "TriageAgent", History: []turns.Turn{turns.NewUserTurn("hello")}})
	require.NoError(t, err)
	assert.Equal(t, "How can I help?", resp.Text)
}

func TestEngine_PublishesWordByWord(t *testing.T) {
	script, err := ParseScript([]byte(`rules: [{agent: a, reply: "one two three"}]`))
	require.NoError(t, err)

	var partials []string
	ctx := events.WithEventSinks(context.Background(), events.SinkFunc(func(e events.Event) error {
		if p, ok := e.(*events.EventPartialCompletion); ok {
			partials = append(partials, p.Delta)
		}
		return nil
	}))
	_, err = NewEngine(script).Complete(ctx, inference.Request{Agent: "a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"one ", "two ", "three"}, partials)
}

func TestEngine_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEngine(nil).Complete(ctx, inference.Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseScript_Invalid(t *testing.T) {
	_, err := ParseScript([]byte(`rules: [{agent: a}]`))
	assert.Error(t, err)
	_, err = ParseScript([]byte(`rules: [{agent: a, calls: [{arguments: {x: 1}}]}]`))
	assert.Error(t, err)
	_, err = ParseScript([]byte(`rules: [{agent: a, reply: "{{ .Nope "}]`))
	assert.Error(t, err)
	_, err = ParseScript([]byte("rules: ["))
	assert.Error(t, err)
}

func TestEngine_LastMessageSkipsCallOnlyTurns(t *testing.T) {
	script, err := ParseScript([]byte(`rules: [{agent: OrderReturnAgent, contains: return, reply: "Which order?"}]`))
	require.NoError(t, err)

	history := []turns.Turn{
		turns.NewUserTurn("I want to return an order"),
		turns.NewAgentTurnBuilder("TriageAgent").
			WithToolCall("c1", "transfer_to_OrderReturnAgent", nil).
			WithToolUse("c1", "transfer_to_OrderReturnAgent", "Transferred to OrderReturnAgent.", "").
			Build(),
	}
	resp, err := NewEngine(script).Complete(context.Background(), inference.Request{Agent: "OrderReturnAgent", History: history})
	require.NoError(t, err)
	assert.Equal(t, "Which order?", resp.Text)
}
