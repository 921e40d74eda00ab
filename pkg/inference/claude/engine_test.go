package claude

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/go-go-golems/palaver/pkg/turns"
)

type fakeClient struct {
	req  anthropic.MessagesRequest
	resp anthropic.MessagesResponse
	err  error
}

func (f *fakeClient) CreateMessages(ctx context.Context, req anthropic.MessagesRequest) (anthropic.MessagesResponse, error) {
	f.req = req
	return f.resp, f.err
}

func text(s string) anthropic.MessageContent {
	return anthropic.NewTextMessageContent(s)
}

func TestEngine_TextAndToolUse(t *testing.T) {
	client := &fakeClient{resp: anthropic.MessagesResponse{
		StopReason: anthropic.MessagesStopReasonToolUse,
		Content: []anthropic.MessageContent{
			text("Let me check."),
			anthropic.NewToolUseMessageContent("tu_1", "check_order_status", json.RawMessage(`{"order_id":"123"}`)),
		},
		Usage: anthropic.MessagesUsage{InputTokens: 20, OutputTokens: 7},
	}}
	s := &settings.Reasoning{Provider: settings.ProviderClaude, Model: settings.DefaultClaudeModel, APIKey: "k"}

	var got []events.EventType
	ctx := events.WithEventSinks(context.Background(), events.SinkFunc(func(e events.Event) error {
		got = append(got, e.Type())
		return nil
	}))

	resp, err := NewEngineWithClient(s, client).Complete(ctx, inference.Request{
		Agent:        "OrderStatusAgent",
		Instructions: "Report order status.",
		History:      []turns.Turn{turns.NewUserTurn("Where is 123?")},
	})
	require.NoError(t, err)
	assert.Equal(t, "Let me check.", resp.Text)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, map[string]any{"order_id": "123"}, resp.ToolCalls[0].Arguments)
	assert.Equal(t, 20, resp.Usage.InputTokens)
	assert.Equal(t, []events.EventType{events.EventTypeStart, events.EventTypePartialCompletion, events.EventTypeFinal}, got)

	assert.Equal(t, "Report order status.", client.req.System)
	assert.Equal(t, defaultMaxTokens, client.req.MaxTokens)
}

func TestEngine_ErrorIsWrapped(t *testing.T) {
	client := &fakeClient{err: errors.New("overloaded")}
	_, err := NewEngineWithClient(&settings.Reasoning{Model: "m"}, client).Complete(context.Background(), inference.Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "overloaded")
}

func TestMakeMessagesRequest_RolesAndMerging(t *testing.T) {
	triage := turns.NewAgentTurnBuilder("TriageAgent").WithText("Kategorie: Technisch").Build()
	req := MakeMessagesRequest(&settings.Reasoning{Model: "m"}, inference.Request{
		Agent:   "KnowledgeAgent",
		History: []turns.Turn{turns.NewUserTurn("Drucker druckt nicht"), triage},
		Pending: []turns.Block{
			turns.NewToolCallBlock("t1", "search", map[string]any{"q": "drucker"}),
			turns.NewToolUseBlock("t1", "search", "FAQ 12", ""),
		},
	})

	// user text and the other agent's turn merge into one user message
	require.Len(t, req.Messages, 3)
	assert.Equal(t, anthropic.RoleUser, req.Messages[0].Role)
	require.Len(t, req.Messages[0].Content, 2)
	assert.Equal(t, "TriageAgent: Kategorie: Technisch", req.Messages[0].Content[1].GetText())
	assert.Equal(t, anthropic.RoleAssistant, req.Messages[1].Role)
	assert.Equal(t, anthropic.MessagesContentTypeToolUse, req.Messages[1].Content[0].Type)
	assert.Equal(t, anthropic.RoleUser, req.Messages[2].Role)
	assert.Equal(t, anthropic.MessagesContentTypeToolResult, req.Messages[2].Content[0].Type)
}

func TestMakeMessagesRequest_EndsWithUser(t *testing.T) {
	own := turns.NewAgentTurnBuilder("ResponseAgent").WithText("Sehr geehrte Kundin").Build()
	req := MakeMessagesRequest(&settings.Reasoning{Model: "m"}, inference.Request{
		Agent:   "ResponseAgent",
		History: []turns.Turn{own},
	})
	require.Len(t, req.Messages, 3)
	assert.Equal(t, anthropic.RoleUser, req.Messages[0].Role)
	assert.Equal(t, anthropic.RoleAssistant, req.Messages[1].Role)
	assert.Equal(t, anthropic.RoleUser, req.Messages[2].Role)
}
