// Package claude is the Anthropic reasoning backend.
package claude

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/go-go-golems/palaver/pkg/turns"
)

const defaultMaxTokens = 1024

// MessagesClient is the part of the go-anthropic client the engine uses.
type MessagesClient interface {
	CreateMessages(ctx context.Context, request anthropic.MessagesRequest) (anthropic.MessagesResponse, error)
}

type Engine struct {
	settings *settings.Reasoning
	client   MessagesClient
}

func NewEngine(s *settings.Reasoning) (*Engine, error) {
	if s.APIKey == "" {
		return nil, errors.New("no API key for claude")
	}
	var opts []anthropic.ClientOption
	if s.BaseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(s.BaseURL))
	}
	return &Engine{settings: s, client: anthropic.NewClient(s.APIKey, opts...)}, nil
}

func NewEngineWithClient(s *settings.Reasoning, client MessagesClient) *Engine {
	return &Engine{settings: s, client: client}
}

func (e *Engine) Complete(ctx context.Context, r inference.Request) (*inference.Response, error) {
	req := MakeMessagesRequest(e.settings, r)

	metadata := events.MetadataFromContext(ctx, r.Agent)
	metadata.Model = string(req.Model)
	events.PublishEventToContext(ctx, events.NewStartEvent(metadata))

	log.Debug().
		Str("agent", r.Agent).
		Str("model", metadata.Model).
		Int("messages", len(req.Messages)).
		Msg("Claude completion started")

	resp, err := e.client.CreateMessages(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			events.PublishEventToContext(ctx, events.NewInterruptEvent(metadata, ""))
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "claude request failed")
	}

	ret := &inference.Response{
		StopReason: string(resp.StopReason),
		Usage: events.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
		},
	}
	var text []string
	for _, c := range resp.Content {
		switch c.Type {
		case anthropic.MessagesContentTypeText:
			text = append(text, c.GetText())
		case anthropic.MessagesContentTypeToolUse:
			if c.MessageContentToolUse == nil {
				continue
			}
			args := map[string]any{}
			if len(c.MessageContentToolUse.Input) > 0 {
				if err := json.Unmarshal(c.MessageContentToolUse.Input, &args); err != nil {
					log.Warn().Err(err).Str("tool", c.MessageContentToolUse.Name).Msg("Could not decode tool use input")
				}
			}
			ret.ToolCalls = append(ret.ToolCalls, turns.ToolCall{
				ID:        c.MessageContentToolUse.ID,
				Name:      c.MessageContentToolUse.Name,
				Arguments: args,
			})
		default:
		}
	}
	ret.Text = strings.Join(text, "")

	usage := ret.Usage
	metadata.Usage = &usage
	if ret.Text != "" {
		events.PublishEventToContext(ctx, events.NewPartialCompletionEvent(metadata, ret.Text, ret.Text))
	}
	events.PublishEventToContext(ctx, events.NewFinalEvent(metadata, ret.Text))
	return ret, nil
}

// MakeMessagesRequest maps a reasoning request to the messages API. Turns of
// other agents are presented as user messages, and consecutive messages of
// the same role are merged.
func MakeMessagesRequest(s *settings.Reasoning, r inference.Request) anthropic.MessagesRequest {
	model := s.Model
	if r.Model != "" {
		model = r.Model
	}
	maxTokens := s.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	ret := anthropic.MessagesRequest{
		Model:     anthropic.Model(model),
		System:    r.Instructions,
		MaxTokens: maxTokens,
	}
	if s.Temperature != nil {
		t := float32(*s.Temperature)
		ret.Temperature = &t
	}
	for _, tool := range r.Tools {
		ret.Tools = append(ret.Tools, anthropic.ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}

	for _, m := range inference.Messages(r) {
		role := anthropic.RoleUser
		var content []anthropic.MessageContent
		switch m.Role {
		case inference.MessageRoleAssistant:
			if m.Name == r.Agent || len(m.ToolCalls) > 0 {
				role = anthropic.RoleAssistant
			}
			if m.Content != "" {
				content = append(content, anthropic.NewTextMessageContent(m.Content))
			}
			for _, tc := range m.ToolCalls {
				content = append(content, anthropic.NewToolUseMessageContent(tc.ID, tc.Name, json.RawMessage(inference.ArgumentsJSON(tc.Arguments))))
			}
		case inference.MessageRoleTool:
			content = append(content, anthropic.NewToolResultMessageContent(m.ToolCallID, m.Content, m.IsError))
		case inference.MessageRoleUser:
			content = append(content, anthropic.NewTextMessageContent(m.Content))
		}
		if len(content) == 0 {
			continue
		}
		if n := len(ret.Messages); n > 0 && ret.Messages[n-1].Role == role {
			ret.Messages[n-1].Content = append(ret.Messages[n-1].Content, content...)
			continue
		}
		ret.Messages = append(ret.Messages, anthropic.Message{Role: role, Content: content})
	}

	if len(ret.Messages) > 0 && ret.Messages[0].Role != anthropic.RoleUser {
		ret.Messages = append([]anthropic.Message{{
			Role:    anthropic.RoleUser,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent("Continue.")},
		}}, ret.Messages...)
	}
	if len(ret.Messages) == 0 || ret.Messages[len(ret.Messages)-1].Role != anthropic.RoleUser {
		ret.Messages = append(ret.Messages, anthropic.Message{
			Role:    anthropic.RoleUser,
			Content: []anthropic.MessageContent{anthropic.NewTextMessageContent("Continue.")},
		})
	}
	return ret
}

var _ inference.Service = (*Engine)(nil)
