package openai

import (
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/settings"
)

// MakeCompletionRequest maps a reasoning request to a streaming chat
// completion request.
func MakeCompletionRequest(s *settings.Reasoning, req inference.Request) go_openai.ChatCompletionRequest {
	model := s.Model
	if req.Model != "" {
		model = req.Model
	}

	var msgs []go_openai.ChatCompletionMessage
	if req.Instructions != "" {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    go_openai.ChatMessageRoleSystem,
			Content: req.Instructions,
		})
	}
	for _, m := range inference.Messages(req) {
		msgs = append(msgs, toOpenAIMessage(m))
	}

	ret := go_openai.ChatCompletionRequest{
		Model:    model,
		Messages: msgs,
		Stream:   true,
	}
	if s.Provider == settings.ProviderOpenAI {
		ret.StreamOptions = &go_openai.StreamOptions{IncludeUsage: true}
	}
	if s.Temperature != nil {
		ret.Temperature = float32(*s.Temperature)
	}
	if s.MaxTokens > 0 {
		ret.MaxTokens = s.MaxTokens
	}

	if len(req.Tools) > 0 {
		for _, tool := range req.Tools {
			ret.Tools = append(ret.Tools, go_openai.Tool{
				Type: go_openai.ToolTypeFunction,
				Function: &go_openai.FunctionDefinition{
					Name:        tool.Name,
					Description: tool.Description,
					Parameters:  tool.Parameters,
				},
			})
		}
		ret.ToolChoice = "auto"
	}

	return ret
}

func toOpenAIMessage(m inference.Message) go_openai.ChatCompletionMessage {
	switch m.Role {
	case inference.MessageRoleAssistant:
		ret := go_openai.ChatCompletionMessage{
			Role:    go_openai.ChatMessageRoleAssistant,
			Content: m.Content,
			Name:    m.Name,
		}
		for _, tc := range m.ToolCalls {
			ret.ToolCalls = append(ret.ToolCalls, go_openai.ToolCall{
				ID:   tc.ID,
				Type: go_openai.ToolTypeFunction,
				Function: go_openai.FunctionCall{
					Name:      tc.Name,
					Arguments: inference.ArgumentsJSON(tc.Arguments),
				},
			})
		}
		return ret
	case inference.MessageRoleTool:
		return go_openai.ChatCompletionMessage{
			Role:       go_openai.ChatMessageRoleTool,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
	case inference.MessageRoleUser:
	}
	return go_openai.ChatCompletionMessage{
		Role:    go_openai.ChatMessageRoleUser,
		Content: m.Content,
	}
}
