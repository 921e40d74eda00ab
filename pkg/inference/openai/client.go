package openai

import (
	"github.com/pkg/errors"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/palaver/pkg/settings"
)

// MakeClient builds an OpenAI or Azure OpenAI client from the reasoning
// settings.
func MakeClient(s *settings.Reasoning) (*go_openai.Client, error) {
	if s.APIKey == "" {
		return nil, errors.Errorf("no API key for %s", s.Provider)
	}

	switch s.Provider {
	case settings.ProviderAzure:
		if s.BaseURL == "" {
			return nil, errors.New("no base URL for azure")
		}
		config := go_openai.DefaultAzureConfig(s.APIKey, s.BaseURL)
		if s.APIVersion != "" {
			config.APIVersion = s.APIVersion
		}
		return go_openai.NewClientWithConfig(config), nil
	case settings.ProviderOpenAI:
		config := go_openai.DefaultConfig(s.APIKey)
		if s.BaseURL != "" {
			config.BaseURL = s.BaseURL
		}
		return go_openai.NewClientWithConfig(config), nil
	case settings.ProviderClaude, settings.ProviderScripted:
	}
	return nil, errors.Errorf("provider %s is not served by the openai client", s.Provider)
}

// ToolCallMerger merges streamed tool call deltas by their index.
type ToolCallMerger struct {
	toolCalls map[int]go_openai.ToolCall
	order     []int
}

func NewToolCallMerger() *ToolCallMerger {
	return &ToolCallMerger{
		toolCalls: make(map[int]go_openai.ToolCall),
	}
}

func (tcm *ToolCallMerger) AddToolCalls(toolCalls []go_openai.ToolCall) {
	for _, call := range toolCalls {
		index := 0
		if call.Index != nil {
			index = *call.Index
		}
		if existing, found := tcm.toolCalls[index]; found {
			if existing.ID == "" {
				existing.ID = call.ID
			}
			existing.Function.Name += call.Function.Name
			existing.Function.Arguments += call.Function.Arguments
			tcm.toolCalls[index] = existing
		} else {
			tcm.toolCalls[index] = call
			tcm.order = append(tcm.order, index)
		}
	}
}

// GetToolCalls returns the merged calls in the order they were first seen.
func (tcm *ToolCallMerger) GetToolCalls() []go_openai.ToolCall {
	result := make([]go_openai.ToolCall, 0, len(tcm.order))
	for _, idx := range tcm.order {
		result = append(result, tcm.toolCalls[idx])
	}
	return result
}
