// Package openai is the OpenAI and Azure OpenAI reasoning backend. Responses
// are always streamed and published as partial completion events.
package openai

import (
	"context"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"

	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/go-go-golems/palaver/pkg/turns"
)

// ChatStreamer is the part of the go-openai client the engine uses.
type ChatStreamer interface {
	CreateChatCompletionStream(ctx context.Context, request go_openai.ChatCompletionRequest) (*go_openai.ChatCompletionStream, error)
}

type Engine struct {
	settings *settings.Reasoning
	client   ChatStreamer
}

func NewEngine(s *settings.Reasoning) (*Engine, error) {
	client, err := MakeClient(s)
	if err != nil {
		return nil, err
	}
	return &Engine{settings: s, client: client}, nil
}

// NewEngineWithClient uses an already configured client.
func NewEngineWithClient(s *settings.Reasoning, client ChatStreamer) *Engine {
	return &Engine{settings: s, client: client}
}

func (e *Engine) Complete(ctx context.Context, r inference.Request) (*inference.Response, error) {
	req := MakeCompletionRequest(e.settings, r)
	log.Debug().
		Str("agent", r.Agent).
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Int("tools", len(req.Tools)).
		Msg("OpenAI completion started")

	metadata := events.MetadataFromContext(ctx, r.Agent)
	metadata.Model = req.Model
	events.PublishEventToContext(ctx, events.NewStartEvent(metadata))

	stream, err := e.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("agent", r.Agent).Msg("OpenAI streaming request failed")
		return nil, errors.Wrap(err, "openai streaming request failed")
	}
	defer func() {
		if err := stream.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close stream")
		}
	}()

	message := ""
	toolCallMerger := NewToolCallMerger()
	ret := &inference.Response{}

	chunkCount := 0
	for {
		select {
		case <-ctx.Done():
			events.PublishEventToContext(ctx, events.NewInterruptEvent(metadata, message))
			return nil, ctx.Err()
		default:
		}

		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			log.Debug().Int("chunks_received", chunkCount).Msg("OpenAI stream completed")
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				events.PublishEventToContext(ctx, events.NewInterruptEvent(metadata, message))
				return nil, ctx.Err()
			}
			log.Error().Err(err).Int("chunks_received", chunkCount).Msg("OpenAI stream receive failed")
			return nil, errors.Wrap(err, "openai stream receive failed")
		}
		chunkCount++

		if response.Usage != nil {
			ret.Usage.InputTokens = response.Usage.PromptTokens
			ret.Usage.OutputTokens = response.Usage.CompletionTokens
			if response.Usage.PromptTokensDetails != nil {
				ret.Usage.CachedTokens = response.Usage.PromptTokensDetails.CachedTokens
			}
		}
		if len(response.Choices) == 0 {
			continue
		}

		choice := response.Choices[0]
		if choice.FinishReason != "" {
			ret.StopReason = string(choice.FinishReason)
		}
		if len(choice.Delta.ToolCalls) > 0 {
			toolCallMerger.AddToolCalls(choice.Delta.ToolCalls)
		}
		if delta := choice.Delta.Content; delta != "" {
			message += delta
			events.PublishEventToContext(ctx, events.NewPartialCompletionEvent(metadata, delta, message))
		}
	}

	ret.Text = message
	for _, tc := range toolCallMerger.GetToolCalls() {
		args := map[string]any{}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				log.Warn().Err(err).Str("tool", tc.Function.Name).Msg("Could not decode tool call arguments")
				args = map[string]any{}
			}
		}
		ret.ToolCalls = append(ret.ToolCalls, turns.ToolCall{ID: tc.ID, Name: tc.Function.Name, Arguments: args})
	}

	if ret.Usage.InputTokens > 0 || ret.Usage.OutputTokens > 0 {
		usage := ret.Usage
		metadata.Usage = &usage
	}
	events.PublishEventToContext(ctx, events.NewFinalEvent(metadata, message))

	log.Debug().
		Str("agent", r.Agent).
		Int("text_length", len(message)).
		Int("tool_calls", len(ret.ToolCalls)).
		Msg("OpenAI completion finished")
	return ret, nil
}

var _ inference.Service = (*Engine)(nil)
