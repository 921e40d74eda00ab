package scripted

import (
	"context"
	"strings"

	"github.com/rs/xid"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference"
	"github.com/go-go-golems/palaver/pkg/prompts"
	"github.com/go-go-golems/palaver/pkg/turns"
)

type Engine struct {
	script *Script
}

func NewEngine(script *Script) *Engine {
	if script == nil {
		script = &Script{}
	}
	return &Engine{script: script}
}

func (e *Engine) Complete(ctx context.Context, r inference.Request) (*inference.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d := replyData(r)
	hasResults := false
	for _, b := range r.Pending {
		if b.Kind == turns.BlockKindToolUse {
			hasResults = true
		}
	}

	ret := &inference.Response{StopReason: "end_turn"}
	matched := false
	for i := range e.script.Rules {
		rule := &e.script.Rules[i]
		if !rule.matches(d, hasResults) {
			continue
		}
		text, err := rule.render(d)
		if err != nil {
			return nil, err
		}
		ret.Text = text
		for _, c := range rule.Calls {
			args, err := renderArguments(c.Arguments, d)
			if err != nil {
				return nil, err
			}
			ret.ToolCalls = append(ret.ToolCalls, turns.ToolCall{
				ID:        "call_" + xid.New().String(),
				Name:      c.Name,
				Arguments: args,
			})
		}
		if len(ret.ToolCalls) > 0 {
			ret.StopReason = "tool_use"
		}
		log.Debug().Str("agent", r.Agent).Int("rule", i).Msg("Scripted rule matched")
		matched = true
		break
	}
	if !matched {
		if hasResults {
			ret.Text = d.ToolResult
		} else {
			ret.Text = e.script.DefaultReply
		}
	}

	publish(ctx, r.Agent, ret.Text)
	return ret, nil
}

// publish emits the reply word by word, the way a streaming backend would.
func publish(ctx context.Context, agent string, text string) {
	metadata := events.MetadataFromContext(ctx, agent)
	metadata.Model = "scripted"
	events.PublishEventToContext(ctx, events.NewStartEvent(metadata))
	completion := ""
	for _, word := range strings.SplitAfter(text, " ") {
		if word == "" {
			continue
		}
		completion += word
		events.PublishEventToContext(ctx, events.NewPartialCompletionEvent(metadata, word, completion))
	}
	events.PublishEventToContext(ctx, events.NewFinalEvent(metadata, text))
}

// renderArguments renders string arguments containing template actions.
func renderArguments(in map[string]any, d ReplyData) (map[string]any, error) {
	args := make(map[string]any, len(in))
	for k, v := range in {
		s, ok := v.(string)
		if !ok || !strings.Contains(s, "{{") {
			args[k] = v
			continue
		}
		t, err := prompts.Parse(k, s)
		if err != nil {
			return nil, err
		}
		rendered, err := t.Render(d)
		if err != nil {
			return nil, err
		}
		args[k] = rendered
	}
	return args, nil
}

func replyData(r inference.Request) ReplyData {
	d := ReplyData{Agent: r.Agent}
	if n := len(r.History); n > 0 {
		d.LastSpeaker = r.History[n-1].Speaker
	}
	for i := len(r.History) - 1; i >= 0; i-- {
		if text := r.History[i].Text(); text != "" {
			d.LastMessage = text
			break
		}
	}
	if r.Prompt != "" && d.LastMessage == "" {
		d.LastMessage = r.Prompt
	}
	for _, b := range r.Pending {
		if b.Kind == turns.BlockKindToolUse {
			if b.ToolUse.Error != "" {
				d.ToolResult = b.ToolUse.Error
			} else {
				d.ToolResult = b.ToolUse.Result
			}
		}
	}
	return d
}

var _ inference.Service = (*Engine)(nil)
