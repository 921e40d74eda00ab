package inference

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-go-golems/palaver/pkg/turns"
)

type MessageRole string

const (
	MessageRoleUser      MessageRole = "user"
	MessageRoleAssistant MessageRole = "assistant"
	MessageRoleTool      MessageRole = "tool"
)

// Message is the provider-neutral form of one chat message. Backends map it
// to their wire types.
type Message struct {
	Role MessageRole
	// Name is the speaking agent for assistant messages
	Name    string
	Content string
	// ToolCalls are set on assistant messages that request capabilities
	ToolCalls []turns.ToolCall
	// ToolCallID and ToolName are set on tool messages
	ToolCallID string
	ToolName   string
	IsError    bool
}

// Messages flattens a request into chat messages.
//
// Turns from the history become user or assistant messages. Turns of other
// agents are prefixed with their name, and capability calls of earlier turns
// are summarized as text. Pending blocks are emitted as proper tool-call and
// tool-result messages so the backend can continue the current turn.
func Messages(req Request) []Message {
	var ret []Message

	for _, t := range req.History {
		if t.IsUser() {
			ret = append(ret, Message{Role: MessageRoleUser, Content: t.Text()})
			continue
		}
		content := t.Text()
		if summary := summarizeTools(t); summary != "" {
			if content != "" {
				content += "\n"
			}
			content += summary
		}
		if content == "" {
			continue
		}
		if t.Speaker != req.Agent {
			content = fmt.Sprintf("%s: %s", t.Speaker, content)
		}
		ret = append(ret, Message{Role: MessageRoleAssistant, Name: t.Speaker, Content: content})
	}

	ret = append(ret, pendingMessages(req.Agent, req.Pending)...)

	if req.Prompt != "" {
		ret = append(ret, Message{Role: MessageRoleUser, Content: req.Prompt})
	}
	return ret
}

func pendingMessages(agent string, blocks []turns.Block) []Message {
	var ret []Message
	var current *Message
	flush := func() {
		if current != nil {
			ret = append(ret, *current)
			current = nil
		}
	}

	for _, b := range blocks {
		switch b.Kind {
		case turns.BlockKindText:
			if current == nil || len(current.ToolCalls) > 0 {
				flush()
				current = &Message{Role: MessageRoleAssistant, Name: agent}
			}
			if current.Content != "" {
				current.Content += "\n"
			}
			current.Content += b.Text
		case turns.BlockKindToolCall:
			if current == nil {
				current = &Message{Role: MessageRoleAssistant, Name: agent}
			}
			current.ToolCalls = append(current.ToolCalls, *b.ToolCall)
		case turns.BlockKindToolUse:
			flush()
			content := b.ToolUse.Result
			if b.ToolUse.Error != "" {
				content = "error: " + b.ToolUse.Error
			}
			ret = append(ret, Message{
				Role:       MessageRoleTool,
				Content:    content,
				ToolCallID: b.ToolUse.ID,
				ToolName:   b.ToolUse.Name,
				IsError:    b.ToolUse.Error != "",
			})
		}
	}
	flush()
	return ret
}

func summarizeTools(t turns.Turn) string {
	var lines []string
	for _, u := range t.ToolUses() {
		if u.Error != "" {
			lines = append(lines, fmt.Sprintf("(%s failed: %s)", u.Name, u.Error))
			continue
		}
		lines = append(lines, fmt.Sprintf("(%s: %s)", u.Name, u.Result))
	}
	return strings.Join(lines, "\n")
}

// ArgumentsJSON renders tool call arguments for wire formats that carry them
// as a JSON string.
func ArgumentsJSON(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}
	b, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(b)
}
