package turns

import (
	"strings"
	"time"
)

// Role identifies who produced a Turn or a Block.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// SpeakerUser is the speaker name of every user Turn.
const SpeakerUser = "user"

// BlockKind discriminates the content of a Block.
type BlockKind string

const (
	BlockKindText     BlockKind = "text"
	BlockKindToolCall BlockKind = "tool_call"
	BlockKindToolUse  BlockKind = "tool_use"
)

// ToolCall is a capability invocation requested by an agent while producing a Turn.
type ToolCall struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Arguments map[string]any `json:"arguments,omitempty" yaml:"arguments,omitempty"`
}

// ToolUse is the outcome of a ToolCall. Error is set when the capability failed.
type ToolUse struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Result string `json:"result,omitempty" yaml:"result,omitempty"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Block represents a single atomic unit within a Turn.
type Block struct {
	Kind     BlockKind `json:"kind" yaml:"kind"`
	Text     string    `json:"text,omitempty" yaml:"text,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty" yaml:"tool_call,omitempty"`
	ToolUse  *ToolUse  `json:"tool_use,omitempty" yaml:"tool_use,omitempty"`
}

// Turn is one entry of the conversation log.
//
// Seq, ID and Timestamp are assigned by the message store on append. A Turn is
// immutable once appended: stores hand out copies.
type Turn struct {
	Seq       uint64    `json:"seq" yaml:"seq"`
	ID        string    `json:"id" yaml:"id"`
	Speaker   string    `json:"speaker" yaml:"speaker"`
	Role      Role      `json:"role" yaml:"role"`
	Blocks    []Block   `json:"blocks" yaml:"blocks"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// Text concatenates all text blocks of the turn.
func (t *Turn) Text() string {
	if t == nil {
		return ""
	}
	var parts []string
	for _, b := range t.Blocks {
		if b.Kind == BlockKindText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// IsUser reports whether the turn was produced by the user.
func (t *Turn) IsUser() bool {
	return t != nil && t.Role == RoleUser
}

// ToolCalls returns the tool calls recorded on the turn, in order.
func (t *Turn) ToolCalls() []ToolCall {
	var ret []ToolCall
	for _, b := range t.Blocks {
		if b.Kind == BlockKindToolCall && b.ToolCall != nil {
			ret = append(ret, *b.ToolCall)
		}
	}
	return ret
}

// ToolUses returns the tool results recorded on the turn, in order.
func (t *Turn) ToolUses() []ToolUse {
	var ret []ToolUse
	for _, b := range t.Blocks {
		if b.Kind == BlockKindToolUse && b.ToolUse != nil {
			ret = append(ret, *b.ToolUse)
		}
	}
	return ret
}

// Clone returns a deep copy of the Turn suitable for mutation without affecting the original.
func (t *Turn) Clone() *Turn {
	if t == nil {
		return nil
	}
	out := *t
	if len(t.Blocks) == 0 {
		out.Blocks = nil
		return &out
	}
	out.Blocks = make([]Block, len(t.Blocks))
	for i, b := range t.Blocks {
		if b.ToolCall != nil {
			tc := *b.ToolCall
			if b.ToolCall.Arguments != nil {
				tc.Arguments = make(map[string]any, len(b.ToolCall.Arguments))
				for k, v := range b.ToolCall.Arguments {
					tc.Arguments[k] = v
				}
			}
			b.ToolCall = &tc
		}
		if b.ToolUse != nil {
			tu := *b.ToolUse
			b.ToolUse = &tu
		}
		out.Blocks[i] = b
	}
	return &out
}
