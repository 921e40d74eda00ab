package turns

func NewTextBlock(text string) Block {
	return Block{Kind: BlockKindText, Text: text}
}

func NewToolCallBlock(id, name string, args map[string]any) Block {
	return Block{Kind: BlockKindToolCall, ToolCall: &ToolCall{ID: id, Name: name, Arguments: args}}
}

func NewToolUseBlock(id, name, result, errString string) Block {
	return Block{Kind: BlockKindToolUse, ToolUse: &ToolUse{ID: id, Name: name, Result: result, Error: errString}}
}

// NewUserTurn creates a user Turn carrying a single text block.
func NewUserTurn(text string) Turn {
	return Turn{
		Speaker: SpeakerUser,
		Role:    RoleUser,
		Blocks:  []Block{NewTextBlock(text)},
	}
}

// TurnBuilder helps construct an agent Turn with ordered Blocks.
type TurnBuilder struct {
	speaker string
	role    Role
	blocks  []Block
}

func NewAgentTurnBuilder(agent string) *TurnBuilder {
	return &TurnBuilder{speaker: agent, role: RoleAssistant, blocks: []Block{}}
}

func (tb *TurnBuilder) WithText(text string) *TurnBuilder {
	if text != "" {
		tb.blocks = append(tb.blocks, NewTextBlock(text))
	}
	return tb
}

func (tb *TurnBuilder) WithToolCall(id, name string, args map[string]any) *TurnBuilder {
	tb.blocks = append(tb.blocks, NewToolCallBlock(id, name, args))
	return tb
}

func (tb *TurnBuilder) WithToolUse(id, name, result, errString string) *TurnBuilder {
	tb.blocks = append(tb.blocks, NewToolUseBlock(id, name, result, errString))
	return tb
}

func (tb *TurnBuilder) WithBlocks(blocks ...Block) *TurnBuilder {
	tb.blocks = append(tb.blocks, blocks...)
	return tb
}

func (tb *TurnBuilder) Build() Turn {
	blocks := make([]Block, len(tb.blocks))
	copy(blocks, tb.blocks)
	return Turn{
		Speaker: tb.speaker,
		Role:    tb.role,
		Blocks:  blocks,
	}
}
