package history

import (
	"encoding/json"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/tiktoken-go/tokenizer"

	"github.com/go-go-golems/palaver/pkg/turns"
)

// TokenBudget keeps the most recent turns whose combined token count fits in
// Budget. The newest turn is always kept.
type TokenBudget struct {
	Budget int
	codec  tokenizer.Codec
}

// NewTokenBudget picks the codec of model, falling back to cl100k_base for
// models the tokenizer does not know.
func NewTokenBudget(model string, budget int) (*TokenBudget, error) {
	codec, err := CodecFor(model)
	if err != nil {
		return nil, err
	}
	return &TokenBudget{Budget: budget, codec: codec}, nil
}

func CodecFor(model string) (tokenizer.Codec, error) {
	if model != "" {
		if c, err := tokenizer.ForModel(tokenizer.Model(model)); err == nil {
			return c, nil
		}
		log.Debug().Str("model", model).Msg("No tokenizer for model, using cl100k_base")
	}
	c, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, errors.Wrap(err, "could not load tokenizer")
	}
	return c, nil
}

// CountTokens counts the tokens of s with codec.
func CountTokens(codec tokenizer.Codec, s string) (int, error) {
	ids, _, err := codec.Encode(s)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

func (r *TokenBudget) Reduce(log []turns.Turn) []turns.Turn {
	if r.Budget <= 0 || len(log) == 0 {
		return log
	}
	total := 0
	start := len(log)
	for i := len(log) - 1; i >= 0; i-- {
		n := r.turnTokens(&log[i])
		if total+n > r.Budget && i < len(log)-1 {
			break
		}
		total += n
		start = i
	}
	return log[start:]
}

func (r *TokenBudget) turnTokens(t *turns.Turn) int {
	text := t.Speaker + ": " + t.Text()
	for _, b := range t.Blocks {
		switch b.Kind {
		case turns.BlockKindToolCall:
			args, _ := json.Marshal(b.ToolCall.Arguments)
			text += "\n" + b.ToolCall.Name + string(args)
		case turns.BlockKindToolUse:
			text += "\n" + b.ToolUse.Result + b.ToolUse.Error
		case turns.BlockKindText:
		}
	}
	n, err := CountTokens(r.codec, text)
	if err != nil {
		// rough fallback of four bytes per token
		return len(text)/4 + 1
	}
	return n
}
