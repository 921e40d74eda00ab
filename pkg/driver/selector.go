package driver

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/inference/toolloop"
	"github.com/go-go-golems/palaver/pkg/selection"
	"github.com/go-go-golems/palaver/pkg/termination"
)

// SelectorStrategy lets a TurnSelector pick the speaker of every agent turn.
// After each turn the Evaluator decides whether the task is complete.
type SelectorStrategy struct {
	Selector  selection.TurnSelector
	Evaluator termination.Evaluator
	Loop      *toolloop.Loop
	// Rounds is the maximum number of agent turns per user input
	Rounds int
}

func (s *SelectorStrategy) Cycle(ctx context.Context, c *Cycle) error {
	rounds := s.Rounds
	if rounds <= 0 {
		rounds = 1
	}
	evaluator := s.Evaluator
	if evaluator == nil {
		evaluator = termination.Never
	}

	for i := 0; i < rounds; i++ {
		hist, err := c.History(ctx)
		if err != nil {
			return err
		}

		d := s.Selector.Select(ctx, hist)
		if err := ctx.Err(); err != nil {
			return err
		}
		c.Publish(ctx, events.NewSelectionEvent(
			events.MetadataFromContext(ctx, selection.ReasoningAgent),
			d.Agent, d.Fallback, d.End, d.Raw,
		))
		if d.End {
			log.Debug().Int("round", i+1).Msg("Selector ended the round")
			return nil
		}

		agent, err := c.Agent(d.Agent)
		if err != nil {
			return errors.Wrap(err, "selected agent is not registered")
		}
		t, err := s.Loop.Invoke(ctx, agent, hist)
		if err != nil {
			return errors.Wrapf(err, "agent %s failed", agent.Name)
		}
		t, err = c.Commit(ctx, agent, t)
		if err != nil {
			return err
		}

		if evaluator.IsComplete(ctx, append(hist, t)) {
			c.Complete(ctx, agent.Name, "")
			return nil
		}
	}
	return nil
}

// Reset is a no-op: selection only depends on the log.
func (s *SelectorStrategy) Reset() {}

// Done is always false. A completed task ends the current input only.
func (s *SelectorStrategy) Done() bool {
	return false
}

var _ Strategy = (*SelectorStrategy)(nil)
