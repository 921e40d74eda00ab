package driver

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/palaver/pkg/capabilities"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/handoff"
	"github.com/go-go-golems/palaver/pkg/inference/toolloop"
	"github.com/go-go-golems/palaver/pkg/turns"
)

const DefaultMaxHops = 5

// HandoffStrategy lets the active agent answer. A transfer hands the same
// input to the next agent, a plain reply goes back to the user and
// complete_task ends the session.
type HandoffStrategy struct {
	Router *handoff.Router
	// Capabilities is the dispatcher of the regular capabilities
	Capabilities capabilities.Dispatcher
	Loop         *toolloop.Loop
	// MaxHops bounds the transfers per user input
	MaxHops int
}

func (s *HandoffStrategy) Cycle(ctx context.Context, c *Cycle) error {
	maxHops := s.MaxHops
	if maxHops <= 0 {
		maxHops = DefaultMaxHops
	}
	dispatcher := s.Router.Dispatcher(s.Capabilities)

	for hops := 0; ; hops++ {
		active := s.Router.Active()
		if active == handoff.Completed {
			return nil
		}
		agent, err := c.Agent(active)
		if err != nil {
			return errors.Wrap(err, "active agent is not registered")
		}
		hist, err := c.History(ctx)
		if err != nil {
			return err
		}

		// control calls move the router before the turn is committed
		saved := s.Router.State()
		t, err := s.Loop.InvokeWith(ctx, agent, hist, dispatcher, handoff.StopAfterControl)
		if err != nil {
			s.Router.Restore(saved)
			return errors.Wrapf(err, "agent %s failed", agent.Name)
		}
		t, err = c.Commit(ctx, agent, t)
		if err != nil {
			s.Router.Restore(saved)
			return err
		}
		publishHandoffs(ctx, c, agent.Name, &t)

		switch next := s.Router.Active(); {
		case next == handoff.Completed:
			c.Complete(ctx, agent.Name, s.Router.Summary())
			return nil
		case next == active:
			return nil
		case hops+1 >= maxHops:
			log.Warn().Int("max_hops", maxHops).Str("active", next).Msg("Too many handoffs for one input, waiting for the user")
			return nil
		}
	}
}

func (s *HandoffStrategy) Reset() {
	s.Router.Reset()
}

func (s *HandoffStrategy) Done() bool {
	return s.Router.Completed()
}

func publishHandoffs(ctx context.Context, c *Cycle, from string, t *turns.Turn) {
	uses := map[string]turns.ToolUse{}
	for _, u := range t.ToolUses() {
		uses[u.ID] = u
	}
	for _, call := range t.ToolCalls() {
		if !strings.HasPrefix(call.Name, handoff.TransferPrefix) {
			continue
		}
		u := uses[call.ID]
		to := strings.TrimPrefix(call.Name, handoff.TransferPrefix)
		c.Publish(ctx, events.NewHandoffEvent(events.MetadataFromContext(ctx, from), from, to, u.Error == "", u.Error))
	}
}

var _ Strategy = (*HandoffStrategy)(nil)
