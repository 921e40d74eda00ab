package driver

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/palaver/pkg/agents"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/messagestore"
	"github.com/go-go-golems/palaver/pkg/turns"
)

// Cycle is the view a Strategy gets of the driver while it handles one user
// input.
type Cycle struct {
	driver  *Driver
	outcome Outcome
}

// History returns the whole conversation log.
func (c *Cycle) History(ctx context.Context) ([]turns.Turn, error) {
	return c.driver.History(ctx)
}

// Agent resolves a registered agent.
func (c *Cycle) Agent(name string) (agents.Descriptor, error) {
	return c.driver.registry.Resolve(name)
}

// Commit runs the after-turn hooks on t, appends it and returns the stored
// turn.
func (c *Cycle) Commit(ctx context.Context, agent agents.Descriptor, t turns.Turn) (turns.Turn, error) {
	for _, h := range c.driver.hooks {
		if err := h.AfterTurn(ctx, agent, &t); err != nil {
			return turns.Turn{}, errors.Wrapf(err, "after-turn hook failed for %s", agent.Name)
		}
	}

	seq, err := c.driver.store.Append(ctx, t)
	if err != nil {
		return turns.Turn{}, errors.Wrapf(err, "could not commit turn of %s", agent.Name)
	}
	stored, err := messagestore.Collect(c.driver.store.Tail(ctx, 1))
	if err != nil || len(stored) != 1 || stored[0].Seq != seq {
		t.Seq = seq
	} else {
		t = stored[0]
	}

	if c.driver.observer != nil {
		c.driver.observer.ObserveTurn(t.Speaker)
	}
	log.Debug().Str("agent", t.Speaker).Uint64("seq", t.Seq).Msg("Committed turn")
	c.outcome.Turns = append(c.outcome.Turns, t)
	return t, nil
}

// Complete marks the input as having completed the task.
func (c *Cycle) Complete(ctx context.Context, agent string, summary string) {
	c.outcome.Completed = true
	c.outcome.Summary = summary
	events.PublishEventToContext(ctx, events.NewCompletedEvent(events.MetadataFromContext(ctx, agent), summary))
}

// Publish sends event to the sinks of ctx.
func (c *Cycle) Publish(ctx context.Context, event events.Event) {
	events.PublishEventToContext(ctx, event)
}

func (c *Cycle) Outcome() Outcome {
	return c.outcome
}
