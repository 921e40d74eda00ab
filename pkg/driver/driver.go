// Package driver runs a multi-agent conversation: it takes user input,
// appends it to the log and lets a Strategy decide which agents act.
package driver

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/palaver/pkg/agents"
	"github.com/go-go-golems/palaver/pkg/events"
	"github.com/go-go-golems/palaver/pkg/messagestore"
	"github.com/go-go-golems/palaver/pkg/turns"
)

var (
	// ErrExit is returned by Submit for the exit command.
	ErrExit = errors.New("exit requested")
	// ErrSessionCompleted is returned by Submit once the strategy finished
	// the session. Only reset and exit are accepted then.
	ErrSessionCompleted = errors.New("session completed")
)

const (
	CommandExit  = "exit"
	CommandReset = "reset"
)

// Outcome is what one user input produced.
type Outcome struct {
	// Turns are the agent turns committed for the input, in order
	Turns     []turns.Turn
	Completed bool
	Summary   string
	Failed    bool
}

// Strategy decides which agents act on a user input.
type Strategy interface {
	// Cycle runs the agents for the newest user input.
	Cycle(ctx context.Context, c *Cycle) error
	// Reset returns the strategy to its initial agent.
	Reset()
	// Done reports whether the session is over.
	Done() bool
}

// TurnObserver is notified of every committed turn.
type TurnObserver interface {
	ObserveTurn(speaker string)
}

type Driver struct {
	store     messagestore.Store
	registry  *agents.Registry
	strategy  Strategy
	hooks     []AfterTurnHook
	observer  TurnObserver
	sessionID string

	// REPL settings, see Run
	prompt  string
	banner  string
	opening string
	echo    bool
}

type Option func(*Driver)

func WithHooks(hooks ...AfterTurnHook) Option {
	return func(d *Driver) {
		d.hooks = append(d.hooks, hooks...)
	}
}

func WithTurnObserver(o TurnObserver) Option {
	return func(d *Driver) {
		d.observer = o
	}
}

// WithSessionID tags every event published during Submit.
func WithSessionID(id string) Option {
	return func(d *Driver) {
		d.sessionID = id
	}
}

func New(store messagestore.Store, registry *agents.Registry, strategy Strategy, opts ...Option) *Driver {
	d := &Driver{
		store:    store,
		registry: registry,
		strategy: strategy,
		prompt:   DefaultPrompt,
	}
	for _, o := range opts {
		o(d)
	}
	registry.Seal()
	return d
}

// Submit processes one line of user input.
//
// "exit" returns ErrExit. "reset" clears the log and the strategy. Empty
// input is ignored. Anything else is appended as a user turn and handed to
// the strategy. When the strategy fails, the turns committed before the
// failure are still part of the returned Outcome.
func (d *Driver) Submit(ctx context.Context, input string) (Outcome, error) {
	text := strings.TrimSpace(input)
	switch {
	case text == "":
		return Outcome{}, nil
	case strings.EqualFold(text, CommandExit):
		return Outcome{}, ErrExit
	case strings.EqualFold(text, CommandReset):
		return Outcome{}, d.Reset(ctx)
	}
	if d.strategy.Done() {
		return Outcome{}, ErrSessionCompleted
	}

	if d.sessionID != "" {
		ctx = events.WithSessionID(ctx, d.sessionID)
	}

	if _, err := d.store.Append(ctx, turns.NewUserTurn(text)); err != nil {
		return Outcome{}, errors.Wrap(err, "could not append user input")
	}
	if d.observer != nil {
		d.observer.ObserveTurn(turns.SpeakerUser)
	}

	c := &Cycle{driver: d}
	if err := d.strategy.Cycle(ctx, c); err != nil {
		c.outcome.Failed = true
		if ctx.Err() != nil {
			events.PublishEventToContext(ctx, events.NewInterruptEvent(events.MetadataFromContext(ctx, ""), ""))
		} else {
			events.PublishEventToContext(ctx, events.NewErrorEvent(events.MetadataFromContext(ctx, ""), err))
		}
		log.Warn().Err(err).Int("committed", len(c.outcome.Turns)).Msg("Conversation cycle failed")
		return c.outcome, err
	}
	return c.outcome, nil
}

// Reset clears the log and returns the strategy to its initial agent.
// Registrations are kept.
func (d *Driver) Reset(ctx context.Context) error {
	if err := d.store.Reset(ctx); err != nil {
		return errors.Wrap(err, "could not reset conversation")
	}
	d.strategy.Reset()
	log.Info().Msg("Conversation reset")
	return nil
}

// Done reports whether the strategy ended the session.
func (d *Driver) Done() bool {
	return d.strategy.Done()
}

func (d *Driver) History(ctx context.Context) ([]turns.Turn, error) {
	return messagestore.All(ctx, d.store)
}
