package driver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/pkg/errors"
)

// DefaultPrompt is printed before every line of user input.
const DefaultPrompt = "> "

// WithPrompt replaces DefaultPrompt.
func WithPrompt(prompt string) Option {
	return func(d *Driver) {
		d.prompt = prompt
	}
}

// WithBanner prints banner when Run starts.
func WithBanner(banner string) Option {
	return func(d *Driver) {
		d.banner = banner
	}
}

// WithOpening submits task before the first line is read, so the first
// agent can greet the user.
func WithOpening(task string) Option {
	return func(d *Driver) {
		d.opening = task
	}
}

// WithEcho prints committed turns as "Name: text" lines. Use it when no
// streaming printer is attached to the event sinks.
func WithEcho(echo bool) Option {
	return func(d *Driver) {
		d.echo = echo
	}
}

// Run reads user input line by line from in until exit, EOF or ctx is done.
// A SIGINT while agents are working interrupts that input only.
func (d *Driver) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	if d.banner != "" {
		fmt.Fprintln(out, d.banner)
	}

	readCtx, stopReading := context.WithCancel(ctx)
	defer stopReading()
	lines, readErr := readLines(readCtx, in)

	if d.opening != "" {
		if done, err := d.submit(ctx, d.opening, out); done || err != nil {
			return err
		}
	}
	for {
		fmt.Fprint(out, d.prompt)
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return <-readErr
			}
			if done, err := d.submit(ctx, line, out); done || err != nil {
				return err
			}
		}
	}
}

// readLines scans in on its own goroutine. A Scan blocked on a terminal
// outlives ctx until the next line arrives.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				errCh <- nil
				return
			}
		}
		errCh <- errors.Wrap(scanner.Err(), "could not read input")
	}()
	return lines, errCh
}

// submit runs one input and reports whether the REPL should stop.
func (d *Driver) submit(ctx context.Context, line string, out io.Writer) (bool, error) {
	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	outcome, err := d.Submit(turnCtx, line)
	interrupted := turnCtx.Err() != nil
	stop()

	if d.echo {
		for _, t := range outcome.Turns {
			if text := t.Text(); text != "" {
				fmt.Fprintf(out, "%s: %s\n", t.Speaker, text)
			}
		}
	}

	switch {
	case errors.Is(err, ErrExit):
		return true, nil
	case errors.Is(err, ErrSessionCompleted):
		fmt.Fprintln(out, "[session completed, type reset to start over or exit to quit]")
		return false, nil
	case err != nil && ctx.Err() != nil:
		return true, nil
	case err != nil && interrupted:
		fmt.Fprintln(out, "[interrupted]")
		return false, nil
	case err != nil:
		fmt.Fprintf(out, "[run failed: %v]\n", err)
		return false, nil
	}

	if outcome.Completed && d.Done() {
		if d.echo {
			fmt.Fprintf(out, "[task completed: %s]\n", outcome.Summary)
		}
	}
	return false, nil
}
