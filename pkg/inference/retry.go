package inference

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Observer receives the duration and outcome of every reasoning attempt.
type Observer interface {
	ObserveReasoning(agent string, d time.Duration, err error)
}

type Retrying struct {
	svc        Service
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	observer   Observer
}

type RetryOption func(*Retrying)

// WithTimeout bounds every attempt. Zero disables the bound.
func WithTimeout(d time.Duration) RetryOption {
	return func(r *Retrying) {
		r.timeout = d
	}
}

func WithMaxRetries(n int) RetryOption {
	return func(r *Retrying) {
		if n < 0 {
			n = 0
		}
		r.maxRetries = n
	}
}

func WithBackoff(d time.Duration) RetryOption {
	return func(r *Retrying) {
		r.backoff = d
	}
}

func WithObserver(o Observer) RetryOption {
	return func(r *Retrying) {
		r.observer = o
	}
}

// WithRetry bounds svc by a per-attempt timeout and retries a failed call.
// The default is 60s and one retry. Failures after the last attempt are
// returned as *TransportError. Cancellation of ctx is returned as is.
func WithRetry(svc Service, options ...RetryOption) *Retrying {
	ret := &Retrying{
		svc:        svc,
		timeout:    60 * time.Second,
		maxRetries: 1,
		backoff:    250 * time.Millisecond,
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

func (r *Retrying) Complete(ctx context.Context, req Request) (*Response, error) {
	if r.svc == nil {
		return nil, ErrNoBackend
	}

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if attempt > 0 && r.backoff > 0 {
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(ctx.Err(), "reasoning interrupted")
			case <-time.After(r.backoff * time.Duration(attempt)):
			}
		}
		attempts++

		resp, err := r.once(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, errors.Wrap(ctx.Err(), "reasoning interrupted")
		}
		lastErr = err
		log.Warn().Err(err).
			Str("agent", req.Agent).
			Int("attempt", attempts).
			Msg("Reasoning call failed")
	}

	return nil, &TransportError{Agent: req.Agent, Attempts: attempts, Err: lastErr}
}

func (r *Retrying) once(ctx context.Context, req Request) (*Response, error) {
	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := r.svc.Complete(callCtx, req)
	if err == nil && resp == nil {
		err = errors.New("backend returned no response")
	}
	if err != nil && callCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
		err = errors.Wrapf(err, "timed out after %s", r.timeout)
	}
	if r.observer != nil {
		r.observer.ObserveReasoning(req.Agent, time.Since(start), err)
	}
	return resp, err
}

var _ Service = (*Retrying)(nil)
