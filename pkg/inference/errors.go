package inference

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoBackend is returned when no reasoning backend is configured.
var ErrNoBackend = errors.New("no reasoning backend configured")

// TransportError reports a reasoning call that failed after all attempts.
type TransportError struct {
	Agent    string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("reasoning for %s failed after %d attempt(s): %v", e.Agent, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
