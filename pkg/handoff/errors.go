package handoff

import (
	"fmt"

	"github.com/pkg/errors"
)

// NotAdjacentError is returned for a transfer that is not an edge of the
// graph or is not made by the active agent.
type NotAdjacentError struct {
	From   string
	To     string
	Active string
}

func (e *NotAdjacentError) Error() string {
	if e.From != e.Active {
		return fmt.Sprintf("%s cannot hand off to %s: %s is not the active agent (%s is)", e.From, e.To, e.From, e.Active)
	}
	return fmt.Sprintf("%s cannot hand off to %s: no such handoff", e.From, e.To)
}

// IsNotAdjacent reports whether err is or wraps a NotAdjacentError.
func IsNotAdjacent(err error) bool {
	var target *NotAdjacentError
	return errors.As(err, &target)
}
