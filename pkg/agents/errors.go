package agents

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrRegistrySealed is returned when registering into a sealed registry.
var ErrRegistrySealed = errors.New("agent registry is sealed")

// UnknownAgentError is returned when a name does not resolve to a registered agent.
type UnknownAgentError struct {
	Name string
}

func (e *UnknownAgentError) Error() string {
	return fmt.Sprintf("unknown agent %q", e.Name)
}

// DuplicateAgentError is returned when an agent name is registered twice.
type DuplicateAgentError struct {
	Name string
}

func (e *DuplicateAgentError) Error() string {
	return fmt.Sprintf("agent %q is already registered", e.Name)
}

// IsUnknownAgent reports whether err is or wraps an UnknownAgentError.
func IsUnknownAgent(err error) bool {
	var target *UnknownAgentError
	return errors.As(err, &target)
}
