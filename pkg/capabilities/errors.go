package capabilities

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorType string

const (
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeNotAllowed ErrorType = "not_allowed"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeExecution  ErrorType = "execution"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeRejected   ErrorType = "rejected"
)

// CapabilityError describes a failed capability call. It is handed back to the
// acting agent as a failed tool result and never ends the session.
type CapabilityError struct {
	Capability string    `json:"capability"`
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("capability %s failed [%s]: %s", e.Capability, e.Type, e.Message)
}

func NewCapabilityError(capability string, typ ErrorType, format string, args ...any) *CapabilityError {
	return &CapabilityError{
		Capability: capability,
		Type:       typ,
		Message:    fmt.Sprintf(format, args...),
	}
}

// AsCapabilityError converts err into a CapabilityError, keeping an existing one.
func AsCapabilityError(capability string, err error) *CapabilityError {
	if err == nil {
		return nil
	}
	var ce *CapabilityError
	if errors.As(err, &ce) {
		return ce
	}
	return &CapabilityError{Capability: capability, Type: ErrorTypeExecution, Message: err.Error()}
}

var ErrDuplicateCapability = errors.New("capability already registered")
