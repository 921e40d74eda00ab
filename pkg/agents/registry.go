package agents

import (
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Descriptor describes a named agent: its instructions and the capabilities it may invoke.
type Descriptor struct {
	Name         string   `json:"name" yaml:"name" validate:"required,agentname"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	Instructions string   `json:"instructions" yaml:"instructions" validate:"required"`
	Capabilities []string `json:"capabilities,omitempty" yaml:"capabilities,omitempty" validate:"dive,required"`
	// Model overrides the reasoning model for this agent.
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
}

// Allows reports whether the descriptor lists the named capability.
func (d Descriptor) Allows(capability string) bool {
	for _, c := range d.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

func (d Descriptor) clone() Descriptor {
	d.Capabilities = append([]string(nil), d.Capabilities...)
	return d
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("agentname", func(fl validator.FieldLevel) bool {
		for _, r := range fl.Field().String() {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			default:
				return false
			}
		}
		return true
	})
	return v
}

// Validate checks the descriptor fields.
func (d Descriptor) Validate() error {
	if err := validate.Struct(d); err != nil {
		return errors.Wrapf(err, "invalid agent descriptor %q", d.Name)
	}
	return nil
}

// Registry maps agent names to descriptors. Once sealed it rejects registrations.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Descriptor
	order  []string
	sealed bool
}

func NewRegistry() *Registry {
	return &Registry{
		agents: map[string]Descriptor{},
	}
}

// Register adds d to the registry.
func (r *Registry) Register(d Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.sealed {
		return ErrRegistrySealed
	}
	if _, ok := r.agents[d.Name]; ok {
		return &DuplicateAgentError{Name: d.Name}
	}
	r.agents[d.Name] = d.clone()
	r.order = append(r.order, d.Name)

	log.Debug().Str("agent", d.Name).Strs("capabilities", d.Capabilities).Msg("Registered agent")
	return nil
}

// MustRegister registers all descriptors and panics on the first error.
func (r *Registry) MustRegister(ds ...Descriptor) *Registry {
	for _, d := range ds {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
	return r
}

// Resolve returns the descriptor registered under name.
func (r *Registry) Resolve(name string) (Descriptor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.agents[name]
	if !ok {
		return Descriptor{}, &UnknownAgentError{Name: name}
	}
	return d.clone(), nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[name]
	return ok
}

// Names returns agent names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Seal freezes the registry for the rest of the session.
func (r *Registry) Seal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sealed = true
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}
