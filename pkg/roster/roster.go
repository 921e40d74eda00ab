// Package roster loads scenario files: the agents of a session, how the
// next speaker is chosen and when the task is complete.
package roster

import (
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/palaver/pkg/agents"
	"github.com/go-go-golems/palaver/pkg/handoff"
	"github.com/go-go-golems/palaver/pkg/inference/scripted"
)

type Mode string

const (
	ModeSelector Mode = "selector"
	ModeHandoff  Mode = "handoff"
)

const (
	SelectionPrompt   = "prompt"
	SelectionSequence = "sequence"

	TerminationPrompt    = "prompt"
	TerminationNever     = "never"
	TerminationTurnLimit = "turn_limit"
)

type Roster struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description,omitempty"`
	Mode        Mode   `yaml:"mode" validate:"required,oneof=selector handoff"`
	Banner      string `yaml:"banner,omitempty"`
	// Opening is submitted as the first input of the session
	Opening     string              `yaml:"opening,omitempty"`
	Agents      []agents.Descriptor `yaml:"agents" validate:"required,min=1"`
	Selection   *Selection          `yaml:"selection,omitempty"`
	Termination *Termination        `yaml:"termination,omitempty"`
	Handoff     *Handoff            `yaml:"handoff,omitempty"`
	Hooks       []Hook              `yaml:"hooks,omitempty" validate:"dive"`
	// ScriptNode drives the scripted backend when no model is configured
	ScriptNode yaml.Node `yaml:"script,omitempty"`
}

type Selection struct {
	Strategy string `yaml:"strategy,omitempty" validate:"omitempty,oneof=prompt sequence"`
	// Policy is a text/template, see prompts.PolicyData
	Policy        string            `yaml:"policy,omitempty"`
	InitialAgent  string            `yaml:"initial_agent,omitempty"`
	Fallback      string            `yaml:"fallback,omitempty"`
	AllowEnd      bool              `yaml:"allow_end,omitempty"`
	HistoryWindow int               `yaml:"history_window,omitempty" validate:"gte=0"`
	TokenBudget   int               `yaml:"token_budget,omitempty" validate:"gte=0"`
	Order         []string          `yaml:"order,omitempty" validate:"required_if=Strategy sequence"`
	EndAfterLast  bool              `yaml:"end_after_last,omitempty"`
	Rounds        int               `yaml:"rounds,omitempty" validate:"gte=0"`
	Values        map[string]string `yaml:"values,omitempty"`
}

type Termination struct {
	Strategy      string            `yaml:"strategy,omitempty" validate:"omitempty,oneof=prompt never turn_limit"`
	Policy        string            `yaml:"policy,omitempty"`
	MaxAgentTurns int               `yaml:"max_agent_turns,omitempty" validate:"gte=0"`
	HistoryWindow int               `yaml:"history_window,omitempty" validate:"gte=0"`
	Values        map[string]string `yaml:"values,omitempty"`
}

type Handoff struct {
	Entry   string         `yaml:"entry" validate:"required"`
	MaxHops int            `yaml:"max_hops,omitempty" validate:"gte=0"`
	Edges   []handoff.Edge `yaml:"edges" validate:"dive"`
}

// Hook runs Capability on behalf of After once it answered.
type Hook struct {
	After      string            `yaml:"after" validate:"required"`
	Capability string            `yaml:"capability" validate:"required"`
	Arguments  map[string]string `yaml:"arguments,omitempty"`
}

var validate = validator.New()

func Parse(b []byte) (*Roster, error) {
	ret := &Roster{}
	if err := yaml.Unmarshal(b, ret); err != nil {
		return nil, errors.Wrap(err, "could not parse roster")
	}
	ret.applyDefaults()
	if err := ret.Validate(); err != nil {
		return nil, err
	}
	return ret, nil
}

func Load(path string) (*Roster, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not read roster %s", path)
	}
	r, err := Parse(b)
	if err != nil {
		return nil, errors.Wrapf(err, "roster %s", path)
	}
	return r, nil
}

func (r *Roster) applyDefaults() {
	if r.Selection != nil && r.Selection.Strategy == "" {
		r.Selection.Strategy = SelectionPrompt
	}
	if r.Termination != nil && r.Termination.Strategy == "" {
		r.Termination.Strategy = TerminationPrompt
	}
}

// Validate checks the fields and that every agent a roster refers to is
// declared in it.
func (r *Roster) Validate() error {
	if err := validate.Struct(r); err != nil {
		return errors.Wrap(err, "invalid roster")
	}
	switch {
	case r.Mode == ModeSelector && r.Selection == nil:
		return errors.Errorf("roster %s: selector mode needs a selection section", r.Name)
	case r.Mode == ModeHandoff && r.Handoff == nil:
		return errors.Errorf("roster %s: handoff mode needs a handoff section", r.Name)
	}

	declared := map[string]agents.Descriptor{}
	for _, d := range r.Agents {
		if err := d.Validate(); err != nil {
			return err
		}
		if _, ok := declared[d.Name]; ok {
			return &agents.DuplicateAgentError{Name: d.Name}
		}
		declared[d.Name] = d
	}
	known := func(what, name string) error {
		if name == "" {
			return nil
		}
		if _, ok := declared[name]; !ok {
			return errors.Wrapf(&agents.UnknownAgentError{Name: name}, "roster %s: %s", r.Name, what)
		}
		return nil
	}

	if s := r.Selection; s != nil {
		if err := known("initial_agent", s.InitialAgent); err != nil {
			return err
		}
		if err := known("fallback", s.Fallback); err != nil {
			return err
		}
		for _, name := range s.Order {
			if err := known("order", name); err != nil {
				return err
			}
		}
	}
	if h := r.Handoff; h != nil {
		if err := known("handoff entry", h.Entry); err != nil {
			return err
		}
		for _, e := range h.Edges {
			if err := known("handoff edge", e.From); err != nil {
				return err
			}
			if err := known("handoff edge", e.To); err != nil {
				return err
			}
		}
	}
	for _, hook := range r.Hooks {
		if err := known("hook", hook.After); err != nil {
			return err
		}
		if !declared[hook.After].Allows(hook.Capability) {
			return errors.Errorf("roster %s: hook capability %s is not listed by %s", r.Name, hook.Capability, hook.After)
		}
	}
	if r.Termination != nil && r.Termination.Strategy == TerminationTurnLimit && r.Termination.MaxAgentTurns == 0 {
		return errors.Errorf("roster %s: turn_limit termination needs max_agent_turns", r.Name)
	}
	return nil
}

// Script returns the bundled script of the scripted backend, or nil.
func (r *Roster) Script() (*scripted.Script, error) {
	if r.ScriptNode.Kind == 0 {
		return nil, nil
	}
	b, err := yaml.Marshal(&r.ScriptNode)
	if err != nil {
		return nil, errors.Wrap(err, "could not read bundled script")
	}
	return scripted.ParseScript(b)
}

// Capabilities lists the distinct capability names the agents use.
func (r *Roster) Capabilities() []string {
	seen := map[string]bool{}
	var ret []string
	for _, d := range r.Agents {
		for _, c := range d.Capabilities {
			if !seen[c] {
				seen[c] = true
				ret = append(ret, c)
			}
		}
	}
	return ret
}
