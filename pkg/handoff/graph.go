// Package handoff implements handoff mode: the active agent keeps control
// until it transfers to an adjacent agent or completes the task.
package handoff

import (
	"github.com/pkg/errors"

	"github.com/go-go-golems/palaver/pkg/agents"
)

// Completed is the terminal state of a Router.
const Completed = "completed"

// Edge allows From to hand control to To.
type Edge struct {
	From string `yaml:"from" json:"from" validate:"required"`
	To   string `yaml:"to" json:"to" validate:"required"`
	// Description tells From when to transfer
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
}

// Roster is the part of the agent registry a Graph is validated against.
type Roster interface {
	Has(name string) bool
}

// Graph is the static handoff graph of a session.
type Graph struct {
	entry string
	edges map[string][]Edge
}

// NewGraph validates that entry and every edge endpoint are registered.
func NewGraph(roster Roster, entry string, edges []Edge) (*Graph, error) {
	if !roster.Has(entry) {
		return nil, errors.Wrap(&agents.UnknownAgentError{Name: entry}, "invalid handoff entry")
	}
	g := &Graph{entry: entry, edges: map[string][]Edge{}}
	for _, e := range edges {
		for _, name := range []string{e.From, e.To} {
			if !roster.Has(name) {
				return nil, errors.Wrapf(&agents.UnknownAgentError{Name: name}, "invalid handoff edge %s -> %s", e.From, e.To)
			}
		}
		if e.From == e.To {
			return nil, errors.Errorf("handoff edge %s -> %s loops onto itself", e.From, e.To)
		}
		if g.Adjacent(e.From, e.To) {
			return nil, errors.Errorf("duplicate handoff edge %s -> %s", e.From, e.To)
		}
		g.edges[e.From] = append(g.edges[e.From], e)
	}
	return g, nil
}

func (g *Graph) Entry() string {
	return g.entry
}

// Targets returns the edges leaving from, in declaration order.
func (g *Graph) Targets(from string) []Edge {
	return append([]Edge(nil), g.edges[from]...)
}

func (g *Graph) Adjacent(from, to string) bool {
	for _, e := range g.edges[from] {
		if e.To == to {
			return true
		}
	}
	return false
}
