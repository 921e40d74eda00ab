package handoff

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Observer is notified of every transfer attempt and completion.
type Observer interface {
	ObserveHandoff(from, to, result string)
}

// Router holds the active agent of a handoff session.
type Router struct {
	mu       sync.Mutex
	graph    *Graph
	active   string
	summary  string
	observer Observer
}

type RouterOption func(*Router)

func WithObserver(o Observer) RouterOption {
	return func(r *Router) {
		r.observer = o
	}
}

func NewRouter(graph *Graph, opts ...RouterOption) *Router {
	r := &Router{graph: graph, active: graph.Entry()}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Router) Graph() *Graph {
	return r.graph
}

// Active returns the agent in control, or Completed.
func (r *Router) Active() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Router) Completed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active == Completed
}

// Summary returns the task summary passed to Complete.
func (r *Router) Summary() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.summary
}

// Transfer moves control from the active agent to an adjacent one. On error
// the state is unchanged.
func (r *Router) Transfer(from, to string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if from != r.active || !r.graph.Adjacent(from, to) {
		r.observe(from, to, "rejected")
		return &NotAdjacentError{From: from, To: to, Active: r.active}
	}
	r.active = to
	r.observe(from, to, "accepted")
	log.Debug().Str("from", from).Str("to", to).Msg("Handoff accepted")
	return nil
}

// Complete moves the active agent to Completed.
func (r *Router) Complete(from, summary string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if from != r.active {
		r.observe(from, Completed, "rejected")
		return &NotAdjacentError{From: from, To: Completed, Active: r.active}
	}
	r.active = Completed
	r.summary = summary
	r.observe(from, Completed, "accepted")
	log.Debug().Str("from", from).Str("summary", summary).Msg("Task completed")
	return nil
}

// State is a snapshot of the active agent and the task summary.
type State struct {
	Active  string
	Summary string
}

func (r *Router) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return State{Active: r.active, Summary: r.summary}
}

// Restore rolls the router back to a snapshot taken with State.
func (r *Router) Restore(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != s.Active {
		log.Debug().Str("from", r.active).Str("to", s.Active).Msg("Handoff rolled back")
	}
	r.active = s.Active
	r.summary = s.Summary
}

// Reset hands control back to the entry agent.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = r.graph.Entry()
	r.summary = ""
}

func (r *Router) observe(from, to, result string) {
	if r.observer != nil {
		r.observer.ObserveHandoff(from, to, result)
	}
}
