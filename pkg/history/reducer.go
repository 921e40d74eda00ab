// Package history bounds the view of the conversation log handed to the
// reasoning service.
package history

import (
	"github.com/go-go-golems/palaver/pkg/turns"
)

// Reducer returns a bounded view of log. Implementations never mutate log.
type Reducer interface {
	Reduce(log []turns.Turn) []turns.Turn
}

// ReducerFunc adapts a function to Reducer.
type ReducerFunc func(log []turns.Turn) []turns.Turn

func (f ReducerFunc) Reduce(log []turns.Turn) []turns.Turn {
	return f(log)
}

// Unbounded passes the log through.
var Unbounded Reducer = ReducerFunc(func(log []turns.Turn) []turns.Turn { return log })

// Truncation keeps the most recent TargetCount turns.
type Truncation struct {
	TargetCount int
}

func NewTruncation(targetCount int) *Truncation {
	return &Truncation{TargetCount: targetCount}
}

func (r *Truncation) Reduce(log []turns.Turn) []turns.Turn {
	if r.TargetCount <= 0 || len(log) <= r.TargetCount {
		return log
	}
	return log[len(log)-r.TargetCount:]
}

// Chain applies reducers in order.
func Chain(reducers ...Reducer) Reducer {
	return ReducerFunc(func(log []turns.Turn) []turns.Turn {
		for _, r := range reducers {
			log = r.Reduce(log)
		}
		return log
	})
}
