// Package messagestore holds the ordered, append-only conversation log.
//
// Sequence numbers are assigned on append, strictly increasing and never
// reused, not even after Reset. Tail returns a lazy sequence: the store is
// only read when the sequence is ranged over, and every range reads again.
package messagestore

import (
	"context"
	"iter"

	"github.com/go-go-golems/palaver/pkg/turns"
)

type Store interface {
	// Append stores a copy of t and returns its sequence number.
	Append(ctx context.Context, t turns.Turn) (uint64, error)
	// Tail yields the last n turns in append order.
	Tail(ctx context.Context, n int) iter.Seq2[turns.Turn, error]
	Len(ctx context.Context) (int, error)
	// Reset clears the log.
	Reset(ctx context.Context) error
}

// Collect drains a Tail sequence into a slice, stopping at the first error.
func Collect(seq iter.Seq2[turns.Turn, error]) ([]turns.Turn, error) {
	var ret []turns.Turn
	for t, err := range seq {
		if err != nil {
			return nil, err
		}
		ret = append(ret, t)
	}
	return ret, nil
}

// All returns the whole log of the store.
func All(ctx context.Context, s Store) ([]turns.Turn, error) {
	n, err := s.Len(ctx)
	if err != nil {
		return nil, err
	}
	return Collect(s.Tail(ctx, n))
}
