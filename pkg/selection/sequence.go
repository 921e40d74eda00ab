package selection

import (
	"context"

	"github.com/go-go-golems/palaver/pkg/turns"
)

// SequenceSelector hands the turn to agents in a fixed phase order. The next
// agent is the successor of the last agent that spoke and is part of the
// order.
type SequenceSelector struct {
	order        []string
	endAfterLast bool
}

type SequenceOption func(*SequenceSelector)

// WithEndAfterLast ends the round once the last phase has spoken instead of
// starting over.
func WithEndAfterLast(end bool) SequenceOption {
	return func(s *SequenceSelector) {
		s.endAfterLast = end
	}
}

func NewSequenceSelector(order []string, opts ...SequenceOption) *SequenceSelector {
	ret := &SequenceSelector{order: append([]string(nil), order...)}
	for _, o := range opts {
		o(ret)
	}
	return ret
}

func (s *SequenceSelector) Select(_ context.Context, hist []turns.Turn) Decision {
	if len(s.order) == 0 {
		return Decision{End: true}
	}
	for i := len(hist) - 1; i >= 0; i-- {
		if hist[i].IsUser() {
			continue
		}
		idx := s.indexOf(hist[i].Speaker)
		if idx < 0 {
			continue
		}
		if idx == len(s.order)-1 {
			if s.endAfterLast {
				return Decision{End: true}
			}
			return Decision{Agent: s.order[0]}
		}
		return Decision{Agent: s.order[idx+1]}
	}
	return Decision{Agent: s.order[0]}
}

func (s *SequenceSelector) indexOf(name string) int {
	for i, n := range s.order {
		if n == name {
			return i
		}
	}
	return -1
}

var _ TurnSelector = (*SequenceSelector)(nil)
