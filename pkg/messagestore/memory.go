package messagestore

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huandu/go-clone"

	"github.com/go-go-golems/palaver/pkg/turns"
)

// MemoryStore keeps the log in process memory. Turns are deep-copied on the
// way in and on the way out.
type MemoryStore struct {
	mu      sync.RWMutex
	log     []turns.Turn
	lastSeq uint64
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

type MemoryOption func(*MemoryStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Append(ctx context.Context, t turns.Turn) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cp := clone.Clone(t).(turns.Turn)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSeq++
	cp.Seq = s.lastSeq
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.Timestamp.IsZero() {
		cp.Timestamp = s.now()
	}
	s.log = append(s.log, cp)
	return cp.Seq, nil
}

func (s *MemoryStore) Tail(ctx context.Context, n int) iter.Seq2[turns.Turn, error] {
	return func(yield func(turns.Turn, error) bool) {
		if n <= 0 {
			return
		}
		if err := ctx.Err(); err != nil {
			yield(turns.Turn{}, err)
			return
		}

		s.mu.RLock()
		start := len(s.log) - n
		if start < 0 {
			start = 0
		}
		window := make([]turns.Turn, 0, len(s.log)-start)
		for _, t := range s.log[start:] {
			window = append(window, clone.Clone(t).(turns.Turn))
		}
		s.mu.RUnlock()

		for _, t := range window {
			if !yield(t, nil) {
				return
			}
		}
	}
}

func (s *MemoryStore) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.log), nil
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.log = nil
	return nil
}
