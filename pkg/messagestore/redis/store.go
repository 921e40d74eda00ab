package redis

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	backend "github.com/redis/go-redis/v9"

	"github.com/go-go-golems/palaver/pkg/messagestore"
	"github.com/go-go-golems/palaver/pkg/turns"
)

// Store implements messagestore.Store on a redis list of JSON encoded turns.
// The sequence counter lives in its own key and survives Reset.
type Store struct {
	client    *backend.Client
	sessionID string
	prefix    string
	ttl       time.Duration
	now       func() time.Time
}

var _ messagestore.Store = (*Store)(nil)

type Option func(*Store)

// WithTTL sets the expiration of the session keys, refreshed on every append.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// New creates a store connected to address.
func New(address, password string, db int, sessionID string, opts ...Option) *Store {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, sessionID, opts...)
}

// NewFromClient creates a store from an existing client.
func NewFromClient(client *backend.Client, sessionID string, opts ...Option) *Store {
	s := &Store{
		client:    client,
		sessionID: sessionID,
		prefix:    "palaver:session:",
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) logKey() string {
	return s.prefix + s.sessionID + ":log"
}

func (s *Store) seqKey() string {
	return s.prefix + s.sessionID + ":seq"
}

func (s *Store) Append(ctx context.Context, t turns.Turn) (uint64, error) {
	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to allocate sequence number")
	}

	t.Seq = uint64(seq)
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Timestamp.IsZero() {
		t.Timestamp = s.now()
	}
	data, err := json.Marshal(t)
	if err != nil {
		return 0, errors.Wrap(err, "failed to marshal turn")
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.logKey(), data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.logKey(), s.ttl)
		pipe.Expire(ctx, s.seqKey(), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, errors.Wrap(err, "failed to append turn to redis")
	}

	return t.Seq, nil
}

func (s *Store) Tail(ctx context.Context, n int) iter.Seq2[turns.Turn, error] {
	return func(yield func(turns.Turn, error) bool) {
		if n <= 0 {
			return
		}
		vals, err := s.client.LRange(ctx, s.logKey(), int64(-n), -1).Result()
		if err != nil && !errors.Is(err, backend.Nil) {
			yield(turns.Turn{}, errors.Wrap(err, "failed to read log from redis"))
			return
		}
		for _, v := range vals {
			var t turns.Turn
			if err := json.Unmarshal([]byte(v), &t); err != nil {
				yield(turns.Turn{}, errors.Wrap(err, "failed to unmarshal turn"))
				return
			}
			if !yield(t, nil) {
				return
			}
		}
	}
}

func (s *Store) Len(ctx context.Context) (int, error) {
	n, err := s.client.LLen(ctx, s.logKey()).Result()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read log length")
	}
	return int(n), nil
}

func (s *Store) Reset(ctx context.Context) error {
	if err := s.client.Del(ctx, s.logKey()).Err(); err != nil {
		return errors.Wrap(err, "failed to reset log")
	}
	return nil
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
