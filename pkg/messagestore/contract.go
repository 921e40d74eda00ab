package messagestore

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/palaver/pkg/turns"
)

// RunStoreContract runs a suite of tests to verify that a Store implementation
// adheres to the log contract. newStore must return an empty store.
func RunStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	appendN := func(t *testing.T, s Store, n int) []uint64 {
		var seqs []uint64
		for i := 0; i < n; i++ {
			var turn turns.Turn
			if i%2 == 0 {
				turn = turns.NewUserTurn(fmt.Sprintf("msg-%d", i))
			} else {
				turn = turns.NewAgentTurnBuilder("agent").WithText(fmt.Sprintf("msg-%d", i)).Build()
			}
			seq, err := s.Append(ctx, turn)
			require.NoError(t, err)
			seqs = append(seqs, seq)
		}
		return seqs
	}

	texts := func(log []turns.Turn) []string {
		ret := make([]string, 0, len(log))
		for i := range log {
			ret = append(ret, log[i].Text())
		}
		return ret
	}

	t.Run("Append assigns increasing sequence numbers", func(t *testing.T) {
		s := newStore(t)
		seqs := appendN(t, s, 4)
		for i := 1; i < len(seqs); i++ {
			assert.Greater(t, seqs[i], seqs[i-1])
		}
		n, err := s.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, n)
	})

	t.Run("Tail returns the last n in append order", func(t *testing.T) {
		s := newStore(t)
		appendN(t, s, 5)

		log, err := Collect(s.Tail(ctx, 3))
		require.NoError(t, err)
		assert.Equal(t, []string{"msg-2", "msg-3", "msg-4"}, texts(log))
		assert.Equal(t, "agent", log[1].Speaker)

		all, err := Collect(s.Tail(ctx, 50))
		require.NoError(t, err)
		assert.Len(t, all, 5)

		none, err := Collect(s.Tail(ctx, 0))
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("Tail is lazy and restartable", func(t *testing.T) {
		s := newStore(t)
		appendN(t, s, 2)

		seq := s.Tail(ctx, 2)
		first, err := Collect(seq)
		require.NoError(t, err)
		second, err := Collect(seq)
		require.NoError(t, err)
		assert.Equal(t, texts(first), texts(second))

		_, err = s.Append(ctx, turns.NewUserTurn("late"))
		require.NoError(t, err)
		third, err := Collect(seq)
		require.NoError(t, err)
		assert.Equal(t, []string{"msg-1", "late"}, texts(third))
	})

	t.Run("Appending never mutates prior turns", func(t *testing.T) {
		s := newStore(t)
		in := turns.NewAgentTurnBuilder("agent").
			WithText("original").
			WithToolCall("c1", "send_email", map[string]any{"to": "a@b.c"}).
			Build()
		seq, err := s.Append(ctx, in)
		require.NoError(t, err)

		in.Blocks[0].Text = "mutated input"
		in.Blocks[1].ToolCall.Arguments["to"] = "x@y.z"

		log, err := Collect(s.Tail(ctx, 1))
		require.NoError(t, err)
		require.Len(t, log, 1)
		log[0].Blocks[0].Text = "mutated output"

		_, err = s.Append(ctx, turns.NewUserTurn("next"))
		require.NoError(t, err)

		log, err = Collect(s.Tail(ctx, 2))
		require.NoError(t, err)
		assert.Equal(t, seq, log[0].Seq)
		assert.Equal(t, "original", log[0].Text())
		assert.Equal(t, "a@b.c", log[0].ToolCalls()[0].Arguments["to"])
		assert.NotEmpty(t, log[0].ID)
		assert.False(t, log[0].Timestamp.IsZero())
	})

	t.Run("Reset clears the log and keeps sequence numbers increasing", func(t *testing.T) {
		s := newStore(t)
		seqs := appendN(t, s, 3)

		require.NoError(t, s.Reset(ctx))
		require.NoError(t, s.Reset(ctx))

		n, err := s.Len(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		log, err := Collect(s.Tail(ctx, 10))
		require.NoError(t, err)
		assert.Empty(t, log)

		next, err := s.Append(ctx, turns.NewUserTurn("after reset"))
		require.NoError(t, err)
		assert.Greater(t, next, seqs[len(seqs)-1])
	})
}
