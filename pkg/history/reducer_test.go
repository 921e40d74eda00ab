package history

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/palaver/pkg/turns"
)

func makeLog(n int) []turns.Turn {
	var log []turns.Turn
	for i := 0; i < n; i++ {
		t := turns.NewUserTurn(fmt.Sprintf("turn %d", i))
		t.Seq = uint64(i + 1)
		log = append(log, t)
	}
	return log
}

func seqs(log []turns.Turn) []uint64 {
	var ret []uint64
	for _, t := range log {
		ret = append(ret, t.Seq)
	}
	return ret
}

func TestTruncation_KeepsMostRecent(t *testing.T) {
	r := NewTruncation(5)
	assert.Equal(t, []uint64{4, 5, 6, 7, 8}, seqs(r.Reduce(makeLog(8))))
	assert.Equal(t, []uint64{1, 2, 3}, seqs(r.Reduce(makeLog(3))))
	assert.Empty(t, r.Reduce(nil))
}

func TestTruncation_ZeroMeansUnbounded(t *testing.T) {
	assert.Len(t, NewTruncation(0).Reduce(makeLog(8)), 8)
	assert.Len(t, Unbounded.Reduce(makeLog(8)), 8)
}

func TestChain_AppliesInOrder(t *testing.T) {
	r := Chain(NewTruncation(4), NewTruncation(2))
	assert.Equal(t, []uint64{7, 8}, seqs(r.Reduce(makeLog(8))))
}

func TestTokenBudget_KeepsNewestWithinBudget(t *testing.T) {
	r, err := NewTokenBudget("gpt-4", 0)
	require.NoError(t, err)

	log := makeLog(3)
	log = append(log, turns.NewUserTurn(strings.Repeat("lorem ipsum ", 50)))
	log[3].Seq = 4

	r.Budget = 10_000
	assert.Len(t, r.Reduce(log), 4)

	// a tiny budget still keeps the newest turn
	r.Budget = 1
	reduced := r.Reduce(log)
	assert.Equal(t, []uint64{4}, seqs(reduced))
}

func TestTokenBudget_UnknownModelFallsBack(t *testing.T) {
	r, err := NewTokenBudget("some-local-model", 20)
	require.NoError(t, err)
	reduced := r.Reduce(makeLog(20))
	assert.NotEmpty(t, reduced)
	assert.Less(t, len(reduced), 20)
	assert.Equal(t, uint64(20), reduced[len(reduced)-1].Seq)
}
