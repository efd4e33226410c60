package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcile_SeedsUnrankedCollectionInCreationOrder(t *testing.T) {
	items := members("CAB")
	// Shuffle creation times: B first, then A, then C.
	items[0].CreatedAt = t0.Add(3 * time.Minute)
	items[1].CreatedAt = t0.Add(2 * time.Minute)
	items[2].CreatedAt = t0.Add(1 * time.Minute)

	out, changes := Reconcile(items)

	assert.Equal(t, "BAC", ids(out))
	assert.Equal(t, map[string]int{"B": 1, "A": 2, "C": 3}, changes)
}

func TestReconcile_AppendsNewMembersAfterMax(t *testing.T) {
	items := members("ABCD", 5, 2, 0, 0)

	out, changes := Reconcile(items)

	assert.Equal(t, "BACD", ids(out))
	assert.Equal(t, map[string]int{"C": 6, "D": 7}, changes)
	assert.Equal(t, 5, rankOf(out, "A"), "existing ranks are left untouched")
}

func TestReconcile_NegativeRankIsTreatedAsUnset(t *testing.T) {
	out, changes := Reconcile(members("AB", -3, 1))
	assert.Equal(t, "BA", ids(out))
	assert.Equal(t, map[string]int{"A": 2}, changes)
}

func TestReconcile_DuplicatesKeepDisplayOrder(t *testing.T) {
	items := members("ABCD", 1, 1, 2, 9)

	out, changes := Reconcile(items)

	assert.Equal(t, "ABCD", ids(out))
	assert.Equal(t, map[string]int{"B": 2, "C": 3}, changes)
	assert.Equal(t, 9, rankOf(out, "D"))
}

func TestReconcile_IsIdempotent(t *testing.T) {
	first, _ := Reconcile(members("ABCDEF", 0, 4, 4, 0, 1, 0))
	second, changes := Reconcile(first)

	assert.Empty(t, changes)
	assert.Equal(t, first, second)
	assert.False(t, NeedsReconcile(second))
}

func TestReconcile_NoZeroOrDuplicateRemains(t *testing.T) {
	out, _ := Reconcile(members("ABCDEFG", 3, 0, 3, -1, 0, 2, 2))

	seen := map[int]bool{}
	for _, m := range out {
		require.Positive(t, m.Rank)
		require.False(t, seen[m.Rank], "duplicate rank %d", m.Rank)
		seen[m.Rank] = true
	}
	for i := 1; i < len(out); i++ {
		require.Less(t, out[i-1].Rank, out[i].Rank)
	}
}

func TestReconcile_Empty(t *testing.T) {
	out, changes := Reconcile(nil)
	assert.Empty(t, out)
	assert.Empty(t, changes)
}
