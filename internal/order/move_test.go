package order

import (
	"math/rand"
	"testing"

	"roster-cli/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanMove_SwapsWithNearestNeighbor(t *testing.T) {
	// Gaps are legal; the neighbour is the nearest rank, not rank-1.
	items := members("ABC", 10, 20, 40)

	plan, err := PlanMove(items, "C", Up)
	require.NoError(t, err)
	assert.True(t, plan.Moved)
	assert.Equal(t, "B", plan.NeighborID)
	assert.Equal(t, map[string]int{"C": 20, "B": 40}, plan.Ranks)

	assert.Equal(t, "ACB", ids(Apply(items, plan.Ranks)))
}

func TestPlanMove_BoundariesAreNoOps(t *testing.T) {
	items := members("ABC", 1, 2, 3)

	plan, err := PlanMove(items, "A", Up)
	require.NoError(t, err)
	assert.False(t, plan.Moved)
	assert.Empty(t, plan.Ranks)

	plan, err = PlanMove(items, "C", Down)
	require.NoError(t, err)
	assert.False(t, plan.Moved)
	assert.Empty(t, plan.Ranks)
}

func TestPlanMove_RoundTripRestoresOrder(t *testing.T) {
	items := members("ABCD", 1, 2, 3, 4)

	up, err := PlanMove(items, "C", Up)
	require.NoError(t, err)
	moved := Apply(items, up.Ranks)
	require.Equal(t, "ACBD", ids(moved))

	down, err := PlanMove(moved, "C", Down)
	require.NoError(t, err)
	back := Apply(moved, down.Ranks)
	assert.Equal(t, ids(items), ids(back))
	assert.Equal(t, items, back)
}

func TestPlanMove_Errors(t *testing.T) {
	items := members("AB", 1, 0)

	_, err := PlanMove(items, "Z", Up)
	assert.True(t, model.IsNotFound(err))

	_, err = PlanMove(items, "A", Direction("sideways"))
	assert.True(t, model.IsValidation(err))

	_, err = PlanMove(items, "B", Up)
	assert.True(t, model.IsValidation(err), "unranked target must be reconciled first")
}

func TestParseDirection(t *testing.T) {
	d, err := ParseDirection(" UP ")
	require.NoError(t, err)
	assert.Equal(t, Up, d)

	_, err = ParseDirection("left")
	assert.True(t, model.IsValidation(err))
}

func TestMoveAndReflow_KeepRanksUnique(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	items, _ := Reconcile(members("ABCDEFGHIJ"))

	for step := 0; step < 500; step++ {
		if rng.Intn(5) == 0 {
			cols := 1 + rng.Intn(4)
			out, err := Reflow(items, cols, rng.Intn(len(items)))
			require.NoError(t, err)
			items = out
		} else {
			id := items[rng.Intn(len(items))].ID
			dir := Up
			if rng.Intn(2) == 0 {
				dir = Down
			}
			plan, err := PlanMove(items, id, dir)
			require.NoError(t, err)
			items = Apply(items, plan.Ranks)
		}

		require.Len(t, items, 10)
		seen := map[int]bool{}
		ids := map[string]bool{}
		for _, m := range items {
			require.False(t, seen[m.Rank], "step %d: duplicate rank %d", step, m.Rank)
			seen[m.Rank] = true
			ids[m.ID] = true
		}
		require.Len(t, ids, 10, "step %d: members lost", step)
	}
}
