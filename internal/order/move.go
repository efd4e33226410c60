package order

import (
	"strings"

	"roster-cli/internal/model"
)

type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(s))) {
	case Up:
		return Up, nil
	case Down:
		return Down, nil
	default:
		return "", model.ValidationError{Field: "direction", Reason: "expected up|down"}
	}
}

// MovePlan describes a pairwise swap. Ranks is empty when the move is a no-op.
type MovePlan struct {
	ID         string         `json:"id"`
	NeighborID string         `json:"neighborId,omitempty"`
	Direction  Direction      `json:"direction"`
	Moved      bool           `json:"moved"`
	Ranks      map[string]int `json:"ranks"`
}

// PlanMove swaps the rank of id with its nearest neighbour in the given direction:
// the member with the greatest rank below (Up) or the smallest rank above (Down).
// Moving the first member up or the last member down yields a no-op plan.
//
// items must be reconciled; an unranked target is rejected.
func PlanMove(items []model.Member, id string, dir Direction) (MovePlan, error) {
	id = strings.TrimSpace(id)
	if dir != Up && dir != Down {
		return MovePlan{}, model.ValidationError{Field: "direction", Reason: "expected up|down"}
	}
	idx := IndexOf(items, id)
	if idx < 0 {
		return MovePlan{}, model.NotFoundError{Kind: "member", ID: id}
	}
	target := items[idx]
	if !target.HasRank() {
		return MovePlan{}, model.ValidationError{Field: "rank", Reason: "member " + id + " has no rank; reconcile first"}
	}

	plan := MovePlan{ID: id, Direction: dir, Ranks: map[string]int{}}

	nb := -1
	for i := range items {
		if i == idx || !items[i].HasRank() {
			continue
		}
		r := items[i].Rank
		switch dir {
		case Up:
			if r >= target.Rank {
				continue
			}
			if nb < 0 || compareByRankCreatedID(items[i], items[nb]) > 0 {
				nb = i
			}
		case Down:
			if r <= target.Rank {
				continue
			}
			if nb < 0 || compareByRankCreatedID(items[i], items[nb]) < 0 {
				nb = i
			}
		}
	}
	if nb < 0 {
		return plan, nil
	}

	neighbor := items[nb]
	plan.NeighborID = neighbor.ID
	plan.Moved = true
	plan.Ranks[target.ID] = neighbor.Rank
	plan.Ranks[neighbor.ID] = target.Rank
	return plan, nil
}
