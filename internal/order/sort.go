// Package order holds the pure ranking logic for a member collection:
// sorting, rank reconciliation, pairwise moves and row reflow.
//
// Nothing in this package performs I/O. Callers persist the rank changes
// returned by the planners.
package order

import (
	"sort"
	"strings"

	"roster-cli/internal/model"
)

// SortByRank sorts members in place using display order:
// rank, then CreatedAt, then ID. Members without a rank sort after ranked ones.
func SortByRank(items []model.Member) {
	sort.SliceStable(items, func(i, j int) bool {
		return compareByRankCreatedID(items[i], items[j]) < 0
	})
}

// SortByCreated sorts members in place by CreatedAt, then ID.
func SortByCreated(items []model.Member) {
	sort.SliceStable(items, func(i, j int) bool {
		return compareByCreatedID(items[i], items[j]) < 0
	})
}

// Ordered returns a copy of items in display order.
func Ordered(items []model.Member) []model.Member {
	out := append([]model.Member(nil), items...)
	SortByRank(out)
	return out
}

func compareByRankCreatedID(a, b model.Member) int {
	switch {
	case a.HasRank() && !b.HasRank():
		return -1
	case !a.HasRank() && b.HasRank():
		return 1
	case a.HasRank() && b.HasRank():
		if a.Rank < b.Rank {
			return -1
		}
		if a.Rank > b.Rank {
			return 1
		}
	}
	return compareByCreatedID(a, b)
}

func compareByCreatedID(a, b model.Member) int {
	if a.CreatedAt.Before(b.CreatedAt) {
		return -1
	}
	if a.CreatedAt.After(b.CreatedAt) {
		return 1
	}
	return strings.Compare(a.ID, b.ID)
}

// IndexOf returns the position of id in items, or -1.
func IndexOf(items []model.Member, id string) int {
	id = strings.TrimSpace(id)
	for i := range items {
		if items[i].ID == id {
			return i
		}
	}
	return -1
}

// Apply returns a copy of items with ranks overridden from ranks, in display order.
func Apply(items []model.Member, ranks map[string]int) []model.Member {
	out := append([]model.Member(nil), items...)
	for i := range out {
		if r, ok := ranks[out[i].ID]; ok {
			out[i].Rank = r
		}
	}
	SortByRank(out)
	return out
}

// RankChanges lists the members of after whose rank differs from before.
func RankChanges(before, after []model.Member) map[string]int {
	prev := make(map[string]int, len(before))
	for _, m := range before {
		prev[m.ID] = m.Rank
	}
	changes := map[string]int{}
	for _, m := range after {
		if r, ok := prev[m.ID]; !ok || r != m.Rank {
			changes[m.ID] = m.Rank
		}
	}
	return changes
}
