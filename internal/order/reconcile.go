package order

import "roster-cli/internal/model"

// Reconcile repairs ranks so that every member has a positive, unique rank.
//
// Ranked members keep their relative display order; a member whose rank collides
// with (or falls below) its predecessor is bumped to predecessor+1. Unranked members
// are then appended after the current maximum in creation order. When nothing has
// ever been ranked this seeds 1..N by creation time.
//
// The result is in display order. changes holds only the ranks that were rewritten;
// it is empty when items were already well formed.
func Reconcile(items []model.Member) (out []model.Member, changes map[string]int) {
	changes = map[string]int{}

	ranked := make([]model.Member, 0, len(items))
	unranked := make([]model.Member, 0)
	for _, m := range items {
		if m.HasRank() {
			ranked = append(ranked, m)
		} else {
			unranked = append(unranked, m)
		}
	}

	SortByRank(ranked)
	prev := 0
	for i := range ranked {
		if ranked[i].Rank <= prev {
			ranked[i].Rank = prev + 1
			changes[ranked[i].ID] = ranked[i].Rank
		}
		prev = ranked[i].Rank
	}

	SortByCreated(unranked)
	for i := range unranked {
		prev++
		unranked[i].Rank = prev
		changes[unranked[i].ID] = prev
	}

	out = append(ranked, unranked...)
	return out, changes
}

// NeedsReconcile reports whether Reconcile would change anything.
func NeedsReconcile(items []model.Member) bool {
	seen := make(map[int]bool, len(items))
	for _, m := range items {
		if !m.HasRank() || seen[m.Rank] {
			return true
		}
		seen[m.Rank] = true
	}
	return false
}
