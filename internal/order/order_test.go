package order

import (
	"fmt"
	"time"

	"roster-cli/internal/model"
)

var t0 = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// members builds members named by ids, created one minute apart, with the given ranks.
func members(ids string, ranks ...int) []model.Member {
	out := make([]model.Member, 0, len(ids))
	for i, c := range ids {
		m := model.Member{
			ID:        string(c),
			Name:      fmt.Sprintf("Member %c", c),
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}
		if i < len(ranks) {
			m.Rank = ranks[i]
		}
		out = append(out, m)
	}
	return out
}

func ids(items []model.Member) string {
	s := ""
	for _, m := range items {
		s += m.ID
	}
	return s
}

func rankOf(items []model.Member, id string) int {
	return items[IndexOf(items, id)].Rank
}
