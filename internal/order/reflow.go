package order

import (
	"roster-cli/internal/model"
)

// Reflow expands the member at expandedIndex so it occupies a display row alone.
//
// items must already be in display order. The row containing the expanded member is
// split: the expanded member stays at the row start and its former row-mates are
// pushed into the following rows, cascading through the rest of the list. Ranks of
// the returned sequence are reassigned 1..N.
func Reflow(items []model.Member, columns, expandedIndex int) ([]model.Member, error) {
	if columns < 1 {
		return nil, model.ValidationError{Field: "columns", Reason: "must be at least 1"}
	}
	if expandedIndex < 0 || expandedIndex >= len(items) {
		return nil, model.ValidationError{Field: "expandedIndex", Reason: "out of range"}
	}

	rowStart := (expandedIndex / columns) * columns
	rowEnd := rowStart + columns
	if rowEnd > len(items) {
		rowEnd = len(items)
	}

	expanded := items[expandedIndex]
	out := make([]model.Member, 0, len(items))
	out = append(out, items[:rowStart]...)
	out = append(out, expanded)
	for i := rowStart; i < rowEnd; i++ {
		if i == expandedIndex {
			continue
		}
		out = append(out, items[i])
	}
	out = append(out, items[rowEnd:]...)

	for i := range out {
		out[i].Rank = i + 1
	}
	return out, nil
}

// Snapshot records member ranks so a reflow can be collapsed later.
type Snapshot map[string]int

func TakeSnapshot(items []model.Member) Snapshot {
	s := make(Snapshot, len(items))
	for _, m := range items {
		s[m.ID] = m.Rank
	}
	return s
}

// Collapse restores ranks recorded in snap. Members missing from snap keep
// their current rank.
func Collapse(items []model.Member, snap Snapshot) []model.Member {
	return Apply(items, snap)
}

// Rows chunks an ordered sequence into display rows of at most columns members.
// The member identified by expandedID (if any) is placed on a row of its own and
// chunking restarts after it.
func Rows(items []model.Member, columns int, expandedID string) [][]model.Member {
	if columns < 1 {
		columns = 1
	}
	var rows [][]model.Member
	var cur []model.Member
	flush := func() {
		if len(cur) > 0 {
			rows = append(rows, cur)
			cur = nil
		}
	}
	for _, m := range items {
		if expandedID != "" && m.ID == expandedID {
			flush()
			rows = append(rows, []model.Member{m})
			continue
		}
		cur = append(cur, m)
		if len(cur) == columns {
			flush()
		}
	}
	flush()
	return rows
}
