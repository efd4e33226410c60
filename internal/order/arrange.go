package order

import (
	"sort"
	"strings"

	"roster-cli/internal/model"
)

// SortMode selects how a collection is presented. Only SortManual follows ranks.
type SortMode string

const (
	SortManual   SortMode = "manual"
	SortName     SortMode = "name"
	SortJobTitle SortMode = "job_title"
	SortRank     SortMode = "rank"
	SortDateAsc  SortMode = "date_asc"
	SortDateDesc SortMode = "date_desc"
)

var sortModes = []SortMode{SortManual, SortName, SortJobTitle, SortRank, SortDateAsc, SortDateDesc}

func SortModes() []SortMode { return append([]SortMode(nil), sortModes...) }

func ParseSortMode(s string) (SortMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return SortManual, nil
	}
	// "title" was accepted as an alias for job title by older settings pages.
	if s == "title" {
		return SortJobTitle, nil
	}
	for _, m := range sortModes {
		if string(m) == s {
			return m, nil
		}
	}
	return "", model.ValidationError{Field: "sort", Reason: "expected manual|name|job_title|rank|date_asc|date_desc"}
}

// Arrange returns a copy of items ordered for display under mode.
// Ties always fall back to the manual (rank) order.
func Arrange(items []model.Member, mode SortMode) []model.Member {
	out := Ordered(items)
	var less func(a, b model.Member) bool
	switch mode {
	case SortName:
		less = func(a, b model.Member) bool { return foldLess(a.Name, b.Name) }
	case SortJobTitle:
		less = func(a, b model.Member) bool { return foldLess(a.JobTitle, b.JobTitle) }
	case SortRank:
		less = func(a, b model.Member) bool { return foldLess(a.Seniority, b.Seniority) }
	case SortDateAsc:
		less = func(a, b model.Member) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case SortDateDesc:
		less = func(a, b model.Member) bool { return a.CreatedAt.After(b.CreatedAt) }
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func foldLess(a, b string) bool {
	return strings.ToLower(strings.TrimSpace(a)) < strings.ToLower(strings.TrimSpace(b))
}
