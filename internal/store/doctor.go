package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type DoctorIssueLevel string

const (
	DoctorIssueLevelError DoctorIssueLevel = "error"
	DoctorIssueLevelWarn  DoctorIssueLevel = "warn"
)

type DoctorIssue struct {
	Level    DoctorIssueLevel `json:"level"`
	Code     string           `json:"code"`
	Message  string           `json:"message"`
	MemberID string           `json:"memberId,omitempty"`
	Rank     int              `json:"rank,omitempty"`
}

type DoctorReport struct {
	Collection string        `json:"collection"`
	Members    int           `json:"members"`
	Issues     []DoctorIssue `json:"issues"`
}

func (r DoctorReport) HasErrors() bool {
	for _, it := range r.Issues {
		if it.Level == DoctorIssueLevelError {
			return true
		}
	}
	return false
}

var ErrDoctorIssuesFound = errors.New("doctor: issues found")

// Doctor inspects a collection as stored, without repairing anything.
//
// Unset ranks are warnings because the next read reconciles them; duplicate ranks
// and invalid member fields are errors. snapshotKey names the meta key holding the
// pre-reflow ranks; an empty key skips the snapshot checks.
func Doctor(ctx context.Context, b Backend, collection, snapshotKey string) DoctorReport {
	rep := DoctorReport{Collection: collection, Issues: []DoctorIssue{}}

	items, err := b.ListMembers(ctx, collection)
	if err != nil {
		rep.Issues = append(rep.Issues, DoctorIssue{
			Level:   DoctorIssueLevelError,
			Code:    "members_read_failed",
			Message: err.Error(),
		})
		return rep
	}
	rep.Members = len(items)

	byRank := map[int][]string{}
	for _, m := range items {
		if strings.TrimSpace(m.Name) == "" {
			rep.Issues = append(rep.Issues, DoctorIssue{
				Level:    DoctorIssueLevelError,
				Code:     "name_empty",
				Message:  "member has an empty name",
				MemberID: m.ID,
			})
		}
		if err := m.Image.Normalize().Validate(); err != nil {
			rep.Issues = append(rep.Issues, DoctorIssue{
				Level:    DoctorIssueLevelError,
				Code:     "image_invalid",
				Message:  err.Error(),
				MemberID: m.ID,
			})
		}
		if !m.HasRank() {
			rep.Issues = append(rep.Issues, DoctorIssue{
				Level:    DoctorIssueLevelWarn,
				Code:     "rank_unset",
				Message:  "member has no rank; it is appended on the next read",
				MemberID: m.ID,
			})
			continue
		}
		byRank[m.Rank] = append(byRank[m.Rank], m.ID)
	}

	ranks := make([]int, 0, len(byRank))
	for r := range byRank {
		ranks = append(ranks, r)
	}
	sort.Ints(ranks)
	for _, r := range ranks {
		ids := byRank[r]
		if len(ids) < 2 {
			continue
		}
		for _, id := range ids {
			rep.Issues = append(rep.Issues, DoctorIssue{
				Level:    DoctorIssueLevelError,
				Code:     "rank_duplicate",
				Message:  fmt.Sprintf("rank %d is shared by %d members", r, len(ids)),
				MemberID: id,
				Rank:     r,
			})
		}
	}

	if snapshotKey == "" {
		return rep
	}
	snap, err := b.ListMeta(ctx, collection, snapshotKey)
	if err != nil {
		rep.Issues = append(rep.Issues, DoctorIssue{
			Level:   DoctorIssueLevelError,
			Code:    "snapshot_read_failed",
			Message: err.Error(),
		})
		return rep
	}
	if len(snap) == 0 {
		return rep
	}
	for _, m := range items {
		v, ok := snap[m.ID]
		if !ok {
			rep.Issues = append(rep.Issues, DoctorIssue{
				Level:    DoctorIssueLevelWarn,
				Code:     "snapshot_missing_member",
				Message:  "member was added after the last persisted reflow; collapse keeps its current rank",
				MemberID: m.ID,
			})
			continue
		}
		if n, err := strconv.Atoi(v); err != nil || n <= 0 {
			rep.Issues = append(rep.Issues, DoctorIssue{
				Level:    DoctorIssueLevelWarn,
				Code:     "snapshot_invalid",
				Message:  fmt.Sprintf("snapshot rank %q is not a positive integer", v),
				MemberID: m.ID,
			})
		}
	}
	return rep
}
