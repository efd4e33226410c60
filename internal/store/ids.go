package store

import (
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

const memberIDPrefix = "member-"

// NewMemberID returns member-<ulid> in lowercase. ULIDs sort by creation time,
// which keeps creation-order listings stable even when timestamps collide.
func NewMemberID(now time.Time) string {
	id := ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy())
	return memberIDPrefix + strings.ToLower(id.String())
}

// IsMemberID reports whether s looks like a generated member id.
// Keep it permissive; users may paste variants.
func IsMemberID(s string) bool {
	s = strings.TrimSpace(s)
	return strings.HasPrefix(s, memberIDPrefix) && len(s) > len(memberIDPrefix)
}
