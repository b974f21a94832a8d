package suggest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"va-tasks/pkg/task"
)

// unrankedPriority is the rank of an empty or unparsable priority.
const unrankedPriority = 999

// PriorityRank returns the numeric ordinal of a "P<n>" priority, lower being
// more urgent. Empty or unparsable values rank last.
func PriorityRank(p string) int {
	if p == "" {
		return unrankedPriority
	}
	_, size := utf8.DecodeRuneInString(p)
	n, err := strconv.Atoi(strings.TrimSpace(p[size:]))
	if err != nil {
		return unrankedPriority
	}
	return n
}

// BetterPriority returns the more urgent of p and q, p on a tie.
func BetterPriority(p, q string) string {
	if PriorityRank(p) <= PriorityRank(q) {
		return p
	}
	return q
}

// UnionOrdered returns a's distinct elements followed by b's elements not in a.
func UnionOrdered(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, s := range list {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// ChoosePrimary returns the task that survives a combine: the one with the
// shorter title, a on a tie.
func ChoosePrimary(a, b *task.Task) (primary, secondary *task.Task) {
	if utf8.RuneCountInString(a.Title) <= utf8.RuneCountInString(b.Title) {
		return a, b
	}
	return b, a
}

// MergeCombine returns primary with secondary's fields folded in. Neither
// argument is modified. History and lineage are left to the caller.
func MergeCombine(primary, secondary task.Task) task.Task {
	merged := primary
	merged.Context = UnionOrdered(primary.Context, secondary.Context)
	merged.People = UnionOrdered(primary.People, secondary.People)
	merged.Links = UnionOrdered(primary.Links, secondary.Links)
	if best := BetterPriority(primary.Priority, secondary.Priority); best != "" {
		merged.Priority = best
	}
	if primary.Project == "" && secondary.Project != "" {
		merged.Project = secondary.Project
	}
	if secondary.Due != nil && (primary.Due == nil || secondary.Due.Before(*primary.Due)) {
		due := *secondary.Due
		merged.Due = &due
	}

	note := fmt.Sprintf("Merged #%d: %s", secondary.ID, secondary.Title)
	if primary.Notes != "" {
		merged.Notes = primary.Notes + "\n\n" + note
	} else {
		merged.Notes = note
	}
	return merged
}
