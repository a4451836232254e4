package resolve

import (
	"sort"

	"plansync/internal/clock"
)

// Versioned pairs a plan snapshot with the clock it was produced under.
type Versioned struct {
	Doc   Document
	Clock clock.VectorClock
}

// SiblingResult is the outcome of reducing several versions of one plan
// to a single snapshot.
type SiblingResult struct {
	// Resolved is the surviving snapshot with its dominating clock.
	Resolved Versioned

	// Siblings is the number of non-dominated versions found before
	// folding. More than one means concurrent history was merged.
	Siblings int

	// Stale holds the versions dominated by some sibling. Their origins
	// need the resolved state re-broadcast.
	Stale []Versioned

	// Conflicts accumulates the audit entries from folding concurrent
	// siblings.
	Conflicts []FieldConflict
}

// HasConflict reports whether more than one non-dominated version was
// found.
func (s SiblingResult) HasConflict() bool {
	return s.Siblings > 1
}

// IsEmpty reports whether there was nothing to reduce.
func (s SiblingResult) IsEmpty() bool {
	return s.Siblings == 0
}

// ReduceSiblings reduces any number of versions of one plan, such as
// several offline sessions rejoining at once, to a single snapshot.
// Versions dominated by another are set aside as stale; the remaining
// concurrent siblings are folded pairwise through ResolvePlan in clock
// order, so the result does not depend on input order. Versions with
// equal clocks collapse to the first seen.
func (r *Resolver) ReduceSiblings(versions []Versioned) SiblingResult {
	if len(versions) == 0 {
		return SiblingResult{}
	}

	winners := make([]Versioned, 0, len(versions))
	stale := make([]Versioned, 0)

	for i, v := range versions {
		dominated := false
		for j, other := range versions {
			if i == j {
				continue
			}
			if v.Clock.Compare(other.Clock) == clock.Before {
				dominated = true
				break
			}
		}
		if dominated {
			stale = append(stale, v)
			continue
		}
		dup := false
		for _, w := range winners {
			if v.Clock.Equal(w.Clock) {
				dup = true
				break
			}
		}
		if !dup {
			winners = append(winners, v)
		}
	}

	sort.Slice(winners, func(i, j int) bool {
		return winners[i].Clock.String() < winners[j].Clock.String()
	})

	acc := winners[0]
	conflicts := make([]FieldConflict, 0)
	for _, w := range winners[1:] {
		res := r.ResolvePlan(acc.Doc, w.Doc, acc.Clock, w.Clock)
		acc = Versioned{Doc: res.Resolved, Clock: res.Clock}
		conflicts = append(conflicts, res.Conflicts...)
	}

	return SiblingResult{
		Resolved:  acc,
		Siblings:  len(winners),
		Stale:     stale,
		Conflicts: conflicts,
	}
}
