package clock

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// VectorClock represents a vector clock as a map from session ID to counter.
// A nil or empty clock is the causal minimum ("no history").
//
// All operations are pure: they return new clocks and never mutate the
// receiver or their arguments, so clocks can be shared across goroutines
// without locking.
type VectorClock map[string]int64

// New creates a new empty vector clock.
func New() VectorClock {
	return make(VectorClock)
}

// FromMap builds a vector clock from raw counters. Entries with a
// non-positive counter are dropped: zero is indistinguishable from absence
// under Compare, and negative counters are invalid on the wire.
func FromMap(entries map[string]int64) VectorClock {
	vc := make(VectorClock, len(entries))
	for sessionID, counter := range entries {
		if counter > 0 {
			vc[sessionID] = counter
		}
	}
	return vc
}

// Get returns the counter value for the given session ID, or 0 if not present.
func (vc VectorClock) Get(sessionID string) int64 {
	return vc[sessionID]
}

// Len returns the number of sessions tracked by the clock.
func (vc VectorClock) Len() int {
	return len(vc)
}

// Copy creates a deep copy of the vector clock.
func (vc VectorClock) Copy() VectorClock {
	dup := make(VectorClock, len(vc))
	for k, v := range vc {
		dup[k] = v
	}
	return dup
}

// Increment returns a copy of the clock with the counter for the given
// session ID advanced by one (1 if absent). An empty session ID is a no-op:
// the returned clock equals the input, and no entry is created.
func (vc VectorClock) Increment(sessionID string) VectorClock {
	next := vc.Copy()
	if sessionID == "" {
		return next
	}
	next[sessionID]++
	return next
}

// Merge returns a new clock holding, for every session present in either
// input, the maximum of the two counters. Merge is commutative and
// idempotent: Merge(a, a) equals a and Merge(a, b) equals Merge(b, a).
func (vc VectorClock) Merge(other VectorClock) VectorClock {
	merged := vc.Copy()
	for sessionID, counter := range other {
		if merged[sessionID] < counter {
			merged[sessionID] = counter
		}
	}
	return merged
}

// CompareResult represents the result of comparing two vector clocks.
type CompareResult int

const (
	// Before indicates this clock causally precedes the other.
	Before CompareResult = iota
	// After indicates this clock causally follows the other.
	After
	// Concurrent indicates the clocks are concurrent (no causal relationship).
	Concurrent
	// Equal indicates the clocks are equal.
	Equal
)

// String returns the wire name of the comparison result.
func (r CompareResult) String() string {
	switch r {
	case Before:
		return "before"
	case After:
		return "after"
	case Concurrent:
		return "concurrent"
	case Equal:
		return "equal"
	default:
		return "unknown"
	}
}

// Compare compares two vector clocks across the union of their session IDs,
// treating missing entries as 0. Returns:
//   - Equal: all counters equal
//   - Before: no counter greater, at least one smaller
//   - After: no counter smaller, at least one greater
//   - Concurrent: some counters smaller and some greater
//
// A nil clock compares Before any non-empty clock and Equal to another
// nil or empty clock.
func (vc VectorClock) Compare(other VectorClock) CompareResult {
	var less, greater bool

	for sessionID, counter := range vc {
		otherCounter := other[sessionID]
		if counter < otherCounter {
			less = true
		} else if counter > otherCounter {
			greater = true
		}
	}
	for sessionID, otherCounter := range other {
		if _, seen := vc[sessionID]; seen {
			continue
		}
		if otherCounter > 0 {
			less = true
		}
	}

	switch {
	case less && greater:
		return Concurrent
	case less:
		return Before
	case greater:
		return After
	default:
		return Equal
	}
}

// Equal reports whether both clocks carry the same counters. Zero-valued
// entries are equivalent to absent ones.
func (vc VectorClock) Equal(other VectorClock) bool {
	return vc.Compare(other) == Equal
}

// HappensBefore reports whether this clock causally precedes the other.
func (vc VectorClock) HappensBefore(other VectorClock) bool {
	return vc.Compare(other) == Before
}

// HappensAfter reports whether this clock causally follows the other.
func (vc VectorClock) HappensAfter(other VectorClock) bool {
	return vc.Compare(other) == After
}

// IsConcurrent reports whether neither clock causally precedes the other.
func (vc VectorClock) IsConcurrent(other VectorClock) bool {
	return vc.Compare(other) == Concurrent
}

// Dominates reports whether every counter in this clock is greater than or
// equal to the corresponding counter in the other (After or Equal).
func (vc VectorClock) Dominates(other VectorClock) bool {
	r := vc.Compare(other)
	return r == After || r == Equal
}

// Prune returns a copy of the clock without entries whose counter is less
// than or equal to minSequence. Pruning bounds clock growth for long-lived
// documents; it is only safe for sessions that are permanently retired,
// otherwise their causal history is forgotten and future comparisons treat
// them as if they never mutated the document.
func (vc VectorClock) Prune(minSequence int64) VectorClock {
	pruned := make(VectorClock, len(vc))
	for sessionID, counter := range vc {
		if counter > minSequence {
			pruned[sessionID] = counter
		}
	}
	return pruned
}

// Serialize encodes the clock as a JSON object mapping session IDs to
// counters. An empty or nil clock encodes as "{}".
func (vc VectorClock) Serialize() []byte {
	if len(vc) == 0 {
		return []byte("{}")
	}
	data, err := json.Marshal(map[string]int64(vc))
	if err != nil {
		// Marshal of map[string]int64 cannot fail.
		return []byte("{}")
	}
	return data
}

// Deserialize decodes a JSON-object clock. Malformed input (invalid JSON,
// non-integer counters) yields an empty clock rather than an error, and
// non-positive counters are dropped. The empty object and JSON null both
// decode to "no history".
func Deserialize(data []byte) VectorClock {
	if len(data) == 0 {
		return New()
	}
	var raw map[string]int64
	if err := json.Unmarshal(data, &raw); err != nil {
		return New()
	}
	return FromMap(raw)
}

// String returns a deterministic representation of the clock with session
// IDs in sorted order, e.g. "{s1:2, s2:1}".
func (vc VectorClock) String() string {
	if len(vc) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(vc))
	for k := range vc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s:%d", k, vc[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
