package resolve

import (
	"testing"

	"plansync/internal/clock"
)

// TestResolver_Property_TrueWinsIrreversible tests that a completion can
// never be undone by a concurrent write, for any argument order and any
// timestamp order.
func TestResolver_Property_TrueWinsIrreversible(t *testing.T) {
	r := NewResolver(DefaultPolicy())

	cases := []struct {
		local    any
		remote   any
		localTS  int64
		remoteTS int64
	}{
		{true, false, 1, 2},
		{true, false, 2, 1},
		{false, true, 1, 2},
		{false, true, 2, 1},
	}

	for _, c := range cases {
		got := r.ResolveField("completed", c.local, c.remote, c.localTS, c.remoteTS)
		if got != true {
			t.Errorf("Expected true for %v/%v at %d/%d, got %v",
				c.local, c.remote, c.localTS, c.remoteTS, got)
		}
	}
}

// TestResolver_Property_ArrayMergeCommutative tests that merging two
// record sequences yields the same result regardless of which side was
// local.
func TestResolver_Property_ArrayMergeCommutative(t *testing.T) {
	r := NewResolver(DefaultPolicy())

	a := []any{
		Document{"_id": "1", "qty": 2, "_timestamp": 10},
		Document{"_id": "2", "done": false, "_timestamp": 10},
	}
	b := []any{
		Document{"_id": "2", "done": true, "_timestamp": 20},
		Document{"_id": "3", "title": "Museum", "_timestamp": 15},
	}

	ab := r.ResolveField("items", a, b, 10, 20)
	ba := r.ResolveField("items", b, a, 20, 10)

	if !deepEqual(ab, ba) {
		t.Errorf("Expected commutative array merge, got %v and %v", ab, ba)
	}
}

// TestResolver_Property_PlanMergeIdempotent tests that running the same
// merge twice produces identical output, and that re-merging the result
// against either input is a no-op.
func TestResolver_Property_PlanMergeIdempotent(t *testing.T) {
	r := NewResolver(DefaultPolicy())

	local := Document{"completed": false, "name": "A", "_timestamp": 100}
	remote := Document{"completed": true, "name": "B", "_timestamp": 50}
	c1 := clock.VectorClock{"s1": 2, "s2": 1}
	c2 := clock.VectorClock{"s1": 1, "s2": 2}

	first := r.ResolvePlan(local, remote, c1, c2)
	second := r.ResolvePlan(local, remote, c1, c2)

	if !deepEqual(first.Resolved, second.Resolved) {
		t.Errorf("Expected identical resolved documents, got %v and %v",
			first.Resolved, second.Resolved)
	}
	if !deepEqual(first.Conflicts, second.Conflicts) {
		t.Errorf("Expected identical conflicts, got %v and %v",
			first.Conflicts, second.Conflicts)
	}

	// The merged clock dominates the remote clock, so re-delivery of the
	// same remote snapshot must change nothing.
	again := r.ResolvePlan(first.Resolved, remote, first.Clock, c2)
	if again.Source != SourceLocal {
		t.Errorf("Expected re-delivery to keep local, got %v", again.Source)
	}
	if !deepEqual(again.Resolved, first.Resolved) {
		t.Errorf("Expected unchanged document, got %v", again.Resolved)
	}
	if len(again.Conflicts) != 0 {
		t.Errorf("Expected no conflicts on re-delivery, got %v", again.Conflicts)
	}
	if !again.Clock.Equal(first.Clock) {
		t.Errorf("Expected unchanged clock, got %v", again.Clock)
	}
}

// TestResolver_Property_MergedClockDominates tests that the clock of a
// concurrent merge compares After both input clocks.
func TestResolver_Property_MergedClockDominates(t *testing.T) {
	r := NewResolver(DefaultPolicy())

	c1 := clock.VectorClock{"s1": 3, "s2": 1}
	c2 := clock.VectorClock{"s1": 1, "s2": 4, "s3": 2}

	res := r.ResolvePlan(Document{"name": "A"}, Document{"name": "B"}, c1, c2)

	if res.Clock.Compare(c1) != clock.After {
		t.Errorf("Expected merged clock After c1, got %v", res.Clock.Compare(c1))
	}
	if res.Clock.Compare(c2) != clock.After {
		t.Errorf("Expected merged clock After c2, got %v", res.Clock.Compare(c2))
	}
}

// TestResolver_Property_ConflictsListEveryDivergingField tests that the
// audit list covers every differing field even when its strategy keeps
// one side unchanged.
func TestResolver_Property_ConflictsListEveryDivergingField(t *testing.T) {
	p := DefaultPolicy()
	p.Register("owner_note", PreferLocal)
	r := NewResolver(p)

	local := Document{"name": "A", "owner_note": "mine", "completed": false}
	remote := Document{"name": "A", "owner_note": "theirs", "completed": true}

	res := r.ResolvePlan(local, remote,
		clock.VectorClock{"s1": 1}, clock.VectorClock{"s2": 1})

	if len(res.Conflicts) != 2 {
		t.Fatalf("Expected 2 conflicts, got %d: %v", len(res.Conflicts), res.Conflicts)
	}
	if res.Conflicts[0].Field != "completed" {
		t.Errorf("Expected completed conflict recorded, got %v", res.Conflicts[0])
	}
	if res.Conflicts[1].Field != "owner_note" || res.Conflicts[1].Strategy != PreferLocal {
		t.Errorf("Expected owner_note conflict recorded despite prefer_local, got %v",
			res.Conflicts[1])
	}
	if res.Resolved["owner_note"] != "mine" {
		t.Errorf("Expected prefer_local to keep mine, got %v", res.Resolved["owner_note"])
	}
}
