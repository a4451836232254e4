package clock

import (
	"testing"
)

func TestVectorClock_Increment(t *testing.T) {
	vc := New().Increment("s1")
	if vc.Get("s1") != 1 {
		t.Errorf("Expected counter 1, got %d", vc.Get("s1"))
	}

	vc = vc.Increment("s1")
	if vc.Get("s1") != 2 {
		t.Errorf("Expected counter 2, got %d", vc.Get("s1"))
	}

	vc = vc.Increment("s2")
	if vc.Get("s2") != 1 {
		t.Errorf("Expected counter 1 for s2, got %d", vc.Get("s2"))
	}
	if vc.Get("s1") != 2 {
		t.Errorf("Expected s1 untouched at 2, got %d", vc.Get("s1"))
	}
}

func TestVectorClock_Increment_EmptySessionID(t *testing.T) {
	vc := VectorClock{"s1": 3}
	next := vc.Increment("")

	if !next.Equal(vc) {
		t.Errorf("Expected no-op for empty session ID, got %v", next)
	}
	if next.Len() != 1 {
		t.Errorf("Expected no entry created for empty session ID, got %d entries", next.Len())
	}
}

func TestVectorClock_Merge(t *testing.T) {
	vc1 := VectorClock{"s1": 3, "s2": 1}
	vc2 := VectorClock{"s1": 2, "s2": 5, "s3": 1}

	merged := vc1.Merge(vc2)

	if merged.Get("s1") != 3 {
		t.Errorf("Expected 3 (max), got %d", merged.Get("s1"))
	}
	if merged.Get("s2") != 5 {
		t.Errorf("Expected 5 (max), got %d", merged.Get("s2"))
	}
	if merged.Get("s3") != 1 {
		t.Errorf("Expected 1, got %d", merged.Get("s3"))
	}
}

func TestVectorClock_Compare(t *testing.T) {
	tests := []struct {
		name     string
		vc1      VectorClock
		vc2      VectorClock
		expected CompareResult
	}{
		{
			name:     "equal clocks",
			vc1:      VectorClock{"s1": 1, "s2": 2},
			vc2:      VectorClock{"s1": 1, "s2": 2},
			expected: Equal,
		},
		{
			name:     "vc1 before vc2",
			vc1:      VectorClock{"s1": 1, "s2": 1},
			vc2:      VectorClock{"s1": 2, "s2": 2},
			expected: Before,
		},
		{
			name:     "vc1 after vc2",
			vc1:      VectorClock{"s1": 2, "s2": 2},
			vc2:      VectorClock{"s1": 1, "s2": 1},
			expected: After,
		},
		{
			name:     "concurrent: vc1 has higher s1, vc2 has higher s2",
			vc1:      VectorClock{"s1": 2, "s2": 1},
			vc2:      VectorClock{"s1": 1, "s2": 2},
			expected: Concurrent,
		},
		{
			name:     "vc1 before vc2 (subset)",
			vc1:      VectorClock{"s1": 1},
			vc2:      VectorClock{"s1": 2, "s2": 1},
			expected: Before,
		},
		{
			name:     "concurrent (subset with different values)",
			vc1:      VectorClock{"s1": 2},
			vc2:      VectorClock{"s1": 1, "s2": 2},
			expected: Concurrent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.vc1.Compare(tt.vc2)
			if result != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestVectorClock_Copy(t *testing.T) {
	vc1 := VectorClock{"s1": 5, "s2": 3}

	vc2 := vc1.Copy()
	if !vc1.Equal(vc2) {
		t.Error("Copy should be equal to original")
	}

	vc2["s1"] = 99
	if vc1.Get("s1") == vc2.Get("s1") {
		t.Error("Modifying copy should not affect original")
	}
}

func TestVectorClock_Dominates(t *testing.T) {
	vc1 := VectorClock{"s1": 2, "s2": 2}
	vc2 := VectorClock{"s1": 1, "s2": 1}

	if !vc1.Dominates(vc2) {
		t.Error("vc1 should dominate vc2")
	}
	if vc2.Dominates(vc1) {
		t.Error("vc2 should not dominate vc1")
	}
	if !vc1.Dominates(vc1.Copy()) {
		t.Error("a clock should dominate an equal clock")
	}
}

func TestVectorClock_Predicates(t *testing.T) {
	older := VectorClock{"s1": 1}
	newer := VectorClock{"s1": 2}
	sibling := VectorClock{"s2": 1}

	if !older.HappensBefore(newer) {
		t.Error("older should happen before newer")
	}
	if !newer.HappensAfter(older) {
		t.Error("newer should happen after older")
	}
	if !older.IsConcurrent(sibling) {
		t.Error("clocks from unrelated sessions should be concurrent")
	}
	if older.HappensBefore(sibling) || older.HappensAfter(sibling) {
		t.Error("concurrent clocks must not be ordered")
	}
}

func TestVectorClock_FromMap_DropsInvalidCounters(t *testing.T) {
	vc := FromMap(map[string]int64{"s1": 2, "s2": 0, "s3": -4})

	if vc.Len() != 1 {
		t.Errorf("Expected 1 entry after sanitizing, got %d", vc.Len())
	}
	if vc.Get("s1") != 2 {
		t.Errorf("Expected s1=2, got %d", vc.Get("s1"))
	}
}
