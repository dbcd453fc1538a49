package jobs

import (
	"math"
	"testing"
)

// TestProgressTrackerMonotonic checks clamping and duplicate suppression.
func TestProgressTrackerMonotonic(t *testing.T) {
	var tracker ProgressTracker
	inputs := []float64{0, 0.3, 0.3, 0.2, -1, 0.9, 1.7, 1, math.NaN()}

	var accepted []float64
	for _, in := range inputs {
		if v, ok := tracker.Observe(in); ok {
			accepted = append(accepted, v)
		}
	}

	want := []float64{0, 0.3, 0.9, 1}
	if len(accepted) != len(want) {
		t.Fatalf("accepted = %v, want %v", accepted, want)
	}
	for i := range want {
		if accepted[i] != want[i] {
			t.Fatalf("accepted = %v, want %v", accepted, want)
		}
	}
	if tracker.Last() != 1 {
		t.Fatalf("last = %v, want 1", tracker.Last())
	}
}

// TestClamp checks range limits.
func TestClamp(t *testing.T) {
	cases := map[float64]float64{-0.5: 0, 0.25: 0.25, 3: 1}
	for in, want := range cases {
		if got := Clamp(in); got != want {
			t.Fatalf("Clamp(%v) = %v, want %v", in, got, want)
		}
	}
	if got := Clamp(math.NaN()); got != 0 {
		t.Fatalf("Clamp(NaN) = %v, want 0", got)
	}
}
