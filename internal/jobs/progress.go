package jobs

import "math"

// ProgressTracker keeps one job's reported progress non-decreasing.
type ProgressTracker struct {
	last float64
	seen bool
}

// Observe clamps fraction to [0,1] and reports whether it advances the
// job. The first value always passes; later values must exceed the last one.
func (p *ProgressTracker) Observe(fraction float64) (float64, bool) {
	clamped := Clamp(fraction)
	if p.seen && clamped <= p.last {
		return p.last, false
	}
	p.seen = true
	p.last = clamped
	return clamped, true
}

// Last returns the most recent accepted value.
func (p *ProgressTracker) Last() float64 {
	return p.last
}

// Clamp limits fraction to [0,1]; NaN maps to 0.
func Clamp(fraction float64) float64 {
	switch {
	case math.IsNaN(fraction):
		return 0
	case fraction < 0:
		return 0
	case fraction > 1:
		return 1
	default:
		return fraction
	}
}
