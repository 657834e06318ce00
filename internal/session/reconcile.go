package session

import "time"

// DefaultJitterTolerance is the drift below which a reported elapsed hint is ignored
const DefaultJitterTolerance = 5 * time.Second

// Reconcile aligns a session start with an externally reported elapsed time.
// The start moves to now-reported when there is no start yet or when the
// drift between reported and internal elapsed exceeds tolerance; otherwise
// it is returned unchanged. changed reports whether the start moved.
func Reconcile(start time.Time, reported time.Duration, now time.Time, tolerance time.Duration) (newStart time.Time, changed bool) {
	if reported < 0 {
		return start, false
	}
	desired := now.Add(-reported)
	if start.IsZero() {
		return desired, true
	}

	drift := reported - now.Sub(start)
	if drift < 0 {
		drift = -drift
	}
	if drift > tolerance {
		return desired, true
	}
	return start, false
}
