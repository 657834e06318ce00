package session

import (
	"testing"
	"time"
)

func TestReconcile(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	internalStart := now.Add(-100 * time.Second)

	tests := []struct {
		name        string
		start       time.Time
		reported    time.Duration
		wantStart   time.Time
		wantChanged bool
	}{
		{"within tolerance", internalStart, 103 * time.Second, internalStart, false},
		{"exactly at tolerance", internalStart, 105 * time.Second, internalStart, false},
		{"beyond tolerance", internalStart, 110 * time.Second, now.Add(-110 * time.Second), true},
		{"negative drift beyond tolerance", internalStart, 90 * time.Second, now.Add(-90 * time.Second), true},
		{"no start yet", time.Time{}, 42 * time.Second, now.Add(-42 * time.Second), true},
		{"negative hint ignored", internalStart, -time.Second, internalStart, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Reconcile(tt.start, tt.reported, now, DefaultJitterTolerance)
			if changed != tt.wantChanged {
				t.Errorf("changed = %v, want %v", changed, tt.wantChanged)
			}
			if !got.Equal(tt.wantStart) {
				t.Errorf("start = %v, want %v", got, tt.wantStart)
			}
		})
	}
}
