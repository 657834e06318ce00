package slots

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func TestAssign(t *testing.T) {
	clock := newClock()
	r := NewRegistry(clock.Now)

	if got := r.Assign("alice"); got != 1 {
		t.Errorf("first slot = %d, want 1", got)
	}
	if got := r.Assign("bob"); got != 2 {
		t.Errorf("second slot = %d, want 2", got)
	}

	clock.Advance(time.Minute)
	if got := r.Assign("alice"); got != 1 {
		t.Errorf("existing slot = %d, want 1", got)
	}
	e, _ := r.Get("alice")
	if !e.LastSeen.Equal(clock.Now()) {
		t.Errorf("LastSeen = %v, want %v", e.LastSeen, clock.Now())
	}

	if got := r.Assign(""); got != 0 {
		t.Errorf("empty name slot = %d, want 0", got)
	}
	if r.Len() != 2 {
		t.Errorf("Len() = %d, want 2", r.Len())
	}
}

func TestCompleteCallMovesToBack(t *testing.T) {
	r := NewRegistry(newClock().Now)
	for _, n := range []string{"a", "b", "c"} {
		r.Assign(n)
	}

	r.CompleteCall("a")

	want := map[string]int{"b": 1, "c": 2, "a": 3}
	for name, slot := range want {
		if got, _ := r.Slot(name); got != slot {
			t.Errorf("Slot(%s) = %d, want %d", name, got, slot)
		}
	}

	e, _ := r.Get("a")
	if e.TotalCalls != 1 || e.LastCallAt == nil {
		t.Errorf("entry a = %+v, want one call recorded", e)
	}

	// counter is not reused after compaction
	if got := r.Assign("d"); got != 4 {
		t.Errorf("new slot after reorder = %d, want 4", got)
	}

	r.CompleteCall("unknown")
	if r.Len() != 4 {
		t.Errorf("Len() = %d, want 4", r.Len())
	}
}

func TestCleanup(t *testing.T) {
	clock := newClock()
	r := NewRegistry(clock.Now)
	r.Assign("old")
	clock.Advance(8 * 24 * time.Hour)
	r.Assign("fresh")

	removed := r.Cleanup(7 * 24 * time.Hour)
	if removed != 1 {
		t.Errorf("Cleanup() removed %d, want 1", removed)
	}
	if _, ok := r.Slot("old"); ok {
		t.Error("old entry should be gone")
	}
	if _, ok := r.Slot("fresh"); !ok {
		t.Error("fresh entry should remain")
	}
}

func TestSnapshotRestore(t *testing.T) {
	r := NewRegistry(newClock().Now)
	r.Assign("a")
	r.Assign("b")
	r.CompleteCall("a")

	snap := r.Snapshot()

	restored := NewRegistry(newClock().Now)
	restored.Restore(snap)

	ordered := restored.Ordered()
	if len(ordered) != 2 || ordered[0].Name != "b" || ordered[1].Name != "a" {
		t.Fatalf("Ordered() = %+v", ordered)
	}
	if got := restored.Assign("c"); got != 3 {
		t.Errorf("slot after restore = %d, want 3", got)
	}
}

func TestRestoreRepairsCounter(t *testing.T) {
	r := NewRegistry(nil)
	r.Restore(Snapshot{Entries: []Entry{{Name: "x", Slot: 5}}, Counter: 2})

	if got := r.Assign("y"); got != 6 {
		t.Errorf("Assign() = %d, want 6", got)
	}
}

func TestReset(t *testing.T) {
	r := NewRegistry(nil)
	r.Assign("a")
	r.Reset()

	if r.Len() != 0 {
		t.Errorf("Len() = %d after reset", r.Len())
	}
	if got := r.Assign("b"); got != 1 {
		t.Errorf("Assign() after reset = %d, want 1", got)
	}
}
