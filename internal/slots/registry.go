// Package slots hands out stable display slots to entities and reorders them
// by recency of their last completed call.
package slots

import (
	"sort"
	"time"
)

// Entry is one registered entity
type Entry struct {
	Name       string     `json:"name"`
	Slot       int        `json:"slot"`
	AssignedAt time.Time  `json:"assignedAt"`
	TotalCalls int        `json:"totalCalls"`
	LastCallAt *time.Time `json:"lastCallAt,omitempty"`
	LastSeen   time.Time  `json:"lastSeen"`
}

// Snapshot is the persisted form of the registry
type Snapshot struct {
	Entries []Entry `json:"masterSlotList"`
	Counter int     `json:"slotCounter"`
}

// Registry is owned by the processing loop and is not safe for concurrent use
type Registry struct {
	entries []*Entry // kept in slot order
	counter int
	now     func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry(now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	return &Registry{counter: 1, now: now}
}

// Assign returns the slot of name, allocating the next counter value if the
// name was never seen. Counter values are never reused.
func (r *Registry) Assign(name string) int {
	if name == "" {
		return 0
	}
	if e := r.find(name); e != nil {
		e.LastSeen = r.now()
		return e.Slot
	}

	now := r.now()
	e := &Entry{
		Name:       name,
		Slot:       r.counter,
		AssignedAt: now,
		LastSeen:   now,
	}
	r.counter++
	r.entries = append(r.entries, e)
	return e.Slot
}

// Slot returns the current slot of name
func (r *Registry) Slot(name string) (int, bool) {
	e := r.find(name)
	if e == nil {
		return 0, false
	}
	return e.Slot, true
}

// Get returns a copy of the entry for name
func (r *Registry) Get(name string) (Entry, bool) {
	e := r.find(name)
	if e == nil {
		return Entry{}, false
	}
	return *e, true
}

// CompleteCall counts a finished call for name, moves it to the back and
// renumbers every entry densely from 1.
func (r *Registry) CompleteCall(name string) {
	idx := r.index(name)
	if idx < 0 {
		return
	}

	e := r.entries[idx]
	now := r.now()
	e.TotalCalls++
	e.LastCallAt = &now

	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	r.entries = append(r.entries, e)
	for i, row := range r.entries {
		row.Slot = i + 1
	}
}

// Cleanup removes entries not seen within maxAge and returns how many were removed
func (r *Registry) Cleanup(maxAge time.Duration) int {
	cutoff := r.now().Add(-maxAge)
	kept := r.entries[:0]
	removed := 0
	for _, e := range r.entries {
		if e.LastSeen.IsZero() || e.LastSeen.After(cutoff) {
			kept = append(kept, e)
			continue
		}
		removed++
	}
	for i := len(kept); i < len(r.entries); i++ {
		r.entries[i] = nil
	}
	r.entries = kept
	return removed
}

// Ordered returns copies of all entries sorted by slot
func (r *Registry) Ordered() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out
}

// Len returns the number of registered entities
func (r *Registry) Len() int {
	return len(r.entries)
}

// Snapshot exports the registry for persistence
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{Entries: r.Ordered(), Counter: r.counter}
}

// Restore replaces the registry content with a persisted snapshot
func (r *Registry) Restore(s Snapshot) {
	r.entries = make([]*Entry, 0, len(s.Entries))
	maxSlot := 0
	for i := range s.Entries {
		e := s.Entries[i]
		if e.Name == "" {
			continue
		}
		r.entries = append(r.entries, &e)
		if e.Slot > maxSlot {
			maxSlot = e.Slot
		}
	}
	sort.SliceStable(r.entries, func(i, j int) bool { return r.entries[i].Slot < r.entries[j].Slot })

	r.counter = s.Counter
	if r.counter <= maxSlot {
		r.counter = maxSlot + 1
	}
}

// Reset forgets every entity and restarts the counter
func (r *Registry) Reset() {
	r.entries = nil
	r.counter = 1
}

func (r *Registry) find(name string) *Entry {
	if idx := r.index(name); idx >= 0 {
		return r.entries[idx]
	}
	return nil
}

func (r *Registry) index(name string) int {
	for i, e := range r.entries {
		if e.Name == name {
			return i
		}
	}
	return -1
}
