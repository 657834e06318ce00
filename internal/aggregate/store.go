// Package aggregate accumulates per-day, per-entity time in call, chat,
// after-call-work and no-answer buckets, and keeps the per-day history log.
package aggregate

import (
	"sort"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

const (
	// DateLayout is the day key format
	DateLayout = "2006-01-02"

	// MaxSession caps the contribution of a single session
	MaxSession = 8 * time.Hour

	// DefaultHistoryLimit is the per-entity, per-day history cap
	DefaultHistoryLimit = 200
)

// DayKey returns the day bucket of t
func DayKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Store is owned by the processing loop and is not safe for concurrent use
type Store struct {
	totals       map[string]map[string]*types.DayTotals
	history      map[string]map[string][]types.HistoryEntry
	historyLimit int
	now          func() time.Time
}

// NewStore creates an empty store
func NewStore(historyLimit int, now func() time.Time) *Store {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		totals:       make(map[string]map[string]*types.DayTotals),
		history:      make(map[string]map[string][]types.HistoryEntry),
		historyLimit: historyLimit,
		now:          now,
	}
}

// Today returns the current day key
func (s *Store) Today() string {
	return DayKey(s.now())
}

// AddElapsed adds d to today's bucket of name, clamped to [0, MaxSession]
func (s *Store) AddElapsed(name string, bucket types.Bucket, d time.Duration) {
	if name == "" || bucket == "" {
		return
	}
	if d < 0 {
		d = 0
	}
	if d > MaxSession {
		d = MaxSession
	}

	day := s.Today()
	byName, ok := s.totals[day]
	if !ok {
		byName = make(map[string]*types.DayTotals)
		s.totals[day] = byName
	}
	t, ok := byName[name]
	if !ok {
		t = &types.DayTotals{}
		byName[name] = t
	}

	ms := d.Milliseconds()
	switch bucket {
	case types.BucketCall:
		t.CallMs += ms
	case types.BucketChat:
		t.ChatMs += ms
	case types.BucketAfterCallWork:
		t.AfterCallWorkMs += ms
	case types.BucketNoAnswer:
		t.NoAnswerMs += ms
	}
}

// Totals returns the totals of name for day
func (s *Store) Totals(day, name string) types.DayTotals {
	if t, ok := s.totals[day][name]; ok {
		return *t
	}
	return types.DayTotals{}
}

// Day returns a copy of all totals for day
func (s *Store) Day(day string) map[string]types.DayTotals {
	out := make(map[string]types.DayTotals, len(s.totals[day]))
	for name, t := range s.totals[day] {
		out[name] = *t
	}
	return out
}

// Days returns every day that has totals or history, oldest first
func (s *Store) Days() []string {
	seen := make(map[string]struct{})
	for d := range s.totals {
		seen[d] = struct{}{}
	}
	for d := range s.history {
		seen[d] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for d := range seen {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Report assembles the archived view of day
func (s *Store) Report(day string) types.DailyReport {
	hist := make(map[string][]types.HistoryEntry, len(s.history[day]))
	for name, entries := range s.history[day] {
		hist[name] = append([]types.HistoryEntry(nil), entries...)
	}
	return types.DailyReport{
		Date:       day,
		Aggregates: s.Day(day),
		History:    hist,
	}
}

// Snapshot is the persisted form of the store
type Snapshot struct {
	DailyAgg     map[string]map[string]types.DayTotals      `json:"dailyAgg"`
	HistoryByDay map[string]map[string][]types.HistoryEntry `json:"historyByDay"`
}

// Snapshot exports the store for persistence
func (s *Store) Snapshot() Snapshot {
	snap := Snapshot{
		DailyAgg:     make(map[string]map[string]types.DayTotals, len(s.totals)),
		HistoryByDay: make(map[string]map[string][]types.HistoryEntry, len(s.history)),
	}
	for day := range s.totals {
		snap.DailyAgg[day] = s.Day(day)
	}
	for day, byName := range s.history {
		m := make(map[string][]types.HistoryEntry, len(byName))
		for name, entries := range byName {
			m[name] = append([]types.HistoryEntry(nil), entries...)
		}
		snap.HistoryByDay[day] = m
	}
	return snap
}

// Restore replaces the store content
func (s *Store) Restore(snap Snapshot) {
	s.Reset()
	for day, byName := range snap.DailyAgg {
		m := make(map[string]*types.DayTotals, len(byName))
		for name, t := range byName {
			t := t
			m[name] = &t
		}
		s.totals[day] = m
	}
	for day, byName := range snap.HistoryByDay {
		m := make(map[string][]types.HistoryEntry, len(byName))
		for name, entries := range byName {
			m[name] = trim(append([]types.HistoryEntry(nil), entries...), s.historyLimit)
		}
		s.history[day] = m
	}
}

// Reset drops all totals and history
func (s *Store) Reset() {
	s.totals = make(map[string]map[string]*types.DayTotals)
	s.history = make(map[string]map[string][]types.HistoryEntry)
}
