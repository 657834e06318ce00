package aggregate

import (
	"fmt"
	"strings"

	"github.com/dennisdiepolder/queuemonitor/internal/duration"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// PreviewSize is the number of events shown in a history preview
const PreviewSize = 5

// AddHistory appends an entry to today's log of name, trimming the oldest
// entries beyond the limit. A zero timestamp is stamped with the store clock.
func (s *Store) AddHistory(name string, entry types.HistoryEntry) {
	if name == "" {
		return
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}

	day := DayKey(entry.Timestamp)
	byName, ok := s.history[day]
	if !ok {
		byName = make(map[string][]types.HistoryEntry)
		s.history[day] = byName
	}
	byName[name] = trim(append(byName[name], entry), s.historyLimit)
}

// History returns a copy of the log of name for day, oldest first
func (s *Store) History(day, name string) []types.HistoryEntry {
	return append([]types.HistoryEntry(nil), s.history[day][name]...)
}

// Preview renders the newest PreviewSize events of today for name, newest first
func (s *Store) Preview(name string) string {
	entries := s.history[s.Today()][name]
	if len(entries) == 0 {
		return "no history"
	}

	start := len(entries) - PreviewSize
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, PreviewSize)
	for i := len(entries) - 1; i >= start; i-- {
		lines = append(lines, FormatEntry(entries[i]))
	}
	return strings.Join(lines, "\n")
}

// FormatEntry renders one history entry as "HH:MM:SS • text"
func FormatEntry(ev types.HistoryEntry) string {
	t := ev.Timestamp.Format("15:04:05")
	switch ev.Type {
	case types.HistoryCallEnd:
		return fmt.Sprintf("%s • call ended (%s)", t, duration.FormatHMS(ev.DurationMs))
	case types.HistoryChatEnd:
		return fmt.Sprintf("%s • chat ended (%s)", t, duration.FormatHMS(ev.DurationMs))
	case types.HistoryStatus:
		return fmt.Sprintf("%s • status → %s", t, ev.To)
	case types.HistoryProhibOn:
		return fmt.Sprintf("%s • prohibited (%s)", t, ev.Subtype)
	case types.HistoryProhibOff:
		return fmt.Sprintf("%s • prohibited ended (%s, %s)", t, ev.Subtype, duration.FormatHMS(ev.DurationMs))
	}
	return t + " • " + ev.Type
}

func trim(entries []types.HistoryEntry, limit int) []types.HistoryEntry {
	if len(entries) <= limit {
		return entries
	}
	return append([]types.HistoryEntry(nil), entries[len(entries)-limit:]...)
}
