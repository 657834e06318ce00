package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/aggregate"
	"github.com/dennisdiepolder/queuemonitor/internal/state"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// ErrNoExporter is returned by ExportDay when archiving is not configured
var ErrNoExporter = errors.New("no exporter configured")

// Do runs fn on the processing loop between two passes and waits for it.
// A pass is triggered afterwards so the board reflects the change.
func (m *Monitor) Do(ctx context.Context, fn func(ctx context.Context, st *state.State) error) error {
	return m.send(ctx, control{fn: fn, mutates: true, done: make(chan error, 1)})
}

// read runs a read-only fn on the loop without triggering a pass
func (m *Monitor) read(ctx context.Context, fn func(ctx context.Context, st *state.State) error) error {
	return m.send(ctx, control{fn: fn, done: make(chan error, 1)})
}

func (m *Monitor) send(ctx context.Context, c control) error {
	select {
	case m.controls <- c:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-c.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetMuted toggles the global alert mute
func (m *Monitor) SetMuted(ctx context.Context, muted bool) error {
	return m.Do(ctx, func(ctx context.Context, st *state.State) error {
		st.Alerts.SetMuted(muted)
		m.logger.Info().Bool("muted", muted).Msg("alert mute changed")
		return nil
	})
}

// Snooze withholds alert signals for d; d <= 0 cancels a running snooze
func (m *Monitor) Snooze(ctx context.Context, d time.Duration) (time.Time, error) {
	var until time.Time
	err := m.Do(ctx, func(ctx context.Context, st *state.State) error {
		st.Alerts.Snooze(d)
		until = st.Alerts.SnoozeUntil()
		m.logger.Info().Time("until", until).Msg("alerts snoozed")
		return nil
	})
	return until, err
}

// SetFavorite pins or unpins an entity
func (m *Monitor) SetFavorite(ctx context.Context, name string, on bool) error {
	if name == "" {
		return errors.New("name is required")
	}
	return m.Do(ctx, func(ctx context.Context, st *state.State) error {
		st.SetFavorite(name, on)
		return nil
	})
}

// SetPreferences replaces the search filter and sort orders
func (m *Monitor) SetPreferences(ctx context.Context, prefs state.Preferences) error {
	return m.Do(ctx, func(ctx context.Context, st *state.State) error {
		st.Prefs = prefs
		return nil
	})
}

// Preferences returns the current search filter and sort orders
func (m *Monitor) Preferences(ctx context.Context) (state.Preferences, error) {
	var prefs state.Preferences
	err := m.read(ctx, func(ctx context.Context, st *state.State) error {
		prefs = st.Prefs
		return nil
	})
	return prefs, err
}

// Favorites returns the pinned entities in name order
func (m *Monitor) Favorites(ctx context.Context) ([]string, error) {
	var names []string
	err := m.read(ctx, func(ctx context.Context, st *state.State) error {
		names = st.FavoriteNames()
		return nil
	})
	return names, err
}

// Reset wipes storage and all in-memory state
func (m *Monitor) Reset(ctx context.Context) error {
	return m.Do(ctx, func(ctx context.Context, st *state.State) error {
		st.Reset(ctx)
		m.lastVersion = 0
		return nil
	})
}

// History returns the lifecycle log of name for day; an empty day means today
func (m *Monitor) History(ctx context.Context, day, name string) ([]types.HistoryEntry, error) {
	var out []types.HistoryEntry
	err := m.read(ctx, func(ctx context.Context, st *state.State) error {
		if day == "" {
			day = st.Aggregates.Today()
		}
		out = st.Aggregates.History(day, name)
		return nil
	})
	return out, err
}

// Aggregates returns the per-entity totals of day; an empty day means today
func (m *Monitor) Aggregates(ctx context.Context, day string) (map[string]types.DayTotals, error) {
	var out map[string]types.DayTotals
	err := m.read(ctx, func(ctx context.Context, st *state.State) error {
		if day == "" {
			day = st.Aggregates.Today()
		}
		out = st.Aggregates.Day(day)
		return nil
	})
	return out, err
}

// Days lists every day with recorded totals or history
func (m *Monitor) Days(ctx context.Context) ([]string, error) {
	var out []string
	err := m.read(ctx, func(ctx context.Context, st *state.State) error {
		out = st.Aggregates.Days()
		return nil
	})
	return out, err
}

// ExportDay archives the report of day through the configured exporter
func (m *Monitor) ExportDay(ctx context.Context, day string) (string, error) {
	if m.exporter == nil {
		return "", ErrNoExporter
	}
	if day != "" {
		if _, err := time.Parse(aggregate.DateLayout, day); err != nil {
			return "", fmt.Errorf("invalid day %q: %w", day, err)
		}
	}

	var report types.DailyReport
	err := m.read(ctx, func(ctx context.Context, st *state.State) error {
		if day == "" {
			day = st.Aggregates.Today()
		}
		report = st.Aggregates.Report(day)
		return nil
	})
	if err != nil {
		return "", err
	}
	return m.exporter.Export(ctx, report)
}
