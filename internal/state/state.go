// Package state bundles every piece of mutable monitor state into one
// process-scoped value. It is loaded from storage once at startup, saved
// after every processing pass and wiped by an operator reset.
package state

import (
	"context"
	"sort"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/aggregate"
	"github.com/dennisdiepolder/queuemonitor/internal/alerts"
	"github.com/dennisdiepolder/queuemonitor/internal/metrics"
	"github.com/dennisdiepolder/queuemonitor/internal/session"
	"github.com/dennisdiepolder/queuemonitor/internal/slots"
	"github.com/dennisdiepolder/queuemonitor/internal/storage"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/rs/zerolog"
)

// Persistence keys, relative to the storage prefix
const (
	KeySlots      = "slots"
	KeyTracking   = "tracking"
	KeyAggregates = "aggregates"
	KeyFavorites  = "favorites"
	KeyAlerts     = "alerts"
	KeyPrefs      = "prefs"
)

// SortOrder orders a board section by duration
type SortOrder string

const (
	SortNone SortOrder = ""
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// ParseSortOrder maps free input to a SortOrder; unknown values disable sorting
func ParseSortOrder(s string) SortOrder {
	switch SortOrder(s) {
	case SortAsc, SortDesc:
		return SortOrder(s)
	}
	return SortNone
}

// Preferences are the operator display settings
type Preferences struct {
	Search     string    `json:"search"`
	SortCalls  SortOrder `json:"sortCalls"`
	SortStatus SortOrder `json:"sortStatus"`
}

// DefaultPreferences sorts the call section longest first
func DefaultPreferences() Preferences {
	return Preferences{SortCalls: SortDesc}
}

type alertPrefs struct {
	Muted       bool                         `json:"muted"`
	SnoozeUntil time.Time                    `json:"snoozeUntil"`
	Raised      map[string][]types.AlertKind `json:"raised,omitempty"`
}

// Options configures the components owned by State
type Options struct {
	Session      session.Config
	Alerts       alerts.Config
	HistoryLimit int
}

// State owns all per-entity maps. Only the processing loop may touch it.
type State struct {
	Slots      *slots.Registry
	Sessions   *session.Tracker
	Aggregates *aggregate.Store
	Alerts     *alerts.Engine
	Favorites  map[string]bool
	Prefs      Preferences

	store  storage.Store
	now    func() time.Time
	logger zerolog.Logger
}

// New creates an empty state backed by store
func New(store storage.Store, opts Options, notifier alerts.Notifier, now func() time.Time, logger zerolog.Logger) *State {
	if now == nil {
		now = time.Now
	}
	return &State{
		Slots:      slots.NewRegistry(now),
		Sessions:   session.NewTracker(opts.Session, now),
		Aggregates: aggregate.NewStore(opts.HistoryLimit, now),
		Alerts:     alerts.NewEngine(opts.Alerts, notifier, now, logger),
		Favorites:  make(map[string]bool),
		Prefs:      DefaultPreferences(),
		store:      store,
		now:        now,
		logger:     logger.With().Str("component", "state").Logger(),
	}
}

// Load restores every key found in storage. Missing keys keep their
// defaults and read errors are logged, never returned.
func (s *State) Load(ctx context.Context) {
	var slotSnap slots.Snapshot
	if s.get(ctx, KeySlots, &slotSnap) {
		s.Slots.Restore(slotSnap)
	}

	var tracking map[string]session.Entity
	if s.get(ctx, KeyTracking, &tracking) {
		s.Sessions.Restore(tracking)
	}

	var agg aggregate.Snapshot
	if s.get(ctx, KeyAggregates, &agg) {
		s.Aggregates.Restore(agg)
	}

	var favorites []string
	if s.get(ctx, KeyFavorites, &favorites) {
		s.Favorites = make(map[string]bool, len(favorites))
		for _, name := range favorites {
			s.Favorites[name] = true
		}
	}

	var ap alertPrefs
	if s.get(ctx, KeyAlerts, &ap) {
		s.Alerts.SetMuted(ap.Muted)
		s.Alerts.SetSnoozeUntil(ap.SnoozeUntil)
		s.Alerts.RestoreRaised(ap.Raised)
	}

	var prefs Preferences
	if s.get(ctx, KeyPrefs, &prefs) {
		prefs.SortCalls = ParseSortOrder(string(prefs.SortCalls))
		prefs.SortStatus = ParseSortOrder(string(prefs.SortStatus))
		s.Prefs = prefs
	}

	s.logger.Info().
		Int("entities", s.Slots.Len()).
		Int("favorites", len(s.Favorites)).
		Msg("state loaded")
}

// Save writes every key. It returns the number of keys that failed.
func (s *State) Save(ctx context.Context) int {
	failed := 0
	ap := alertPrefs{
		Muted:       s.Alerts.Muted(),
		SnoozeUntil: s.Alerts.SnoozeUntil(),
		Raised:      s.Alerts.RaisedFlags(),
	}
	for key, v := range map[string]any{
		KeySlots:      s.Slots.Snapshot(),
		KeyTracking:   s.Sessions.Snapshot(),
		KeyAggregates: s.Aggregates.Snapshot(),
		KeyFavorites:  s.FavoriteNames(),
		KeyAlerts:     ap,
		KeyPrefs:      s.Prefs,
	} {
		if err := storage.SetJSON(ctx, s.store, key, v); err != nil {
			failed++
			metrics.Get().RecordPersistError()
			s.logger.Error().Err(err).Str("key", key).Msg("failed to persist state")
		}
	}
	return failed
}

// Reset clears storage and every in-memory map
func (s *State) Reset(ctx context.Context) {
	if err := s.store.Clear(ctx); err != nil {
		metrics.Get().RecordPersistError()
		s.logger.Error().Err(err).Msg("failed to clear storage")
	}
	s.Slots.Reset()
	s.Sessions.Reset()
	s.Aggregates.Reset()
	s.Alerts.Reset()
	s.Favorites = make(map[string]bool)
	s.Prefs = DefaultPreferences()
	s.logger.Warn().Msg("state reset")
}

// Now returns the clock shared by every component of the state
func (s *State) Now() time.Time {
	return s.now()
}

// SetFavorite adds or removes name from the favorites set
func (s *State) SetFavorite(name string, on bool) {
	if name == "" {
		return
	}
	if on {
		s.Favorites[name] = true
		return
	}
	delete(s.Favorites, name)
}

// FavoriteNames returns the favorites in name order
func (s *State) FavoriteNames() []string {
	out := make([]string, 0, len(s.Favorites))
	for name := range s.Favorites {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *State) get(ctx context.Context, key string, dst any) bool {
	found, err := storage.GetJSON(ctx, s.store, key, dst)
	if err != nil {
		metrics.Get().RecordPersistError()
		s.logger.Error().Err(err).Str("key", key).Msg("failed to load state")
		return false
	}
	return found
}
