package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/duration"
	"github.com/dennisdiepolder/queuemonitor/internal/metrics"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/rs/zerolog"
)

// Notifier receives alert signals. Implementations must not block.
type Notifier interface {
	Signal(kind types.AlertKind, name, message string)
}

// Config holds the alert thresholds
type Config struct {
	Enabled       bool
	CallThreshold time.Duration
	ChatThreshold time.Duration
}

// DefaultConfig returns the production thresholds
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		CallThreshold: 10 * time.Minute,
		ChatThreshold: 10 * time.Minute,
	}
}

// Input is the per-entity state the rules look at
type Input struct {
	Name        string
	Category    types.Category
	Subtype     types.ProhibSubtype
	CallActive  bool
	CallElapsed time.Duration
	ChatActive  bool // first chat session
	ChatElapsed time.Duration
}

// Result reports what one evaluation did
type Result struct {
	Active     []types.AlertKind // conditions currently true
	Fired      int               // edges signalled
	Suppressed int               // edges withheld by mute or snooze
}

// Engine edge-triggers alerts. A condition fires once when it becomes true
// and re-arms only after it clears. Mute and snooze withhold the signal but
// still record the edge, so unmuting never replays a stale alert.
type Engine struct {
	cfg         Config
	notifier    Notifier
	flags       map[string]map[types.AlertKind]bool
	muted       bool
	snoozeUntil time.Time
	now         func() time.Time
	logger      zerolog.Logger
}

// NewEngine creates an alert engine
func NewEngine(cfg Config, notifier Notifier, now func() time.Time, logger zerolog.Logger) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cfg:      cfg,
		notifier: notifier,
		flags:    make(map[string]map[types.AlertKind]bool),
		now:      now,
		logger:   logger.With().Str("component", "alerts").Logger(),
	}
}

// Check evaluates all rules for one entity
func (e *Engine) Check(in Input) Result {
	var res Result

	e.evaluate(&res, in.Name, types.AlertProhibited,
		in.Category == types.CategoryProhibited,
		func() string { return fmt.Sprintf("%s in %s", in.Name, prohibLabel(in.Subtype)) })

	e.evaluate(&res, in.Name, types.AlertLongCall,
		in.CallActive && in.CallElapsed >= e.cfg.CallThreshold,
		func() string { return fmt.Sprintf("%s on call for %s", in.Name, duration.FormatShort(in.CallElapsed)) })

	e.evaluate(&res, in.Name, types.AlertLongChat,
		in.ChatActive && in.ChatElapsed >= e.cfg.ChatThreshold,
		func() string { return fmt.Sprintf("%s in chat for %s", in.Name, duration.FormatShort(in.ChatElapsed)) })

	return res
}

func (e *Engine) evaluate(res *Result, name string, kind types.AlertKind, cond bool, message func() string) {
	flags, ok := e.flags[name]
	if !ok {
		flags = make(map[types.AlertKind]bool)
		e.flags[name] = flags
	}

	if !cond {
		flags[kind] = false
		return
	}

	res.Active = append(res.Active, kind)
	if flags[kind] {
		return
	}
	flags[kind] = true

	if !e.CanNotify() {
		res.Suppressed++
		metrics.Get().RecordAlert(kind, true)
		e.logger.Debug().Str("name", name).Str("kind", string(kind)).Msg("alert suppressed")
		return
	}

	res.Fired++
	metrics.Get().RecordAlert(kind, false)
	if e.notifier != nil {
		e.notifier.Signal(kind, name, message())
	}
}

// CanNotify reports whether signals are currently delivered
func (e *Engine) CanNotify() bool {
	if !e.cfg.Enabled || e.muted {
		return false
	}
	return !e.now().Before(e.snoozeUntil)
}

// SetMuted toggles the global mute flag
func (e *Engine) SetMuted(muted bool) {
	e.muted = muted
}

// Muted reports the mute flag
func (e *Engine) Muted() bool {
	return e.muted
}

// Snooze withholds signals for d from now; d <= 0 clears the snooze
func (e *Engine) Snooze(d time.Duration) {
	if d <= 0 {
		e.snoozeUntil = time.Time{}
		return
	}
	e.snoozeUntil = e.now().Add(d)
}

// SetSnoozeUntil restores a persisted snooze deadline
func (e *Engine) SetSnoozeUntil(t time.Time) {
	e.snoozeUntil = t
}

// SnoozeUntil returns the snooze deadline, zero when not snoozed
func (e *Engine) SnoozeUntil() time.Time {
	return e.snoozeUntil
}

// Raised reports whether the edge flag of kind is set for name
func (e *Engine) Raised(name string, kind types.AlertKind) bool {
	return e.flags[name][kind]
}

// RaisedFlags returns the set edge flags per entity, for persistence
func (e *Engine) RaisedFlags() map[string][]types.AlertKind {
	out := make(map[string][]types.AlertKind)
	for name, flags := range e.flags {
		for kind, raised := range flags {
			if raised {
				out[name] = append(out[name], kind)
			}
		}
		sort.Slice(out[name], func(i, j int) bool { return out[name][i] < out[name][j] })
	}
	return out
}

// RestoreRaised replaces the edge flags with persisted ones, so a condition
// that held before a restart does not signal again
func (e *Engine) RestoreRaised(raised map[string][]types.AlertKind) {
	e.flags = make(map[string]map[types.AlertKind]bool, len(raised))
	for name, kinds := range raised {
		flags := make(map[types.AlertKind]bool, len(kinds))
		for _, kind := range kinds {
			flags[kind] = true
		}
		e.flags[name] = flags
	}
}

// Reset clears edge flags, mute and snooze
func (e *Engine) Reset() {
	e.flags = make(map[string]map[types.AlertKind]bool)
	e.muted = false
	e.snoozeUntil = time.Time{}
}

func prohibLabel(sub types.ProhibSubtype) string {
	switch sub {
	case types.SubtypeNoAnswer:
		return "no answer"
	case types.SubtypeAfterCallWork:
		return "after call work"
	}
	return "prohibited status"
}
