// Package monitor runs the single processing loop. One pass pulls the newest
// snapshot, classifies every entity, advances its sessions, commits closed
// sessions to the aggregates, evaluates alerts, persists the state and
// publishes a new board. Passes never overlap and operator controls are
// applied between passes, so nothing else mutates the state.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/aggregate"
	"github.com/dennisdiepolder/queuemonitor/internal/alerts"
	"github.com/dennisdiepolder/queuemonitor/internal/board"
	"github.com/dennisdiepolder/queuemonitor/internal/classifier"
	"github.com/dennisdiepolder/queuemonitor/internal/ingestion"
	"github.com/dennisdiepolder/queuemonitor/internal/metrics"
	"github.com/dennisdiepolder/queuemonitor/internal/session"
	"github.com/dennisdiepolder/queuemonitor/internal/state"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/rs/zerolog"
)

// Config holds the loop timings
type Config struct {
	Interval           time.Duration // pass interval while viewers are connected
	HiddenInterval     time.Duration // pass interval once nobody watched for HiddenBackoffAfter
	HiddenBackoffAfter time.Duration
	Debounce           time.Duration // delay of triggered and deferred passes
	ChatMultiplier     bool          // derive the chat count from the indicator when no durations are shown
	SlotMaxAge         time.Duration
}

// DefaultConfig returns the production timings
func DefaultConfig() Config {
	return Config{
		Interval:           1500 * time.Millisecond,
		HiddenInterval:     4 * time.Second,
		HiddenBackoffAfter: time.Minute,
		Debounce:           500 * time.Millisecond,
		SlotMaxAge:         7 * 24 * time.Hour,
	}
}

// Hub is the viewer fan-out. ClientCount drives the adaptive interval.
type Hub interface {
	Broadcast(message []byte)
	ClientCount() int
}

// Classifier maps an observation to its category
type Classifier interface {
	Classify(obs types.Observation) classifier.Result
}

// Exporter archives the report of a finished day and returns its location
type Exporter interface {
	Export(ctx context.Context, report types.DailyReport) (string, error)
}

const maxChatMultiplier = 5

type control struct {
	fn      func(ctx context.Context, st *state.State) error
	mutates bool
	done    chan error
}

// entityStep advances one kind of session for an entity and returns the
// sessions it closed. The events of a step are committed as soon as it
// returns.
type entityStep func(m *Monitor, obs types.Observation, res classifier.Result) []session.Event

// freshSteps run on a batch the loop has not processed yet. A re-read of
// the same batch only runs staleSteps: it is not a new observation, so it
// must not count toward an off-streak or move a reconciled start.
var (
	freshSteps = []entityStep{statusStep, reconcileStatusStep, callStep, chatStep}
	staleSteps = []entityStep{statusStep}
)

// Monitor owns the processing loop
type Monitor struct {
	cfg        Config
	state      *state.State
	source     ingestion.Source
	classifier Classifier
	builder    *board.Builder
	hub        Hub
	exporter   Exporter

	trigger  chan struct{}
	controls chan control
	board    atomic.Pointer[types.Board]
	steps    []entityStep

	lastDay     string
	lastVersion uint64
	hiddenSince time.Time
	logger      zerolog.Logger
}

// New creates a monitor. hub may be nil.
func New(cfg Config, st *state.State, source ingestion.Source, cls Classifier, hub Hub, logger zerolog.Logger) *Monitor {
	if cls == nil {
		cls = classifier.Default()
	}
	m := &Monitor{
		cfg:        cfg,
		state:      st,
		source:     source,
		classifier: cls,
		builder:    board.NewBuilder(st, st.Now),
		hub:        hub,
		trigger:    make(chan struct{}, 1),
		controls:   make(chan control),
		steps:      freshSteps,
		logger:     logger.With().Str("component", "monitor").Logger(),
	}
	empty := m.builder.Build(nil)
	m.board.Store(&empty)
	return m
}

// SetExporter enables archiving of finished days. Call before Run.
func (m *Monitor) SetExporter(e Exporter) {
	m.exporter = e
}

// Board returns the last published board. Safe from any goroutine.
func (m *Monitor) Board() *types.Board {
	return m.board.Load()
}

// Trigger requests a pass after the debounce delay. Requests coalesce into
// at most one pending pass.
func (m *Monitor) Trigger() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Run loads the state and processes passes until ctx is cancelled
func (m *Monitor) Run(ctx context.Context) {
	m.startup(ctx)

	timer := time.NewTimer(0)
	defer timer.Stop()
	debounce := time.NewTimer(m.cfg.Debounce)
	debounce.Stop()
	defer debounce.Stop()
	pending := false

	m.logger.Info().
		Dur("interval", m.cfg.Interval).
		Dur("hidden_interval", m.cfg.HiddenInterval).
		Msg("monitor started")

	for {
		select {
		case <-ctx.Done():
			m.state.Save(context.Background())
			m.logger.Info().Msg("monitor stopped")
			return

		case <-timer.C:
			m.pass(ctx)
			timer.Reset(m.nextInterval())

		case <-m.trigger:
			if !pending {
				pending = true
				debounce.Reset(m.cfg.Debounce)
			}

		case <-debounce.C:
			pending = false
			m.pass(ctx)

		case c := <-m.controls:
			c.done <- m.apply(ctx, c.fn)
			if c.mutates {
				m.Trigger()
			}
		}
	}
}

func (m *Monitor) startup(ctx context.Context) {
	m.state.Load(ctx)
	if removed := m.state.Slots.Cleanup(m.cfg.SlotMaxAge); removed > 0 {
		m.logger.Info().Int("removed", removed).Msg("stale slots cleaned up")
	}
	m.lastDay = aggregate.DayKey(m.state.Now())
}

// apply runs a control on the loop, converting a panic into an error
func (m *Monitor) apply(ctx context.Context, fn func(context.Context, *state.State) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("control panicked: %v", r)
		}
	}()
	return fn(ctx, m.state)
}

// nextInterval lengthens the pass interval once no viewer has been
// connected for HiddenBackoffAfter
func (m *Monitor) nextInterval() time.Duration {
	if m.hub == nil || m.hub.ClientCount() > 0 {
		m.hiddenSince = time.Time{}
		return m.cfg.Interval
	}
	now := m.state.Now()
	if m.hiddenSince.IsZero() {
		m.hiddenSince = now
	}
	if now.Sub(m.hiddenSince) >= m.cfg.HiddenBackoffAfter {
		return m.cfg.HiddenInterval
	}
	return m.cfg.Interval
}

// pass runs one full processing pass to completion
func (m *Monitor) pass(ctx context.Context) {
	met := metrics.Get()

	if m.source.Busy() {
		met.RecordPassDeferred()
		m.logger.Debug().Msg("source busy, deferring pass")
		m.Trigger()
		return
	}

	start := time.Now()
	now := m.state.Now()
	m.checkDay(ctx, now)

	observations, version, err := m.source.PollOnce(ctx)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to poll snapshot")
		return
	}
	if version == 0 {
		m.logger.Debug().Msg("no snapshot yet")
		return
	}
	fresh := version != m.lastVersion
	m.lastVersion = version
	if !fresh {
		m.logger.Debug().Uint64("version", version).Msg("snapshot unchanged, sessions held")
	}

	search := m.state.Prefs.Search
	visible := make([]types.Observation, 0, len(observations))
	for _, obs := range observations {
		if board.MatchesSearch(obs.Name, search) {
			visible = append(visible, obs)
			m.state.Slots.Assign(obs.Name)
		}
	}

	rows := make([]board.Row, 0, len(visible))
	for _, obs := range visible {
		row, err := m.processEntity(obs, fresh)
		if err != nil {
			met.RecordEntityError()
			m.logger.Error().Err(err).Str("name", obs.Name).Msg("failed to process entity")
			continue
		}
		rows = append(rows, row)
	}

	counts := make(map[types.Category]int)
	for i := range rows {
		rows[i].Alerts = m.checkAlerts(rows[i])
		counts[rows[i].Category]++
	}
	met.UpdateCategoryStats(counts)

	m.state.Save(ctx)

	b, err := m.render(rows)
	if err != nil {
		met.RecordRenderError()
		m.logger.Error().Err(err).Msg("failed to render board")
		b = board.ErrorBoard(now, err)
	}
	m.publish(b)

	met.RecordPass(time.Since(start), len(rows))
	m.logger.Debug().
		Int("entities", len(rows)).
		Dur("took", time.Since(start)).
		Msg("pass completed")
}

// processEntity advances the sessions of one entity. A panic is isolated
// to this entity; sessions closed by earlier steps stay committed.
func (m *Monitor) processEntity(obs types.Observation, fresh bool) (row board.Row, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	res := m.classifier.Classify(obs)

	steps := m.steps
	if !fresh {
		steps = staleSteps
	}
	for _, step := range steps {
		m.commit(step(m, obs, res))
	}

	return board.Row{
		Name:     obs.Name,
		Category: res.Category,
		Subtype:  res.Subtype,
		OnQueue:  obs.OnQueue,
	}, nil
}

func statusStep(m *Monitor, obs types.Observation, res classifier.Result) []session.Event {
	return m.state.Sessions.UpdateStatus(obs.Name, res.Category, res.Subtype)
}

func reconcileStatusStep(m *Monitor, obs types.Observation, _ classifier.Result) []session.Event {
	if hint := seconds(obs.StatusElapsedSec); hint != nil {
		m.state.Sessions.ReconcileStatus(obs.Name, *hint)
	}
	return nil
}

func callStep(m *Monitor, obs types.Observation, res classifier.Result) []session.Event {
	inCall, hint := callObservation(res.Category, obs)
	return m.state.Sessions.UpdateCall(obs.Name, inCall, hint)
}

func chatStep(m *Monitor, obs types.Observation, res classifier.Result) []session.Event {
	count, hints := m.chatObservation(res.Category, obs)
	return m.state.Sessions.UpdateChats(obs.Name, count, hints)
}

// callObservation applies the call open rule: a call category, or a task
// carrying a running call timer
func callObservation(cat types.Category, obs types.Observation) (bool, *time.Duration) {
	if cat == types.CategoryTask && obs.TaskCallElapsedSec != nil && *obs.TaskCallElapsedSec > 0 {
		return true, seconds(obs.TaskCallElapsedSec)
	}
	if cat == types.CategoryCall {
		return true, seconds(obs.CallElapsedSec)
	}
	return false, nil
}

// chatObservation decides how many chat sessions are open this pass.
// Distinct reported durations win over the indicator heuristic.
func (m *Monitor) chatObservation(cat types.Category, obs types.Observation) (int, []time.Duration) {
	if cat != types.CategoryChat {
		return 0, nil
	}

	hints := distinctHints(obs.ChatElapsedSec)
	if len(hints) > 0 {
		return len(hints), hints
	}

	if m.cfg.ChatMultiplier {
		n := obs.Channels.ChatCount
		if n < 1 {
			n = 1
		}
		if n > maxChatMultiplier {
			n = maxChatMultiplier
		}
		return n, nil
	}
	return 1, nil
}

// commit writes closed sessions to the aggregates and the history log
func (m *Monitor) commit(events []session.Event) {
	st := m.state
	for _, ev := range events {
		entry := types.HistoryEntry{Type: ev.Type}
		switch ev.Type {
		case types.HistoryStatus:
			entry.To = ev.To
		case types.HistoryProhibOn:
			entry.Subtype = ev.Subtype
		case types.HistoryProhibOff:
			entry.Subtype = ev.Subtype
			entry.DurationMs = ev.Duration.Milliseconds()
		case types.HistoryCallEnd:
			entry.DurationMs = ev.Duration.Milliseconds()
			st.Slots.CompleteCall(ev.Name)
		case types.HistoryChatEnd:
			entry.DurationMs = ev.Duration.Milliseconds()
		}
		if ev.Bucket != "" {
			st.Aggregates.AddElapsed(ev.Name, ev.Bucket, ev.Duration)
		}
		st.Aggregates.AddHistory(ev.Name, entry)
	}
}

func (m *Monitor) checkAlerts(row board.Row) []types.AlertKind {
	in := alerts.Input{
		Name:     row.Name,
		Category: row.Category,
		Subtype:  row.Subtype,
	}
	in.CallElapsed, in.CallActive = m.state.Sessions.CallElapsed(row.Name)
	in.ChatElapsed, in.ChatActive = m.state.Sessions.ChatElapsed(row.Name, 0)
	return m.state.Alerts.Check(in).Active
}

// checkDay runs the day rollover once per day change
func (m *Monitor) checkDay(ctx context.Context, now time.Time) {
	day := aggregate.DayKey(now)
	if m.lastDay == "" {
		m.lastDay = day
		return
	}
	if day == m.lastDay {
		return
	}

	prev := m.lastDay
	m.lastDay = day
	removed := m.state.Slots.Cleanup(m.cfg.SlotMaxAge)
	m.logger.Info().
		Str("previous_day", prev).
		Str("day", day).
		Int("slots_removed", removed).
		Msg("day changed")

	if m.exporter == nil {
		return
	}
	report := m.state.Aggregates.Report(prev)
	go func() {
		exportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
		defer cancel()
		location, err := m.exporter.Export(exportCtx, report)
		if err != nil {
			m.logger.Error().Err(err).Str("day", prev).Msg("failed to export day report")
			return
		}
		m.logger.Info().Str("day", prev).Str("location", location).Msg("day report exported")
	}()
}

// render builds the board; a panic becomes an error so the committed state
// stays intact
func (m *Monitor) render(rows []board.Row) (b types.Board, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render: %v", r)
		}
	}()
	return m.builder.Build(rows), nil
}

func (m *Monitor) publish(b types.Board) {
	m.board.Store(&b)
	if m.hub == nil {
		return
	}
	data, err := json.Marshal(b)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to marshal board")
		return
	}
	m.hub.Broadcast(data)
}

func seconds(sec *int) *time.Duration {
	if sec == nil || *sec < 0 {
		return nil
	}
	d := time.Duration(*sec) * time.Second
	return &d
}

func distinctHints(secs []int) []time.Duration {
	seen := make(map[int]struct{}, len(secs))
	out := make([]time.Duration, 0, len(secs))
	for _, s := range secs {
		if s < 0 {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, time.Duration(s)*time.Second)
	}
	return out
}
