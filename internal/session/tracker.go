// Package session tracks status, call and chat sessions per entity from
// repeated point-in-time observations. Call and chat sessions close only
// after a run of consecutive negative observations.
package session

import (
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// Config tunes the tracker
type Config struct {
	ClearTicks      int           // consecutive negative observations before a session closes
	ChatCapacity    int           // concurrent chat sessions per entity
	JitterTolerance time.Duration // see Reconcile
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		ClearTicks:      3,
		ChatCapacity:    2,
		JitterTolerance: DefaultJitterTolerance,
	}
}

// StatusSession is the single active status of an entity
type StatusSession struct {
	Key     types.Category      `json:"key"`
	Subtype types.ProhibSubtype `json:"subtype,omitempty"` // subtype captured on entering prohibited
	Start   time.Time           `json:"start"`
}

// Activity is one call or chat session slot
type Activity struct {
	Active    bool      `json:"active"`
	Start     time.Time `json:"start"`
	OffStreak int       `json:"offStreak"`
}

// Entity is all session state of one entity
type Entity struct {
	Status StatusSession `json:"status"`
	Call   Activity      `json:"call"`
	Chats  []Activity    `json:"chats"`
}

// Event describes a lifecycle transition. A non-empty Bucket means the
// duration must be committed to that aggregate bucket.
type Event struct {
	Type     string // one of the types.History* constants
	Name     string
	To       types.Category
	Subtype  types.ProhibSubtype
	Index    int
	Duration time.Duration
	Bucket   types.Bucket
}

// Tracker owns the session maps. It is driven by the processing loop only
// and is not safe for concurrent use.
type Tracker struct {
	cfg      Config
	entities map[string]*Entity
	now      func() time.Time
}

// NewTracker creates an empty tracker
func NewTracker(cfg Config, now func() time.Time) *Tracker {
	if cfg.ClearTicks <= 0 {
		cfg.ClearTicks = 3
	}
	if cfg.ChatCapacity <= 0 {
		cfg.ChatCapacity = 2
	}
	if cfg.JitterTolerance <= 0 {
		cfg.JitterTolerance = DefaultJitterTolerance
	}
	if now == nil {
		now = time.Now
	}
	return &Tracker{
		cfg:      cfg,
		entities: make(map[string]*Entity),
		now:      now,
	}
}

// Config returns the tracker configuration
func (t *Tracker) Config() Config {
	return t.cfg
}

func (t *Tracker) entity(name string) *Entity {
	e, ok := t.entities[name]
	if !ok {
		e = &Entity{Chats: make([]Activity, t.cfg.ChatCapacity)}
		t.entities[name] = e
	}
	return e
}

// UpdateStatus applies a classification result. A key change closes the
// previous status session and opens a new one with a fresh start.
func (t *Tracker) UpdateStatus(name string, key types.Category, subtype types.ProhibSubtype) []Event {
	e := t.entity(name)
	now := t.now()
	prev := e.Status.Key
	var events []Event

	if prev == types.CategoryProhibited && key != types.CategoryProhibited {
		dur := elapsed(e.Status.Start, now)
		ev := Event{Type: types.HistoryProhibOff, Name: name, Subtype: e.Status.Subtype, Duration: dur}
		switch e.Status.Subtype {
		case types.SubtypeNoAnswer:
			ev.Bucket = types.BucketNoAnswer
		case types.SubtypeAfterCallWork:
			ev.Bucket = types.BucketAfterCallWork
		}
		events = append(events, ev)
		e.Status.Subtype = types.SubtypeNone
	}

	if key == types.CategoryProhibited && prev != types.CategoryProhibited {
		e.Status.Subtype = subtype
		events = append(events, Event{Type: types.HistoryProhibOn, Name: name, Subtype: subtype})
	}

	if prev != key {
		e.Status.Key = key
		e.Status.Start = now
		events = append(events, Event{Type: types.HistoryStatus, Name: name, To: key})
	}

	return events
}

// ReconcileStatus aligns the status start with the elapsed time shown in the status cell
func (t *Tracker) ReconcileStatus(name string, reported time.Duration) {
	e := t.entity(name)
	e.Status.Start, _ = Reconcile(e.Status.Start, reported, t.now(), t.cfg.JitterTolerance)
}

// UpdateCall feeds one call observation. hint is the reported call elapsed
// time, nil when absent.
func (t *Tracker) UpdateCall(name string, inCall bool, hint *time.Duration) []Event {
	e := t.entity(name)
	if ev, closed := t.step(&e.Call, inCall, hint); closed {
		ev.Type = types.HistoryCallEnd
		ev.Name = name
		ev.Bucket = types.BucketCall
		return []Event{ev}
	}
	return nil
}

// UpdateChats feeds one chat observation. Indices below count are positive,
// indices at or above count step toward closing. hints[i] reconciles chat i.
func (t *Tracker) UpdateChats(name string, count int, hints []time.Duration) []Event {
	e := t.entity(name)
	if count < 0 {
		count = 0
	}
	if count > len(e.Chats) {
		count = len(e.Chats)
	}

	var events []Event
	for i := range e.Chats {
		var hint *time.Duration
		if i < count && i < len(hints) {
			h := hints[i]
			hint = &h
		}
		if ev, closed := t.step(&e.Chats[i], i < count, hint); closed {
			ev.Type = types.HistoryChatEnd
			ev.Name = name
			ev.Index = i
			ev.Bucket = types.BucketChat
			events = append(events, ev)
		}
	}
	return events
}

// step advances one activity slot and reports whether it just closed
func (t *Tracker) step(a *Activity, positive bool, hint *time.Duration) (Event, bool) {
	now := t.now()

	if positive {
		a.OffStreak = 0
		switch {
		case !a.Active:
			a.Active = true
			a.Start = now
			if hint != nil {
				a.Start, _ = Reconcile(time.Time{}, *hint, now, t.cfg.JitterTolerance)
			}
		case hint != nil:
			a.Start, _ = Reconcile(a.Start, *hint, now, t.cfg.JitterTolerance)
		}
		return Event{}, false
	}

	if !a.Active {
		a.OffStreak = 0
		return Event{}, false
	}

	a.OffStreak++
	if a.OffStreak < t.cfg.ClearTicks {
		return Event{}, false
	}

	ev := Event{Duration: elapsed(a.Start, now)}
	*a = Activity{}
	return ev, true
}

// Get returns a copy of the session state of name
func (t *Tracker) Get(name string) (Entity, bool) {
	e, ok := t.entities[name]
	if !ok {
		return Entity{}, false
	}
	return e.clone(), true
}

// StatusElapsed returns how long name has been in its current status
func (t *Tracker) StatusElapsed(name string) time.Duration {
	e, ok := t.entities[name]
	if !ok {
		return 0
	}
	return elapsed(e.Status.Start, t.now())
}

// CallElapsed returns the running call duration, false when no call is active
func (t *Tracker) CallElapsed(name string) (time.Duration, bool) {
	e, ok := t.entities[name]
	if !ok || !e.Call.Active {
		return 0, false
	}
	return elapsed(e.Call.Start, t.now()), true
}

// ChatElapsed returns the running duration of chat index i
func (t *Tracker) ChatElapsed(name string, i int) (time.Duration, bool) {
	e, ok := t.entities[name]
	if !ok || i < 0 || i >= len(e.Chats) || !e.Chats[i].Active {
		return 0, false
	}
	return elapsed(e.Chats[i].Start, t.now()), true
}

// Snapshot exports all session state for persistence
func (t *Tracker) Snapshot() map[string]Entity {
	out := make(map[string]Entity, len(t.entities))
	for name, e := range t.entities {
		out[name] = e.clone()
	}
	return out
}

// Restore replaces all session state. Chat arrays are resized to the configured capacity.
func (t *Tracker) Restore(m map[string]Entity) {
	t.entities = make(map[string]*Entity, len(m))
	for name, e := range m {
		c := e.clone()
		chats := make([]Activity, t.cfg.ChatCapacity)
		copy(chats, c.Chats)
		c.Chats = chats
		t.entities[name] = &c
	}
}

// Reset drops all session state
func (t *Tracker) Reset() {
	t.entities = make(map[string]*Entity)
}

func (e *Entity) clone() Entity {
	c := *e
	c.Chats = append([]Activity(nil), e.Chats...)
	return c
}

func elapsed(start, now time.Time) time.Duration {
	if start.IsZero() {
		return 0
	}
	if d := now.Sub(start); d > 0 {
		return d
	}
	return 0
}
