package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/alerts"
	"github.com/dennisdiepolder/queuemonitor/internal/session"
	"github.com/dennisdiepolder/queuemonitor/internal/storage"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/rs/zerolog"
)

type fixedClock struct{ t time.Time }

func (c *fixedClock) Now() time.Time { return c.t }

func newTestState(store storage.Store, clock *fixedClock) *State {
	return New(store, Options{
		Session: session.DefaultConfig(),
		Alerts:  alerts.DefaultConfig(),
	}, nil, clock.Now, zerolog.Nop())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clock := &fixedClock{t: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}

	s := newTestState(store, clock)
	s.Slots.Assign("alice")
	s.Slots.Assign("bob")
	s.Sessions.UpdateStatus("alice", types.CategoryCall, types.SubtypeNone)
	s.Sessions.UpdateCall("alice", true, nil)
	s.Aggregates.AddElapsed("bob", types.BucketChat, 90*time.Second)
	s.SetFavorite("bob", true)
	s.Alerts.SetMuted(true)
	s.Prefs = Preferences{Search: "ali", SortCalls: SortAsc}

	if failed := s.Save(ctx); failed != 0 {
		t.Fatalf("Save failed %d keys", failed)
	}

	restored := newTestState(store, clock)
	restored.Load(ctx)

	if slot, ok := restored.Slots.Slot("bob"); !ok || slot != 2 {
		t.Errorf("bob slot = %d, %v; want 2", slot, ok)
	}
	if _, active := restored.Sessions.CallElapsed("alice"); !active {
		t.Error("alice call session was not restored")
	}
	if got := restored.Aggregates.Totals("2024-03-04", "bob").ChatMs; got != 90000 {
		t.Errorf("bob chat ms = %d, want 90000", got)
	}
	if !restored.Favorites["bob"] {
		t.Error("favorite not restored")
	}
	if !restored.Alerts.Muted() {
		t.Error("mute flag not restored")
	}
	if restored.Prefs.Search != "ali" || restored.Prefs.SortCalls != SortAsc {
		t.Errorf("prefs = %+v", restored.Prefs)
	}
}

func TestLoadEmptyStoreKeepsDefaults(t *testing.T) {
	s := newTestState(storage.NewMemoryStore(), &fixedClock{t: time.Now()})
	s.Load(context.Background())

	if s.Slots.Len() != 0 {
		t.Error("expected no entities")
	}
	if s.Prefs.SortCalls != SortDesc {
		t.Errorf("SortCalls = %q, want desc", s.Prefs.SortCalls)
	}
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	s := newTestState(store, &fixedClock{t: time.Now()})
	s.Slots.Assign("alice")
	s.SetFavorite("alice", true)
	s.Save(ctx)

	s.Reset(ctx)

	if s.Slots.Len() != 0 || len(s.Favorites) != 0 {
		t.Error("in-memory state survived reset")
	}
	if _, found, _ := store.Get(ctx, KeySlots); found {
		t.Error("stored slots survived reset")
	}
}

type failingStore struct{ storage.MemoryStore }

var errBroken = errors.New("disk on fire")

func (f *failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errBroken
}
func (f *failingStore) Set(context.Context, string, []byte) error { return errBroken }
func (f *failingStore) Clear(context.Context) error               { return errBroken }

func TestPersistenceErrorsAreNotFatal(t *testing.T) {
	ctx := context.Background()
	s := newTestState(&failingStore{}, &fixedClock{t: time.Now()})

	s.Load(ctx)
	s.Slots.Assign("alice")
	if failed := s.Save(ctx); failed != 6 {
		t.Errorf("Save failed %d keys, want 6", failed)
	}
	s.Reset(ctx)

	// state keeps working in memory
	if slot := s.Slots.Assign("bob"); slot != 1 {
		t.Errorf("slot after reset = %d, want 1", slot)
	}
}

func TestParseSortOrder(t *testing.T) {
	tests := map[string]SortOrder{"asc": SortAsc, "desc": SortDesc, "": SortNone, "sideways": SortNone}
	for in, want := range tests {
		if got := ParseSortOrder(in); got != want {
			t.Errorf("ParseSortOrder(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFavoriteNamesSorted(t *testing.T) {
	s := newTestState(storage.NewMemoryStore(), &fixedClock{t: time.Now()})
	s.SetFavorite("zoe", true)
	s.SetFavorite("adam", true)
	s.SetFavorite("", true)
	s.SetFavorite("zoe", false)

	names := s.FavoriteNames()
	if len(names) != 1 || names[0] != "adam" {
		t.Errorf("FavoriteNames = %v", names)
	}
}

func TestRaisedAlertsSurviveRestart(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	clock := &fixedClock{t: time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)}
	prohibited := alerts.Input{Name: "alice", Category: types.CategoryProhibited, Subtype: types.SubtypeNoAnswer}

	s := newTestState(store, clock)
	if res := s.Alerts.Check(prohibited); res.Fired != 1 {
		t.Fatalf("first check fired %d, want 1", res.Fired)
	}
	s.Save(ctx)

	restored := newTestState(store, clock)
	restored.Load(ctx)
	if !restored.Alerts.Raised("alice", types.AlertProhibited) {
		t.Fatal("edge flag was not restored")
	}
	if res := restored.Alerts.Check(prohibited); res.Fired != 0 {
		t.Errorf("alert fired again after restart: %+v", res)
	}
}
