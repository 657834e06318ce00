package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/alerts"
	"github.com/dennisdiepolder/queuemonitor/internal/auth"
	"github.com/dennisdiepolder/queuemonitor/internal/cache"
	"github.com/dennisdiepolder/queuemonitor/internal/monitor"
	"github.com/dennisdiepolder/queuemonitor/internal/session"
	"github.com/dennisdiepolder/queuemonitor/internal/state"
	"github.com/dennisdiepolder/queuemonitor/internal/storage"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type memExporter struct{ days []string }

func (e *memExporter) Export(ctx context.Context, report types.DailyReport) (string, error) {
	e.days = append(e.days, report.Date)
	return "mem://" + report.Date, nil
}

type testEnv struct {
	router http.Handler
	mon    *monitor.Monitor
	cache  *cache.SnapshotCache
	export *memExporter
}

func newTestEnv(t *testing.T, role string) *testEnv {
	t.Helper()
	logger := zerolog.New(&bytes.Buffer{})

	st := state.New(storage.NewMemoryStore(), state.Options{
		Session: session.DefaultConfig(),
		Alerts:  alerts.DefaultConfig(),
	}, nil, time.Now, logger)
	c := cache.NewSnapshotCache()

	cfg := monitor.DefaultConfig()
	cfg.Interval = 10 * time.Millisecond
	cfg.Debounce = time.Millisecond
	mon := monitor.New(cfg, st, c, nil, nil, logger)
	exp := &memExporter{}
	mon.SetExporter(exp)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mon.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	boards := NewBoardHandler(mon, logger)
	history := NewHistoryHandler(mon, logger)
	controls := NewControlsHandler(mon, logger)
	admin := NewAdminHandler(mon, logger)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := context.WithValue(req.Context(), auth.UserContextKey, &auth.Claims{Email: "t@example.com", Role: role})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Get("/api/board", boards.GetBoard)
	r.Post("/api/refresh", boards.Refresh)
	r.Post("/api/presence", boards.Presence)
	r.Get("/api/entities/{name}/history", history.GetHistory)
	r.Get("/api/aggregates", history.GetAggregates)
	r.Get("/api/days", history.GetDays)
	r.Post("/api/alerts/mute", controls.Mute)
	r.Post("/api/alerts/snooze", controls.Snooze)
	r.Get("/api/favorites", controls.GetFavorites)
	r.Put("/api/favorites/{name}", controls.AddFavorite)
	r.Delete("/api/favorites/{name}", controls.RemoveFavorite)
	r.Get("/api/preferences", controls.GetPreferences)
	r.Put("/api/preferences", controls.PutPreferences)
	r.Group(func(r chi.Router) {
		r.Use(RequireAdmin)
		r.Post("/api/admin/reset", admin.Reset)
		r.Post("/api/admin/export", admin.Export)
	})

	return &testEnv{router: r, mon: mon, cache: c, export: exp}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) waitFor(t *testing.T, cond func(b *types.Board) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if b := e.mon.Board(); b != nil && cond(b) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("board never reached the expected state")
}

func connected(n int) func(b *types.Board) bool {
	return func(b *types.Board) bool { return b.KPIs.Connected == n }
}

func TestGetBoard(t *testing.T) {
	env := newTestEnv(t, auth.RoleViewer)
	env.cache.Put(types.SnapshotBatch{Observations: []types.Observation{
		{Name: "alice", Label: "En file d'attente", OnQueue: true},
	}})
	env.waitFor(t, connected(1))

	rec := env.do(t, http.MethodGet, "/api/board", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var b types.Board
	if err := json.Unmarshal(rec.Body.Bytes(), &b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if b.Type != "board" || b.KPIs.OnQueue != 1 {
		t.Errorf("board = %+v", b.KPIs)
	}
}

func TestPresence(t *testing.T) {
	env := newTestEnv(t, auth.RoleViewer)
	env.cache.Put(types.SnapshotBatch{Observations: []types.Observation{
		{Name: "Élodie Martin", Label: "Pause"},
	}})
	env.waitFor(t, connected(1))

	tests := []struct {
		name     string
		body     string
		wantCode int
		want     []bool
	}{
		{"match ignores accents", `{"names":["elodie","bob"]}`, http.StatusOK, []bool{true, false}},
		{"empty list", `{"names":[]}`, http.StatusBadRequest, nil},
		{"bad json", `{`, http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/presence", tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.want == nil {
				return
			}
			var resp struct {
				Results []types.PresenceResult `json:"results"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			for i, want := range tt.want {
				if resp.Results[i].Connected != want {
					t.Errorf("result %d connected = %v, want %v", i, resp.Results[i].Connected, want)
				}
			}
			if resp.Results[0].Category != types.CategoryBreak {
				t.Errorf("category = %s, want break", resp.Results[0].Category)
			}
		})
	}
}

func TestMuteAndSnooze(t *testing.T) {
	env := newTestEnv(t, auth.RoleSupervisor)

	if rec := env.do(t, http.MethodPost, "/api/alerts/mute", `{"muted":true}`); rec.Code != http.StatusOK {
		t.Fatalf("mute status = %d", rec.Code)
	}
	env.waitFor(t, func(b *types.Board) bool { return b.Muted })

	rec := env.do(t, http.MethodPost, "/api/alerts/snooze", `{"minutes":15}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("snooze status = %d", rec.Code)
	}
	var resp struct {
		Snoozed bool      `json:"snoozed"`
		Until   time.Time `json:"until"`
	}
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if !resp.Snoozed || time.Until(resp.Until) < 14*time.Minute {
		t.Errorf("snooze response = %+v", resp)
	}

	if rec := env.do(t, http.MethodPost, "/api/alerts/snooze", `{"minutes":-1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("negative snooze status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodPost, "/api/alerts/snooze", `{"minutes":0}`)
	json.Unmarshal(rec.Body.Bytes(), &resp)
	if resp.Snoozed {
		t.Error("minutes 0 should clear the snooze")
	}
}

func TestFavorites(t *testing.T) {
	env := newTestEnv(t, auth.RoleViewer)

	if rec := env.do(t, http.MethodPut, "/api/favorites/alice", ""); rec.Code != http.StatusOK {
		t.Fatalf("add status = %d", rec.Code)
	}
	env.do(t, http.MethodPut, "/api/favorites/bob", "")
	env.do(t, http.MethodDelete, "/api/favorites/alice", "")

	rec := env.do(t, http.MethodGet, "/api/favorites", "")
	var names []string
	json.Unmarshal(rec.Body.Bytes(), &names)
	if len(names) != 1 || names[0] != "bob" {
		t.Errorf("favorites = %v, want [bob]", names)
	}
}

func TestPreferences(t *testing.T) {
	env := newTestEnv(t, auth.RoleViewer)

	rec := env.do(t, http.MethodPut, "/api/preferences", `{"search":"ali","sortCalls":"asc","sortStatus":"sideways"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/preferences", "")
	var prefs state.Preferences
	json.Unmarshal(rec.Body.Bytes(), &prefs)
	if prefs.Search != "ali" || prefs.SortCalls != state.SortAsc || prefs.SortStatus != state.SortNone {
		t.Errorf("preferences = %+v", prefs)
	}
	env.waitFor(t, func(b *types.Board) bool { return b.Search == "ali" })
}

func TestHistoryAndAggregates(t *testing.T) {
	env := newTestEnv(t, auth.RoleViewer)
	env.cache.Put(types.SnapshotBatch{Observations: []types.Observation{
		{Name: "alice", Label: "Pause"},
	}})
	env.waitFor(t, connected(1))

	rec := env.do(t, http.MethodGet, "/api/entities/alice/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var entries []types.HistoryEntry
	json.Unmarshal(rec.Body.Bytes(), &entries)
	if len(entries) == 0 || entries[0].Type != types.HistoryStatus || entries[0].To != types.CategoryBreak {
		t.Errorf("history = %+v", entries)
	}

	if rec := env.do(t, http.MethodGet, "/api/entities/alice/history?day=yesterday", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("bad day status = %d", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/entities/nobody/history?day=2024-01-01", ""); rec.Body.String() != "[]\n" {
		t.Errorf("unknown entity body = %q", rec.Body.String())
	}
	if rec := env.do(t, http.MethodGet, "/api/aggregates", ""); rec.Code != http.StatusOK {
		t.Errorf("aggregates status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/days", "")
	var days []string
	json.Unmarshal(rec.Body.Bytes(), &days)
	if len(days) != 1 {
		t.Errorf("days = %v", days)
	}
}

func TestAdminRequiresRole(t *testing.T) {
	env := newTestEnv(t, auth.RoleSupervisor)

	if rec := env.do(t, http.MethodPost, "/api/admin/reset", ""); rec.Code != http.StatusForbidden {
		t.Errorf("reset as supervisor status = %d, want 403", rec.Code)
	}
}

func TestAdminResetAndExport(t *testing.T) {
	env := newTestEnv(t, auth.RoleAdmin)
	env.cache.Put(types.SnapshotBatch{Observations: []types.Observation{{Name: "alice", Label: "Pause"}}})
	env.waitFor(t, connected(1))
	env.do(t, http.MethodPut, "/api/favorites/alice", "")

	rec := env.do(t, http.MethodPost, "/api/admin/export?day=2024-06-03", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	if len(env.export.days) != 1 || env.export.days[0] != "2024-06-03" {
		t.Errorf("exported days = %v", env.export.days)
	}

	if rec := env.do(t, http.MethodPost, "/api/admin/reset", ""); rec.Code != http.StatusOK {
		t.Fatalf("reset status = %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/favorites", "")
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("favorites after reset = %s", rec.Body.String())
	}
}

func TestRefresh(t *testing.T) {
	env := newTestEnv(t, auth.RoleViewer)
	if rec := env.do(t, http.MethodPost, "/api/refresh", ""); rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}
