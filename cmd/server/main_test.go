package main

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
	"github.com/dennisdiepolder/queuemonitor/internal/config"
	"github.com/dennisdiepolder/queuemonitor/internal/event"
	"github.com/dennisdiepolder/queuemonitor/internal/monitor"
	"github.com/dennisdiepolder/queuemonitor/internal/session"
	"github.com/dennisdiepolder/queuemonitor/internal/state"
	"github.com/dennisdiepolder/queuemonitor/internal/storage"
	"github.com/dennisdiepolder/queuemonitor/internal/websocket"
	"github.com/rs/zerolog"
)

func TestHealthHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	healthHandler(rec, req)

	// Check status code
	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	// Check content type
	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	// Parse response body
	var response map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	// Check response fields
	if response["status"] != "ok" {
		t.Errorf("expected status ok, got %s", response["status"])
	}
	if response["service"] != "queuemonitor" {
		t.Errorf("expected service queuemonitor, got %s", response["service"])
	}
}

func TestHealthHandlerMethods(t *testing.T) {
	tests := []struct {
		method         string
		expectedStatus int
	}{
		{http.MethodGet, http.StatusOK},
		{http.MethodPost, http.StatusOK},    // Handler doesn't check method
		{http.MethodPut, http.StatusOK},     // Handler doesn't check method
		{http.MethodDelete, http.StatusOK},  // Handler doesn't check method
		{http.MethodOptions, http.StatusOK}, // Handler doesn't check method
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			rec := httptest.NewRecorder()

			healthHandler(rec, req)

			if rec.Code != tt.expectedStatus {
				t.Errorf("expected status %d, got %d", tt.expectedStatus, rec.Code)
			}
		})
	}
}

func newTestRouter(t *testing.T, role string) http.Handler {
	t.Helper()
	logger := zerolog.New(&bytes.Buffer{})

	st := state.New(storage.NewMemoryStore(), state.Options{
		Session: session.DefaultConfig(),
		Alerts:  alerts.DefaultConfig(),
	}, nil, time.Now, logger)
	snapshots := cache.NewSnapshotCache()
	hub := websocket.NewHub(logger)
	mon := monitor.New(monitor.DefaultConfig(), st, snapshots, nil, hub, logger)

	withRole := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), auth.UserContextKey, &auth.Claims{Email: "t@example.com", Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	return newRouter(routerDeps{
		cfg:      &config.Config{AllowedOrigins: []string{"*"}},
		auth:     withRole,
		ctrl:     mon,
		hub:      hub,
		feeders:  websocket.NewFeederHub(snapshots, logger),
		receiver: event.NewReceiver(snapshots, logger),
		logger:   logger,
	})
}

func TestRouter(t *testing.T) {
	tests := []struct {
		name   string
		role   string
		method string
		path   string
		want   int
	}{
		{"health", auth.RoleViewer, http.MethodGet, "/health", http.StatusOK},
		{"metrics", auth.RoleViewer, http.MethodGet, "/metrics", http.StatusOK},
		{"board", auth.RoleViewer, http.MethodGet, "/api/board", http.StatusOK},
		{"snapshot stats", auth.RoleViewer, http.MethodGet, "/internal/snapshot/stats", http.StatusOK},
		{"admin forbidden", auth.RoleViewer, http.MethodPost, "/api/admin/reset", http.StatusForbidden},
		{"unknown route", auth.RoleViewer, http.MethodGet, "/api/nope", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, tt.role)
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
			}
		})
	}
}

func TestRouterMetricsCountsRoutes(t *testing.T) {
	r := newTestRouter(t, auth.RoleViewer)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "/health") {
		t.Errorf("metrics should count /health requests:\n%s", rec.Body.String())
	}
}
