// Package api exposes the board and the operator controls over HTTP. Every
// mutation is queued onto the processing loop through the Controller.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/aggregate"
	"github.com/dennisdiepolder/queuemonitor/internal/state"
	"github.com/dennisdiepolder/queuemonitor/internal/types"
)

// maxBodyBytes bounds control request bodies
const maxBodyBytes = 64 << 10

// Controller is the operator surface of the processing loop
type Controller interface {
	Board() *types.Board
	Trigger()
	SetMuted(ctx context.Context, muted bool) error
	Snooze(ctx context.Context, d time.Duration) (time.Time, error)
	SetFavorite(ctx context.Context, name string, on bool) error
	Favorites(ctx context.Context) ([]string, error)
	SetPreferences(ctx context.Context, prefs state.Preferences) error
	Preferences(ctx context.Context) (state.Preferences, error)
	Reset(ctx context.Context) error
	History(ctx context.Context, day, name string) ([]types.HistoryEntry, error)
	Aggregates(ctx context.Context, day string) (map[string]types.DayTotals, error)
	Days(ctx context.Context) ([]string, error)
	ExportDay(ctx context.Context, day string) (string, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// dayParam reads ?day=YYYY-MM-DD; empty means today
func dayParam(r *http.Request) (string, error) {
	day := r.URL.Query().Get("day")
	if day == "" {
		return "", nil
	}
	if _, err := time.Parse(aggregate.DateLayout, day); err != nil {
		return "", fmt.Errorf("day must be YYYY-MM-DD")
	}
	return day, nil
}
