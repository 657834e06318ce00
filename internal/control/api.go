// Package control exposes the feed simulator's HTTP control interface
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/feedsim"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

// SimulationConfig is the tunable part of a run
type SimulationConfig struct {
	TotalAgents int     `json:"totalAgents"`
	IntervalMs  int     `json:"intervalMs"`
	Transport   string  `json:"transport"` // http or ws
	BusyRate    float64 `json:"busyRate"`
}

// SimulationStatus reports whether a run is in progress
type SimulationStatus struct {
	Running      bool       `json:"running"`
	TotalAgents  int        `json:"totalAgents"`
	ActiveAgents int        `json:"activeAgents"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
}

// API provides HTTP control interface for the simulation
type API struct {
	config    SimulationConfig
	status    SimulationStatus
	mu        sync.RWMutex
	logger    zerolog.Logger
	startFunc func(active int, cfg SimulationConfig) error
	stopFunc  func() error
	scaleFunc func(int) error
	statsFunc func() feedsim.Stats
}

// NewAPI creates a new control API
func NewAPI(cfg SimulationConfig, logger zerolog.Logger) *API {
	return &API{
		config: cfg,
		status: SimulationStatus{TotalAgents: cfg.TotalAgents},
		logger: logger.With().Str("component", "control").Logger(),
	}
}

// SetHandlers sets the control functions
func (api *API) SetHandlers(start func(int, SimulationConfig) error, stop func() error, scale func(int) error, stats func() feedsim.Stats) {
	api.startFunc = start
	api.stopFunc = stop
	api.scaleFunc = scale
	api.statsFunc = stats
}

// SetupRoutes configures HTTP routes
func (api *API) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", api.healthHandler).Methods("GET")
	router.HandleFunc("/status", api.statusHandler).Methods("GET")
	router.HandleFunc("/start", api.startHandler).Methods("POST")
	router.HandleFunc("/stop", api.stopHandler).Methods("POST")
	router.HandleFunc("/scale", api.scaleHandler).Methods("POST")
	router.HandleFunc("/config", api.configHandler).Methods("GET", "PUT")
	router.HandleFunc("/stats", api.statsHandler).Methods("GET")
	router.HandleFunc("/metrics", api.metricsHandler).Methods("GET")
}

// healthHandler returns service health
func (api *API) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// statusHandler returns current simulation status
func (api *API) statusHandler(w http.ResponseWriter, r *http.Request) {
	api.mu.RLock()
	status := api.status
	api.mu.RUnlock()

	writeJSON(w, http.StatusOK, status)
}

// startHandler starts the simulation
func (api *API) startHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActiveAgents int `json:"activeAgents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	api.mu.Lock()
	if api.status.Running {
		api.mu.Unlock()
		http.Error(w, "simulation already running", http.StatusConflict)
		return
	}
	cfg := api.config
	api.mu.Unlock()

	if req.ActiveAgents <= 0 || req.ActiveAgents > cfg.TotalAgents {
		req.ActiveAgents = cfg.TotalAgents
	}

	if err := api.startFunc(req.ActiveAgents, cfg); err != nil {
		api.logger.Error().Err(err).Msg("failed to start simulation")
		http.Error(w, "failed to start simulation", http.StatusInternalServerError)
		return
	}

	now := time.Now()
	api.mu.Lock()
	api.status.Running = true
	api.status.ActiveAgents = req.ActiveAgents
	api.status.StartedAt = &now
	api.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "simulation started",
		"active_agents": req.ActiveAgents,
	})
}

// stopHandler stops the simulation
func (api *API) stopHandler(w http.ResponseWriter, r *http.Request) {
	api.mu.Lock()
	if !api.status.Running {
		api.mu.Unlock()
		http.Error(w, "simulation not running", http.StatusConflict)
		return
	}
	api.mu.Unlock()

	if err := api.stopFunc(); err != nil {
		api.logger.Error().Err(err).Msg("failed to stop simulation")
		http.Error(w, "failed to stop simulation", http.StatusInternalServerError)
		return
	}

	api.mu.Lock()
	api.status.Running = false
	api.status.ActiveAgents = 0
	api.status.StartedAt = nil
	api.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "simulation stopped"})
}

// configHandler gets or updates configuration
func (api *API) configHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		api.mu.RLock()
		cfg := api.config
		api.mu.RUnlock()

		writeJSON(w, http.StatusOK, cfg)
		return
	}

	var next SimulationConfig
	if err := json.NewDecoder(r.Body).Decode(&next); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := validate(next); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	api.mu.Lock()
	if api.status.Running {
		api.mu.Unlock()
		http.Error(w, "cannot change config while simulation is running", http.StatusConflict)
		return
	}
	// the agent roster is generated once at startup
	next.TotalAgents = api.config.TotalAgents
	api.config = next
	api.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"message": "configuration updated"})
}

// scaleHandler changes the number of connected agents of a running simulation
func (api *API) scaleHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ActiveAgents int `json:"activeAgents"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	api.mu.RLock()
	total := api.config.TotalAgents
	api.mu.RUnlock()

	if req.ActiveAgents < 0 || req.ActiveAgents > total {
		http.Error(w, "activeAgents must be between 0 and total agents", http.StatusBadRequest)
		return
	}

	if err := api.scaleFunc(req.ActiveAgents); err != nil {
		api.logger.Error().Err(err).Msg("failed to scale simulation")
		http.Error(w, "failed to scale simulation", http.StatusInternalServerError)
		return
	}

	api.mu.Lock()
	api.status.ActiveAgents = req.ActiveAgents
	api.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":       "simulation scaled",
		"active_agents": req.ActiveAgents,
	})
}

// statsHandler returns simulator counters
func (api *API) statsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.statsFunc())
}

// metricsHandler returns Prometheus-compatible metrics
func (api *API) metricsHandler(w http.ResponseWriter, r *http.Request) {
	stats := api.statsFunc()

	api.mu.RLock()
	running := api.status.Running
	api.mu.RUnlock()

	values := map[string]int64{
		"feedsim_agents_total":        int64(stats.TotalAgents),
		"feedsim_agents_active":       int64(stats.ActiveAgents),
		"feedsim_batches_sent_total":  stats.BatchesSent,
		"feedsim_send_failures_total": stats.SendFailures,
		"feedsim_running":             0,
	}
	if running {
		values["feedsim_running"] = 1
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	for _, name := range names {
		fmt.Fprintf(w, "%s %d\n", name, values[name])
	}
}

// Start starts the HTTP server
func (api *API) Start(ctx context.Context, addr string) error {
	router := mux.NewRouter()
	api.SetupRoutes(router)

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		api.logger.Info().Msg("shutting down control API")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	api.logger.Info().Str("addr", addr).Msg("control API started")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// GetConfig returns current config
func (api *API) GetConfig() SimulationConfig {
	api.mu.RLock()
	defer api.mu.RUnlock()
	return api.config
}

func validate(cfg SimulationConfig) error {
	if cfg.IntervalMs < 100 {
		return fmt.Errorf("intervalMs must be at least 100")
	}
	if cfg.Transport != "http" && cfg.Transport != "ws" {
		return fmt.Errorf("transport must be http or ws")
	}
	if cfg.BusyRate < 0 || cfg.BusyRate > 1 {
		return fmt.Errorf("busyRate must be between 0 and 1")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
