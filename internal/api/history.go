package api

import (
	"net/http"

	"github.com/dennisdiepolder/queuemonitor/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// HistoryHandler provides REST endpoints for history and daily totals
type HistoryHandler struct {
	ctrl   Controller
	logger zerolog.Logger
}

// NewHistoryHandler creates a new HistoryHandler
func NewHistoryHandler(ctrl Controller, logger zerolog.Logger) *HistoryHandler {
	return &HistoryHandler{
		ctrl:   ctrl,
		logger: logger.With().Str("component", "history_handler").Logger(),
	}
}

// GetHistory returns the lifecycle log of one entity
// GET /api/entities/{name}/history?day=YYYY-MM-DD
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	day, err := dayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.ctrl.History(r.Context(), day, name)
	if err != nil {
		h.logger.Error().Err(err).Str("name", name).Msg("failed to get history")
		writeError(w, http.StatusInternalServerError, "failed to retrieve history")
		return
	}
	if entries == nil {
		entries = []types.HistoryEntry{}
	}

	writeJSON(w, http.StatusOK, entries)
}

// GetAggregates returns the per-entity totals of one day
// GET /api/aggregates?day=YYYY-MM-DD
func (h *HistoryHandler) GetAggregates(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	totals, err := h.ctrl.Aggregates(r.Context(), day)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get aggregates")
		writeError(w, http.StatusInternalServerError, "failed to retrieve aggregates")
		return
	}

	writeJSON(w, http.StatusOK, totals)
}

// GetDays lists every day with recorded data
// GET /api/days
func (h *HistoryHandler) GetDays(w http.ResponseWriter, r *http.Request) {
	days, err := h.ctrl.Days(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list days")
		writeError(w, http.StatusInternalServerError, "failed to list days")
		return
	}
	if days == nil {
		days = []string{}
	}
	writeJSON(w, http.StatusOK, days)
}
