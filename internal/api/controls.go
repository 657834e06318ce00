package api

import (
	"net/http"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/state"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// maxSnoozeMinutes bounds one snooze request
const maxSnoozeMinutes = 24 * 60

// ControlsHandler handles the operator controls: mute, snooze, favorites
// and view preferences
type ControlsHandler struct {
	ctrl   Controller
	logger zerolog.Logger
}

// NewControlsHandler creates a new ControlsHandler
func NewControlsHandler(ctrl Controller, logger zerolog.Logger) *ControlsHandler {
	return &ControlsHandler{
		ctrl:   ctrl,
		logger: logger.With().Str("component", "controls_handler").Logger(),
	}
}

type muteRequest struct {
	Muted bool `json:"muted"`
}

// Mute toggles the global alert mute
// POST /api/alerts/mute
func (h *ControlsHandler) Mute(w http.ResponseWriter, r *http.Request) {
	var req muteRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.ctrl.SetMuted(r.Context(), req.Muted); err != nil {
		h.logger.Error().Err(err).Msg("failed to set mute")
		writeError(w, http.StatusInternalServerError, "failed to set mute")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"muted": req.Muted})
}

type snoozeRequest struct {
	Minutes int `json:"minutes"`
}

// Snooze withholds alerts for the given minutes; 0 clears the snooze
// POST /api/alerts/snooze
func (h *ControlsHandler) Snooze(w http.ResponseWriter, r *http.Request) {
	var req snoozeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Minutes < 0 || req.Minutes > maxSnoozeMinutes {
		writeError(w, http.StatusBadRequest, "minutes must be between 0 and 1440")
		return
	}

	until, err := h.ctrl.Snooze(r.Context(), time.Duration(req.Minutes)*time.Minute)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to snooze alerts")
		writeError(w, http.StatusInternalServerError, "failed to snooze alerts")
		return
	}

	resp := map[string]any{"snoozed": !until.IsZero()}
	if !until.IsZero() {
		resp["until"] = until
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetFavorites lists the pinned entities
// GET /api/favorites
func (h *ControlsHandler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	names, err := h.ctrl.Favorites(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to list favorites")
		writeError(w, http.StatusInternalServerError, "failed to list favorites")
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// AddFavorite pins an entity
// PUT /api/favorites/{name}
func (h *ControlsHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, true)
}

// RemoveFavorite unpins an entity
// DELETE /api/favorites/{name}
func (h *ControlsHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, false)
}

func (h *ControlsHandler) setFavorite(w http.ResponseWriter, r *http.Request, on bool) {
	name := chi.URLParam(r, "name")
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := h.ctrl.SetFavorite(r.Context(), name, on); err != nil {
		h.logger.Error().Err(err).Str("name", name).Msg("failed to update favorite")
		writeError(w, http.StatusInternalServerError, "failed to update favorite")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"name": name, "favorite": on})
}

type preferencesPayload struct {
	Search     string `json:"search"`
	SortCalls  string `json:"sortCalls"`
	SortStatus string `json:"sortStatus"`
}

// GetPreferences returns the search filter and sort orders
// GET /api/preferences
func (h *ControlsHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.ctrl.Preferences(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to get preferences")
		writeError(w, http.StatusInternalServerError, "failed to get preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// PutPreferences replaces the search filter and sort orders. Unknown sort
// values mean "by slot".
// PUT /api/preferences
func (h *ControlsHandler) PutPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesPayload
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	prefs := state.Preferences{
		Search:     req.Search,
		SortCalls:  state.ParseSortOrder(req.SortCalls),
		SortStatus: state.ParseSortOrder(req.SortStatus),
	}
	if err := h.ctrl.SetPreferences(r.Context(), prefs); err != nil {
		h.logger.Error().Err(err).Msg("failed to set preferences")
		writeError(w, http.StatusInternalServerError, "failed to set preferences")
		return
	}

	writeJSON(w, http.StatusOK, prefs)
}
