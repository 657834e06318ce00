package api

import (
	"net/http"
	"time"

	"github.com/dennisdiepolder/queuemonitor/internal/board"
	"github.com/rs/zerolog"
)

// maxPresenceNames bounds one presence query
const maxPresenceNames = 200

// BoardHandler serves the published board and the presence check
type BoardHandler struct {
	ctrl   Controller
	now    func() time.Time
	logger zerolog.Logger
}

// NewBoardHandler creates a new BoardHandler
func NewBoardHandler(ctrl Controller, logger zerolog.Logger) *BoardHandler {
	return &BoardHandler{
		ctrl:   ctrl,
		now:    time.Now,
		logger: logger.With().Str("component", "board_handler").Logger(),
	}
}

// GetBoard returns the last published board
// GET /api/board
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	b := h.ctrl.Board()
	if b == nil {
		writeError(w, http.StatusServiceUnavailable, "board not ready")
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// Refresh requests a processing pass; concurrent requests coalesce
// POST /api/refresh
func (h *BoardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Trigger()
	writeJSON(w, http.StatusAccepted, map[string]string{"message": "refresh scheduled"})
}

type presenceRequest struct {
	Names []string `json:"names"`
}

// Presence reports, per queried name, whether a matching entity is connected
// POST /api/presence
func (h *BoardHandler) Presence(w http.ResponseWriter, r *http.Request) {
	var req presenceRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Names) == 0 {
		writeError(w, http.StatusBadRequest, "names is required")
		return
	}
	if len(req.Names) > maxPresenceNames {
		writeError(w, http.StatusBadRequest, "too many names")
		return
	}

	results := board.Presence(h.ctrl.Board(), req.Names, h.now())

	connected := 0
	for _, res := range results {
		if res.Connected {
			connected++
		}
	}
	h.logger.Debug().Int("queried", len(results)).Int("connected", connected).Msg("presence checked")

	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}
