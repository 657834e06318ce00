package api

import (
	"errors"
	"net/http"

	"github.com/dennisdiepolder/queuemonitor/internal/auth"
	"github.com/dennisdiepolder/queuemonitor/internal/monitor"
	"github.com/rs/zerolog"
)

// AdminHandler handles the destructive and archival operations
type AdminHandler struct {
	ctrl   Controller
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(ctrl Controller, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		ctrl:   ctrl,
		logger: logger.With().Str("component", "admin_handler").Logger(),
	}
}

// RequireAdmin rejects callers without the admin role
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.GetUserFromContext(r.Context())
		if !ok || !auth.HasRole(claims, auth.RoleAdmin) {
			writeError(w, http.StatusForbidden, "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Reset clears storage and every in-memory map
// POST /api/admin/reset
func (h *AdminHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Reset(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("failed to reset state")
		writeError(w, http.StatusInternalServerError, "failed to reset state")
		return
	}

	user := "unknown"
	if claims, ok := auth.GetUserFromContext(r.Context()); ok {
		user = claims.Email
	}
	h.logger.Warn().Str("user", user).Msg("state reset by operator")

	writeJSON(w, http.StatusOK, map[string]string{"message": "state reset"})
}

// Export archives the report of one day
// POST /api/admin/export?day=YYYY-MM-DD
func (h *AdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	day, err := dayParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	location, err := h.ctrl.ExportDay(r.Context(), day)
	if errors.Is(err, monitor.ErrNoExporter) {
		writeError(w, http.StatusNotImplemented, "export is not configured")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("day", day).Msg("failed to export day")
		writeError(w, http.StatusBadGateway, "export failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"location": location})
}
