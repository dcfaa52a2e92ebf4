package handler

import (
	"net/http"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// ConnectivitySource reports the matching service availability.
type ConnectivitySource interface {
	State() domain.ConnectivityState
}

// StatusHandler serves the backend status for the dashboard.
type StatusHandler struct {
	Mode       string
	MatcherURL string
	conn       ConnectivitySource
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode, matcherURL string, conn ConnectivitySource) *StatusHandler {
	return &StatusHandler{Mode: mode, MatcherURL: matcherURL, conn: conn}
}

// GetStatus responds with the mode, the matching service URL and its
// connectivity state.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":         h.Mode,
		"matcher_url":  h.MatcherURL,
		"connectivity": h.conn.State(),
	})
}
