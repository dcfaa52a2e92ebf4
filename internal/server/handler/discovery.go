package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

const (
	maxKeywordLen     = 200
	maxDescriptionLen = 4000
)

// DiscoveryController runs competitor discovery sessions.
type DiscoveryController interface {
	Discover(ctx context.Context, keyword, description string) domain.DiscoverySession
	Snapshot() domain.DiscoverySession
}

// DiscoveryHistory reads recently completed sessions.
type DiscoveryHistory interface {
	History(ctx context.Context, count int) ([]domain.DiscoverySession, error)
}

// DiscoveryHandler serves the competitor discovery endpoints.
type DiscoveryHandler struct {
	controller DiscoveryController
	history    DiscoveryHistory
	archive    domain.SessionArchiver
	logger     *slog.Logger
}

// NewDiscoveryHandler creates a DiscoveryHandler. archive may be nil when blob
// storage is disabled.
func NewDiscoveryHandler(controller DiscoveryController, history DiscoveryHistory, archive domain.SessionArchiver, logger *slog.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		controller: controller,
		history:    history,
		archive:    archive,
		logger:     logHandler(logger, "discovery"),
	}
}

type discoverRequest struct {
	Keyword     string `json:"keyword"`
	Description string `json:"description"`
}

type historyResponse struct {
	Sessions []domain.DiscoverySession `json:"sessions"`
}

type archiveResponse struct {
	Objects []domain.BlobInfo `json:"objects"`
}

// Discover starts a new session, replacing the current one.
// POST /api/discovery
func (h *DiscoveryHandler) Discover(w http.ResponseWriter, r *http.Request) {
	var req discoverRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Keyword = strings.TrimSpace(req.Keyword)
	req.Description = strings.TrimSpace(req.Description)
	switch {
	case req.Keyword == "":
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	case len(req.Keyword) > maxKeywordLen:
		writeError(w, http.StatusBadRequest, "keyword is too long")
		return
	case len(req.Description) > maxDescriptionLen:
		writeError(w, http.StatusBadRequest, "description is too long")
		return
	}

	// The live path is not time-boxed, so neither is this response.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.logger.DebugContext(r.Context(), "write deadline not cleared", slog.String("error", err.Error()))
	}

	s := h.controller.Discover(r.Context(), req.Keyword, req.Description)
	h.logger.InfoContext(r.Context(), "discovery dispatched",
		slog.String("session_id", s.ID),
		slog.String("path", string(s.Path)),
	)
	writeJSON(w, http.StatusAccepted, s)
}

// Current returns the current session snapshot.
// GET /api/discovery
func (h *DiscoveryHandler) Current(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Snapshot())
}

// History returns recently completed sessions, oldest first.
// GET /api/discovery/history?limit=20
func (h *DiscoveryHandler) History(w http.ResponseWriter, r *http.Request) {
	count := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			count = n
		}
	}
	sessions, err := h.history.History(r.Context(), count)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to read discovery history")
		return
	}
	if sessions == nil {
		sessions = []domain.DiscoverySession{}
	}
	writeJSON(w, http.StatusOK, historyResponse{Sessions: sessions})
}

// Archive lists archived session transcripts, newest first.
// GET /api/discovery/archive
func (h *DiscoveryHandler) Archive(w http.ResponseWriter, r *http.Request) {
	if h.archive == nil {
		writeError(w, http.StatusNotFound, "session archive is not enabled")
		return
	}
	objects, err := h.archive.ListSessions(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err, "failed to list archived sessions")
		return
	}
	if objects == nil {
		objects = []domain.BlobInfo{}
	}
	writeJSON(w, http.StatusOK, archiveResponse{Objects: objects})
}
