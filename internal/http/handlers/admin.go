package handlers

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/preston-bernstein/ftbuilder/internal/app/workspace"
	"github.com/preston-bernstein/ftbuilder/internal/http/requestutil"
	"github.com/preston-bernstein/ftbuilder/internal/logging"
)

// Poller is the part of the suggestion poller the admin endpoints drive.
type Poller interface {
	PollOnce(ctx context.Context) int
}

// AdminHandler exposes operator endpoints: reloading the schedule from
// persistence and running a suggestion poll on demand.
type AdminHandler struct {
	ws      *workspace.Workspace
	poller  Poller
	sportID string
	season  string
	token   string
	logger  *slog.Logger
}

// NewAdminHandler constructs an AdminHandler. sportID and season are the
// defaults for reloads that do not name a season.
func NewAdminHandler(ws *workspace.Workspace, poller Poller, sportID, season, token string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		ws:      ws,
		poller:  poller,
		sportID: sportID,
		season:  season,
		token:   token,
		logger:  logger,
	}
}

// Reload replaces the schedule from persistence. Guarded by ADMIN_TOKEN;
// returns 401 if missing or invalid.
func (h *AdminHandler) Reload(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	if h.ws == nil {
		writeError(w, r, http.StatusServiceUnavailable, "workspace not configured", h.logger)
		return
	}
	logger := loggerFromContext(r, h.logger)
	sportID := strings.TrimSpace(r.URL.Query().Get("sportId"))
	if sportID == "" {
		sportID = h.sportID
	}
	season := strings.TrimSpace(r.URL.Query().Get("season"))
	if season == "" {
		season = h.season
	}

	if err := h.ws.Load(r.Context(), sportID, season); err != nil {
		logging.Warn(logger, "admin reload failed",
			slog.String(logging.FieldSportID, sportID),
			slog.String(logging.FieldSeason, season),
			slog.Any("err", err),
		)
		writeFailure(w, r, err, logger)
		return
	}
	status := h.ws.LoadStatus()
	logging.Info(logger, "admin reload complete",
		slog.String(logging.FieldSportID, sportID),
		slog.String(logging.FieldSeason, season),
		slog.Int(logging.FieldCount, status.Games),
	)
	writeJSON(w, http.StatusOK, status, logger)
}

// Poll runs one suggestion poll and reports how many suggestions were registered.
func (h *AdminHandler) Poll(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	if h.poller == nil {
		writeError(w, r, http.StatusServiceUnavailable, "poller not configured", h.logger)
		return
	}
	n := h.poller.PollOnce(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"registered": n,
		"status":     "ok",
	}, loggerFromContext(r, h.logger))
}

func (h *AdminHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	want := "Bearer " + h.token
	got := r.Header.Get("Authorization")
	if h.token != "" && subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1 {
		return true
	}
	logging.Warn(h.logger, "admin unauthorized",
		slog.String(logging.FieldPath, r.URL.Path),
		slog.String("client_ip", requestutil.ClientIP(r)),
	)
	writeError(w, r, http.StatusUnauthorized, "unauthorized", h.logger)
	return false
}
