package handlers

import (
	"log/slog"
	nethttp "net/http"
	"strconv"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/app/workspace"
	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/http/requestutil"
	"github.com/preston-bernstein/ftbuilder/internal/poller"
	"github.com/preston-bernstein/ftbuilder/internal/store"
	"github.com/preston-bernstein/ftbuilder/internal/views"
)

type nowFunc func() time.Time

// Handler wires HTTP routes to the workspace.
type Handler struct {
	ws       *workspace.Workspace
	logger   *slog.Logger
	now      nowFunc
	statusFn func() poller.Status
}

// NewHandler constructs a Handler with defaults. statusFn may be nil when no poller runs.
func NewHandler(ws *workspace.Workspace, logger *slog.Logger, statusFn func() poller.Status) *Handler {
	return &Handler{
		ws:       ws,
		logger:   logger,
		now:      time.Now,
		statusFn: statusFn,
	}
}

// Health reports the service health.
func (h *Handler) Health(w nethttp.ResponseWriter, r *nethttp.Request) {
	if err := r.Context().Err(); err != nil {
		writeError(w, r, nethttp.StatusServiceUnavailable, "shutting down", h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, map[string]string{"status": "ok"}, h.logger)
}

type readyResponse struct {
	Status string               `json:"status"`
	Load   workspace.LoadStatus `json:"load"`
	Poller *poller.Status       `json:"poller,omitempty"`
}

// Ready reports readiness for traffic: a schedule must be loaded.
// Generator health is reported but does not gate readiness.
func (h *Handler) Ready(w nethttp.ResponseWriter, r *nethttp.Request) {
	resp := readyResponse{Status: "ready", Load: h.ws.LoadStatus()}
	if h.statusFn != nil {
		st := h.statusFn()
		resp.Poller = &st
	}
	if !h.ws.Ready() {
		resp.Status = "not ready"
		writeJSON(w, nethttp.StatusServiceUnavailable, resp, h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, resp, h.logger)
}

type scheduleResponse struct {
	Revision uint64 `json:"revision"`
	schedule.Document
}

// Schedule returns the canonical schedule document.
func (h *Handler) Schedule(w nethttp.ResponseWriter, r *nethttp.Request) {
	snap := h.ws.Snapshot()
	if !snap.Loaded() {
		writeFailure(w, r, store.ErrNotLoaded, h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, scheduleResponse{Revision: snap.Revision, Document: snap.Schedule.Document()}, h.logger)
}

// View returns one view model for the window given by from/to.
func (h *Handler) View(w nethttp.ResponseWriter, r *nethttp.Request) {
	kind, err := views.ParseKind(r.PathValue("kind"))
	if err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	model, err := h.ws.ViewModel(kind, windowFrom(r))
	if err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, model, h.logger)
}

// Views returns every view projected from the same snapshot.
func (h *Handler) Views(w nethttp.ResponseWriter, r *nethttp.Request) {
	set, err := h.ws.Views(windowFrom(r))
	if err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, set, h.logger)
}

type conflictsResponse struct {
	Revision   uint64           `json:"revision"`
	FullSeason bool             `json:"fullSeason"`
	Conflicts  []rules.Conflict `json:"conflicts"`
}

// Conflicts returns the live conflicts; fullSeason=true re-evaluates season-level rules.
func (h *Handler) Conflicts(w nethttp.ResponseWriter, r *nethttp.Request) {
	full := false
	if raw := r.URL.Query().Get("fullSeason"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, nethttp.StatusBadRequest, "invalid fullSeason flag", h.logger)
			return
		}
		full = parsed
	}
	rev := h.ws.Snapshot().Revision
	list, err := h.ws.Conflicts(r.Context(), full)
	if err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	if list == nil {
		list = []rules.Conflict{}
	}
	writeJSON(w, nethttp.StatusOK, conflictsResponse{Revision: rev, FullSeason: full, Conflicts: list}, h.logger)
}

func windowFrom(r *nethttp.Request) views.Window {
	q := r.URL.Query()
	return views.Window{From: q.Get("from"), To: q.Get("to")}
}

func actorFrom(r *nethttp.Request) string {
	return requestutil.Actor(r)
}
