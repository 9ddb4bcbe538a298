package handlers

import (
	"fmt"
	nethttp "net/http"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/logging"
)

type beginDragRequest struct {
	GameID string `json:"gameId"`
}

type endDragRequest struct {
	Commit bool `json:"commit"`
}

// BeginDrag starts a drag session for the posted game.
func (h *Handler) BeginDrag(w nethttp.ResponseWriter, r *nethttp.Request) {
	var req beginDragRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	if req.GameID == "" {
		writeError(w, r, nethttp.StatusBadRequest, "gameId is required", h.logger)
		return
	}
	s, err := h.ws.BeginDrag(req.GameID, actorFrom(r))
	if err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	logging.Info(loggerFromContext(r, h.logger), "drag begun via api",
		logging.FieldSessionID, s.ID,
		logging.FieldGameID, s.GameID,
	)
	writeJSON(w, nethttp.StatusCreated, s.Summary(), h.logger)
}

// UpdateDragTarget hovers the dragged game over the posted slot.
func (h *Handler) UpdateDragTarget(w nethttp.ResponseWriter, r *nethttp.Request) {
	var slot games.Slot
	if err := decodeJSON(w, r, &slot); err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	if err := slot.Validate(); err != nil {
		writeFailure(w, r, fmt.Errorf("%w: %v", errUnprocessable, err), h.logger)
		return
	}
	s, err := h.ws.UpdateDragTarget(r.Context(), slot)
	if err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	writeJSON(w, nethttp.StatusAccepted, s.Summary(), h.logger)
}

// LeaveDragTarget takes the dragged game off its target.
func (h *Handler) LeaveDragTarget(w nethttp.ResponseWriter, r *nethttp.Request) {
	s, err := h.ws.LeaveDragTarget()
	if err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, s.Summary(), h.logger)
}

// EndDrag drops or cancels the session. A rejected drop answers 409 with
// the blocking conflicts; the session stays open.
func (h *Handler) EndDrag(w nethttp.ResponseWriter, r *nethttp.Request) {
	var req endDragRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	s, err := h.ws.EndDrag(r.Context(), req.Commit)
	if err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, s.Summary(), h.logger)
}

// CurrentDrag returns the active or most recent session.
func (h *Handler) CurrentDrag(w nethttp.ResponseWriter, r *nethttp.Request) {
	s, ok := h.ws.CurrentDrag()
	if !ok {
		writeError(w, r, nethttp.StatusNotFound, "no drag session", h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, s.Summary(), h.logger)
}
