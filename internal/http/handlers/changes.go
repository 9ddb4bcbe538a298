package handlers

import (
	nethttp "net/http"

	"github.com/preston-bernstein/ftbuilder/internal/logging"
)

type historyResponse struct {
	Changes []string `json:"changes"`
}

// History lists the revertable change ids, oldest first.
func (h *Handler) History(w nethttp.ResponseWriter, r *nethttp.Request) {
	ids, err := h.ws.History(r.Context())
	if err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, nethttp.StatusOK, historyResponse{Changes: ids}, h.logger)
}

// Revert undoes a change and every later one.
func (h *Handler) Revert(w nethttp.ResponseWriter, r *nethttp.Request) {
	id := r.PathValue("id")
	res, err := h.ws.Revert(r.Context(), id, actorFrom(r))
	if err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	logging.Info(loggerFromContext(r, h.logger), "change reverted via api", logging.FieldChangeID, id)
	writeJSON(w, nethttp.StatusOK, res, h.logger)
}

// LoadStatus reports the most recent schedule load.
func (h *Handler) LoadStatus(w nethttp.ResponseWriter, r *nethttp.Request) {
	writeJSON(w, nethttp.StatusOK, h.ws.LoadStatus(), h.logger)
}
