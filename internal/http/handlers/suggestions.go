package handlers

import (
	nethttp "net/http"

	domain "github.com/preston-bernstein/ftbuilder/internal/domain/suggestions"
)

type suggestionsResponse struct {
	Suggestions []domain.Suggestion `json:"suggestions"`
}

// Suggestions lists suggestions; status=proposed limits the list to active ones.
func (h *Handler) Suggestions(w nethttp.ResponseWriter, r *nethttp.Request) {
	activeOnly := r.URL.Query().Get("status") == string(domain.StatusProposed)
	list := h.ws.Suggestions(activeOnly)
	if list == nil {
		list = []domain.Suggestion{}
	}
	writeJSON(w, nethttp.StatusOK, suggestionsResponse{Suggestions: list}, h.logger)
}

// Suggestion returns one suggestion.
func (h *Handler) Suggestion(w nethttp.ResponseWriter, r *nethttp.Request) {
	s, ok := h.ws.Suggestion(r.PathValue("id"))
	if !ok {
		writeError(w, r, nethttp.StatusNotFound, "suggestion not found", h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, s, h.logger)
}

// Suggest registers a collaborator suggestion. Source defaults to collaborator.
func (h *Handler) Suggest(w nethttp.ResponseWriter, r *nethttp.Request) {
	var s domain.Suggestion
	if err := decodeJSON(w, r, &s); err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	if s.Source == "" {
		s.Source = domain.SourceCollaborator
	}
	registered, err := h.ws.Suggest(s)
	if err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	writeJSON(w, nethttp.StatusCreated, registered, h.logger)
}

// ApplySuggestion commits a proposed suggestion.
func (h *Handler) ApplySuggestion(w nethttp.ResponseWriter, r *nethttp.Request) {
	res, err := h.ws.ApplySuggestion(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	writeJSON(w, nethttp.StatusOK, res, h.logger)
}

// DismissSuggestion dismisses a proposed suggestion.
func (h *Handler) DismissSuggestion(w nethttp.ResponseWriter, r *nethttp.Request) {
	id := r.PathValue("id")
	if err := h.ws.DismissSuggestion(id); err != nil {
		writeFailure(w, r, err, h.logger)
		return
	}
	s, _ := h.ws.Suggestion(id)
	writeJSON(w, nethttp.StatusOK, s, h.logger)
}
