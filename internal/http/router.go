package http

import (
	nethttp "net/http"

	"github.com/preston-bernstein/ftbuilder/internal/http/handlers"
)

// NewRouter registers HTTP routes on a ServeMux. Admin routes are mounted
// only when admin is non-nil.
func NewRouter(h *handlers.Handler, admin *handlers.AdminHandler) nethttp.Handler {
	mux := nethttp.NewServeMux()
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.HandleFunc("GET /load", h.LoadStatus)

	mux.HandleFunc("GET /schedule", h.Schedule)
	mux.HandleFunc("GET /views", h.Views)
	mux.HandleFunc("GET /views/{kind}", h.View)
	mux.HandleFunc("GET /conflicts", h.Conflicts)

	mux.HandleFunc("GET /drag", h.CurrentDrag)
	mux.HandleFunc("POST /drag", h.BeginDrag)
	mux.HandleFunc("PUT /drag/target", h.UpdateDragTarget)
	mux.HandleFunc("DELETE /drag/target", h.LeaveDragTarget)
	mux.HandleFunc("POST /drag/end", h.EndDrag)

	mux.HandleFunc("GET /suggestions", h.Suggestions)
	mux.HandleFunc("POST /suggestions", h.Suggest)
	mux.HandleFunc("GET /suggestions/{id}", h.Suggestion)
	mux.HandleFunc("POST /suggestions/{id}/apply", h.ApplySuggestion)
	mux.HandleFunc("POST /suggestions/{id}/dismiss", h.DismissSuggestion)

	mux.HandleFunc("GET /changes", h.History)
	mux.HandleFunc("POST /changes/{id}/revert", h.Revert)

	if admin != nil {
		mux.HandleFunc("POST /admin/reload", admin.Reload)
		mux.HandleFunc("POST /admin/poll", admin.Poll)
	}
	return mux
}
