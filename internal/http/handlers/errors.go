package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/drag"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
	"github.com/preston-bernstein/ftbuilder/internal/store"
	"github.com/preston-bernstein/ftbuilder/internal/suggestions"
	"github.com/preston-bernstein/ftbuilder/internal/views"
)

func asRejected(err error) (*store.ConflictRejectedError, bool) {
	return store.AsConflictRejected(err)
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	var stale *suggestions.StaleSuggestionError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, store.ErrNotLoaded),
		errors.Is(err, store.ErrClosed),
		providers.IsRetryable(err),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	case errors.As(err, new(*store.ConflictRejectedError)),
		errors.Is(err, drag.ErrSessionConflict),
		errors.Is(err, drag.ErrCommitting),
		errors.Is(err, schedule.ErrStaleDelta),
		errors.As(err, &stale),
		errors.Is(err, suggestions.ErrSuggestionApplied),
		errors.Is(err, suggestions.ErrSuggestionDismissed):
		return http.StatusConflict
	case errors.Is(err, store.ErrUnknownChange),
		errors.Is(err, suggestions.ErrUnknownSuggestion),
		errors.Is(err, schedule.ErrUnknownGame),
		errors.Is(err, drag.ErrNoSession),
		errors.Is(err, views.ErrUnknownKind):
		return http.StatusNotFound
	case errors.Is(err, errEmptyBody),
		errors.Is(err, errBadRequest),
		errors.Is(err, views.ErrInvalidWindow):
		return http.StatusBadRequest
	case errors.Is(err, suggestions.ErrInvalidSuggestion),
		errors.Is(err, store.ErrInvalidDelta),
		errors.Is(err, store.ErrInvalidSchedule),
		errors.Is(err, schedule.ErrDuplicateGame),
		errors.Is(err, drag.ErrNoTarget),
		errors.Is(err, errUnprocessable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

var (
	errBadRequest    = errors.New("bad request")
	errUnprocessable = errors.New("unprocessable request")
)
