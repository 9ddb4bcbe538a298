package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/http/middleware"
	"github.com/preston-bernstein/ftbuilder/internal/logging"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, payload any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil && logger != nil {
		logger.Error("failed to encode response", "err", err)
	}
}

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string           `json:"error"`
	RequestID string           `json:"requestId,omitempty"`
	Conflicts []rules.Conflict `json:"conflicts,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, logger *slog.Logger) {
	writeJSON(w, status, errorBody{Error: message, RequestID: requestID(r)}, logger)
}

// writeFailure maps an engine error onto a status code and writes it.
func writeFailure(w http.ResponseWriter, r *http.Request, err error, logger *slog.Logger) {
	status := statusFor(err)
	body := errorBody{Error: err.Error(), RequestID: requestID(r)}
	if rejected, ok := asRejected(err); ok {
		body.Conflicts = rejected.Conflicts
	}
	logger = loggerFromContext(r, logger)
	if status >= http.StatusInternalServerError {
		logging.Error(logger, "request failed", err, logging.FieldStatusCode, status)
	} else {
		logging.Info(logger, "request refused", logging.FieldStatusCode, status, "reason", err.Error())
	}
	writeJSON(w, status, body, logger)
}

func requestID(r *http.Request) string {
	if r == nil {
		return ""
	}
	reqID := middleware.RequestIDFromContext(r.Context())
	if reqID == "" {
		reqID = r.Header.Get("X-Request-ID")
	}
	return reqID
}

var errEmptyBody = errors.New("request body is empty")

// decodeJSON reads a bounded JSON body into dest, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return errEmptyBody
		}
		return fmt.Errorf("%w: invalid request body: %v", errBadRequest, err)
	}
	return nil
}

func loggerFromContext(r *http.Request, fallback *slog.Logger) *slog.Logger {
	if r == nil {
		return fallback
	}
	return logging.FromContext(r.Context(), fallback)
}
