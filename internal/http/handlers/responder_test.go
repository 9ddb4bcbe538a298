package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/drag"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
	"github.com/preston-bernstein/ftbuilder/internal/store"
	"github.com/preston-bernstein/ftbuilder/internal/suggestions"
	"github.com/preston-bernstein/ftbuilder/internal/testutil"
	"github.com/preston-bernstein/ftbuilder/internal/views"
)

func TestWriteErrorIncludesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	logger, _ := testutil.NewBufferLogger()

	req.Header.Set("X-Request-ID", "abc123")

	rr := testutil.ServeRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusTeapot, "boom", logger)
	}), req)

	if rr.Code != http.StatusTeapot {
		t.Fatalf("expected status 418, got %d", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected content type json, got %s", got)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("abc123")) {
		t.Fatalf("expected requestId in body, got %s", rr.Body.String())
	}
}

func TestWriteJSONLogsEncodeError(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	rr := testutil.Serve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, make(chan int), logger)
	}), http.MethodGet, "/encode-error", nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status written even on encode error, got %d", rr.Code)
	}
	if buf.Len() == 0 {
		t.Fatalf("expected logger to record encode error")
	}
}

func TestWriteFailureCarriesConflicts(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	err := &store.ConflictRejectedError{Conflicts: []rules.Conflict{{Kind: "team_double_booked", Severity: rules.SeverityHard}}}
	rr := httptest.NewRecorder()
	writeFailure(rr, httptest.NewRequest(http.MethodPost, "/drag/end", nil), fmt.Errorf("drop: %w", err), logger)

	testutil.AssertStatus(t, rr, http.StatusConflict)
	var body errorBody
	testutil.DecodeJSON(t, rr, &body)
	if len(body.Conflicts) != 1 {
		t.Fatalf("expected conflicts in body, got %+v", body)
	}
	if !strings.Contains(buf.String(), "request refused") {
		t.Fatalf("expected refusal logged, got %s", buf.String())
	}
}

func TestWriteFailureLogsServerErrors(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	rr := httptest.NewRecorder()
	writeFailure(rr, httptest.NewRequest(http.MethodGet, "/schedule", nil), errors.New("disk on fire"), logger)

	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	if !strings.Contains(buf.String(), "request failed") {
		t.Fatalf("expected error logged, got %s", buf.String())
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{store.ErrNotLoaded, http.StatusServiceUnavailable},
		{providers.Retryable("sqlite", "save_game", errors.New("busy")), http.StatusServiceUnavailable},
		{context.DeadlineExceeded, http.StatusServiceUnavailable},
		{&store.ConflictRejectedError{}, http.StatusConflict},
		{drag.ErrSessionConflict, http.StatusConflict},
		{fmt.Errorf("apply: %w", schedule.ErrStaleDelta), http.StatusConflict},
		{&suggestions.StaleSuggestionError{ID: "s1"}, http.StatusConflict},
		{suggestions.ErrSuggestionDismissed, http.StatusConflict},
		{store.ErrUnknownChange, http.StatusNotFound},
		{fmt.Errorf("%w: x", suggestions.ErrUnknownSuggestion), http.StatusNotFound},
		{drag.ErrNoSession, http.StatusNotFound},
		{views.ErrUnknownKind, http.StatusNotFound},
		{errEmptyBody, http.StatusBadRequest},
		{views.ErrInvalidWindow, http.StatusBadRequest},
		{suggestions.ErrInvalidSuggestion, http.StatusUnprocessableEntity},
		{store.ErrInvalidDelta, http.StatusUnprocessableEntity},
		{drag.ErrNoTarget, http.StatusUnprocessableEntity},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusFor(tc.err); got != tc.want {
			t.Fatalf("statusFor(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestDecodeJSON(t *testing.T) {
	var dest struct {
		Name string `json:"name"`
	}
	decode := func(body string) error {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		return decodeJSON(httptest.NewRecorder(), req, &dest)
	}

	if err := decode(`{"name":"ana"}`); err != nil || dest.Name != "ana" {
		t.Fatalf("expected decode, got %v (%q)", err, dest.Name)
	}
	if err := decode(""); !errors.Is(err, errEmptyBody) {
		t.Fatalf("expected empty body error, got %v", err)
	}
	if err := decode(`{"name":"ana","age":3}`); !errors.Is(err, errBadRequest) {
		t.Fatalf("expected unknown field rejected, got %v", err)
	}
	if err := decode(`{"name":`); !errors.Is(err, errBadRequest) {
		t.Fatalf("expected malformed body rejected, got %v", err)
	}
	if err := decode(`{"name":"` + strings.Repeat("a", maxBodyBytes) + `"}`); !errors.Is(err, errBadRequest) {
		t.Fatalf("expected oversized body rejected, got %v", err)
	}
}

func TestWriteErrorFallsBackToHeaderRequestID(t *testing.T) {
	logger, _ := testutil.NewBufferLogger()
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "header-id")
	writeError(rr, req, http.StatusTeapot, "boom", logger)
	if !bytes.Contains(rr.Body.Bytes(), []byte("header-id")) {
		t.Fatalf("expected header request id used when context missing")
	}
}
