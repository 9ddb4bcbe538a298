package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClockHelpers(t *testing.T) {
	if got := NowAt(PreSeason)(); !got.Equal(PreSeason) {
		t.Fatalf("expected fixed time, got %v", got)
	}
	clock := StepClock(PreSeason, time.Minute)
	if first, second := clock(), clock(); second.Sub(first) != time.Minute || !first.Equal(PreSeason) {
		t.Fatalf("expected one minute steps from %v, got %v then %v", PreSeason, first, second)
	}
	if got := MustParseDate("2025-03-01"); got.Before(PreSeason) {
		t.Fatalf("expected sample season date after pre-season, got %v", got)
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic on invalid date")
		}
	}()
	MustParseDate("March 1st")
}

func TestFixturesHelper(t *testing.T) {
	list := SampleGames()
	idx := SampleIndex()
	if len(idx) != len(SampleTeams()) {
		t.Fatalf("expected index of every team, got %d", len(idx))
	}
	for _, g := range list {
		if g.SportID != SportID {
			t.Fatalf("unexpected sport on %+v", g)
		}
		if _, ok := idx[g.HomeTeamID]; !ok {
			t.Fatalf("unknown home team on %+v", g)
		}
		if _, ok := idx[g.AwayTeamID]; !ok {
			t.Fatalf("unknown away team on %+v", g)
		}
		if g.Time == "" || g.Venue == "" {
			t.Fatalf("expected pinned kickoff on %+v", g)
		}
	}
	if meta := SampleMeta(); meta.SportID != SportID || meta.Season != Season {
		t.Fatalf("unexpected meta %+v", meta)
	}
	bare := SampleGame("x", "t1", "t2", "2025-04-01")
	if bare.Time != "" || bare.Venue != "" {
		t.Fatalf("expected unpinned game, got %+v", bare)
	}
}

func TestServeHelpers(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	rr := Serve(handler, http.MethodPost, "/test", strings.NewReader("{}"))
	AssertStatus(t, rr, http.StatusCreated)
	var body map[string]bool
	DecodeJSON(t, rr, &body)
	if !body["ok"] {
		t.Fatalf("expected ok=true")
	}

	req := httptest.NewRequest(http.MethodGet, "/req", nil)
	rr2 := ServeRequest(handler, req)
	AssertStatus(t, rr2, http.StatusCreated)
}

func TestServeAsAndAssertError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Actor") != "ana" || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"drag session already active"}`))
	})

	rr := ServeAs(handler, "ana", http.MethodPost, "/drag", `{"gameId":"fx-01"}`)
	AssertError(t, rr, http.StatusConflict, "already active")

	rr = ServeAs(handler, "", http.MethodGet, "/drag", "")
	AssertStatus(t, rr, http.StatusBadRequest)
}

func TestLoggerAndMetricsHelpers(t *testing.T) {
	logger, buf := NewBufferLogger()
	logger.Debug("hello", "k", "v")
	if !strings.Contains(buf.String(), "k=v") {
		t.Fatalf("expected buffered debug output, got %q", buf.String())
	}
	jsonLogger, jsonBuf := NewJSONBufferLogger()
	jsonLogger.Info("other")
	jsonLogger.Info("schedule loaded", "revision", 3)
	if rec := LogEntry(t, jsonBuf, "schedule loaded"); rec["revision"] != float64(3) {
		t.Fatalf("expected revision field, got %+v", rec)
	}
	rec, shutdown := NewRecorderWithShutdown()
	if rec == nil || shutdown == nil {
		t.Fatalf("expected recorder and shutdown")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("expected nil shutdown error, got %v", err)
	}
}
