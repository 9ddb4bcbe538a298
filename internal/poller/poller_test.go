package poller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/constraints"
	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	domain "github.com/preston-bernstein/ftbuilder/internal/domain/suggestions"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
	"github.com/preston-bernstein/ftbuilder/internal/providers/fixture"
	"github.com/preston-bernstein/ftbuilder/internal/store"
	"github.com/preston-bernstein/ftbuilder/internal/suggestions"
	"github.com/preston-bernstein/ftbuilder/internal/teststubs"
)

func newWorkspace(t *testing.T, load bool) (*store.Store, *suggestions.Manager) {
	t.Helper()
	engine, err := constraints.New(nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	st := store.New(engine, nil, nil)
	t.Cleanup(st.Close)
	if load {
		if err := st.Load(context.Background(), fixture.Meta(), fixture.Games(), fixture.Teams()); err != nil {
			t.Fatalf("load: %v", err)
		}
	}
	m := suggestions.NewManager(st, nil, nil)
	t.Cleanup(m.Close)
	return st, m
}

func removal(id, gameID string) domain.Suggestion {
	return domain.Suggestion{ID: id, Source: domain.SourceAI, Delta: games.Remove(gameID)}
}

func TestPollOnceRegistersSuggestions(t *testing.T) {
	st, m := newWorkspace(t, true)
	gen := &teststubs.StubGenerator{Response: providers.Response{
		Suggestions: []domain.Suggestion{removal("s1", "fx-01"), removal("s2", "fx-02")},
	}}
	constraint := rules.Constraint{Kind: rules.KindMaxConsecutiveAway, Severity: rules.SeveritySoft}
	rec := metrics.NewRecorder()
	p := New(gen, st, m, []rules.Constraint{constraint}, nil, rec, time.Minute)

	if got := p.PollOnce(context.Background()); got != 2 {
		t.Fatalf("expected 2 registered, got %d", got)
	}
	if len(m.Active()) != 2 {
		t.Fatalf("expected 2 active suggestions, got %d", len(m.Active()))
	}
	req := gen.LastRequest()
	if req.SportID != fixture.SportID || req.Season != fixture.Season {
		t.Fatalf("unexpected request scope %+v", req)
	}
	if len(req.Games) != len(fixture.Games()) {
		t.Fatalf("expected current games sent, got %d", len(req.Games))
	}
	if len(req.Constraints) != 1 || req.Constraints[0].Kind != constraint.Kind {
		t.Fatalf("expected constraints forwarded, got %+v", req.Constraints)
	}
	status := p.Status()
	if status.Registered != 2 || !status.IsReady() {
		t.Fatalf("unexpected status %+v", status)
	}
	if rec.Count("poller:ok") != 1 {
		t.Fatalf("expected poller success recorded")
	}
}

func TestPollOnceSkipsKnownAndInvalidSuggestions(t *testing.T) {
	st, m := newWorkspace(t, true)
	if _, err := m.Register(removal("s1", "fx-01")); err != nil {
		t.Fatalf("register: %v", err)
	}
	gen := &teststubs.StubGenerator{Response: providers.Response{
		Suggestions: []domain.Suggestion{
			removal("s1", "fx-01"),
			removal("s2", "ghost"),
			removal("s3", "fx-03"),
		},
	}}
	p := New(gen, st, m, nil, nil, nil, time.Minute)

	if got := p.PollOnce(context.Background()); got != 1 {
		t.Fatalf("expected only the new valid suggestion, got %d", got)
	}
	if _, ok := m.Get("s2"); ok {
		t.Fatal("invalid suggestion should not be registered")
	}
	if _, ok := m.Get("s3"); !ok {
		t.Fatal("expected s3 registered")
	}
}

func TestPollOnceBeforeLoadFails(t *testing.T) {
	st, m := newWorkspace(t, false)
	gen := &teststubs.StubGenerator{}
	p := New(gen, st, m, nil, nil, nil, time.Minute)

	if got := p.PollOnce(context.Background()); got != 0 {
		t.Fatalf("expected nothing registered, got %d", got)
	}
	if gen.Calls.Load() != 0 {
		t.Fatal("generator should not be called without a schedule")
	}
	status := p.Status()
	if status.ConsecutiveFailures != 1 || status.LastError != ErrNotLoaded.Error() {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestStatusTracksFailuresAndRecovery(t *testing.T) {
	st, m := newWorkspace(t, true)
	gen := &teststubs.StubGenerator{Err: errors.New("upstream down")}
	p := New(gen, st, m, nil, nil, nil, time.Minute)
	fixed := time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	for i := 0; i < 3; i++ {
		p.PollOnce(context.Background())
	}
	status := p.Status()
	if status.ConsecutiveFailures != 3 || status.IsReady() {
		t.Fatalf("expected failing status, got %+v", status)
	}
	if status.LastError != "upstream down" || !status.LastAttempt.Equal(fixed) {
		t.Fatalf("unexpected status %+v", status)
	}

	gen.Err = nil
	p.PollOnce(context.Background())
	status = p.Status()
	if status.ConsecutiveFailures != 0 || status.LastError != "" || !status.IsReady() {
		t.Fatalf("expected recovery, got %+v", status)
	}
}

func TestStartPollsImmediatelyAndStops(t *testing.T) {
	st, m := newWorkspace(t, true)
	gen := &teststubs.StubGenerator{Notify: make(chan struct{})}
	p := New(gen, st, m, nil, nil, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	p.Start(ctx)

	select {
	case <-gen.Notify:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for initial poll")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
	calls := gen.Calls.Load()
	time.Sleep(30 * time.Millisecond)
	if gen.Calls.Load() != calls {
		t.Fatal("poller kept running after stop")
	}
}

func TestStopWithoutStart(t *testing.T) {
	p := New(&teststubs.StubGenerator{}, nil, nil, nil, nil, nil, 0)
	if p.interval != defaultInterval {
		t.Fatalf("expected default interval, got %s", p.interval)
	}
	if err := p.Stop(context.Background()); err != nil {
		t.Fatalf("stop without start: %v", err)
	}
}

func TestContextCancelStopsLoop(t *testing.T) {
	st, m := newWorkspace(t, true)
	gen := &teststubs.StubGenerator{Notify: make(chan struct{})}
	p := New(gen, st, m, nil, nil, nil, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	<-gen.Notify
	cancel()

	select {
	case <-p.stopped:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop on context cancel")
	}
}

func TestFixtureGeneratorSuggestionsRegister(t *testing.T) {
	st, m := newWorkspace(t, true)
	p := New(fixture.NewGenerator(), st, m, nil, nil, nil, time.Minute)
	if got := p.PollOnce(context.Background()); got == 0 {
		t.Fatalf("expected fixture suggestions registered, status %+v", p.Status())
	}
	if again := p.PollOnce(context.Background()); again != 0 {
		t.Fatalf("expected repeat poll to skip known suggestions, got %d", again)
	}
}
