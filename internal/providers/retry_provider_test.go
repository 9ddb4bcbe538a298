package providers

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/testutil"
)

type flakeyPersistence struct {
	failures int
	calls    int
	err      error
}

func (f *flakeyPersistence) fail() error {
	f.calls++
	if f.calls <= f.failures {
		if f.err != nil {
			return f.err
		}
		return Retryable("flakey", "op", errors.New("boom"))
	}
	return nil
}

func (f *flakeyPersistence) LoadTeams(ctx context.Context, sportID string) ([]teams.Team, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return testutil.SampleTeams(), nil
}

func (f *flakeyPersistence) LoadSchedule(ctx context.Context, sportID, season string) (schedule.Document, error) {
	if err := f.fail(); err != nil {
		return schedule.Document{}, err
	}
	return schedule.Document{Meta: testutil.SampleMeta(), Games: testutil.SampleGames()}, nil
}

func (f *flakeyPersistence) SaveGame(ctx context.Context, season string, g games.Game) error {
	return f.fail()
}

func (f *flakeyPersistence) DeleteGame(ctx context.Context, sportID, season, gameID string) error {
	return f.fail()
}

func fastRetrier(p Persistence) *retryingPersistence {
	rp := p.(*retryingPersistence)
	rp.r.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return rp
}

func TestRetryingPersistenceRetriesAndSucceeds(t *testing.T) {
	fp := &flakeyPersistence{failures: 2}
	rec := metrics.NewRecorder()
	rp := fastRetrier(NewRetryingPersistence(fp, "flakey", slog.Default(), rec, RetryConfig{MaxAttempts: 3}))

	list, err := rp.LoadTeams(context.Background(), "soccer")
	if err != nil {
		t.Fatalf("expected success, got error %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("unexpected teams %+v", list)
	}
	if fp.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", fp.calls)
	}
	if got := rec.ProviderCalls("flakey"); got != 3 {
		t.Fatalf("expected 3 recorded calls, got %d", got)
	}
	if got := rec.ProviderErrors("flakey"); got != 2 {
		t.Fatalf("expected 2 recorded errors, got %d", got)
	}
	if got := rec.Count("retry:flakey"); got != 2 {
		t.Fatalf("expected 2 retries, got %d", got)
	}
}

func TestRetryingPersistenceStopsAfterMaxAttempts(t *testing.T) {
	fp := &flakeyPersistence{failures: 5}
	rp := fastRetrier(NewRetryingPersistence(fp, "flakey", nil, metrics.NewRecorder(), RetryConfig{MaxAttempts: 2}))

	err := rp.SaveGame(context.Background(), "2025", testutil.SampleGame("g1", "t1", "t2", "2025-03-01"))
	if err == nil {
		t.Fatal("expected error after retries")
	}
	if !IsRetryable(err) {
		t.Fatalf("expected the last retryable error to surface, got %v", err)
	}
	if fp.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", fp.calls)
	}
}

func TestRetryingPersistenceDoesNotRetryPermanentErrors(t *testing.T) {
	permanent := errors.New("constraint violation")
	fp := &flakeyPersistence{failures: 5, err: permanent}
	rp := fastRetrier(NewRetryingPersistence(fp, "flakey", nil, nil, RetryConfig{MaxAttempts: 4}))

	err := rp.DeleteGame(context.Background(), "soccer", "2025", "g1")
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if fp.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", fp.calls)
	}
}

func TestRetryingPersistenceRespectsContextCancel(t *testing.T) {
	fp := &flakeyPersistence{failures: 5}
	rp := NewRetryingPersistence(fp, "flakey", nil, nil, RetryConfig{MaxAttempts: 3, Initial: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rp.LoadSchedule(ctx, "soccer", "2025")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestRetryAfterOverridesBackoff(t *testing.T) {
	b := &retryAfterBackOff{BackOff: &backoff.ConstantBackOff{Interval: 50 * time.Millisecond}}
	b.override = 3 * time.Second
	if got := b.NextBackOff(); got != 3*time.Second {
		t.Fatalf("expected retry-after delay, got %s", got)
	}
	if got := b.NextBackOff(); got != 50*time.Millisecond {
		t.Fatalf("expected override to apply once, got %s", got)
	}
}

func TestRetryConfigDefaults(t *testing.T) {
	cfg := RetryConfig{}.withDefaults()
	if cfg.MaxAttempts != defaultRetryAttempts || cfg.Initial != defaultBackoff || cfg.Max != defaultMaxBackoff {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	cfg = RetryConfig{Initial: time.Minute, Max: time.Second}.withDefaults()
	if cfg.Max != time.Minute {
		t.Fatalf("expected max raised to initial, got %s", cfg.Max)
	}
}

type flakeyGenerator struct {
	failures int
	calls    int
}

func (f *flakeyGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return Response{}, &RetryableError{Provider: "gen", StatusCode: 503}
	}
	return Response{Games: testutil.SampleGames()}, nil
}

func TestRetryingGenerator(t *testing.T) {
	fg := &flakeyGenerator{failures: 1}
	g := NewRetryingGenerator(fg, "gen", nil, nil, RetryConfig{MaxAttempts: 2}).(*retryingGenerator)
	g.r.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }

	resp, err := g.Generate(context.Background(), Request{SportID: "soccer"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if len(resp.Games) != 4 || fg.calls != 2 {
		t.Fatalf("unexpected response %d games after %d calls", len(resp.Games), fg.calls)
	}
}

func TestRetryingDecoratorsWithNilInner(t *testing.T) {
	if _, err := NewRetryingGenerator(nil, "", nil, nil, RetryConfig{}).Generate(context.Background(), Request{}); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
	if err := NewRetryingPersistence(nil, "", nil, nil, RetryConfig{}).SaveGame(context.Background(), "", games.Game{}); !errors.Is(err, ErrProviderUnavailable) {
		t.Fatalf("expected ErrProviderUnavailable, got %v", err)
	}
}
