package providers

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
)

const (
	defaultRetryAttempts = 3
	defaultBackoff       = 200 * time.Millisecond
	defaultMaxBackoff    = 5 * time.Second
)

// RetryConfig bounds retries. Zero values fall back to defaults.
type RetryConfig struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = defaultRetryAttempts
	}
	if c.Initial <= 0 {
		c.Initial = defaultBackoff
	}
	if c.Max <= 0 {
		c.Max = defaultMaxBackoff
	}
	if c.Max < c.Initial {
		c.Max = c.Initial
	}
	return c
}

// retrier runs operations with exponential backoff. Only RetryableError
// failures are retried; anything else is returned immediately.
type retrier struct {
	name    string
	logger  *slog.Logger
	metrics *metrics.Recorder
	cfg     RetryConfig
	// newBackOff is swapped in tests to avoid sleeping.
	newBackOff func() backoff.BackOff
}

func newRetrier(name string, logger *slog.Logger, recorder *metrics.Recorder, cfg RetryConfig) *retrier {
	if name == "" {
		name = "provider"
	}
	cfg = cfg.withDefaults()
	r := &retrier{name: name, logger: logger, metrics: recorder, cfg: cfg}
	r.newBackOff = func() backoff.BackOff {
		exp := backoff.NewExponentialBackOff()
		exp.InitialInterval = cfg.Initial
		exp.MaxInterval = cfg.Max
		exp.MaxElapsedTime = 0
		return exp
	}
	return r
}

func (r *retrier) do(ctx context.Context, op string, fn func(context.Context) error) error {
	policy := &retryAfterBackOff{BackOff: r.newBackOff()}
	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.cfg.MaxAttempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		start := time.Now()
		err := fn(ctx)
		r.metrics.RecordProviderAttempt(r.name, time.Since(start), err)
		if err == nil {
			return nil
		}
		rErr, ok := AsRetryableError(err)
		if !ok {
			return backoff.Permanent(err)
		}
		policy.override = rErr.RetryAfter
		return err
	}
	notify := func(err error, delay time.Duration) {
		r.metrics.RecordRetry(r.name, delay)
		logWithProvider(ctx, r.logger, slog.LevelWarn, r.name, "provider call retry",
			"op", op,
			"attempt", attempt,
			"max_attempts", r.cfg.MaxAttempts,
			"delay_ms", delay.Milliseconds(),
			"err", err,
		)
	}

	err := backoff.RetryNotify(operation, b, notify)
	if err != nil && ctx.Err() == nil {
		logWithProvider(ctx, r.logger, slog.LevelWarn, r.name, "provider call failed",
			"op", op,
			"attempts", attempt,
			"err", err,
		)
	}
	return err
}

// retryAfterBackOff honours a server-provided retry delay for the next attempt.
type retryAfterBackOff struct {
	backoff.BackOff
	override time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop {
		return next
	}
	if b.override > 0 {
		next = b.override
		b.override = 0
	}
	return next
}

type retryingPersistence struct {
	inner Persistence
	r     *retrier
}

// NewRetryingPersistence wraps inner so retryable failures are retried with backoff.
func NewRetryingPersistence(inner Persistence, name string, logger *slog.Logger, recorder *metrics.Recorder, cfg RetryConfig) Persistence {
	return &retryingPersistence{inner: inner, r: newRetrier(name, logger, recorder, cfg)}
}

func (p *retryingPersistence) LoadTeams(ctx context.Context, sportID string) ([]teams.Team, error) {
	if p.inner == nil {
		return nil, ErrProviderUnavailable
	}
	var out []teams.Team
	err := p.r.do(ctx, "load_teams", func(ctx context.Context) error {
		var err error
		out, err = p.inner.LoadTeams(ctx, sportID)
		return err
	})
	return out, err
}

func (p *retryingPersistence) LoadSchedule(ctx context.Context, sportID, season string) (schedule.Document, error) {
	if p.inner == nil {
		return schedule.Document{}, ErrProviderUnavailable
	}
	var out schedule.Document
	err := p.r.do(ctx, "load_schedule", func(ctx context.Context) error {
		var err error
		out, err = p.inner.LoadSchedule(ctx, sportID, season)
		return err
	})
	return out, err
}

func (p *retryingPersistence) SaveGame(ctx context.Context, season string, g games.Game) error {
	if p.inner == nil {
		return ErrProviderUnavailable
	}
	return p.r.do(ctx, "save_game", func(ctx context.Context) error {
		return p.inner.SaveGame(ctx, season, g)
	})
}

func (p *retryingPersistence) DeleteGame(ctx context.Context, sportID, season, gameID string) error {
	if p.inner == nil {
		return ErrProviderUnavailable
	}
	return p.r.do(ctx, "delete_game", func(ctx context.Context) error {
		return p.inner.DeleteGame(ctx, sportID, season, gameID)
	})
}

type retryingGenerator struct {
	inner Generator
	r     *retrier
}

// NewRetryingGenerator wraps inner so retryable failures are retried with backoff.
func NewRetryingGenerator(inner Generator, name string, logger *slog.Logger, recorder *metrics.Recorder, cfg RetryConfig) Generator {
	return &retryingGenerator{inner: inner, r: newRetrier(name, logger, recorder, cfg)}
}

func (g *retryingGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	if g.inner == nil {
		return Response{}, ErrProviderUnavailable
	}
	var out Response
	err := g.r.do(ctx, "generate", func(ctx context.Context) error {
		var err error
		out, err = g.inner.Generate(ctx, req)
		return err
	})
	return out, err
}
