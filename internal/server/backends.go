package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/preston-bernstein/ftbuilder/internal/config"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
	"github.com/preston-bernstein/ftbuilder/internal/providers/fixture"
	"github.com/preston-bernstein/ftbuilder/internal/providers/httpgen"
	"github.com/preston-bernstein/ftbuilder/internal/providers/sqlite"
)

// backendFactory assembles persistence and generation backends with the
// shared wrappers (rate limit + retry).
type backendFactory struct {
	logger  *slog.Logger
	metrics *metrics.Recorder
}

func newBackendFactory(logger *slog.Logger, recorder *metrics.Recorder) backendFactory {
	return backendFactory{logger: logger, metrics: recorder}
}

// persistence opens the configured backend. The returned closer releases
// it and is never nil.
func (f backendFactory) persistence(ctx context.Context, cfg config.Config) (providers.Persistence, io.Closer, error) {
	retry := providers.RetryConfig{MaxAttempts: cfg.Persistence.RetryAttempts}
	switch cfg.Persistence.Backend {
	case config.BackendSQLite:
		path := cfg.Persistence.SQLitePath
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		db, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, err
		}
		if cfg.Persistence.SeedFixture {
			if err := seedIfEmpty(ctx, db, cfg, f.logger); err != nil {
				_ = db.Close()
				return nil, nil, err
			}
		}
		return providers.NewRetryingPersistence(db, config.BackendSQLite, f.logger, f.metrics, retry), db, nil
	default:
		return providers.NewRetryingPersistence(fixture.New(), config.BackendFixture, f.logger, f.metrics, retry), nopCloser{}, nil
	}
}

// seedIfEmpty writes the fixture conference when the configured season has no games.
func seedIfEmpty(ctx context.Context, db *sqlite.Store, cfg config.Config, logger *slog.Logger) error {
	if cfg.SportID != fixture.SportID || cfg.Season != fixture.Season {
		return nil
	}
	doc, err := db.LoadSchedule(ctx, cfg.SportID, cfg.Season)
	if err != nil {
		return fmt.Errorf("inspect sqlite schedule: %w", err)
	}
	if len(doc.Games) > 0 {
		return nil
	}
	if logger != nil {
		logger.Info("seeding empty sqlite store with fixture schedule", slog.String("path", cfg.Persistence.SQLitePath))
	}
	return db.Seed(ctx, fixture.Meta(), fixture.Teams(), fixture.Games())
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// generator builds the configured generation backend. stop releases the
// rate limiter's ticker.
func (f backendFactory) generator(cfg config.Config) (gen providers.Generator, stop func()) {
	switch cfg.Generator.Backend {
	case config.BackendHTTP:
		client := httpgen.NewClient(httpgen.Config{
			BaseURL:  cfg.Generator.BaseURL,
			APIKey:   cfg.Generator.APIKey,
			MaxPages: cfg.Generator.MaxPages,
			Logger:   f.logger,
		})
		// Shared rate limiter to respect upstream quota.
		limited := providers.NewRateLimitedGenerator(client, cfg.Generator.Every, f.logger)
		stop = func() {}
		if c, ok := limited.(interface{ Close() }); ok {
			stop = c.Close
		}
		return providers.NewRetryingGenerator(limited, config.BackendHTTP, f.logger, f.metrics, providers.RetryConfig{}), stop
	default:
		return providers.NewRetryingGenerator(fixture.NewGenerator(), config.BackendFixture, f.logger, f.metrics, providers.RetryConfig{}), func() {}
	}
}
