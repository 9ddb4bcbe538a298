package providers

import (
	"context"
	"log/slog"
	"time"
)

// rateLimitedGenerator wraps a Generator and enforces a minimum interval between calls.
type rateLimitedGenerator struct {
	next     Generator
	interval time.Duration
	ticker   *time.Ticker
	logger   *slog.Logger
}

// NewRateLimitedGenerator returns a Generator that limits calls to the given interval.
// Calls block until the interval elapses to avoid exceeding upstream quotas.
func NewRateLimitedGenerator(next Generator, interval time.Duration, logger *slog.Logger) Generator {
	if interval <= 0 {
		interval = time.Minute
	}
	return &rateLimitedGenerator{
		next:     next,
		interval: interval,
		ticker:   time.NewTicker(interval),
		logger:   logger,
	}
}

func (p *rateLimitedGenerator) Generate(ctx context.Context, req Request) (Response, error) {
	if p == nil || p.next == nil {
		if p != nil {
			logWithProvider(ctx, p.logger, slog.LevelWarn, "rate-limited", "provider unavailable")
		}
		return Response{}, ErrProviderUnavailable
	}
	select {
	case <-ctx.Done():
		logWithProvider(ctx, p.logger, slog.LevelWarn, "rate-limited", "rate-limited generate canceled")
		return Response{}, ctx.Err()
	case <-p.ticker.C:
	}
	logWithProvider(ctx, p.logger, slog.LevelInfo, "rate-limited", "rate-limited generate", "sport_id", req.SportID, "season", req.Season)
	return p.next.Generate(ctx, req)
}

// Close stops the ticker.
func (p *rateLimitedGenerator) Close() {
	if p != nil && p.ticker != nil {
		p.ticker.Stop()
	}
}
