// Package poller periodically asks the generation service for suggestions
// against the current schedule and registers the new ones.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/domain/suggestions"
	"github.com/preston-bernstein/ftbuilder/internal/logging"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
	"github.com/preston-bernstein/ftbuilder/internal/store"
)

const defaultInterval = 5 * time.Minute

// ErrNotLoaded is recorded when a cycle runs before a schedule is loaded.
var ErrNotLoaded = errors.New("schedule not loaded")

// Source supplies the schedule the generator works against.
type Source interface {
	Snapshot() store.Snapshot
}

// Registrar accepts suggestions.
type Registrar interface {
	Register(s suggestions.Suggestion) (suggestions.Suggestion, error)
	Get(id string) (suggestions.Suggestion, bool)
}

// Poller asks the generator for suggestions on an interval.
type Poller struct {
	generator   providers.Generator
	source      Source
	registrar   Registrar
	constraints []rules.Constraint
	logger      *slog.Logger
	metrics     *metrics.Recorder
	interval    time.Duration
	now         func() time.Time

	ticker   *time.Ticker
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool

	statusMu sync.RWMutex
	status   Status
}

// Status describes the recent health of the poller loop.
type Status struct {
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	LastError           string    `json:"lastError,omitempty"`
	LastAttempt         time.Time `json:"lastAttempt"`
	LastSuccess         time.Time `json:"lastSuccess"`
	Registered          int       `json:"registered"`
}

// IsReady reports whether the poller has had a recent success and is not failing repeatedly.
func (s Status) IsReady() bool {
	if s.LastSuccess.IsZero() {
		return false
	}
	return s.ConsecutiveFailures < 3
}

// New constructs a Poller with sane defaults. constraints are sent with
// every request so the generator optimizes for the active rule set.
func New(generator providers.Generator, source Source, registrar Registrar, constraints []rules.Constraint, logger *slog.Logger, recorder *metrics.Recorder, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Poller{
		generator:   generator,
		source:      source,
		registrar:   registrar,
		constraints: constraints,
		logger:      logger,
		metrics:     recorder,
		interval:    interval,
		now:         time.Now,
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
	}
}

// Start begins polling until the context is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.startMu.Lock()
	if p.started {
		p.startMu.Unlock()
		return
	}
	p.started = true
	p.startMu.Unlock()

	p.ticker = time.NewTicker(p.interval)

	go func() {
		defer close(p.stopped)
		logging.Info(p.logger, "poller started", logging.FieldDurationMS, p.interval.Milliseconds())
		p.PollOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				p.stopTicker()
				logging.Info(p.logger, "poller stopped")
				return
			case <-p.done:
				p.stopTicker()
				logging.Info(p.logger, "poller stopped")
				return
			case <-p.ticker.C:
				p.PollOnce(ctx)
			}
		}
	}()
}

// Stop halts the polling loop and waits for an in-flight cycle to finish
// or ctx to expire.
func (p *Poller) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() {
		close(p.done)
		p.stopTicker()
	})
	p.startMu.Lock()
	started := p.started
	p.startMu.Unlock()
	if !started {
		return nil
	}
	select {
	case <-p.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PollOnce runs a single cycle and returns the number of new suggestions.
func (p *Poller) PollOnce(ctx context.Context) int {
	start := p.now()
	p.recordAttempt(start)

	registered, err := p.cycle(ctx)
	p.metrics.RecordPollerCycle(p.now().Sub(start), err)
	if err != nil {
		logging.Error(p.logger, "poller cycle failed", err, logging.FieldDurationMS, p.now().Sub(start).Milliseconds())
		p.recordFailure(err, start)
		return 0
	}
	p.recordSuccess(start, registered)
	logging.Info(p.logger, "poller registered suggestions",
		logging.FieldCount, registered,
		logging.FieldDurationMS, p.now().Sub(start).Milliseconds(),
	)
	return registered
}

func (p *Poller) cycle(ctx context.Context) (int, error) {
	snap := p.source.Snapshot()
	if !snap.Loaded() {
		return 0, ErrNotLoaded
	}
	meta := snap.Schedule.Meta()
	resp, err := p.generator.Generate(ctx, providers.Request{
		SportID:     meta.SportID,
		Season:      meta.Season,
		Constraints: p.constraints,
		Games:       snap.Schedule.Games(),
	})
	if err != nil {
		return 0, err
	}

	registered := 0
	for _, s := range resp.Suggestions {
		if s.ID != "" {
			if _, known := p.registrar.Get(s.ID); known {
				continue
			}
		}
		if _, err := p.registrar.Register(s); err != nil {
			logging.Warn(p.logger, "generated suggestion rejected",
				logging.FieldSuggestionID, s.ID,
				"err", err,
			)
			continue
		}
		registered++
	}
	return registered, nil
}

func (p *Poller) stopTicker() {
	if p.ticker != nil {
		p.ticker.Stop()
	}
}

func (p *Poller) recordAttempt(at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.LastAttempt = at
}

func (p *Poller) recordSuccess(at time.Time, registered int) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.ConsecutiveFailures = 0
	p.status.LastError = ""
	p.status.LastSuccess = at
	p.status.Registered += registered
}

func (p *Poller) recordFailure(err error, at time.Time) {
	p.statusMu.Lock()
	defer p.statusMu.Unlock()
	p.status.ConsecutiveFailures++
	if err != nil {
		p.status.LastError = err.Error()
	}
	p.status.LastAttempt = at
}

// Status returns a snapshot of the poller's recent health.
func (p *Poller) Status() Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.status
}
