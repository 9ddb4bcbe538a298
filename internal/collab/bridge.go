package collab

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/logging"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/store"
)

const seenLimit = 1024

// Store is the part of the schedule store the bridge needs.
type Store interface {
	Snapshot() store.Snapshot
	Commit(ctx context.Context, d games.Delta, origin store.Origin) (store.CommitResult, error)
	Subscribe(fn func(store.ChangeEvent)) func()
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithClock overrides time.Now for envelope timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		if now != nil {
			b.now = now
		}
	}
}

// Bridge connects a store to a transport.
type Bridge struct {
	store     Store
	transport Transport
	actor     string
	logger    *slog.Logger
	metrics   *metrics.Recorder
	now       func() time.Time

	mu      sync.Mutex
	pending []Envelope
	wake    chan struct{}

	seen      map[string]struct{}
	seenOrder []string

	unsubscribe func()
}

// NewBridge creates a bridge publishing local commits as actor.
func NewBridge(st Store, tr Transport, actor string, logger *slog.Logger, recorder *metrics.Recorder, opts ...Option) *Bridge {
	b := &Bridge{
		store:     st,
		transport: tr,
		actor:     actor,
		logger:    logger,
		metrics:   recorder,
		now:       time.Now,
		wake:      make(chan struct{}, 1),
		seen:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.unsubscribe = st.Subscribe(b.onChange)
	return b
}

// Close stops queueing local commits.
func (b *Bridge) Close() {
	if b.unsubscribe != nil {
		b.unsubscribe()
	}
}

// Run consumes remote envelopes and publishes local commits until ctx is
// done or the transport closes. Commits made before Run are queued and
// published once it starts. It returns nil on a clean stop.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b.publishLoop(ctx)
	}()
	b.signal()

	logging.Info(b.logger, "collaboration bridge started", logging.FieldActor, b.actor)
	err := b.receiveLoop(ctx)
	cancel()
	wg.Wait()
	logging.Info(b.logger, "collaboration bridge stopped", logging.FieldActor, b.actor)
	return err
}

func (b *Bridge) receiveLoop(ctx context.Context) error {
	for {
		env, err := b.transport.Receive(ctx)
		switch {
		case err == nil:
			b.apply(ctx, env)
		case errors.Is(err, ErrInvalidEnvelope):
			b.metrics.RecordCollab("in", "invalid")
			logging.Warn(b.logger, "collaboration envelope dropped", "err", err)
		case ctx.Err() != nil, errors.Is(err, ErrTransportClosed):
			return nil
		default:
			return err
		}
	}
}

// apply commits a remote delta through the store's queue.
func (b *Bridge) apply(ctx context.Context, env Envelope) {
	if env.Actor == b.actor {
		return
	}
	if !b.markSeen(env.ID) {
		b.metrics.RecordCollab("in", "duplicate")
		return
	}
	if snap := b.store.Snapshot(); snap.Loaded() && !scope(env, snap.Schedule.Meta()) {
		b.metrics.RecordCollab("in", "out_of_scope")
		return
	}

	res, err := b.store.Commit(ctx, env.Delta, store.Origin{Kind: store.OriginRemote, Actor: env.Actor})
	outcome := inboundOutcome(res, err)
	b.metrics.RecordCollab("in", outcome)
	args := []any{
		"envelope_id", env.ID,
		logging.FieldActor, env.Actor,
		"outcome", outcome,
	}
	if err != nil {
		logging.Warn(b.logger, "remote delta not applied", append(args, "err", err)...)
		return
	}
	logging.Info(b.logger, "remote delta applied", append(args, logging.FieldChangeID, res.ChangeID)...)
}

func inboundOutcome(res store.CommitResult, err error) string {
	if err == nil {
		if res.NoOp {
			return "noop"
		}
		return "applied"
	}
	if _, ok := store.AsConflictRejected(err); ok {
		return "rejected"
	}
	if errors.Is(err, schedule.ErrStaleDelta) || errors.Is(err, schedule.ErrUnknownGame) || errors.Is(err, schedule.ErrDuplicateGame) {
		return "stale"
	}
	return "error"
}

func (b *Bridge) markSeen(id string) bool {
	if _, ok := b.seen[id]; ok {
		return false
	}
	b.seen[id] = struct{}{}
	b.seenOrder = append(b.seenOrder, id)
	if len(b.seenOrder) > seenLimit {
		delete(b.seen, b.seenOrder[0])
		b.seenOrder = b.seenOrder[1:]
	}
	return true
}

// onChange runs on the store's writer goroutine and only queues.
func (b *Bridge) onChange(ev store.ChangeEvent) {
	if ev.Kind == store.ChangeLoad || ev.Origin.Kind == store.OriginRemote {
		return
	}
	d := DeltaOf(ev)
	if d.IsEmpty() {
		return
	}
	meta := ev.After.Meta()
	env := Envelope{
		ID:      ev.ID,
		Actor:   b.actor,
		SportID: meta.SportID,
		Season:  meta.Season,
		Delta:   d,
		SentAt:  b.now().UTC(),
	}
	b.mu.Lock()
	b.pending = append(b.pending, env)
	b.mu.Unlock()
	b.signal()
}

func (b *Bridge) signal() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bridge) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}
		b.mu.Lock()
		batch := b.pending
		b.pending = nil
		b.mu.Unlock()

		for _, env := range batch {
			if err := b.transport.Publish(ctx, env); err != nil {
				if ctx.Err() != nil {
					return
				}
				b.metrics.RecordCollab("out", "error")
				logging.Warn(b.logger, "publish local change failed",
					logging.FieldChangeID, env.ID,
					"err", err,
				)
				continue
			}
			b.metrics.RecordCollab("out", "published")
		}
	}
}
