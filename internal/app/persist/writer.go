// Package persist mirrors committed schedule changes into the persistence
// service. The store's writer only enqueues; saves run on their own loop.
package persist

import (
	"context"
	"log/slog"
	"sync"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/logging"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
	"github.com/preston-bernstein/ftbuilder/internal/store"
)

// Subscriber is the part of the store the writer needs.
type Subscriber interface {
	Subscribe(fn func(store.ChangeEvent)) func()
}

// write is one pending save or delete.
type write struct {
	changeID string
	sportID  string
	season   string
	gameID   string
	// game is nil for deletes.
	game *games.Game
}

// Writer saves every game touched by a commit or revert.
type Writer struct {
	backend providers.Persistence
	logger  *slog.Logger
	metrics *metrics.Recorder

	mu      sync.Mutex
	pending []write
	wake    chan struct{}
	idle    *sync.Cond
	busy    bool
	stopped bool

	unsubscribe func()
}

// NewWriter subscribes to st immediately, so changes made before Run are queued.
func NewWriter(st Subscriber, backend providers.Persistence, logger *slog.Logger, recorder *metrics.Recorder) *Writer {
	w := &Writer{
		backend: backend,
		logger:  logger,
		metrics: recorder,
		wake:    make(chan struct{}, 1),
	}
	w.idle = sync.NewCond(&w.mu)
	w.unsubscribe = st.Subscribe(w.onChange)
	return w
}

// Close stops queueing changes. Queued writes are dropped once Run returns.
func (w *Writer) Close() {
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
}

// Run drains the queue until ctx is done.
func (w *Writer) Run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.stopped = true
		w.busy = false
		w.idle.Broadcast()
		w.mu.Unlock()
	}()
	w.signal()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}
		for {
			w.mu.Lock()
			batch := w.pending
			w.pending = nil
			w.busy = len(batch) > 0
			if !w.busy {
				w.idle.Broadcast()
			}
			w.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, item := range batch {
				if ctx.Err() != nil {
					return
				}
				w.apply(ctx, item)
			}
		}
	}
}

// Flush blocks until every queued write has been attempted or Run has returned.
func (w *Writer) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.stopped && (len(w.pending) > 0 || w.busy) {
		w.idle.Wait()
	}
}

// Pending reports how many writes are queued.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

func (w *Writer) onChange(ev store.ChangeEvent) {
	if ev.Kind == store.ChangeLoad || ev.After == nil || len(ev.Touched) == 0 {
		return
	}
	meta := ev.After.Meta()
	items := make([]write, 0, len(ev.Touched))
	for _, id := range ev.Touched {
		item := write{changeID: ev.ID, sportID: meta.SportID, season: meta.Season, gameID: id}
		if g, ok := ev.After.Game(id); ok {
			item.game = &g
		}
		items = append(items, item)
	}

	w.mu.Lock()
	w.pending = append(w.pending, items...)
	w.mu.Unlock()
	w.signal()
}

func (w *Writer) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Writer) apply(ctx context.Context, item write) {
	op := "save_game"
	var err error
	if item.game != nil {
		err = w.backend.SaveGame(ctx, item.season, *item.game)
	} else {
		op = "delete_game"
		err = w.backend.DeleteGame(ctx, item.sportID, item.season, item.gameID)
	}
	if err == nil {
		return
	}
	w.metrics.RecordPersistenceFailure(op)
	logging.Error(w.logger, "persisting change failed", err,
		logging.FieldChangeID, item.changeID,
		logging.FieldGameID, item.gameID,
		"op", op,
		"retryable", providers.IsRetryable(err),
	)
}
