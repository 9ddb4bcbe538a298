// Package drag implements the drag-and-drop interaction state machine:
// Idle → Dragging → Hovering → Dropped | Cancelled. At most one session is
// active per controller. Conflict previews run asynchronously and a newer
// target always supersedes an older one.
package drag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/logging"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/store"
)

var (
	// ErrSessionConflict is returned by Begin while another session is active.
	ErrSessionConflict = errors.New("drag session already active")
	// ErrNoSession is returned when no session is active.
	ErrNoSession = errors.New("no active drag session")
	// ErrNoTarget is returned when committing a drag that never reached a target.
	ErrNoTarget = errors.New("drag has no target")
	// ErrCommitting is returned for transitions attempted while a drop is being committed.
	ErrCommitting = errors.New("drag drop is being committed")
)

const (
	ReasonUser   = "cancelled by user"
	ReasonRemote = "game changed by another edit"
	ReasonStale  = "schedule changed before drop"
	ReasonClosed = "controller closed"
)

// Store is the part of the schedule store a drag needs.
type Store interface {
	Snapshot() store.Snapshot
	ProposeMove(gameID string, target games.Slot) (games.Delta, error)
	Preview(ctx context.Context, d games.Delta) ([]rules.Conflict, error)
	Commit(ctx context.Context, d games.Delta, origin store.Origin) (store.CommitResult, error)
	Subscribe(fn func(store.ChangeEvent)) func()
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDs overrides session id generation.
func WithIDs(fn func() string) Option {
	return func(c *Controller) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// Controller owns the single active drag session.
type Controller struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
	newID   func() string

	mu        sync.Mutex
	active    *Session
	last      *Session
	seq       uint64
	cancel    context.CancelFunc
	listeners []func(Session)
	// committing is set while End waits on the store.
	committing bool

	unsubscribe func()
	wg          sync.WaitGroup
}

// NewController wires a controller to st and starts listening for commits.
func NewController(st Store, logger *slog.Logger, recorder *metrics.Recorder, opts ...Option) *Controller {
	c := &Controller{
		store:   st,
		logger:  logger,
		metrics: recorder,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.unsubscribe = st.Subscribe(c.onChange)
	return c
}

// OnChange registers fn to receive every session transition, including
// completed previews. fn must not call back into the controller.
func (c *Controller) OnChange(fn func(Session)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Current returns the active session, or the most recently finished one.
func (c *Controller) Current() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		return *c.active, true
	}
	if c.last != nil {
		return *c.last, true
	}
	return Session{}, false
}

// Active reports whether a session is in progress.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// Begin picks up gameID.
func (c *Controller) Begin(gameID, actor string) (Session, error) {
	snap := c.store.Snapshot()
	if !snap.Loaded() {
		return Session{}, store.ErrNotLoaded
	}
	g, ok := snap.Schedule.Game(gameID)
	if !ok {
		return Session{}, fmt.Errorf("%w: %s", schedule.ErrUnknownGame, gameID)
	}

	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return Session{}, ErrSessionConflict
	}
	s := Session{
		ID:        c.newID(),
		GameID:    gameID,
		Actor:     actor,
		From:      g.Slot(),
		State:     Dragging{},
		StartedAt: c.now(),
	}
	c.active = &s
	c.last = nil
	listeners := c.listenersLocked()
	c.mu.Unlock()

	logging.Info(c.logger, "drag started",
		logging.FieldSessionID, s.ID,
		logging.FieldGameID, gameID,
		logging.FieldActor, actor,
	)
	emit(listeners, s)
	return s, nil
}

// UpdateTarget moves the dragged game over target and starts a preview.
// Any preview still running for an earlier target is cancelled.
func (c *Controller) UpdateTarget(ctx context.Context, target games.Slot) (Session, error) {
	c.mu.Lock()
	if err := c.transitionableLocked(); err != nil {
		c.mu.Unlock()
		return Session{}, err
	}
	delta, err := c.store.ProposeMove(c.active.GameID, target)
	if err != nil {
		c.mu.Unlock()
		return Session{}, err
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	seq := c.seq
	pctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	c.active.State = Hovering{Target: target, Delta: delta, Pending: true}
	s := *c.active
	listeners := c.listenersLocked()
	c.wg.Add(1)
	c.mu.Unlock()

	go c.preview(pctx, seq, s.ID, delta)
	emit(listeners, s)
	return s, nil
}

// Leave takes the game off its target without ending the drag.
func (c *Controller) Leave() (Session, error) {
	c.mu.Lock()
	if err := c.transitionableLocked(); err != nil {
		c.mu.Unlock()
		return Session{}, err
	}
	c.stopPreviewLocked()
	c.active.State = Dragging{}
	s := *c.active
	listeners := c.listenersLocked()
	c.mu.Unlock()
	emit(listeners, s)
	return s, nil
}

func (c *Controller) preview(ctx context.Context, seq uint64, sessionID string, delta games.Delta) {
	defer c.wg.Done()
	conflicts, err := c.store.Preview(ctx, delta)
	if ctx.Err() != nil {
		return
	}

	c.mu.Lock()
	if c.active == nil || c.active.ID != sessionID || c.seq != seq {
		c.mu.Unlock()
		return
	}
	h, ok := c.active.State.(Hovering)
	if !ok {
		c.mu.Unlock()
		return
	}
	h.Pending = false
	h.Preview = conflicts
	h.Err = err
	c.active.State = h
	s := *c.active
	listeners := c.listenersLocked()
	c.mu.Unlock()

	if err != nil {
		logging.Warn(c.logger, "drag preview failed", logging.FieldSessionID, sessionID, "error", err)
	}
	emit(listeners, s)
}

// End finishes the drag. With commit false, or without a target, the
// session is cancelled. Otherwise the move is committed; a hard-conflict
// rejection returns the session to Dragging and the error to the caller.
func (c *Controller) End(ctx context.Context, commit bool) (Session, error) {
	c.mu.Lock()
	if err := c.transitionableLocked(); err != nil {
		c.mu.Unlock()
		return Session{}, err
	}
	h, hovering := c.active.State.(Hovering)
	if !commit || !hovering {
		s, listeners := c.finishLocked(Cancelled{Reason: ReasonUser})
		c.mu.Unlock()
		c.metrics.RecordDragOutcome("cancelled")
		emit(listeners, s)
		if commit {
			return s, ErrNoTarget
		}
		return s, nil
	}
	c.stopPreviewLocked()
	sessionID := c.active.ID
	origin := store.Origin{Kind: store.OriginLocal, Actor: c.active.Actor, SessionID: sessionID}
	c.committing = true
	c.mu.Unlock()

	// The lock is released while committing: the store notifies
	// subscribers, including this controller, before Commit returns.
	// Other transitions fail with ErrCommitting until it does.
	res, err := c.store.Commit(ctx, h.Delta, origin)

	c.mu.Lock()
	c.committing = false
	if c.active == nil || c.active.ID != sessionID {
		c.mu.Unlock()
		if err != nil {
			return Session{}, err
		}
		return Session{}, ErrNoSession
	}

	var (
		s         Session
		listeners []func(Session)
	)
	switch {
	case err == nil:
		s, listeners = c.finishLocked(Dropped{ChangeID: res.ChangeID, Conflicts: res.Conflicts})
		c.mu.Unlock()
		c.metrics.RecordDragOutcome("dropped")
		logging.Info(c.logger, "drag dropped",
			logging.FieldSessionID, sessionID,
			logging.FieldChangeID, res.ChangeID,
		)
	case errors.As(err, new(*store.ConflictRejectedError)):
		c.active.State = Dragging{}
		s = *c.active
		listeners = c.listenersLocked()
		c.mu.Unlock()
		c.metrics.RecordDragOutcome("rejected")
		logging.Info(c.logger, "drag drop rejected", logging.FieldSessionID, sessionID)
	case errors.Is(err, schedule.ErrStaleDelta):
		s, listeners = c.finishLocked(Cancelled{Reason: ReasonStale})
		c.mu.Unlock()
		c.metrics.RecordDragOutcome("cancelled")
	default:
		c.active.State = h
		s = *c.active
		c.mu.Unlock()
		return s, err
	}
	emit(listeners, s)
	return s, err
}

// Close cancels any active session and stops listening to the store.
func (c *Controller) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.mu.Lock()
	var (
		s         Session
		listeners []func(Session)
		ended     bool
	)
	if c.active != nil {
		s, listeners = c.finishLocked(Cancelled{Reason: ReasonClosed})
		ended = true
	}
	c.mu.Unlock()
	c.wg.Wait()
	if ended {
		emit(listeners, s)
	}
}

// onChange runs on the store's writer goroutine.
func (c *Controller) onChange(ev store.ChangeEvent) {
	c.mu.Lock()
	if c.active == nil || ev.Origin.SessionID == c.active.ID {
		c.mu.Unlock()
		return
	}
	if ev.Touches(c.active.GameID) {
		id := c.active.ID
		s, listeners := c.finishLocked(Cancelled{Reason: ReasonRemote})
		c.mu.Unlock()
		c.metrics.RecordDragOutcome("cancelled")
		logging.Info(c.logger, "drag cancelled by concurrent change",
			logging.FieldSessionID, id,
			logging.FieldChangeID, ev.ID,
			logging.FieldOrigin, string(ev.Origin.Kind),
		)
		emit(listeners, s)
		return
	}

	// Other games moved; the hovering preview may no longer be accurate.
	h, ok := c.active.State.(Hovering)
	if !ok || c.committing {
		c.mu.Unlock()
		return
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	seq := c.seq
	pctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	h.Pending = true
	c.active.State = h
	sessionID := c.active.ID
	c.wg.Add(1)
	c.mu.Unlock()

	go c.preview(pctx, seq, sessionID, h.Delta)
}

func (c *Controller) transitionableLocked() error {
	if c.active == nil {
		return ErrNoSession
	}
	if c.committing {
		return ErrCommitting
	}
	return nil
}

func (c *Controller) finishLocked(final State) (Session, []func(Session)) {
	c.stopPreviewLocked()
	c.active.State = final
	s := *c.active
	c.last = &s
	c.active = nil
	return s, c.listenersLocked()
}

func (c *Controller) stopPreviewLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
}

func (c *Controller) listenersLocked() []func(Session) {
	out := make([]func(Session), len(c.listeners))
	copy(out, c.listeners)
	return out
}

func emit(listeners []func(Session), s Session) {
	for _, fn := range listeners {
		fn(s)
	}
}
