// Package store owns the canonical schedule for one sport and season.
// Every mutation is funnelled through a single writer goroutine so commits
// from local drags, accepted suggestions and remote collaborators are
// applied strictly one at a time.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/preston-bernstein/ftbuilder/internal/constraints"
	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
	"github.com/preston-bernstein/ftbuilder/internal/logging"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
)

const (
	defaultUndoDepth = 100
	tracerName       = "github.com/preston-bernstein/ftbuilder/internal/store"
)

// Option configures a Store.
type Option func(*Store)

// WithUndoDepth bounds the number of revertable changes kept.
func WithUndoDepth(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.undoDepth = n
		}
	}
}

// WithClock overrides time.Now for change timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDs overrides change id generation.
func WithIDs(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

type state struct {
	schedule  *schedule.Schedule
	teams     teams.Index
	conflicts []rules.Conflict
	revision  uint64
}

type undoEntry struct {
	changeID  string
	before    *schedule.Schedule
	conflicts []rules.Conflict
}

// Store is the single-writer schedule store.
type Store struct {
	engine  *constraints.Engine
	logger  *slog.Logger
	metrics *metrics.Recorder
	tracer  trace.Tracer

	now       func() time.Time
	newID     func() string
	undoDepth int

	mu    sync.RWMutex
	state state
	// undo is only touched by the writer goroutine.
	undo []undoEntry

	subMu   sync.Mutex
	subs    map[int]func(ChangeEvent)
	nextSub int

	requests  chan func()
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New starts a store backed by the given engine. Call Close to stop the writer.
func New(engine *constraints.Engine, logger *slog.Logger, recorder *metrics.Recorder, opts ...Option) *Store {
	s := &Store{
		engine:    engine,
		logger:    logger,
		metrics:   recorder,
		tracer:    otel.Tracer(tracerName),
		now:       time.Now,
		newID:     uuid.NewString,
		undoDepth: defaultUndoDepth,
		subs:      make(map[int]func(ChangeEvent)),
		requests:  make(chan func()),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.wg.Add(1)
	go s.run()
	return s
}

// Close stops the writer. Pending submissions return ErrClosed.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
}

func (s *Store) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case fn := <-s.requests:
			fn()
		}
	}
}

// submit hands fn to the writer and waits for it to finish. Once accepted,
// fn always runs to completion.
func (s *Store) submit(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	req := func() {
		defer close(finished)
		fn()
	}
	select {
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	case s.requests <- req:
	}
	<-finished
	return nil
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Schedule:  s.state.schedule,
		Teams:     s.state.teams,
		Conflicts: s.state.conflicts,
		Revision:  s.state.revision,
	}
}

// Engine exposes the constraint engine the store validates with.
func (s *Store) Engine() *constraints.Engine {
	return s.engine
}

// Subscribe registers fn for change events and returns a function that
// removes it. Callbacks run on the writer goroutine in commit order and
// must not call Commit, Revert or Load.
func (s *Store) Subscribe(fn func(ChangeEvent)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(ev ChangeEvent) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	fns := make([]func(ChangeEvent), 0, len(ids))
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Load replaces the canonical schedule. On error the previous state is kept.
func (s *Store) Load(ctx context.Context, meta schedule.Meta, list []games.Game, roster []teams.Team) error {
	known := teams.NewIndex(roster)
	if len(known) != len(roster) {
		return fmt.Errorf("%w: duplicate team id", ErrInvalidSchedule)
	}
	ids := make(map[string]struct{}, len(list))
	for _, g := range list {
		if _, dup := ids[g.ID]; dup {
			return fmt.Errorf("%w: %v: %s", ErrInvalidSchedule, schedule.ErrDuplicateGame, g.ID)
		}
		ids[g.ID] = struct{}{}
	}
	next := schedule.New(meta, list)
	if err := next.Validate(known); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}
	conflicts, err := s.engine.Evaluate(ctx, next, known, constraints.Options{})
	if err != nil {
		return err
	}

	return s.submit(ctx, func() {
		s.mu.Lock()
		before := s.state.schedule
		s.state = state{
			schedule:  next,
			teams:     known,
			conflicts: conflicts,
			revision:  s.state.revision + 1,
		}
		rev := s.state.revision
		s.mu.Unlock()
		s.undo = nil

		logging.Info(s.logger, "schedule loaded",
			logging.FieldSportID, meta.SportID,
			logging.FieldSeason, meta.Season,
			logging.FieldCount, next.Len(),
			logging.FieldRevision, rev,
		)
		s.metrics.RecordConflicts(len(rules.Hard(conflicts)), len(conflicts)-len(rules.Hard(conflicts)))
		s.notify(ChangeEvent{
			ID:        s.newID(),
			Kind:      ChangeLoad,
			Revision:  rev,
			Before:    before,
			After:     next,
			Touched:   touchedAgainst(before, next),
			Conflicts: conflicts,
			At:        s.now(),
		})
	})
}

// ProposeMove builds the provisional delta that moves gameID to target. It
// does not touch the store.
func (s *Store) ProposeMove(gameID string, target games.Slot) (games.Delta, error) {
	snap := s.Snapshot()
	if !snap.Loaded() {
		return games.Delta{}, ErrNotLoaded
	}
	g, ok := snap.Schedule.Game(gameID)
	if !ok {
		return games.Delta{}, fmt.Errorf("%w: %s", schedule.ErrUnknownGame, gameID)
	}
	if err := target.Validate(); err != nil {
		return games.Delta{}, err
	}
	return games.Move(gameID, g.Slot(), target), nil
}

// Preview evaluates d against the current state without committing it.
func (s *Store) Preview(ctx context.Context, d games.Delta) ([]rules.Conflict, error) {
	snap := s.Snapshot()
	if !snap.Loaded() {
		return nil, ErrNotLoaded
	}
	conflicts, _, err := s.engine.EvaluateDelta(ctx, snap.Schedule, snap.Teams, d, &constraints.Baseline{Conflicts: snap.Conflicts}, constraints.Options{})
	return conflicts, err
}

// Conflicts returns the current conflicts. With FullSeason set the whole
// schedule is re-evaluated including season-level rules.
func (s *Store) Conflicts(ctx context.Context, opts constraints.Options) ([]rules.Conflict, error) {
	snap := s.Snapshot()
	if !snap.Loaded() {
		return nil, ErrNotLoaded
	}
	if !opts.FullSeason {
		return snap.Conflicts, nil
	}
	return s.engine.Evaluate(ctx, snap.Schedule, snap.Teams, opts)
}

// Commit applies d atomically. It fails with ConflictRejectedError when the
// resulting schedule holds any hard conflict and with schedule.ErrStaleDelta when a move was
// prepared against a slot the game no longer occupies.
func (s *Store) Commit(ctx context.Context, d games.Delta, origin Origin) (CommitResult, error) {
	if origin.Kind == "" {
		origin.Kind = OriginLocal
	}
	var (
		res       CommitResult
		commitErr error
	)
	err := s.submit(ctx, func() {
		res, commitErr = s.commit(ctx, d, origin)
	})
	if err != nil {
		return CommitResult{}, err
	}
	return res, commitErr
}

func (s *Store) commit(ctx context.Context, d games.Delta, origin Origin) (CommitResult, error) {
	start := s.now()
	ctx, span := s.tracer.Start(ctx, "store.Commit", trace.WithAttributes(
		attribute.String("origin", string(origin.Kind)),
		attribute.Int("ops", len(d.Ops)),
	))
	defer span.End()

	outcome := "error"
	defer func() {
		s.metrics.RecordCommit(string(origin.Kind), outcome, s.now().Sub(start))
	}()

	s.mu.RLock()
	cur := s.state
	s.mu.RUnlock()
	if cur.schedule == nil {
		return CommitResult{}, ErrNotLoaded
	}

	applied, err := cur.schedule.Apply(d)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return CommitResult{}, err
	}
	touched := schedule.Touched(cur.schedule, applied)
	if len(touched) == 0 {
		outcome = "noop"
		return CommitResult{Revision: cur.revision, Conflicts: cur.conflicts, NoOp: true}, nil
	}
	if err := applied.ValidateReferences(cur.teams); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return CommitResult{}, fmt.Errorf("%w: %w", ErrInvalidDelta, err)
	}

	conflicts, next, err := s.engine.EvaluateDelta(ctx, cur.schedule, cur.teams, d, &constraints.Baseline{Conflicts: cur.conflicts}, constraints.Options{})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return CommitResult{}, err
	}
	if hard := rules.Hard(conflicts); len(hard) > 0 {
		outcome = "rejected"
		span.SetAttributes(attribute.Int("hard_conflicts", len(hard)))
		logging.Warn(s.logger, "commit rejected", logging.Attribution(string(origin.Kind), origin.Actor,
			logging.FieldCount, len(hard),
			"introduced", len(rules.Introduced(cur.conflicts, hard)),
		)...)
		return CommitResult{}, &ConflictRejectedError{Conflicts: hard}
	}

	changeID := s.newID()
	s.mu.Lock()
	s.state = state{
		schedule:  next,
		teams:     cur.teams,
		conflicts: conflicts,
		revision:  cur.revision + 1,
	}
	rev := s.state.revision
	s.mu.Unlock()

	s.undo = append(s.undo, undoEntry{changeID: changeID, before: cur.schedule, conflicts: cur.conflicts})
	if over := len(s.undo) - s.undoDepth; over > 0 {
		s.undo = append([]undoEntry(nil), s.undo[over:]...)
	}

	outcome = "applied"
	hard := len(rules.Hard(conflicts))
	s.metrics.RecordConflicts(hard, len(conflicts)-hard)
	logging.Info(s.logger, "change committed", logging.Attribution(string(origin.Kind), origin.Actor,
		logging.FieldChangeID, changeID,
		logging.FieldRevision, rev,
		logging.FieldCount, len(touched),
	)...)

	s.notify(ChangeEvent{
		ID:        changeID,
		Kind:      ChangeCommit,
		Origin:    origin,
		Revision:  rev,
		Before:    cur.schedule,
		After:     next,
		Touched:   touched,
		Conflicts: conflicts,
		At:        s.now(),
	})
	return CommitResult{ChangeID: changeID, Revision: rev, Conflicts: conflicts, Touched: touched}, nil
}

// Revert restores the schedule as it was before changeID and drops that
// change and every later one from the undo log.
func (s *Store) Revert(ctx context.Context, changeID string, origin Origin) (CommitResult, error) {
	if origin.Kind == "" {
		origin.Kind = OriginLocal
	}
	var (
		res       CommitResult
		revertErr error
	)
	err := s.submit(ctx, func() {
		res, revertErr = s.revert(changeID, origin)
	})
	if err != nil {
		return CommitResult{}, err
	}
	return res, revertErr
}

func (s *Store) revert(changeID string, origin Origin) (CommitResult, error) {
	idx := -1
	for i, entry := range s.undo {
		if entry.changeID == changeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return CommitResult{}, fmt.Errorf("%w: %s", ErrUnknownChange, changeID)
	}
	entry := s.undo[idx]
	s.undo = s.undo[:idx]

	s.mu.Lock()
	cur := s.state
	s.state = state{
		schedule:  entry.before,
		teams:     cur.teams,
		conflicts: entry.conflicts,
		revision:  cur.revision + 1,
	}
	rev := s.state.revision
	s.mu.Unlock()

	s.metrics.RecordCommit(string(origin.Kind), "reverted", 0)
	touched := schedule.Touched(cur.schedule, entry.before)
	logging.Info(s.logger, "change reverted", logging.Attribution(string(origin.Kind), origin.Actor,
		logging.FieldChangeID, changeID,
		logging.FieldRevision, rev,
		logging.FieldCount, len(touched),
	)...)

	revertID := s.newID()
	s.notify(ChangeEvent{
		ID:        revertID,
		Kind:      ChangeRevert,
		Origin:    origin,
		Revision:  rev,
		Before:    cur.schedule,
		After:     entry.before,
		Touched:   touched,
		Conflicts: entry.conflicts,
		Reverted:  changeID,
		At:        s.now(),
	})
	return CommitResult{ChangeID: revertID, Revision: rev, Conflicts: entry.conflicts, Touched: touched}, nil
}

// History returns the revertable change ids, oldest first.
func (s *Store) History(ctx context.Context) ([]string, error) {
	var out []string
	err := s.submit(ctx, func() {
		out = make([]string, 0, len(s.undo))
		for _, entry := range s.undo {
			out = append(out, entry.changeID)
		}
	})
	return out, err
}

func touchedAgainst(before, after *schedule.Schedule) []string {
	if before == nil {
		before = schedule.Empty(after.Meta())
	}
	return schedule.Touched(before, after)
}
