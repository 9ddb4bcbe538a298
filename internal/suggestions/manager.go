// Package suggestions tracks externally produced schedule suggestions and
// keeps them honest against the canonical schedule: a suggestion whose
// games were changed by an unrelated edit becomes stale and can no longer
// be applied.
package suggestions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	domain "github.com/preston-bernstein/ftbuilder/internal/domain/suggestions"
	"github.com/preston-bernstein/ftbuilder/internal/logging"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/store"
)

var (
	ErrUnknownSuggestion   = errors.New("unknown suggestion")
	ErrInvalidSuggestion   = errors.New("invalid suggestion")
	ErrSuggestionApplied   = errors.New("suggestion already applied")
	ErrSuggestionDismissed = errors.New("suggestion dismissed")
)

// StaleSuggestionError is returned when applying a suggestion whose games
// changed after it was registered.
type StaleSuggestionError struct {
	ID       string
	ChangeID string
}

func (e *StaleSuggestionError) Error() string {
	if e.ChangeID != "" {
		return fmt.Sprintf("suggestion %s is stale (invalidated by change %s)", e.ID, e.ChangeID)
	}
	return fmt.Sprintf("suggestion %s is stale", e.ID)
}

// Store is the part of the schedule store the manager needs.
type Store interface {
	Snapshot() store.Snapshot
	Commit(ctx context.Context, d games.Delta, origin store.Origin) (store.CommitResult, error)
	Revert(ctx context.Context, changeID string, origin store.Origin) (store.CommitResult, error)
	Subscribe(fn func(store.ChangeEvent)) func()
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDs overrides id generation for suggestions registered without one.
func WithIDs(fn func() string) Option {
	return func(m *Manager) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// Manager owns the suggestion lifecycle.
type Manager struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time
	newID   func() string

	// applyMu serializes Apply so a suggestion is committed at most once.
	applyMu sync.Mutex

	mu    sync.Mutex
	items map[string]*domain.Suggestion
	order []string

	unsubscribe func()
}

// NewManager subscribes a manager to st.
func NewManager(st Store, logger *slog.Logger, recorder *metrics.Recorder, opts ...Option) *Manager {
	m := &Manager{
		store:   st,
		logger:  logger,
		metrics: recorder,
		now:     time.Now,
		newID:   uuid.NewString,
		items:   make(map[string]*domain.Suggestion),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.unsubscribe = st.Subscribe(m.onChange)
	return m
}

// Close stops tracking commits.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Register validates s against the current schedule and records it as
// proposed. Moves and removes without a From slot are pinned to the game's
// current slot.
func (m *Manager) Register(s domain.Suggestion) (domain.Suggestion, error) {
	if err := s.Validate(); err != nil {
		return domain.Suggestion{}, fmt.Errorf("%w: %v", ErrInvalidSuggestion, err)
	}
	snap := m.store.Snapshot()
	if !snap.Loaded() {
		return domain.Suggestion{}, store.ErrNotLoaded
	}
	s.Delta = pin(s.Delta, snap.Schedule)
	if _, err := snap.Schedule.Apply(s.Delta); err != nil {
		return domain.Suggestion{}, fmt.Errorf("%w: %v", ErrInvalidSuggestion, err)
	}

	if s.ID == "" {
		s.ID = m.newID()
	}
	s.Status = domain.StatusProposed
	s.ChangeID = ""
	s.StaleBy = ""
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.now()
	}

	m.mu.Lock()
	if _, exists := m.items[s.ID]; exists {
		m.mu.Unlock()
		return domain.Suggestion{}, fmt.Errorf("%w: duplicate id %s", ErrInvalidSuggestion, s.ID)
	}
	stored := s
	m.items[s.ID] = &stored
	m.order = append(m.order, s.ID)
	m.mu.Unlock()

	m.metrics.RecordSuggestion(string(domain.StatusProposed))
	logging.Info(m.logger, "suggestion registered",
		logging.FieldSuggestionID, s.ID,
		"source", string(s.Source),
		logging.FieldCount, len(s.Delta.Ops),
	)
	return s, nil
}

// Apply commits the suggestion's delta. A hard-conflict rejection leaves
// the suggestion proposed and returns the store's error. A suggestion that
// goes stale while its commit is in flight is never marked applied; the
// commit is reverted instead.
func (m *Manager) Apply(ctx context.Context, id string) (store.CommitResult, error) {
	m.applyMu.Lock()
	defer m.applyMu.Unlock()

	m.mu.Lock()
	s, ok := m.items[id]
	if !ok {
		m.mu.Unlock()
		return store.CommitResult{}, fmt.Errorf("%w: %s", ErrUnknownSuggestion, id)
	}
	if err := applicable(s); err != nil {
		m.mu.Unlock()
		return store.CommitResult{}, err
	}
	delta := s.Delta
	m.mu.Unlock()

	origin := store.Origin{Kind: store.OriginSuggestion, SuggestionID: id}
	res, err := m.store.Commit(ctx, delta, origin)

	m.mu.Lock()
	switch {
	case err == nil && s.Status == domain.StatusStale:
		staleBy := s.StaleBy
		m.mu.Unlock()
		if _, rerr := m.store.Revert(ctx, res.ChangeID, origin); rerr != nil {
			logging.Error(m.logger, "stale suggestion revert failed", rerr,
				logging.FieldSuggestionID, id,
				logging.FieldChangeID, res.ChangeID,
			)
			return store.CommitResult{}, fmt.Errorf("revert stale suggestion %s: %w", id, rerr)
		}
		return store.CommitResult{}, &StaleSuggestionError{ID: id, ChangeID: staleBy}
	case err == nil:
		defer m.mu.Unlock()
		s.Status = domain.StatusApplied
		s.ChangeID = res.ChangeID
		m.metrics.RecordSuggestion(string(domain.StatusApplied))
		logging.Info(m.logger, "suggestion applied",
			logging.FieldSuggestionID, id,
			logging.FieldChangeID, res.ChangeID,
		)
		return res, nil
	case errors.Is(err, schedule.ErrStaleDelta), errors.Is(err, schedule.ErrUnknownGame), errors.Is(err, schedule.ErrDuplicateGame):
		defer m.mu.Unlock()
		if s.Status != domain.StatusStale {
			m.markStaleLocked(s, "")
		}
		return store.CommitResult{}, &StaleSuggestionError{ID: id, ChangeID: s.StaleBy}
	default:
		m.mu.Unlock()
		return store.CommitResult{}, err
	}
}

// Dismiss retires a suggestion without applying it.
func (m *Manager) Dismiss(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSuggestion, id)
	}
	switch s.Status {
	case domain.StatusApplied:
		return ErrSuggestionApplied
	case domain.StatusDismissed:
		return nil
	case domain.StatusProposed, domain.StatusStale:
		s.Status = domain.StatusDismissed
		m.metrics.RecordSuggestion(string(domain.StatusDismissed))
		return nil
	default:
		return fmt.Errorf("suggestion %s has unknown status %q", id, s.Status)
	}
}

// Get returns a suggestion by id.
func (m *Manager) Get(id string) (domain.Suggestion, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.items[id]
	if !ok {
		return domain.Suggestion{}, false
	}
	return *s, true
}

// Active returns proposed suggestions in registration order.
func (m *Manager) Active() []domain.Suggestion {
	return m.list(func(s *domain.Suggestion) bool { return s.Status == domain.StatusProposed })
}

// All returns every suggestion in registration order.
func (m *Manager) All() []domain.Suggestion {
	return m.list(func(*domain.Suggestion) bool { return true })
}

func (m *Manager) list(keep func(*domain.Suggestion) bool) []domain.Suggestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Suggestion, 0, len(m.order))
	for _, id := range m.order {
		if s := m.items[id]; keep(s) {
			out = append(out, *s)
		}
	}
	return out
}

// onChange runs on the store's writer goroutine.
func (m *Manager) onChange(ev store.ChangeEvent) {
	if len(ev.Touched) == 0 {
		return
	}
	touched := make(map[string]struct{}, len(ev.Touched))
	for _, id := range ev.Touched {
		touched[id] = struct{}{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.order {
		s := m.items[id]
		if s.Status != domain.StatusProposed && s.Status != domain.StatusApplied {
			continue
		}
		if ev.Origin.SuggestionID == s.ID {
			continue
		}
		for _, ref := range s.References() {
			if _, hit := touched[ref]; hit {
				m.markStaleLocked(s, ev.ID)
				break
			}
		}
	}
}

func (m *Manager) markStaleLocked(s *domain.Suggestion, changeID string) {
	s.Status = domain.StatusStale
	s.StaleBy = changeID
	m.metrics.RecordSuggestion(string(domain.StatusStale))
	logging.Info(m.logger, "suggestion stale",
		logging.FieldSuggestionID, s.ID,
		logging.FieldChangeID, changeID,
	)
}

func applicable(s *domain.Suggestion) error {
	switch s.Status {
	case domain.StatusProposed:
		return nil
	case domain.StatusApplied:
		return ErrSuggestionApplied
	case domain.StatusDismissed:
		return ErrSuggestionDismissed
	case domain.StatusStale:
		return &StaleSuggestionError{ID: s.ID, ChangeID: s.StaleBy}
	default:
		return fmt.Errorf("suggestion %s has unknown status %q", s.ID, s.Status)
	}
}

// pin fills in the From slot of moves and removes so they fail as stale if
// the game moves before the suggestion is applied.
func pin(d games.Delta, current *schedule.Schedule) games.Delta {
	out := games.Delta{Ops: make([]games.Op, len(d.Ops))}
	copy(out.Ops, d.Ops)
	for i, op := range out.Ops {
		if (op.Kind != games.OpMove && op.Kind != games.OpRemove) || op.From != nil {
			continue
		}
		if g, ok := current.Game(op.GameID); ok {
			slot := g.Slot()
			out.Ops[i].From = &slot
		}
	}
	return out
}
