// Package workspace is the consumer-facing API over one schedule: change
// subscriptions, view models, drag sessions, suggestions and loading.
package workspace

import (
	"context"
	"log/slog"
	"sync"

	"github.com/preston-bernstein/ftbuilder/internal/constraints"
	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	domain "github.com/preston-bernstein/ftbuilder/internal/domain/suggestions"
	"github.com/preston-bernstein/ftbuilder/internal/drag"
	"github.com/preston-bernstein/ftbuilder/internal/logging"
	"github.com/preston-bernstein/ftbuilder/internal/store"
	"github.com/preston-bernstein/ftbuilder/internal/suggestions"
	"github.com/preston-bernstein/ftbuilder/internal/views"
)

// EventKind says what an Event carries.
type EventKind string

const (
	EventChange EventKind = "change"
	EventDrag   EventKind = "drag"
)

// Event is delivered to subscribers. Change is set for store changes and
// Drag for drag session transitions.
type Event struct {
	Kind   EventKind
	Change *store.ChangeEvent
	Drag   *drag.Session
}

// Deps are the components a Workspace fronts.
type Deps struct {
	Store       *store.Store
	Drag        *drag.Controller
	Suggestions *suggestions.Manager
	Loader      *Loader
	// Actor is used when a caller does not name one.
	Actor  string
	Logger *slog.Logger
}

// Workspace fronts the engine for one sport and season.
type Workspace struct {
	store       *store.Store
	drag        *drag.Controller
	suggestions *suggestions.Manager
	loader      *Loader
	actor       string
	logger      *slog.Logger

	mu        sync.Mutex
	nextID    int
	listeners map[int]func(Event)

	unsubscribe func()
}

// New wires a Workspace. It listens to the store and the drag controller
// for as long as it lives; call Close to detach.
func New(d Deps) *Workspace {
	w := &Workspace{
		store:       d.Store,
		drag:        d.Drag,
		suggestions: d.Suggestions,
		loader:      d.Loader,
		actor:       d.Actor,
		logger:      d.Logger,
		listeners:   make(map[int]func(Event)),
	}
	w.unsubscribe = d.Store.Subscribe(func(ev store.ChangeEvent) {
		w.emit(Event{Kind: EventChange, Change: &ev})
	})
	if d.Drag != nil {
		d.Drag.OnChange(func(s drag.Session) {
			w.emit(Event{Kind: EventDrag, Drag: &s})
		})
	}
	return w
}

// Close detaches from the store. Drag listeners stay registered but no
// longer reach any subscriber.
func (w *Workspace) Close() {
	if w.unsubscribe != nil {
		w.unsubscribe()
	}
	w.mu.Lock()
	w.listeners = make(map[int]func(Event))
	w.mu.Unlock()
}

// Subscribe registers fn for every change and drag transition. Change
// events are delivered on the store's writer in commit order, so fn must
// return quickly and must not commit.
func (w *Workspace) Subscribe(fn func(Event)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.listeners[id] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.listeners, id)
		w.mu.Unlock()
	}
}

func (w *Workspace) emit(ev Event) {
	w.mu.Lock()
	fns := make([]func(Event), 0, len(w.listeners))
	for _, fn := range w.listeners {
		fns = append(fns, fn)
	}
	w.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Snapshot returns the current canonical state.
func (w *Workspace) Snapshot() store.Snapshot {
	return w.store.Snapshot()
}

// Ready reports whether a schedule is loaded.
func (w *Workspace) Ready() bool {
	return w.store.Snapshot().Loaded()
}

func (w *Workspace) input() (views.Input, error) {
	snap := w.store.Snapshot()
	if !snap.Loaded() {
		return views.Input{}, store.ErrNotLoaded
	}
	return views.Input{
		Schedule:  snap.Schedule,
		Teams:     snap.Teams,
		Conflicts: snap.Conflicts,
		Revision:  snap.Revision,
	}, nil
}

// ViewModel projects the current snapshot into one view.
func (w *Workspace) ViewModel(kind views.Kind, window views.Window) (views.Model, error) {
	in, err := w.input()
	if err != nil {
		return views.Model{}, err
	}
	return views.Project(in, kind, window)
}

// Views projects every view from the same snapshot.
func (w *Workspace) Views(window views.Window) (views.Set, error) {
	in, err := w.input()
	if err != nil {
		return views.Set{}, err
	}
	return views.ProjectAll(in, window)
}

// Conflicts returns the live conflicts, re-evaluating season-wide rules when fullSeason is set.
func (w *Workspace) Conflicts(ctx context.Context, fullSeason bool) ([]rules.Conflict, error) {
	return w.store.Conflicts(ctx, constraints.Options{FullSeason: fullSeason})
}

func (w *Workspace) actorOr(actor string) string {
	if actor != "" {
		return actor
	}
	return w.actor
}

// BeginDrag picks up gameID for actor.
func (w *Workspace) BeginDrag(gameID, actor string) (drag.Session, error) {
	return w.drag.Begin(gameID, w.actorOr(actor))
}

// UpdateDragTarget hovers the dragged game over slot and starts a conflict preview.
func (w *Workspace) UpdateDragTarget(ctx context.Context, slot games.Slot) (drag.Session, error) {
	return w.drag.UpdateTarget(ctx, slot)
}

// LeaveDragTarget takes the dragged game off its target.
func (w *Workspace) LeaveDragTarget() (drag.Session, error) {
	return w.drag.Leave()
}

// EndDrag drops the game. With commit false the session is cancelled.
func (w *Workspace) EndDrag(ctx context.Context, commit bool) (drag.Session, error) {
	return w.drag.End(ctx, commit)
}

// CurrentDrag returns the active or most recent drag session.
func (w *Workspace) CurrentDrag() (drag.Session, bool) {
	return w.drag.Current()
}

// Suggestions lists suggestions; activeOnly limits the list to proposed ones.
func (w *Workspace) Suggestions(activeOnly bool) []domain.Suggestion {
	if activeOnly {
		return w.suggestions.Active()
	}
	return w.suggestions.All()
}

// Suggestion returns one suggestion.
func (w *Workspace) Suggestion(id string) (domain.Suggestion, bool) {
	return w.suggestions.Get(id)
}

// Suggest registers a collaborator or AI suggestion.
func (w *Workspace) Suggest(s domain.Suggestion) (domain.Suggestion, error) {
	return w.suggestions.Register(s)
}

// ApplySuggestion commits a proposed suggestion.
func (w *Workspace) ApplySuggestion(ctx context.Context, id string) (store.CommitResult, error) {
	return w.suggestions.Apply(ctx, id)
}

// DismissSuggestion marks a suggestion dismissed.
func (w *Workspace) DismissSuggestion(id string) error {
	return w.suggestions.Dismiss(id)
}

// Revert undoes changeID and everything after it.
func (w *Workspace) Revert(ctx context.Context, changeID, actor string) (store.CommitResult, error) {
	res, err := w.store.Revert(ctx, changeID, store.Local(w.actorOr(actor)))
	if err != nil {
		return store.CommitResult{}, err
	}
	logging.Info(w.logger, "revert requested",
		logging.FieldChangeID, changeID,
		logging.FieldActor, w.actorOr(actor),
	)
	return res, nil
}

// History lists the revertable change ids, oldest first.
func (w *Workspace) History(ctx context.Context) ([]string, error) {
	return w.store.History(ctx)
}

// Load fetches a season through the loader and waits for the result.
func (w *Workspace) Load(ctx context.Context, sportID, season string) error {
	return w.loader.Load(ctx, sportID, season)
}

// LoadAsync starts a load and returns its result channel.
func (w *Workspace) LoadAsync(ctx context.Context, sportID, season string) <-chan error {
	return w.loader.LoadAsync(ctx, sportID, season)
}

// LoadStatus reports the loader's most recent result.
func (w *Workspace) LoadStatus() LoadStatus {
	if w.loader == nil {
		return LoadStatus{State: LoadIdle}
	}
	return w.loader.Status()
}
