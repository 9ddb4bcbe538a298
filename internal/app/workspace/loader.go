package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
	"github.com/preston-bernstein/ftbuilder/internal/logging"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
)

// ErrSuperseded is returned by a load that finished after a newer load started.
var ErrSuperseded = errors.New("load superseded by a newer request")

// LoadState is where the loader is in its cycle.
type LoadState string

const (
	LoadIdle    LoadState = "idle"
	LoadLoading LoadState = "loading"
	LoadLoaded  LoadState = "loaded"
	LoadFailed  LoadState = "failed"
)

// LoadStatus describes the most recent load.
type LoadStatus struct {
	SportID  string    `json:"sportId,omitempty"`
	Season   string    `json:"season,omitempty"`
	State    LoadState `json:"state"`
	Error    string    `json:"error,omitempty"`
	Games    int       `json:"games"`
	LoadedAt time.Time `json:"loadedAt,omitzero"`
}

// Target receives loaded schedules. *store.Store satisfies it.
type Target interface {
	Load(ctx context.Context, meta schedule.Meta, list []games.Game, roster []teams.Team) error
}

// Loader fetches a season from persistence and feeds it into the store.
type Loader struct {
	backend providers.Persistence
	target  Target
	logger  *slog.Logger
	metrics *metrics.Recorder
	now     func() time.Time

	mu     sync.Mutex
	seq    uint64
	status LoadStatus

	// applyMu serializes the superseded check with target.Load.
	applyMu sync.Mutex
}

// NewLoader constructs a Loader.
func NewLoader(backend providers.Persistence, target Target, logger *slog.Logger, recorder *metrics.Recorder) *Loader {
	return &Loader{
		backend: backend,
		target:  target,
		logger:  logger,
		metrics: recorder,
		now:     time.Now,
		status:  LoadStatus{State: LoadIdle},
	}
}

// Load fetches teams and schedule for one season and replaces the store's
// state. On any failure the store keeps its previous schedule. A load that
// completes after a newer one started is discarded with ErrSuperseded.
func (l *Loader) Load(ctx context.Context, sportID, season string) error {
	l.mu.Lock()
	l.seq++
	seq := l.seq
	l.status = LoadStatus{SportID: sportID, Season: season, State: LoadLoading}
	l.mu.Unlock()

	start := l.now()
	n, err := l.load(ctx, seq, sportID, season)
	if errors.Is(err, ErrSuperseded) {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if seq != l.seq {
		return ErrSuperseded
	}
	if err != nil {
		l.status.State = LoadFailed
		l.status.Error = err.Error()
		logging.Error(l.logger, "schedule load failed", err,
			logging.FieldSportID, sportID,
			logging.FieldSeason, season,
		)
		return err
	}
	l.status.State = LoadLoaded
	l.status.Games = n
	l.status.LoadedAt = l.now()
	logging.Info(l.logger, "schedule load complete",
		logging.FieldSportID, sportID,
		logging.FieldSeason, season,
		logging.FieldCount, n,
		logging.FieldDurationMS, l.now().Sub(start).Milliseconds(),
	)
	return nil
}

func (l *Loader) load(ctx context.Context, seq uint64, sportID, season string) (int, error) {
	roster, err := l.backend.LoadTeams(ctx, sportID)
	if err != nil {
		l.metrics.RecordPersistenceFailure("load_teams")
		return 0, fmt.Errorf("load teams: %w", err)
	}
	doc, err := l.backend.LoadSchedule(ctx, sportID, season)
	if err != nil {
		l.metrics.RecordPersistenceFailure("load_schedule")
		return 0, fmt.Errorf("load schedule: %w", err)
	}
	if doc.Meta.SportID == "" {
		doc.Meta.SportID = sportID
	}
	if doc.Meta.Season == "" {
		doc.Meta.Season = season
	}

	l.applyMu.Lock()
	defer l.applyMu.Unlock()
	l.mu.Lock()
	stale := seq != l.seq
	l.mu.Unlock()
	if stale {
		return 0, ErrSuperseded
	}
	if err := l.target.Load(ctx, doc.Meta, doc.Games, roster); err != nil {
		return 0, err
	}
	return len(doc.Games), nil
}

// LoadAsync runs Load in the background. The channel receives the result and is closed.
func (l *Loader) LoadAsync(ctx context.Context, sportID, season string) <-chan error {
	out := make(chan error, 1)
	go func() {
		defer close(out)
		out <- l.Load(ctx, sportID, season)
	}()
	return out
}

// Status returns the most recent load status.
func (l *Loader) Status() LoadStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.status
}
