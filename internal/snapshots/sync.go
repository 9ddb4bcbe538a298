package snapshots

import (
	"context"
	"log/slog"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/logging"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/store"
)

// Source is the part of the store the syncer reads.
type Source interface {
	Snapshot() store.Snapshot
}

// Syncer archives the store's schedule whenever its revision moves.
type Syncer struct {
	source    Source
	writer    *Writer
	cfg       SyncConfig
	logger    *slog.Logger
	metrics   *metrics.Recorder
	newTicker func(time.Duration) *time.Ticker

	lastScope    string
	lastRevision uint64
}

// SyncConfig controls snapshot sync behavior.
type SyncConfig struct {
	Enabled  bool
	Interval time.Duration
}

// NewSyncer constructs a snapshot syncer.
func NewSyncer(source Source, writer *Writer, cfg SyncConfig, logger *slog.Logger, recorder *metrics.Recorder) *Syncer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Syncer{
		source:    source,
		writer:    writer,
		cfg:       cfg,
		logger:    logger,
		metrics:   recorder,
		newTicker: time.NewTicker,
	}
}

// Run archives on every tick until ctx is done, then archives once more so
// the last committed revision is on disk. Callers should run this in a goroutine.
func (s *Syncer) Run(ctx context.Context) {
	if s == nil || !s.cfg.Enabled || s.writer == nil || s.source == nil {
		return
	}
	logging.Info(s.logger, "snapshot sync starting",
		"interval", s.cfg.Interval.String(),
		"dir", s.writer.BasePath(),
		"keep", s.writer.keep,
	)
	ticker := s.newTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.ArchiveOnce()
			return
		case <-ticker.C:
			s.ArchiveOnce()
		}
	}
}

// ArchiveOnce writes the current revision if it has not been archived yet.
// It reports whether a snapshot was written.
func (s *Syncer) ArchiveOnce() bool {
	if s == nil || s.writer == nil || s.source == nil {
		return false
	}
	snap := s.source.Snapshot()
	if !snap.Loaded() {
		return false
	}
	doc := snap.Schedule.Document()
	scope := scopeKey(doc.Meta.SportID, doc.Meta.Season)
	if scope == s.lastScope && snap.Revision == s.lastRevision {
		return false
	}

	start := time.Now()
	fingerprint, err := snap.Schedule.Fingerprint()
	if err == nil {
		err = s.writer.Write(Snapshot{
			Revision:    snap.Revision,
			Fingerprint: fingerprint,
			Document:    doc,
			Conflicts:   snap.Conflicts,
		})
	}
	if err != nil {
		s.metrics.RecordPersistenceFailure("archive")
		logging.Error(s.logger, "snapshot write failed", err,
			logging.FieldSportID, doc.Meta.SportID,
			logging.FieldSeason, doc.Meta.Season,
			logging.FieldRevision, snap.Revision,
		)
		return false
	}
	s.lastScope = scope
	s.lastRevision = snap.Revision
	logging.Info(s.logger, "snapshot written",
		logging.FieldSportID, doc.Meta.SportID,
		logging.FieldSeason, doc.Meta.Season,
		logging.FieldRevision, snap.Revision,
		logging.FieldCount, len(doc.Games),
		logging.FieldDurationMS, time.Since(start).Milliseconds(),
	)
	return true
}
