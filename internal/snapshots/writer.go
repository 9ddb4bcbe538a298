// Package snapshots archives schedule revisions as JSON files on disk and
// reads them back.
package snapshots

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
)

// Snapshot is one archived revision.
type Snapshot struct {
	Revision    uint64            `json:"revision"`
	Fingerprint string            `json:"fingerprint,omitempty"`
	ArchivedAt  time.Time         `json:"archivedAt"`
	Document    schedule.Document `json:"document"`
	Conflicts   []rules.Conflict  `json:"conflicts"`
}

// Writer persists snapshots and the manifest, pruning to the newest keep revisions per scope.
type Writer struct {
	basePath string
	keep     int
	now      func() time.Time
}

// NewWriter constructs a writer rooted at basePath.
func NewWriter(basePath string, keep int) *Writer {
	if keep <= 0 {
		keep = 20
	}
	return &Writer{
		basePath: basePath,
		keep:     keep,
		now:      time.Now,
	}
}

// BasePath exposes the writer root path.
func (w *Writer) BasePath() string {
	if w == nil {
		return ""
	}
	return w.basePath
}

// Write archives snap under its document's sport and season. Rewriting an
// identical revision only refreshes the manifest.
func (w *Writer) Write(snap Snapshot) error {
	if w == nil {
		return errors.New("snapshot writer not configured")
	}
	meta := snap.Document.Meta
	if meta.SportID == "" || meta.Season == "" {
		return fmt.Errorf("snapshot scope required")
	}
	if snap.ArchivedAt.IsZero() {
		snap.ArchivedAt = w.now().UTC()
	}
	if snap.Conflicts == nil {
		snap.Conflicts = []rules.Conflict{}
	}

	target := RevisionPath(w.basePath, meta.SportID, meta.Season, snap.Revision)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if existing, err := os.ReadFile(target); err != nil || !sameDocument(existing, snap) {
		if err := writeAtomic(target, data); err != nil {
			return err
		}
	}
	return w.updateManifest(meta.SportID, meta.Season)
}

// sameDocument ignores ArchivedAt so re-archiving an unchanged revision is a
// no-op. Fingerprints are compared when both sides carry one.
func sameDocument(existing []byte, snap Snapshot) bool {
	var prev Snapshot
	if err := json.Unmarshal(existing, &prev); err != nil {
		return false
	}
	if prev.Fingerprint != "" && snap.Fingerprint != "" {
		return prev.Revision == snap.Revision && prev.Fingerprint == snap.Fingerprint
	}
	prev.ArchivedAt = snap.ArchivedAt
	a, errA := json.Marshal(prev)
	b, errB := json.Marshal(snap)
	return errA == nil && errB == nil && bytes.Equal(a, b)
}

func (w *Writer) updateManifest(sportID, season string) error {
	m, _ := readManifest(filepath.Join(w.basePath, manifestName), w.keep)
	now := w.now().UTC()

	revisions, err := listRevisions(ScopeDir(w.basePath, sportID, season))
	if err != nil {
		return err
	}
	kept := w.prune(sportID, season, revisions)

	m.Retention.Revisions = w.keep
	m.Scopes[scopeKey(sportID, season)] = ScopeMeta{
		SportID:     sportID,
		Season:      season,
		Revisions:   kept,
		LastWritten: now,
	}
	return writeManifest(w.basePath, m, now)
}

func (w *Writer) prune(sportID, season string, revisions []uint64) []uint64 {
	if len(revisions) <= w.keep {
		return revisions
	}
	cut := len(revisions) - w.keep
	for _, rev := range revisions[:cut] {
		_ = os.Remove(RevisionPath(w.basePath, sportID, season, rev))
	}
	return slices.Clone(revisions[cut:])
}

func listRevisions(dir string) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []uint64{}, nil
		}
		return nil, err
	}
	revisions := make([]uint64, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if rev, ok := parseRevisionName(e.Name()); ok {
			revisions = append(revisions, rev)
		}
	}
	slices.Sort(revisions)
	return revisions, nil
}
