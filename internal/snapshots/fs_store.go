package snapshots

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoSnapshot is returned when a scope has nothing archived.
var ErrNoSnapshot = errors.New("no archived snapshot")

// FSStore loads archived snapshots from the filesystem.
type FSStore struct {
	basePath string
}

// NewFSStore constructs an FS-backed snapshot store rooted at basePath.
func NewFSStore(basePath string) *FSStore {
	return &FSStore{basePath: basePath}
}

// Manifest reads the archive manifest.
func (s *FSStore) Manifest() (Manifest, error) {
	if s == nil {
		return Manifest{}, errors.New("snapshot store not configured")
	}
	m, err := readManifest(filepath.Join(s.basePath, manifestName), 0)
	if err != nil && os.IsNotExist(err) {
		return m, nil
	}
	return m, err
}

// Load reads one revision.
func (s *FSStore) Load(sportID, season string, revision uint64) (Snapshot, error) {
	if s == nil {
		return Snapshot{}, errors.New("snapshot store not configured")
	}
	var snap Snapshot
	if err := decodeFile(RevisionPath(s.basePath, sportID, season, revision), &snap); err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, fmt.Errorf("%w: %s revision %d", ErrNoSnapshot, scopeKey(sportID, season), revision)
		}
		return Snapshot{}, err
	}
	return snap, nil
}

// Latest reads the newest revision on disk for a scope.
func (s *FSStore) Latest(sportID, season string) (Snapshot, error) {
	if s == nil {
		return Snapshot{}, errors.New("snapshot store not configured")
	}
	revisions, err := listRevisions(ScopeDir(s.basePath, sportID, season))
	if err != nil {
		return Snapshot{}, err
	}
	if len(revisions) == 0 {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNoSnapshot, scopeKey(sportID, season))
	}
	return s.Load(sportID, season, revisions[len(revisions)-1])
}

func decodeFile(path string, payload any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(payload)
}
