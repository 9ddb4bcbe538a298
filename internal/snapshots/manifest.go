package snapshots

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

const manifestName = "manifest.json"

// Manifest tracks which revisions are archived for each sport and season.
type Manifest struct {
	Version     int                  `json:"version"`
	GeneratedAt time.Time            `json:"generatedAt"`
	Retention   Retention            `json:"retention"`
	Scopes      map[string]ScopeMeta `json:"scopes"`
}

type Retention struct {
	Revisions int `json:"revisions"`
}

// ScopeMeta lists the archived revisions of one season, oldest first.
type ScopeMeta struct {
	SportID     string    `json:"sportId"`
	Season      string    `json:"season"`
	Revisions   []uint64  `json:"revisions"`
	LastWritten time.Time `json:"lastWritten"`
}

// Latest returns the newest archived revision.
func (m ScopeMeta) Latest() (uint64, bool) {
	if len(m.Revisions) == 0 {
		return 0, false
	}
	return m.Revisions[len(m.Revisions)-1], true
}

func defaultManifest(keep int) Manifest {
	return Manifest{
		Version:   1,
		Retention: Retention{Revisions: keep},
		Scopes:    map[string]ScopeMeta{},
	}
}

func readManifest(path string, keep int) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return defaultManifest(keep), err
	}
	defer f.Close()
	var m Manifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return defaultManifest(keep), err
	}
	if m.Scopes == nil {
		m.Scopes = map[string]ScopeMeta{}
	}
	return m, nil
}

func writeManifest(basePath string, m Manifest, now time.Time) error {
	m.GeneratedAt = now
	path := filepath.Join(basePath, manifestName)
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
