package config

import "time"

// ArchiveConfig controls on-disk schedule snapshots.
type ArchiveConfig struct {
	Enabled bool   `env:"ARCHIVE_ENABLED" envDefault:"false"`
	Dir     string `env:"ARCHIVE_DIR" envDefault:"data/archive"`
	// Keep is how many revisions are retained per sport and season.
	Keep int `env:"ARCHIVE_KEEP" envDefault:"20"`
	// Interval is how often the store is checked for a new revision.
	Interval time.Duration `env:"ARCHIVE_INTERVAL" envDefault:"1m"`
}
