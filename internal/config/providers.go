package config

import "time"

// PersistenceConfig selects where schedules are loaded from and saved to.
type PersistenceConfig struct {
	Backend string `env:"PERSISTENCE_BACKEND" envDefault:"fixture"`
	// SQLitePath is the database file used by the sqlite backend.
	SQLitePath string `env:"SQLITE_PATH" envDefault:"data/ftbuilder.db"`
	// SeedFixture seeds an empty sqlite database with the fixture conference.
	SeedFixture   bool `env:"SQLITE_SEED_FIXTURE" envDefault:"true"`
	RetryAttempts int  `env:"PERSISTENCE_RETRY_ATTEMPTS" envDefault:"3"`
}

// GeneratorConfig controls how we talk to the generation service.
type GeneratorConfig struct {
	Backend  string        `env:"GENERATOR_BACKEND" envDefault:"fixture"`
	BaseURL  string        `env:"GENERATOR_BASE_URL"`
	APIKey   string        `env:"GENERATOR_API_KEY"`
	MaxPages int           `env:"GENERATOR_MAX_PAGES" envDefault:"5"`
	Every    time.Duration `env:"GENERATOR_MIN_INTERVAL" envDefault:"1m"`
}
