package config

import (
	"fmt"
	"strings"
	"time"
)

// Config holds runtime configuration for the server.
type Config struct {
	Port      string `env:"PORT" envDefault:"4000"`
	SportID   string `env:"SPORT_ID" envDefault:"soccer"`
	Season    string `env:"SEASON" envDefault:"2025"`
	RulesFile string `env:"RULES_FILE"`
	UndoDepth int    `env:"UNDO_DEPTH" envDefault:"100"`
	// PollInterval is how often the generator is asked for suggestions.
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5m"`
	// AdminToken guards the /admin endpoints; they are not mounted when empty.
	AdminToken string `env:"ADMIN_TOKEN"`

	HTTP        HTTPConfig
	Persistence PersistenceConfig
	Generator   GeneratorConfig
	Collab      CollabConfig
	Archive     ArchiveConfig
	Metrics     MetricsConfig
}

// Load reads configuration from environment variables with sensible defaults.
// Out-of-range values fall back to their defaults; unknown backends are errors.
func Load() (Config, error) {
	var cfg Config
	if err := parseEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) normalize() {
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.SportID == "" {
		c.SportID = defaultSportID
	}
	if c.Season == "" {
		c.Season = defaultSeason
	}
	if c.UndoDepth <= 0 {
		c.UndoDepth = defaultUndoDepth
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Generator.Every <= 0 {
		c.Generator.Every = defaultGenerateEvery
	}
	c.Persistence.Backend = strings.ToLower(strings.TrimSpace(c.Persistence.Backend))
	if c.Persistence.Backend == "" {
		c.Persistence.Backend = defaultPersistence
	}
	c.Generator.Backend = strings.ToLower(strings.TrimSpace(c.Generator.Backend))
	if c.Generator.Backend == "" {
		c.Generator.Backend = defaultGenerator
	}
	c.HTTP.normalize()
	if c.Archive.Keep <= 0 {
		c.Archive.Keep = defaultArchiveKeep
	}
	if c.Archive.Interval <= 0 {
		c.Archive.Interval = defaultArchiveInterval
	}
	if c.Archive.Dir == "" {
		c.Archive.Dir = defaultArchiveDir
	}
	if c.Metrics.Port == "" {
		c.Metrics.Port = defaultMetricsPort
	}
	if c.Metrics.ServiceName == "" {
		c.Metrics.ServiceName = defaultServiceName
	}
}

func (c Config) validate() error {
	switch c.Persistence.Backend {
	case BackendFixture, BackendSQLite:
	default:
		return fmt.Errorf("unknown persistence backend %q", c.Persistence.Backend)
	}
	switch c.Generator.Backend {
	case BackendFixture, BackendHTTP:
	default:
		return fmt.Errorf("unknown generator backend %q", c.Generator.Backend)
	}
	if c.Persistence.Backend == BackendSQLite && c.Persistence.SQLitePath == "" {
		return fmt.Errorf("sqlite backend requires SQLITE_PATH")
	}
	return nil
}
