package config

import "time"

const (
	defaultPort         = "4000"
	defaultSportID      = "soccer"
	defaultSeason       = "2025"
	defaultUndoDepth    = 100
	defaultPollInterval = 5 * time.Minute
	// Shared floor between generator calls so short poll intervals stay under upstream quota.
	defaultGenerateEvery = time.Minute
	defaultPersistence   = BackendFixture
	defaultGenerator     = BackendFixture
	defaultMetricsPort   = "9090"
	defaultServiceName   = "ftbuilder"

	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	defaultArchiveDir      = "data/archive"
	defaultArchiveKeep     = 20
	defaultArchiveInterval = time.Minute

	// BackendFixture selects the in-memory fixture providers.
	BackendFixture = "fixture"
	// BackendSQLite selects the SQLite persistence backend.
	BackendSQLite = "sqlite"
	// BackendHTTP selects the HTTP generation service client.
	BackendHTTP = "http"
)
