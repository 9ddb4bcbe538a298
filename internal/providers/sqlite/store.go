// Package sqlite provides a SQLite-backed providers.Persistence.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
	"github.com/preston-bernstein/ftbuilder/internal/providers/sqlite/migrations"
)

const providerName = "sqlite"

// Store persists teams, season metadata and games in SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ providers.Persistence = (*Store)(nil)

// Open opens a SQLite store at path and applies embedded migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LoadTeams returns the roster for sportID ordered by id.
func (s *Store) LoadTeams(ctx context.Context, sportID string) ([]teams.Team, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, abbreviation, city, conference, lat, lon, primary_color, secondary_color
		   FROM teams WHERE sport_id = ? ORDER BY id`, sportID)
	if err != nil {
		return nil, wrap("load_teams", err)
	}
	defer rows.Close()

	var out []teams.Team
	for rows.Next() {
		var t teams.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Abbreviation, &t.City, &t.Conference,
			&t.Location.Lat, &t.Location.Lon, &t.PrimaryColor, &t.SecondaryColor); err != nil {
			return nil, wrap("load_teams", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("load_teams", err)
	}
	return out, nil
}

// LoadSchedule returns the season's metadata and games ordered by date, time and id.
func (s *Store) LoadSchedule(ctx context.Context, sportID, season string) (schedule.Document, error) {
	meta := schedule.Meta{SportID: sportID, Season: season}
	err := s.db.QueryRowContext(ctx,
		`SELECT allow_doubleheaders, multi_field, start_date, end_date
		   FROM seasons WHERE sport_id = ? AND season = ?`, sportID, season,
	).Scan(&meta.Rules.AllowDoubleheaders, &meta.Rules.MultiField, &meta.Start, &meta.End)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return schedule.Document{}, wrap("load_schedule", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, home_team_id, away_team_id, game_date, game_time, venue, network
		   FROM games WHERE sport_id = ? AND season = ?
		  ORDER BY game_date, game_time, id`, sportID, season)
	if err != nil {
		return schedule.Document{}, wrap("load_schedule", err)
	}
	defer rows.Close()

	list := make([]games.Game, 0)
	for rows.Next() {
		g := games.Game{SportID: sportID}
		if err := rows.Scan(&g.ID, &g.HomeTeamID, &g.AwayTeamID, &g.Date, &g.Time, &g.Venue, &g.Broadcast.Network); err != nil {
			return schedule.Document{}, wrap("load_schedule", err)
		}
		list = append(list, g)
	}
	if err := rows.Err(); err != nil {
		return schedule.Document{}, wrap("load_schedule", err)
	}
	return schedule.Document{Meta: meta, Games: list}, nil
}

// SaveGame inserts or replaces g.
func (s *Store) SaveGame(ctx context.Context, season string, g games.Game) error {
	if err := g.Validate(); err != nil {
		return fmt.Errorf("%s: save game: %w", providerName, err)
	}
	return wrap("save_game", saveGame(ctx, s.db, season, g, s.now()))
}

// DeleteGame removes gameID. Deleting an unknown game is not an error.
func (s *Store) DeleteGame(ctx context.Context, sportID, season, gameID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM games WHERE sport_id = ? AND season = ? AND id = ?`, sportID, season, gameID)
	return wrap("delete_game", err)
}

// Seed replaces the roster, season metadata and games for meta's sport and
// season in one transaction.
func (s *Store) Seed(ctx context.Context, meta schedule.Meta, roster []teams.Team, list []games.Game) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap("seed", err)
	}
	if err := seed(ctx, tx, meta, roster, list, s.now()); err != nil {
		_ = tx.Rollback()
		return wrap("seed", err)
	}
	return wrap("seed", tx.Commit())
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func seed(ctx context.Context, tx execer, meta schedule.Meta, roster []teams.Team, list []games.Game, now time.Time) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM teams WHERE sport_id = ?`, meta.SportID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM games WHERE sport_id = ? AND season = ?`, meta.SportID, meta.Season); err != nil {
		return err
	}
	for _, t := range roster {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO teams (sport_id, id, name, abbreviation, city, conference, lat, lon, primary_color, secondary_color)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			meta.SportID, t.ID, t.Name, t.Abbreviation, t.City, t.Conference,
			t.Location.Lat, t.Location.Lon, t.PrimaryColor, t.SecondaryColor,
		); err != nil {
			return fmt.Errorf("insert team %s: %w", t.ID, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO seasons (sport_id, season, allow_doubleheaders, multi_field, start_date, end_date)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (sport_id, season) DO UPDATE SET
		   allow_doubleheaders = excluded.allow_doubleheaders,
		   multi_field = excluded.multi_field,
		   start_date = excluded.start_date,
		   end_date = excluded.end_date`,
		meta.SportID, meta.Season, meta.Rules.AllowDoubleheaders, meta.Rules.MultiField, meta.Start, meta.End,
	); err != nil {
		return fmt.Errorf("upsert season: %w", err)
	}
	for _, g := range list {
		if g.SportID == "" {
			g.SportID = meta.SportID
		}
		if err := saveGame(ctx, tx, meta.Season, g, now); err != nil {
			return fmt.Errorf("insert game %s: %w", g.ID, err)
		}
	}
	return nil
}

func saveGame(ctx context.Context, db execer, season string, g games.Game, now time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO games (sport_id, season, id, home_team_id, away_team_id, game_date, game_time, venue, network, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (sport_id, season, id) DO UPDATE SET
		   home_team_id = excluded.home_team_id,
		   away_team_id = excluded.away_team_id,
		   game_date = excluded.game_date,
		   game_time = excluded.game_time,
		   venue = excluded.venue,
		   network = excluded.network,
		   updated_at = excluded.updated_at`,
		g.SportID, season, g.ID, g.HomeTeamID, g.AwayTeamID, g.Date, g.Time, g.Venue, g.Broadcast.Network,
		now.UTC().UnixMilli(),
	)
	return err
}

// wrap marks lock contention as retryable and prefixes everything else.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if isBusy(err) {
		return &providers.RetryableError{Provider: providerName, Op: op, Err: err}
	}
	return fmt.Errorf("%s: %s: %w", providerName, op, err)
}

func isBusy(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}
