// Package fixture provides deterministic in-memory backends for local runs
// and tests: a persistence store seeded with a small conference and a
// generation service that always proposes the same suggestions.
package fixture

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/suggestions"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
	"github.com/preston-bernstein/ftbuilder/internal/timeutil"
)

const (
	// SportID and Season identify the seeded schedule.
	SportID = "soccer"
	Season  = "2025"

	providerName = "fixture"
)

type seasonKey struct {
	sportID string
	season  string
}

// Persistence is an in-memory providers.Persistence.
type Persistence struct {
	mu    sync.Mutex
	teams map[string][]teams.Team
	meta  map[seasonKey]schedule.Meta
	games map[seasonKey]map[string]games.Game
}

var _ providers.Persistence = (*Persistence)(nil)

// New returns a persistence backend seeded with the fixture conference.
func New() *Persistence {
	p := NewEmpty()
	p.Seed(Meta(), Teams(), Games())
	return p
}

// NewEmpty returns a persistence backend with no data.
func NewEmpty() *Persistence {
	return &Persistence{
		teams: make(map[string][]teams.Team),
		meta:  make(map[seasonKey]schedule.Meta),
		games: make(map[seasonKey]map[string]games.Game),
	}
}

// Seed replaces the teams and schedule for meta's sport and season.
func (p *Persistence) Seed(meta schedule.Meta, roster []teams.Team, list []games.Game) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.teams[meta.SportID] = append([]teams.Team(nil), roster...)
	key := seasonKey{meta.SportID, meta.Season}
	p.meta[key] = meta
	byID := make(map[string]games.Game, len(list))
	for _, g := range list {
		byID[g.ID] = g
	}
	p.games[key] = byID
}

// LoadTeams returns the roster for sportID.
func (p *Persistence) LoadTeams(ctx context.Context, sportID string) ([]teams.Team, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]teams.Team(nil), p.teams[sportID]...), nil
}

// LoadSchedule returns the stored games ordered by date, time and id.
func (p *Persistence) LoadSchedule(ctx context.Context, sportID, season string) (schedule.Document, error) {
	if err := ctx.Err(); err != nil {
		return schedule.Document{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := seasonKey{sportID, season}
	meta, ok := p.meta[key]
	if !ok {
		meta = schedule.Meta{SportID: sportID, Season: season}
	}
	list := make([]games.Game, 0, len(p.games[key]))
	for _, g := range p.games[key] {
		list = append(list, g)
	}
	games.Sort(list)
	return schedule.Document{Meta: meta, Games: list}, nil
}

// SaveGame inserts or replaces g.
func (p *Persistence) SaveGame(ctx context.Context, season string, g games.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("fixture: save game: %w", err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	key := seasonKey{g.SportID, season}
	if p.games[key] == nil {
		p.games[key] = make(map[string]games.Game)
	}
	p.games[key][g.ID] = g
	return nil
}

// DeleteGame removes gameID. Deleting an unknown game is not an error.
func (p *Persistence) DeleteGame(ctx context.Context, sportID, season, gameID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.games[seasonKey{sportID, season}], gameID)
	return nil
}

// Generator is a deterministic providers.Generator.
type Generator struct {
	now func() time.Time
}

var _ providers.Generator = (*Generator)(nil)

// NewGenerator creates a fixture generator with a time source.
func NewGenerator() *Generator {
	return &Generator{now: time.Now}
}

// Generate returns the fixture schedule when the request carries no games.
// Otherwise it proposes pushing the latest game of each home team back one
// week, keeping time and venue.
func (g *Generator) Generate(ctx context.Context, req providers.Request) (providers.Response, error) {
	if err := ctx.Err(); err != nil {
		return providers.Response{}, err
	}
	if len(req.Games) == 0 {
		return providers.Response{Games: Games()}, nil
	}

	latest := make(map[string]games.Game)
	for _, gm := range req.Games {
		cur, ok := latest[gm.HomeTeamID]
		if !ok || games.Less(cur, gm) {
			latest[gm.HomeTeamID] = gm
		}
	}
	homes := make([]string, 0, len(latest))
	for id := range latest {
		homes = append(homes, id)
	}
	sort.Strings(homes)

	created := g.now().UTC()
	out := make([]suggestions.Suggestion, 0, len(homes))
	for _, home := range homes {
		gm := latest[home]
		date, err := timeutil.AddDays(gm.Date, 7)
		if err != nil {
			continue
		}
		to := gm.Slot()
		to.Date = date
		out = append(out, suggestions.Suggestion{
			ID:        fmt.Sprintf("%s-%s-%s", providerName, gm.ID, date),
			Source:    suggestions.SourceAI,
			Delta:     games.Move(gm.ID, gm.Slot(), to),
			Rationale: fmt.Sprintf("push %s back one week to widen the %s home stand", gm.ID, home),
			CreatedAt: created,
		})
	}
	return providers.Response{Suggestions: out}, nil
}

// Meta returns the fixture season scope.
func Meta() schedule.Meta {
	return schedule.Meta{
		SportID: SportID,
		Season:  Season,
		Start:   "2025-03-01",
		End:     "2025-05-31",
	}
}

// Teams returns the fixture conference.
func Teams() []teams.Team {
	return []teams.Team{
		{ID: "hbc", Name: "Harbor City", Abbreviation: "HBC", City: "Harbor City", Conference: "Coastal", Location: teams.Location{Lat: 41.49, Lon: -71.31}, PrimaryColor: "#0b3d91"},
		{ID: "lks", Name: "Lakeside", Abbreviation: "LKS", City: "Lakeside", Conference: "Coastal", Location: teams.Location{Lat: 42.36, Lon: -71.06}, PrimaryColor: "#1b5e20"},
		{ID: "bay", Name: "Bayview", Abbreviation: "BAY", City: "Bayview", Conference: "Coastal", Location: teams.Location{Lat: 40.71, Lon: -74.01}, PrimaryColor: "#b71c1c"},
		{ID: "ntg", Name: "Northgate", Abbreviation: "NTG", City: "Northgate", Conference: "Coastal", Location: teams.Location{Lat: 43.66, Lon: -70.26}, PrimaryColor: "#4a148c"},
	}
}

// Games returns a single round robin with home and return legs.
func Games() []games.Game {
	fixtures := []struct {
		id, home, away, date, clock string
	}{
		{"fx-01", "hbc", "lks", "2025-03-01", "15:00"},
		{"fx-02", "bay", "ntg", "2025-03-01", "18:00"},
		{"fx-03", "lks", "bay", "2025-03-08", "15:00"},
		{"fx-04", "ntg", "hbc", "2025-03-08", "18:00"},
		{"fx-05", "hbc", "bay", "2025-03-15", "15:00"},
		{"fx-06", "lks", "ntg", "2025-03-15", "18:00"},
		{"fx-07", "lks", "hbc", "2025-03-22", "15:00"},
		{"fx-08", "ntg", "bay", "2025-03-22", "18:00"},
		{"fx-09", "bay", "lks", "2025-03-29", "15:00"},
		{"fx-10", "hbc", "ntg", "2025-03-29", "18:00"},
		{"fx-11", "bay", "hbc", "2025-04-05", "15:00"},
		{"fx-12", "ntg", "lks", "2025-04-05", "18:00"},
	}
	out := make([]games.Game, 0, len(fixtures))
	for _, f := range fixtures {
		g := games.Game{
			ID:         f.id,
			SportID:    SportID,
			HomeTeamID: f.home,
			AwayTeamID: f.away,
			Date:       f.date,
			Time:       f.clock,
			Venue:      f.home + "-stadium",
		}
		if f.clock == "18:00" {
			g.Broadcast = games.Broadcast{Network: "FTV"}
		}
		out = append(out, g)
	}
	return out
}
