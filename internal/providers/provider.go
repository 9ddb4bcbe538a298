package providers

import (
	"context"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/rules"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/suggestions"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
)

// Persistence loads and saves schedule data for one sport and season.
// Failures that may succeed on retry are returned as *RetryableError.
type Persistence interface {
	LoadTeams(ctx context.Context, sportID string) ([]teams.Team, error)
	LoadSchedule(ctx context.Context, sportID, season string) (schedule.Document, error)
	SaveGame(ctx context.Context, season string, g games.Game) error
	DeleteGame(ctx context.Context, sportID, season, gameID string) error
}

// Request asks the generation service for work.
type Request struct {
	SportID     string             `json:"sportId"`
	Season      string             `json:"season"`
	Constraints []rules.Constraint `json:"constraints"`
	Games       []games.Game       `json:"games,omitempty"`
}

// Response carries either a full set of games or a list of suggestions.
type Response struct {
	Games       []games.Game             `json:"games,omitempty"`
	Suggestions []suggestions.Suggestion `json:"suggestions,omitempty"`
}

// Generator is the external generation/optimization service.
type Generator interface {
	Generate(ctx context.Context, req Request) (Response, error)
}
