package httpgen

import (
	"fmt"
	"strings"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/suggestions"
)

func mapGame(g gamePayload, sportID string) games.Game {
	return games.Game{
		ID:         strings.TrimSpace(g.ID),
		SportID:    sportID,
		HomeTeamID: g.HomeTeamID,
		AwayTeamID: g.AwayTeamID,
		Date:       g.Date,
		Time:       strings.TrimSpace(g.Time),
		Venue:      g.Venue,
		Broadcast:  games.Broadcast{Network: g.Network},
	}
}

func toPayload(g games.Game) gamePayload {
	return gamePayload{
		ID:         g.ID,
		HomeTeamID: g.HomeTeamID,
		AwayTeamID: g.AwayTeamID,
		Date:       g.Date,
		Time:       g.Time,
		Venue:      g.Venue,
		Network:    g.Broadcast.Network,
	}
}

func mapSlot(s *slotPayload) *games.Slot {
	if s == nil {
		return nil
	}
	return &games.Slot{Date: s.Date, Time: strings.TrimSpace(s.Time), Venue: s.Venue}
}

func mapOp(op opPayload, sportID string) (games.Op, error) {
	switch kind := games.OpKind(strings.ToLower(op.Kind)); kind {
	case games.OpAdd:
		if op.Game == nil {
			return games.Op{}, fmt.Errorf("add op without game")
		}
		g := mapGame(*op.Game, sportID)
		return games.Op{Kind: kind, Game: &g}, nil
	case games.OpRemove:
		return games.Op{Kind: kind, GameID: op.GameID}, nil
	case games.OpMove:
		return games.Op{Kind: kind, GameID: op.GameID, From: mapSlot(op.From), To: mapSlot(op.To)}, nil
	default:
		return games.Op{}, fmt.Errorf("unknown op kind %q", op.Kind)
	}
}

// mapSuggestion converts a wire suggestion. Suggestions with an unknown
// op are rejected whole rather than applied partially.
func mapSuggestion(s suggestionPayload, sportID string, now time.Time) (suggestions.Suggestion, error) {
	ops := make([]games.Op, 0, len(s.Ops))
	for _, raw := range s.Ops {
		op, err := mapOp(raw, sportID)
		if err != nil {
			return suggestions.Suggestion{}, fmt.Errorf("suggestion %s: %w", s.ID, err)
		}
		ops = append(ops, op)
	}
	created := now
	if s.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, s.CreatedAt); err == nil {
			created = t
		}
	}
	return suggestions.Suggestion{
		ID:        s.ID,
		Source:    mapSource(s.Source),
		Delta:     games.Delta{Ops: ops},
		Rationale: strings.TrimSpace(s.Rationale),
		CreatedAt: created,
	}, nil
}

func mapSource(source string) suggestions.Source {
	switch strings.ToLower(source) {
	case "collaborator", "human", "user":
		return suggestions.SourceCollaborator
	default:
		return suggestions.SourceAI
	}
}
