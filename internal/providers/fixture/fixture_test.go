package fixture

import (
	"context"
	"testing"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/domain/schedule"
	"github.com/preston-bernstein/ftbuilder/internal/domain/teams"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
)

func TestSeededScheduleIsValid(t *testing.T) {
	p := New()
	roster, err := p.LoadTeams(context.Background(), SportID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	doc, err := p.LoadSchedule(context.Background(), SportID, Season)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(roster) != 4 || len(doc.Games) != 12 {
		t.Fatalf("unexpected fixture sizes: %d teams, %d games", len(roster), len(doc.Games))
	}
	if doc.Meta.Start != "2025-03-01" {
		t.Fatalf("expected seeded meta, got %+v", doc.Meta)
	}
	s := schedule.New(doc.Meta, doc.Games)
	if err := s.Validate(teams.NewIndex(roster)); err != nil {
		t.Fatalf("fixture schedule invalid: %v", err)
	}
	for i := 1; i < len(doc.Games); i++ {
		if games.Less(doc.Games[i], doc.Games[i-1]) {
			t.Fatalf("games not sorted at %d", i)
		}
	}
}

func TestSaveAndDeleteGame(t *testing.T) {
	p := New()
	ctx := context.Background()

	moved := Games()[0]
	moved.Date = "2025-04-12"
	if err := p.SaveGame(ctx, Season, moved); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := p.DeleteGame(ctx, SportID, Season, "fx-02"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := p.DeleteGame(ctx, SportID, Season, "missing"); err != nil {
		t.Fatalf("delete unknown: %v", err)
	}

	doc, _ := p.LoadSchedule(ctx, SportID, Season)
	if len(doc.Games) != 11 {
		t.Fatalf("expected 11 games, got %d", len(doc.Games))
	}
	if last := doc.Games[len(doc.Games)-1]; last.ID != "fx-01" || last.Date != "2025-04-12" {
		t.Fatalf("expected moved game last, got %+v", last)
	}
}

func TestSaveGameRejectsInvalidGame(t *testing.T) {
	p := NewEmpty()
	if err := p.SaveGame(context.Background(), Season, games.Game{ID: "x"}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestUnknownSeasonIsEmpty(t *testing.T) {
	p := New()
	doc, err := p.LoadSchedule(context.Background(), "rugby", "2030")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(doc.Games) != 0 || doc.Meta.SportID != "rugby" || doc.Meta.Season != "2030" {
		t.Fatalf("unexpected document %+v", doc)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := New().LoadTeams(ctx, SportID); err == nil {
		t.Fatal("expected context error")
	}
	if _, err := NewGenerator().Generate(ctx, providers.Request{}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestGeneratorReturnsScheduleWhenEmpty(t *testing.T) {
	resp, err := NewGenerator().Generate(context.Background(), providers.Request{SportID: SportID, Season: Season})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(resp.Games) != 12 || len(resp.Suggestions) != 0 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestGeneratorSuggestionsAreDeterministic(t *testing.T) {
	fixed := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	g := NewGenerator()
	g.now = func() time.Time { return fixed }
	req := providers.Request{SportID: SportID, Season: Season, Games: Games()}

	first, err := g.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, _ := g.Generate(context.Background(), req)

	if len(first.Suggestions) != 4 {
		t.Fatalf("expected one suggestion per home team, got %d", len(first.Suggestions))
	}
	for i := range first.Suggestions {
		if first.Suggestions[i].ID != second.Suggestions[i].ID {
			t.Fatalf("suggestion ids differ: %s vs %s", first.Suggestions[i].ID, second.Suggestions[i].ID)
		}
	}

	s := first.Suggestions[0]
	if s.ID != "fixture-fx-11-2025-04-12" {
		t.Fatalf("unexpected first suggestion %s", s.ID)
	}
	if err := s.Validate(); err != nil {
		t.Fatalf("suggestion invalid: %v", err)
	}
	op := s.Delta.Ops[0]
	if op.From.Date != "2025-04-05" || op.To.Date != "2025-04-12" || op.To.Venue != "bay-stadium" {
		t.Fatalf("unexpected move %+v -> %+v", op.From, op.To)
	}
	if !s.CreatedAt.Equal(fixed) {
		t.Fatalf("unexpected created at %s", s.CreatedAt)
	}
}
