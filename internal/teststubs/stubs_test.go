package teststubs

import (
	"context"
	"errors"
	"testing"

	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
)

func TestStubGeneratorTracksCalls(t *testing.T) {
	err := errors.New("boom")
	g := &StubGenerator{Err: err, Notify: make(chan struct{})}
	if _, got := g.Generate(context.Background(), providers.Request{SportID: "soccer"}); !errors.Is(got, err) {
		t.Fatalf("expected error passthrough, got %v", got)
	}
	_, _ = g.Generate(context.Background(), providers.Request{SportID: "rugby"})
	if g.Calls.Load() != 2 {
		t.Fatalf("expected call count 2, got %d", g.Calls.Load())
	}
	if g.LastRequest().SportID != "rugby" {
		t.Fatalf("expected last request recorded, got %+v", g.LastRequest())
	}
	select {
	case <-g.Notify:
	default:
		t.Fatal("expected notify closed")
	}
}

func TestStubPersistenceRecordsWrites(t *testing.T) {
	p := &StubPersistence{}
	writes := p.Writes()
	ctx := context.Background()

	if err := p.SaveGame(ctx, "2025", games.Game{ID: "g1"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := p.DeleteGame(ctx, "soccer", "2025", "g2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	<-writes
	<-writes
	if saved := p.Saved(); len(saved) != 1 || saved[0].Game.ID != "g1" || saved[0].Season != "2025" {
		t.Fatalf("unexpected saves %+v", saved)
	}
	if deleted := p.Deleted(); len(deleted) != 1 || deleted[0] != "g2" {
		t.Fatalf("unexpected deletes %+v", deleted)
	}

	p.SaveErr = errors.New("disk full")
	if err := p.SaveGame(ctx, "2025", games.Game{ID: "g3"}); !errors.Is(err, p.SaveErr) {
		t.Fatalf("expected save error, got %v", err)
	}
	p.LoadErr = errors.New("offline")
	if _, err := p.LoadTeams(ctx, "soccer"); !errors.Is(err, p.LoadErr) {
		t.Fatalf("expected load error, got %v", err)
	}
}
