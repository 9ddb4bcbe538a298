package persist

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/preston-bernstein/ftbuilder/internal/constraints"
	"github.com/preston-bernstein/ftbuilder/internal/domain/games"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
	"github.com/preston-bernstein/ftbuilder/internal/providers/sqlite"
	"github.com/preston-bernstein/ftbuilder/internal/store"
	"github.com/preston-bernstein/ftbuilder/internal/teststubs"
	"github.com/preston-bernstein/ftbuilder/internal/testutil"
)

func loadedStore(t *testing.T) *store.Store {
	t.Helper()
	engine, err := constraints.New(nil)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	st := store.New(engine, nil, nil)
	t.Cleanup(st.Close)
	if err := st.Load(context.Background(), testutil.SampleMeta(), testutil.SampleGames(), testutil.SampleTeams()); err != nil {
		t.Fatalf("load: %v", err)
	}
	return st
}

func startWriter(t *testing.T, w *Writer) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		w.Close()
	})
}

func TestWriterSavesMovedGames(t *testing.T) {
	st := loadedStore(t)
	backend := &teststubs.StubPersistence{}
	w := NewWriter(st, backend, nil, nil)
	startWriter(t, w)

	d, err := st.ProposeMove("g1", games.Slot{Date: "2025-03-02", Time: "15:00", Venue: "V1"})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := st.Commit(context.Background(), d, store.Local("ana")); err != nil {
		t.Fatalf("commit: %v", err)
	}
	w.Flush()

	saved := backend.Saved()
	if len(saved) != 1 {
		t.Fatalf("expected one save, got %+v", saved)
	}
	if saved[0].Season != testutil.Season || saved[0].Game.ID != "g1" || saved[0].Game.Date != "2025-03-02" {
		t.Fatalf("unexpected save %+v", saved[0])
	}
}

func TestWriterPersistsAddedGameUnderScheduleSport(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "schedule.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Seed(ctx, testutil.SampleMeta(), testutil.SampleTeams(), testutil.SampleGames()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	st := loadedStore(t)
	w := NewWriter(st, db, nil, nil)
	startWriter(t, w)

	added := games.Game{ID: "g5", HomeTeamID: "t2", AwayTeamID: "t1", Date: "2025-03-15"}
	if _, err := st.Commit(ctx, games.Add(added), store.Local("ana")); err != nil {
		t.Fatalf("commit: %v", err)
	}
	w.Flush()

	doc, err := db.LoadSchedule(ctx, testutil.SportID, testutil.Season)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(doc.Games) != st.Snapshot().Schedule.Len() {
		t.Fatalf("expected %d games after reload, got %d", st.Snapshot().Schedule.Len(), len(doc.Games))
	}
}

func TestWriterDeletesRemovedGamesAndPersistsReverts(t *testing.T) {
	st := loadedStore(t)
	backend := &teststubs.StubPersistence{}
	w := NewWriter(st, backend, nil, nil)
	startWriter(t, w)

	res, err := st.Commit(context.Background(), games.Remove("g2"), store.Local("ana"))
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	w.Flush()
	if deleted := backend.Deleted(); len(deleted) != 1 || deleted[0] != "g2" {
		t.Fatalf("expected g2 deleted, got %v", deleted)
	}

	if _, err := st.Revert(context.Background(), res.ChangeID, store.Local("ana")); err != nil {
		t.Fatalf("revert: %v", err)
	}
	w.Flush()
	saved := backend.Saved()
	if len(saved) != 1 || saved[0].Game.ID != "g2" || saved[0].Game.Date != "2025-03-01" {
		t.Fatalf("expected restored g2 saved, got %+v", saved)
	}
}

func TestWriterIgnoresLoads(t *testing.T) {
	st := loadedStore(t)
	backend := &teststubs.StubPersistence{}
	w := NewWriter(st, backend, nil, nil)
	startWriter(t, w)

	if err := st.Load(context.Background(), testutil.SampleMeta(), testutil.SampleGames()[:2], testutil.SampleTeams()); err != nil {
		t.Fatalf("reload: %v", err)
	}
	w.Flush()
	if len(backend.Saved()) != 0 || len(backend.Deleted()) != 0 {
		t.Fatalf("loads must not be written back, got %+v %v", backend.Saved(), backend.Deleted())
	}
}

func TestWriterQueuesChangesBeforeRun(t *testing.T) {
	st := loadedStore(t)
	backend := &teststubs.StubPersistence{}
	w := NewWriter(st, backend, nil, nil)

	if _, err := st.Commit(context.Background(), games.Remove("g3"), store.Local("ana")); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if w.Pending() != 1 {
		t.Fatalf("expected one pending write, got %d", w.Pending())
	}

	startWriter(t, w)
	w.Flush()
	if deleted := backend.Deleted(); len(deleted) != 1 || deleted[0] != "g3" {
		t.Fatalf("expected queued delete written, got %v", deleted)
	}
}

func TestWriterSurfacesFailures(t *testing.T) {
	st := loadedStore(t)
	backend := &teststubs.StubPersistence{
		SaveErr: providers.Retryable("stub", "save_game", errors.New("locked")),
	}
	logger, buf := testutil.NewBufferLogger()
	rec := metrics.NewRecorder()
	w := NewWriter(st, backend, logger, rec)
	startWriter(t, w)

	d, err := st.ProposeMove("g4", games.Slot{Date: "2025-03-09", Time: "18:00", Venue: "V2"})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := st.Commit(context.Background(), d, store.Local("ana")); err != nil {
		t.Fatalf("commit: %v", err)
	}
	w.Flush()

	if rec.Count("persistence_failure:save_game") != 1 {
		t.Fatalf("expected persistence failure counted")
	}
	out := buf.String()
	if !strings.Contains(out, "persisting change failed") || !strings.Contains(out, "game_id=g4") || !strings.Contains(out, "retryable=true") {
		t.Fatalf("expected failure log, got %s", out)
	}
}

func TestWriterStopsOnCancel(t *testing.T) {
	st := loadedStore(t)
	w := NewWriter(st, &teststubs.StubPersistence{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx)
	w.Flush()
	w.Close()
}
