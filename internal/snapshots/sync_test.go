package snapshots

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/providers/fixture"
)

func TestArchiveOnceWritesEachRevisionOnce(t *testing.T) {
	base := t.TempDir()
	src := &fakeSource{}
	s := NewSyncer(src, NewWriter(base, 5), SyncConfig{Enabled: true}, nil, nil)

	if s.ArchiveOnce() {
		t.Fatalf("expected nothing archived before load")
	}

	src.set(1)
	if !s.ArchiveOnce() {
		t.Fatalf("expected first revision archived")
	}
	if s.ArchiveOnce() {
		t.Fatalf("expected unchanged revision skipped")
	}

	src.set(2)
	if !s.ArchiveOnce() {
		t.Fatalf("expected new revision archived")
	}
	latest, err := NewFSStore(base).Latest(fixture.SportID, fixture.Season)
	if err != nil || latest.Revision != 2 {
		t.Fatalf("expected latest revision 2, got %+v %v", latest, err)
	}
	want, _ := src.Snapshot().Schedule.Fingerprint()
	if latest.Fingerprint == "" || latest.Fingerprint != want {
		t.Fatalf("expected fingerprint %q, got %q", want, latest.Fingerprint)
	}
}

func TestArchiveOnceRecordsWriteFailure(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	recorder := metrics.NewRecorder()
	src := &fakeSource{}
	src.set(1)

	s := NewSyncer(src, NewWriter(file, 5), SyncConfig{Enabled: true}, logger, recorder)
	if s.ArchiveOnce() {
		t.Fatalf("expected failed archive")
	}
	if recorder.Count("persistence_failure:archive") != 1 {
		t.Fatalf("expected archive failure recorded")
	}
	if !strings.Contains(buf.String(), "snapshot write failed") {
		t.Fatalf("expected failure log, got %s", buf.String())
	}
}

func TestRunArchivesOnShutdown(t *testing.T) {
	base := t.TempDir()
	src := &fakeSource{}
	src.set(4)
	s := NewSyncer(src, NewWriter(base, 5), SyncConfig{Enabled: true, Interval: time.Hour}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Run(ctx)

	if _, err := NewFSStore(base).Load(fixture.SportID, fixture.Season, 4); err != nil {
		t.Fatalf("expected revision archived on shutdown: %v", err)
	}
}

func TestRunArchivesOnTick(t *testing.T) {
	base := t.TempDir()
	src := &fakeSource{}
	src.set(7)
	s := NewSyncer(src, NewWriter(base, 5), SyncConfig{Enabled: true, Interval: time.Millisecond}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(RevisionPath(base, fixture.SportID, fixture.Season, 7)); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for tick archive")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
}

func TestRunDisabledOrUnconfigured(t *testing.T) {
	base := t.TempDir()
	src := &fakeSource{}
	src.set(1)

	NewSyncer(src, NewWriter(base, 5), SyncConfig{}, nil, nil).Run(context.Background())
	NewSyncer(nil, NewWriter(base, 5), SyncConfig{Enabled: true}, nil, nil).Run(context.Background())
	var nilSyncer *Syncer
	nilSyncer.Run(context.Background())
	if nilSyncer.ArchiveOnce() {
		t.Fatalf("expected nil syncer to archive nothing")
	}

	if entries, _ := os.ReadDir(base); len(entries) != 0 {
		t.Fatalf("expected nothing written, got %d entries", len(entries))
	}
}

func TestNewSyncerDefaultsInterval(t *testing.T) {
	s := NewSyncer(&fakeSource{}, nil, SyncConfig{}, nil, nil)
	if s.cfg.Interval != time.Minute {
		t.Fatalf("expected default interval, got %s", s.cfg.Interval)
	}
}
