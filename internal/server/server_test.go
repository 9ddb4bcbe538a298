package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/collab"
	"github.com/preston-bernstein/ftbuilder/internal/config"
	"github.com/preston-bernstein/ftbuilder/internal/providers/fixture"
	"github.com/preston-bernstein/ftbuilder/internal/providers/sqlite"
	"github.com/preston-bernstein/ftbuilder/internal/snapshots"
	"github.com/preston-bernstein/ftbuilder/internal/testutil"
)

func baseConfig() config.Config {
	return config.Config{
		Port:         "0",
		SportID:      fixture.SportID,
		Season:       fixture.Season,
		UndoDepth:    10,
		PollInterval: time.Hour,
		Persistence:  config.PersistenceConfig{Backend: config.BackendFixture},
		Generator:    config.GeneratorConfig{Backend: config.BackendFixture},
		Collab:       config.CollabConfig{Actor: "server"},
		Metrics:      config.MetricsConfig{Enabled: false},
	}
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	logger, _ := testutil.NewBufferLogger()
	srv, err := New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv
}

// startEngine runs the background workers and the initial load without
// binding a listener.
func startEngine(t *testing.T, srv *Server) {
	t.Helper()
	srv.startBackground()
	srv.loadInitial(context.Background())
	deadline := time.Now().Add(2 * time.Second)
	for !srv.Workspace().Ready() {
		if time.Now().After(deadline) {
			t.Fatalf("schedule never loaded: %+v", srv.Workspace().LoadStatus())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func serve(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	return testutil.ServeRequest(h, req)
}

func applyRemoval(t *testing.T, h http.Handler, gameID string) {
	t.Helper()
	rr := serve(t, h, http.MethodPost, "/suggestions", `{"delta":{"ops":[{"kind":"remove","gameId":"`+gameID+`"}]}}`)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&created); err != nil {
		t.Fatalf("decode suggestion: %v", err)
	}
	rr = serve(t, h, http.MethodPost, "/suggestions/"+created.ID+"/apply", "")
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestServerServesScheduleAfterInitialLoad(t *testing.T) {
	srv := newTestServer(t, baseConfig())
	defer srv.gracefulShutdown()

	router := srv.Handler()
	rr := serve(t, router, http.MethodGet, "/ready", "")
	testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)

	startEngine(t, srv)

	rr = serve(t, router, http.MethodGet, "/health", "")
	testutil.AssertStatus(t, rr, http.StatusOK)
	rr = serve(t, router, http.MethodGet, "/ready", "")
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = serve(t, router, http.MethodGet, "/schedule", "")
	testutil.AssertStatus(t, rr, http.StatusOK)
	var doc struct {
		Games []json.RawMessage `json:"games"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&doc); err != nil {
		t.Fatalf("decode schedule: %v", err)
	}
	if len(doc.Games) != len(fixture.Games()) {
		t.Fatalf("expected %d games, got %d", len(fixture.Games()), len(doc.Games))
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("expected middleware to set X-Request-ID")
	}
}

func TestServerPersistsCommitsToSQLite(t *testing.T) {
	cfg := baseConfig()
	cfg.Persistence = config.PersistenceConfig{
		Backend:     config.BackendSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "data", "ftbuilder.db"),
		SeedFixture: true,
	}
	srv := newTestServer(t, cfg)
	startEngine(t, srv)

	applyRemoval(t, srv.Handler(), "fx-12")
	srv.gracefulShutdown()

	db, err := sqlite.Open(context.Background(), cfg.Persistence.SQLitePath)
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer db.Close()
	doc, err := db.LoadSchedule(context.Background(), fixture.SportID, fixture.Season)
	if err != nil {
		t.Fatalf("load schedule: %v", err)
	}
	if len(doc.Games) != len(fixture.Games())-1 {
		t.Fatalf("expected removal persisted, got %d games", len(doc.Games))
	}
	for _, g := range doc.Games {
		if g.ID == "fx-12" {
			t.Fatalf("expected fx-12 deleted from sqlite")
		}
	}
}

func TestServerArchivesLatestRevisionOnShutdown(t *testing.T) {
	cfg := baseConfig()
	cfg.Archive = config.ArchiveConfig{
		Enabled:  true,
		Dir:      filepath.Join(t.TempDir(), "archive"),
		Keep:     3,
		Interval: time.Hour,
	}
	srv := newTestServer(t, cfg)
	startEngine(t, srv)

	applyRemoval(t, srv.Handler(), "fx-11")
	revision := srv.Workspace().Snapshot().Revision
	srv.gracefulShutdown()

	snap, err := snapshots.NewFSStore(cfg.Archive.Dir).Latest(fixture.SportID, fixture.Season)
	if err != nil {
		t.Fatalf("latest archive: %v", err)
	}
	if snap.Revision != revision {
		t.Fatalf("expected revision %d archived, got %d", revision, snap.Revision)
	}
	if len(snap.Document.Games) != len(fixture.Games())-1 {
		t.Fatalf("expected removal archived, got %d games", len(snap.Document.Games))
	}
}

func TestServerPublishesCommitsOnHub(t *testing.T) {
	cfg := baseConfig()
	cfg.Collab.Enabled = true
	srv := newTestServer(t, cfg)
	defer srv.gracefulShutdown()
	if srv.CollabHub() == nil {
		t.Fatalf("expected in-process hub without a peer address")
	}
	peer := srv.CollabHub().Join(0)
	defer peer.Close()
	startEngine(t, srv)

	applyRemoval(t, srv.Handler(), "fx-11")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	env, err := peer.Receive(ctx)
	if err != nil {
		t.Fatalf("receive envelope: %v", err)
	}
	if env.Actor != "server" || env.SportID != fixture.SportID {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if ids := env.Delta.GameIDs(); len(ids) != 1 || ids[0] != "fx-11" {
		t.Fatalf("unexpected delta ids %v", ids)
	}
}

func TestServerStreamsToPeer(t *testing.T) {
	local, remote := net.Pipe()
	orig := dialPeer
	dialPeer = func(context.Context, string) (net.Conn, error) { return local, nil }
	defer func() { dialPeer = orig }()

	cfg := baseConfig()
	cfg.Collab = config.CollabConfig{Enabled: true, Actor: "server", PeerAddr: "peer:7000"}
	srv := newTestServer(t, cfg)
	defer srv.gracefulShutdown()
	if srv.CollabHub() != nil {
		t.Fatalf("expected no hub when streaming to a peer")
	}
	startEngine(t, srv)

	peer := collab.NewStream(remote)
	defer peer.Close()
	received := make(chan collab.Envelope, 1)
	go func() {
		env, err := peer.Receive(context.Background())
		if err == nil {
			received <- env
		}
	}()

	applyRemoval(t, srv.Handler(), "fx-10")

	select {
	case env := <-received:
		if ids := env.Delta.GameIDs(); len(ids) != 1 || ids[0] != "fx-10" {
			t.Fatalf("unexpected delta ids %v", ids)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for streamed envelope")
	}
}

func TestNewFailsWhenPeerUnreachable(t *testing.T) {
	orig := dialPeer
	dialPeer = func(context.Context, string) (net.Conn, error) { return nil, errors.New("refused") }
	defer func() { dialPeer = orig }()

	cfg := baseConfig()
	cfg.Collab = config.CollabConfig{Enabled: true, Actor: "server", PeerAddr: "peer:7000"}
	if _, err := New(context.Background(), cfg, nil); err == nil || !strings.Contains(err.Error(), "refused") {
		t.Fatalf("expected dial failure, got %v", err)
	}
}

func TestNewFailsOnMissingRulesFile(t *testing.T) {
	cfg := baseConfig()
	cfg.RulesFile = filepath.Join(t.TempDir(), "missing.yaml")
	if _, err := New(context.Background(), cfg, nil); err == nil {
		t.Fatalf("expected error for missing rules file")
	}
}

func TestAdminRoutesMountedWithToken(t *testing.T) {
	cfg := baseConfig()
	srv := newTestServer(t, cfg)
	rr := serve(t, srv.Handler(), http.MethodPost, "/admin/poll", "")
	testutil.AssertStatus(t, rr, http.StatusNotFound)
	srv.gracefulShutdown()

	cfg.AdminToken = "secret"
	srv = newTestServer(t, cfg)
	defer srv.gracefulShutdown()
	startEngine(t, srv)

	req := httptest.NewRequest(http.MethodPost, "/admin/reload", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = testutil.ServeRequest(srv.Handler(), req)
	testutil.AssertStatus(t, rr, http.StatusOK)

	req = httptest.NewRequest(http.MethodPost, "/admin/poll", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = testutil.ServeRequest(srv.Handler(), req)
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestGracefulShutdownCallsStopAndShutdown(t *testing.T) {
	p := &stubPoller{}
	httpSrv := &stubHTTPServer{}

	srv := newServerWithDeps(config.Config{}, nil, httpSrv, p)
	srv.gracefulShutdown()

	if p.StopCalls != 1 {
		t.Fatalf("expected poller Stop to be called once, got %d", p.StopCalls)
	}
	if httpSrv.ShutdownCalls != 1 {
		t.Fatalf("expected server Shutdown to be called once, got %d", httpSrv.ShutdownCalls)
	}
}

func TestGracefulShutdownTimesOutLongRunningShutdown(t *testing.T) {
	p := &stubPoller{}
	blocking := &blockingHTTPServer{
		AddrVal:    ":0",
		HandlerVal: http.NewServeMux(),
		Unblock:    make(chan struct{}),
	}

	cfg := config.Config{HTTP: config.HTTPConfig{ShutdownTimeout: 5 * time.Millisecond}}
	srv := newServerWithDeps(cfg, nil, blocking, p)

	start := time.Now()
	srv.gracefulShutdown()
	elapsed := time.Since(start)

	if blocking.ShutdownCalls != 1 {
		t.Fatalf("expected server Shutdown to be called once, got %d", blocking.ShutdownCalls)
	}
	if p.StopCalls != 1 {
		t.Fatalf("expected poller Stop to be called once, got %d", p.StopCalls)
	}
	if elapsed > 200*time.Millisecond {
		t.Fatalf("shutdown took too long: %s", elapsed)
	}
}

func TestGracefulShutdownContinuesWhenPollerStopErrors(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	p := &stubPoller{Err: errors.New("stop failure")}
	httpSrv := &stubHTTPServer{}

	srv := newServerWithDeps(config.Config{}, logger, httpSrv, p)
	srv.gracefulShutdown()

	if httpSrv.ShutdownCalls != 1 {
		t.Fatalf("expected server Shutdown to be called once, got %d", httpSrv.ShutdownCalls)
	}
	if !strings.Contains(buf.String(), "failed to stop poller") {
		t.Fatalf("expected poller failure logged, got %s", buf.String())
	}
}

func TestServerStartHandlesListenErrorAndStops(t *testing.T) {
	srv := newServerWithDeps(config.Config{}, nil, &errHTTPServer{}, &stubPoller{})

	var once sync.Once
	stopCalled := make(chan struct{})
	srv.startServer(func() { once.Do(func() { close(stopCalled) }) })

	select {
	case <-stopCalled:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("expected stop to be called on listen failure")
	}
}

func TestRunCancelsAndStopsComponents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	plr := &stubPoller{}
	httpSrv := &closeableHTTPServer{}
	srv := newServerWithDeps(config.Config{}, nil, httpSrv, plr)

	done := make(chan struct{})
	go func() {
		srv.Run(ctx, cancel)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("run did not return after cancel")
	}

	if plr.StartCalls != 1 {
		t.Fatalf("expected poller Start called once, got %d", plr.StartCalls)
	}
	if plr.StopCalls != 1 {
		t.Fatalf("expected poller Stop called once, got %d", plr.StopCalls)
	}
	if httpSrv.ShutdownCalls != 1 {
		t.Fatalf("expected server Shutdown called once, got %d", httpSrv.ShutdownCalls)
	}
}
