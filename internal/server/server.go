package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/preston-bernstein/ftbuilder/internal/app/persist"
	"github.com/preston-bernstein/ftbuilder/internal/app/workspace"
	"github.com/preston-bernstein/ftbuilder/internal/collab"
	"github.com/preston-bernstein/ftbuilder/internal/config"
	"github.com/preston-bernstein/ftbuilder/internal/constraints"
	"github.com/preston-bernstein/ftbuilder/internal/drag"
	httpserver "github.com/preston-bernstein/ftbuilder/internal/http"
	"github.com/preston-bernstein/ftbuilder/internal/http/handlers"
	"github.com/preston-bernstein/ftbuilder/internal/http/middleware"
	"github.com/preston-bernstein/ftbuilder/internal/logging"
	"github.com/preston-bernstein/ftbuilder/internal/metrics"
	"github.com/preston-bernstein/ftbuilder/internal/poller"
	"github.com/preston-bernstein/ftbuilder/internal/providers"
	"github.com/preston-bernstein/ftbuilder/internal/snapshots"
	"github.com/preston-bernstein/ftbuilder/internal/store"
	"github.com/preston-bernstein/ftbuilder/internal/suggestions"
)

var metricsSetup = metrics.Setup

// defaultShutdownTimeout applies when the config leaves it unset.
const defaultShutdownTimeout = 10 * time.Second

type Server struct {
	cfg           config.Config
	logger        *slog.Logger
	metrics       *metrics.Recorder
	store         *store.Store
	drag          *drag.Controller
	suggestions   *suggestions.Manager
	workspace     *workspace.Workspace
	writer        *persist.Writer
	archive       *snapshots.Syncer
	collab        collabComponents
	backend       io.Closer
	stopGenerator func()
	httpServer    httpServer
	metricsServer httpServer
	poller        Poller
	metricsStop   func(context.Context) error

	// cancelBackground stops the writer, archive and bridge after the HTTP server drains.
	cancelBackground context.CancelFunc
	background       sync.WaitGroup
}

// New constructs a server with the configured backends.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	return newServerWithMetrics(ctx, cfg, logger, nil)
}

func newServerWithMetrics(ctx context.Context, cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*Server, error) {
	if logger == nil {
		logger = logging.NewLogger(logging.Config{})
	}
	recorder, metricsSrv, metricsShutdown := buildMetrics(cfg, logger, recorder)
	factory := newBackendFactory(logger, recorder)

	list, err := config.LoadRules(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	engine, err := constraints.New(list)
	if err != nil {
		return nil, err
	}

	backend, closer, err := factory.persistence(ctx, cfg)
	if err != nil {
		return nil, err
	}
	generator, stopGenerator := factory.generator(cfg)

	st := store.New(engine, logger, recorder, store.WithUndoDepth(cfg.UndoDepth))
	dc := drag.NewController(st, logger, recorder)
	sm := suggestions.NewManager(st, logger, recorder)
	ws := workspace.New(workspace.Deps{
		Store:       st,
		Drag:        dc,
		Suggestions: sm,
		Loader:      workspace.NewLoader(backend, st, logger, recorder),
		Actor:       cfg.Collab.Actor,
		Logger:      logger,
	})
	writer := persist.NewWriter(st, backend, logger, recorder)

	cc, err := buildCollab(ctx, cfg, st, logger, recorder)
	if err != nil {
		writer.Close()
		ws.Close()
		dc.Close()
		sm.Close()
		st.Close()
		stopGenerator()
		_ = closer.Close()
		return nil, err
	}

	var archive *snapshots.Syncer
	if cfg.Archive.Enabled {
		archive = snapshots.NewSyncer(st, snapshots.NewWriter(cfg.Archive.Dir, cfg.Archive.Keep),
			snapshots.SyncConfig{Enabled: true, Interval: cfg.Archive.Interval}, logger, recorder)
	}

	plr := poller.New(generator, st, sm, list, logger, recorder, cfg.PollInterval)
	httpSrv := buildHTTPServer(cfg, ws, plr, logger, recorder)

	return &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       recorder,
		store:         st,
		drag:          dc,
		suggestions:   sm,
		workspace:     ws,
		writer:        writer,
		archive:       archive,
		collab:        cc,
		backend:       closer,
		stopGenerator: stopGenerator,
		httpServer:    httpSrv,
		metricsServer: metricsSrv,
		poller:        plr,
		metricsStop:   metricsShutdown,
	}, nil
}

// newServerWithDeps is used for testing to inject custom components.
func newServerWithDeps(cfg config.Config, logger *slog.Logger, httpSrv httpServer, plr Poller) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpSrv,
		poller:     plr,
	}
}

func buildHTTPServer(cfg config.Config, ws *workspace.Workspace, plr Poller, logger *slog.Logger, recorder *metrics.Recorder) httpServer {
	var statusFn func() poller.Status
	if plr != nil {
		statusFn = plr.Status
	}

	handler := handlers.NewHandler(ws, logger, statusFn)
	var admin *handlers.AdminHandler
	if cfg.AdminToken != "" {
		admin = handlers.NewAdminHandler(ws, plr, cfg.SportID, cfg.Season, cfg.AdminToken, logger)
	}
	router := httpserver.NewRouter(handler, admin)
	wrapped := middleware.LoggingMiddleware(logger, recorder, router)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return netHTTPServer{srv: srv}
}

// Run starts the background workers, the HTTP server and the poller, loads
// the configured season, then waits for context cancellation to shut down gracefully.
func (s *Server) Run(ctx context.Context, stop context.CancelFunc) {
	s.startMetrics()
	s.startBackground()
	s.startServer(stop)
	s.loadInitial(ctx)
	s.poller.Start(ctx)

	<-ctx.Done()
	if s.logger != nil {
		s.logger.Info("shutdown signal received")
	}

	s.gracefulShutdown()
}

// startBackground runs the persistence writer, schedule archive and collaboration bridge on a
// context that outlives the request context, so queued writes can drain.
func (s *Server) startBackground() {
	bg, cancel := context.WithCancel(context.Background())
	s.cancelBackground = cancel
	if s.writer != nil {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			s.writer.Run(bg)
		}()
	}
	if s.archive != nil {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			s.archive.Run(bg)
		}()
	}
	if s.collab.bridge != nil {
		s.background.Add(1)
		go func() {
			defer s.background.Done()
			if err := s.collab.bridge.Run(bg); err != nil && !errors.Is(err, collab.ErrTransportClosed) && s.logger != nil {
				s.logger.Warn("collaboration bridge stopped", "error", err)
			}
		}()
	}
}

func (s *Server) loadInitial(ctx context.Context) {
	if s.workspace == nil {
		return
	}
	done := s.workspace.LoadAsync(ctx, s.cfg.SportID, s.cfg.Season)
	go func() {
		err := <-done
		if err == nil || s.logger == nil {
			return
		}
		s.logger.Warn("initial schedule load failed",
			slog.String(logging.FieldSportID, s.cfg.SportID),
			slog.String(logging.FieldSeason, s.cfg.Season),
			"error", err,
			"retryable", providers.IsRetryable(err),
		)
	}()
}

func (s *Server) startServer(stop context.CancelFunc) {
	if s.logger != nil {
		s.logger.Info("http server starting", slog.String("addr", s.httpServer.Addr()))
	}
	launchServer("http", s.httpServer, s.logger, func(err error) {
		if stop != nil {
			stop()
		}
	})
}

func (s *Server) startMetrics() {
	if s.metricsServer == nil {
		return
	}
	if s.logger != nil {
		s.logger.Info("metrics server starting", slog.String("addr", s.metricsServer.Addr()))
	}
	launchServer("metrics", s.metricsServer, s.logger, nil)
}

func (s *Server) gracefulShutdown() {
	timeout := s.cfg.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if s.metricsStop != nil {
		if err := s.metricsStop(shutdownCtx); err != nil && s.logger != nil {
			s.logger.Warn("metrics shutdown failed", "error", err)
		}
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil && s.logger != nil {
			s.logger.Warn("metrics server shutdown failed", "error", err)
		}
	}

	if err := s.poller.Stop(shutdownCtx); err != nil && s.logger != nil {
		s.logger.Error("failed to stop poller", "error", err)
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil && s.logger != nil {
		s.logger.Error("graceful shutdown failed", "error", err)
	}

	s.drainWrites(shutdownCtx)
	s.stopBackground(shutdownCtx)
	s.closeEngine()

	if s.stopGenerator != nil {
		s.stopGenerator()
	}
	if s.backend != nil {
		if err := s.backend.Close(); err != nil && s.logger != nil {
			s.logger.Warn("closing persistence failed", "error", err)
		}
	}

	if s.logger != nil {
		s.logger.Info("shutdown complete")
	}
}

// drainWrites waits for queued persistence writes until ctx expires.
func (s *Server) drainWrites(ctx context.Context) {
	if s.writer == nil || s.cancelBackground == nil {
		return
	}
	flushed := make(chan struct{})
	go func() {
		s.writer.Flush()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-ctx.Done():
		if s.logger != nil {
			s.logger.Warn("shutdown before pending writes were persisted", slog.Int(logging.FieldCount, s.writer.Pending()))
		}
	}
}

func (s *Server) stopBackground(ctx context.Context) {
	if s.collab.transport != nil {
		_ = s.collab.transport.Close()
	}
	if s.cancelBackground == nil {
		return
	}
	s.cancelBackground()
	done := make(chan struct{})
	go func() {
		s.background.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		if s.logger != nil {
			s.logger.Warn("background workers did not stop before shutdown timeout")
		}
	}
}

func (s *Server) closeEngine() {
	if s.collab.bridge != nil {
		s.collab.bridge.Close()
	}
	if s.writer != nil {
		s.writer.Close()
	}
	if s.workspace != nil {
		s.workspace.Close()
	}
	if s.drag != nil {
		s.drag.Close()
	}
	if s.suggestions != nil {
		s.suggestions.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

func buildMetrics(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*metrics.Recorder, httpServer, func(context.Context) error) {
	if recorder != nil {
		return recorder, nil, nil
	}

	recCfg := metrics.TelemetryConfig{
		Enabled:      cfg.Metrics.Enabled,
		Port:         cfg.Metrics.Port,
		ServiceName:  cfg.Metrics.ServiceName,
		OtlpEndpoint: cfg.Metrics.OtlpEndpoint,
		OtlpInsecure: cfg.Metrics.OtlpInsecure,
	}

	rec, handler, shutdown, err := metricsSetup(context.Background(), recCfg)
	if err != nil {
		if logger != nil {
			logger.Warn("metrics setup failed, continuing without telemetry", "err", err)
		}
		return metrics.NewRecorder(), nil, nil
	}

	var metricsSrv httpServer
	if handler != nil && recCfg.Enabled {
		metricsSrv = netHTTPServer{
			srv: &http.Server{
				Addr:    ":" + recCfg.Port,
				Handler: handler,
			},
		}
	}

	return rec, metricsSrv, shutdown
}

func launchServer(name string, srv httpServer, logger *slog.Logger, onError func(error)) {
	go func() {
		if logger != nil {
			logger.Info("starting "+name+" server", slog.String("addr", srv.Addr()))
		}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if logger != nil {
				logger.Warn(name+" server failed", "error", err)
			}
			if onError != nil {
				onError(err)
			}
		}
	}()
}

// Handler exposes the HTTP handler (useful for tests).
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler()
}

// Workspace exposes the editing session the HTTP API drives.
func (s *Server) Workspace() *workspace.Workspace {
	return s.workspace
}

// CollabHub returns the in-process collaboration hub, or nil when a peer
// stream or no collaboration is configured.
func (s *Server) CollabHub() *collab.Hub {
	return s.collab.hub
}
