package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/preston-bernstein/gaffer-service/internal/app/squads"
	"github.com/preston-bernstein/gaffer-service/internal/config"
	"github.com/preston-bernstein/gaffer-service/internal/feed"
	httpserver "github.com/preston-bernstein/gaffer-service/internal/http"
	"github.com/preston-bernstein/gaffer-service/internal/http/handlers"
	"github.com/preston-bernstein/gaffer-service/internal/logging"
	"github.com/preston-bernstein/gaffer-service/internal/metrics"
	"github.com/preston-bernstein/gaffer-service/internal/store"
	"github.com/preston-bernstein/gaffer-service/internal/sweeper"
)

var metricsSetup = metrics.Setup

// Sweeper is the background retention job run alongside the HTTP server.
type Sweeper interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Status() sweeper.Status
}

type Server struct {
	cfg           config.Config
	logger        *slog.Logger
	metrics       *metrics.Recorder
	store         store.Store
	service       *squads.Service
	feed          *feed.Hub
	httpServer    httpServer
	metricsServer httpServer
	sweeper       Sweeper
	metricsStop   func(context.Context) error
}

// New opens the configured store and wires the squad service, feed, sweeper and HTTP server.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	return newServerWithMetrics(ctx, cfg, logger, nil)
}

func newServerWithMetrics(ctx context.Context, cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*Server, error) {
	recorder, metricsSrv, metricsShutdown := buildMetrics(cfg, logger, recorder)

	st, err := newStoreFactory(logger, recorder).build(ctx, cfg.Store)
	if err != nil {
		if metricsShutdown != nil {
			_ = metricsShutdown(ctx)
		}
		return nil, err
	}

	hub := feed.NewHub(
		feed.WithLogger(logger),
		feed.WithMetrics(recorder),
		feed.WithAllowedOrigins(cfg.CORS.AllowedOrigins),
	)
	svc := squads.NewService(st,
		squads.WithPublisher(hub),
		squads.WithLogger(logger),
		squads.WithMetrics(recorder),
	)

	sw, err := buildSweeper(cfg.Sweep, svc, logger)
	if err != nil {
		_ = st.Close()
		if metricsShutdown != nil {
			_ = metricsShutdown(ctx)
		}
		return nil, err
	}

	return &Server{
		cfg:           cfg,
		logger:        logger,
		metrics:       recorder,
		store:         st,
		service:       svc,
		feed:          hub,
		httpServer:    buildHTTPServer(cfg, svc, hub, logger, recorder),
		metricsServer: metricsSrv,
		sweeper:       sw,
		metricsStop:   metricsShutdown,
	}, nil
}

// newServerWithDeps is used for testing to inject custom components.
func newServerWithDeps(cfg config.Config, logger *slog.Logger, svc *squads.Service, httpSrv httpServer, sw Sweeper) *Server {
	return &Server{
		cfg:        cfg,
		logger:     logger,
		service:    svc,
		httpServer: httpSrv,
		sweeper:    sw,
	}
}

func buildSweeper(cfg config.SweepConfig, target sweeper.Target, logger *slog.Logger) (Sweeper, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	sw, err := sweeper.New(target, sweeper.Config{
		Interval:   cfg.Interval,
		Retention:  cfg.Retention.Duration(),
		RunOnStart: true,
	}, sweeper.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return sw, nil
}

func buildHTTPServer(cfg config.Config, svc *squads.Service, hub *feed.Hub, logger *slog.Logger, recorder *metrics.Recorder) httpServer {
	if logger == nil {
		logger = logging.NewLogger(logging.Config{})
	}
	handler := handlers.NewHandler(svc, hub, logger)
	router := httpserver.NewRouter(handler, httpserver.RouterConfig{
		Logger:         logger,
		Metrics:        recorder,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return netHTTPServer{srv: srv}
}

// Run starts the sweeper and HTTP server, then waits for context cancellation to shut down gracefully.
func (s *Server) Run(ctx context.Context, stop context.CancelFunc) {
	s.startMetrics()
	s.startServer(stop)
	s.startSweeper(ctx)

	<-ctx.Done()
	logging.Info(s.logger, "shutdown signal received")

	s.gracefulShutdown()
}

func (s *Server) startServer(stop context.CancelFunc) {
	logging.Info(s.logger, "http server starting", slog.String("addr", s.httpServer.Addr()))
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
	logging.Info(s.logger, "metrics server starting", slog.String("addr", s.metricsServer.Addr()))
	launchServer("metrics", s.metricsServer, s.logger, nil)
}

func (s *Server) startSweeper(ctx context.Context) {
	if s.sweeper == nil {
		return
	}
	if err := s.sweeper.Start(ctx); err != nil {
		logging.Error(s.logger, "sweeper failed to start", err)
	}
}

func (s *Server) gracefulShutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if s.metricsStop != nil {
		if err := s.metricsStop(shutdownCtx); err != nil {
			logging.Warn(s.logger, "metrics shutdown failed", "error", err)
		}
	}

	if s.metricsServer != nil {
		if err := s.metricsServer.Shutdown(shutdownCtx); err != nil {
			logging.Warn(s.logger, "metrics server shutdown failed", "error", err)
		}
	}

	if s.sweeper != nil {
		if err := s.sweeper.Stop(shutdownCtx); err != nil {
			logging.Error(s.logger, "failed to stop sweeper", err)
		}
	}
	if status, ok := s.SweepStatus(); ok && status.Runs > 0 {
		logging.Info(s.logger, "sweep summary",
			"runs", status.Runs,
			"consecutive_failures", status.ConsecutiveFailures,
			"last_removed", status.LastRemoved,
			"last_error", status.LastError,
		)
	}

	// Hijacked feed connections are invisible to http.Server.Shutdown.
	if s.feed != nil {
		s.feed.Close()
	}

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Error(s.logger, "graceful shutdown failed", err)
	}

	if s.store != nil {
		if err := s.store.Close(); err != nil {
			logging.Warn(s.logger, "store close failed", "error", err)
		}
	}

	logging.Info(s.logger, "shutdown complete")
}

func buildMetrics(cfg config.Config, logger *slog.Logger, recorder *metrics.Recorder) (*metrics.Recorder, httpServer, func(context.Context) error) {
	if recorder != nil {
		return recorder, nil, nil
	}

	recCfg := cfg.Metrics.Telemetry()
	rec, handler, shutdown, err := metricsSetup(context.Background(), recCfg)
	if err != nil {
		logging.Warn(logger, "metrics setup failed, continuing without telemetry", "err", err)
		return metrics.NewRecorder(), nil, nil
	}

	var metricsSrv httpServer
	if handler != nil && recCfg.Enabled {
		metricsSrv = netHTTPServer{
			srv: &http.Server{
				Addr:              ":" + recCfg.Port,
				Handler:           handler,
				ReadHeaderTimeout: readHeaderTimeout,
			},
		}
	}

	return rec, metricsSrv, shutdown
}

func launchServer(name string, srv httpServer, logger *slog.Logger, onError func(error)) {
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Warn(logger, name+" server failed", "error", err)
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

// SweepStatus reports the retention job's recent runs. ok is false when sweeping is disabled.
func (s *Server) SweepStatus() (sweeper.Status, bool) {
	if s.sweeper == nil {
		return sweeper.Status{}, false
	}
	return s.sweeper.Status(), true
}
