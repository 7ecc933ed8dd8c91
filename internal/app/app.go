// Package app initializes and holds the long-lived services of one scraper run,
// acting as a small dependency injection container for the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/dj-urg/camera-pdf-scraper/internal/config"
	"github.com/dj-urg/camera-pdf-scraper/internal/crawler"
	"github.com/dj-urg/camera-pdf-scraper/internal/id/uuid"
	"github.com/dj-urg/camera-pdf-scraper/internal/logging"
	"github.com/dj-urg/camera-pdf-scraper/internal/metrics"
	"github.com/dj-urg/camera-pdf-scraper/internal/session"
	"github.com/dj-urg/camera-pdf-scraper/internal/storage/local"
)

const metricsShutdownTimeout = 5 * time.Second

// App holds the shared services for a run: logger, output store, HTTP
// session and the optional metrics endpoint.
type App struct {
	cfg        config.Config
	logger     *zap.Logger
	closeLog   func()
	runID      string
	store      *local.BlobStore
	session    *session.Session
	metricsSrv *http.Server
}

// GetConfig returns the validated run configuration.
func (a *App) GetConfig() *config.Config {
	return &a.cfg
}

// GetLogger returns the run logger; every entry carries the run_id field.
func (a *App) GetLogger() *zap.Logger {
	return a.logger
}

// GetStore exposes the output tree.
func (a *App) GetStore() *local.BlobStore {
	return a.store
}

// GetSession exposes the shared HTTP session.
func (a *App) GetSession() *session.Session {
	return a.session
}

// RunID identifies this run in logs.
func (a *App) RunID() string {
	return a.runID
}

// Option customizes NewApp.
type Option func(*options)

type options struct {
	ids crawler.IDGenerator
}

// WithIDGenerator replaces the UUIDv7 run id generator.
func WithIDGenerator(ids crawler.IDGenerator) Option {
	return func(o *options) {
		if ids != nil {
			o.ids = ids
		}
	}
}

// NewApp builds every service from cfg and fails fast if any cannot start.
// cfg must already be validated.
func NewApp(_ context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := options{ids: uuid.New()}
	for _, opt := range opts {
		opt(&o)
	}


	logger, closeLog, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Debug:       cfg.Logging.Debug,
		ErrorLog:    cfg.Logging.ErrorLog,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	runID, err := o.ids.NewID()
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))
	zap.ReplaceGlobals(logger)

	store, err := local.New(local.Config{BaseDir: cfg.Download.OutputDir})
	if err != nil {
		closeLog()
		return nil, fmt.Errorf("failed to initialize output directory: %w", err)
	}

	a := &App{
		cfg:      cfg,
		logger:   logger,
		closeLog: closeLog,
		runID:    runID,
		store:    store,
		session:  session.New(cfg.HTTP.UserAgent, cfg.Download.Concurrency, cfg.DownloadTimeout()),
	}

	metrics.Init()
	if cfg.Metrics.Addr != "" {
		a.startMetricsServer(cfg.Metrics.Addr)
	}

	logger.Info("Application services initialized",
		zap.String("output_dir", store.BaseDir()),
		zap.Ints("legislatures", cfg.Crawl.Legislatures),
		zap.String("strategy", cfg.Crawl.Strategy),
	)
	return a, nil
}

func (a *App) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	a.metricsSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		a.logger.Info("Starting metrics server", zap.String("addr", addr))
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
}

// Close shuts down all services. It is called by a Cobra hook after the
// command finishes.
func (a *App) Close() {
	a.logger.Info("Shutting down application services")
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.logger.Warn("Error stopping metrics server", zap.Error(err))
		}
		cancel()
	}
	a.session.Close()
	// Best effort: syncing stderr fails on some platforms.
	_ = a.logger.Sync()
	a.closeLog()
}
