// Package app assembles the HTTP server: configuration, logging, metrics,
// the upload store, the analytics service, and the route tree. main only
// calls New and Run.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"golang.org/x/sync/errgroup"

	"retailsight/internal/config"
	apierrors "retailsight/internal/errors"
	"retailsight/internal/infrastructure"
	"retailsight/internal/middleware"
	"retailsight/internal/services"
	transporthttp "retailsight/internal/transport/http"
)

// App owns the assembled server and its dependencies
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	router  chi.Router
	metrics *infrastructure.MetricsProviders
}

// New builds the application from configuration
func New(cfg *config.Config) (*App, error) {
	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	metrics, err := infrastructure.InitializeMetrics(logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	store, err := services.NewUploadStore(cfg.Uploads.Dir, cfg.Uploads.MaxSizeBytes, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upload store: %w", err)
	}

	svc, err := services.NewAnalyticsService(store, cfg.Analytics, metrics.Meter, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analytics service: %w", err)
	}

	app := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
	app.router = app.buildRouter(svc)
	return app, nil
}

// buildRouter wires the middleware chain and mounts the handlers
func (a *App) buildRouter(svc *services.AnalyticsService) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredLogger(a.logger))
	r.Use(middleware.Recoverer(a.logger))
	if a.cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(a.cfg.RateLimit.RPS, a.cfg.RateLimit.Burst, a.logger)
		r.Use(limiter.Handler)
	}
	r.Use(middleware.Timeout(a.cfg.Server.RequestTimeout, a.logger))
	r.Use(render.SetContentType(render.ContentTypeJSON))

	errorHandler := apierrors.NewErrorHandler(a.logger)
	analyticsHandler := transporthttp.NewAnalyticsHandler(svc, a.cfg.Uploads.MaxSizeBytes, a.logger, errorHandler)
	healthHandler := transporthttp.NewHealthHandler(a.logger)

	r.Mount("/api", analyticsHandler.Routes())
	r.Mount("/healthz", healthHandler.Routes())
	r.Method(http.MethodGet, "/metrics", a.metrics.PrometheusHTTP)

	return r
}

// Run serves until the context is canceled or a termination signal
// arrives, then drains in-flight requests within the shutdown timeout.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer infrastructure.CloseLogFile()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      a.router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		IdleTimeout:  a.cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("server starting", slog.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutdown requested")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}

		if err := a.metrics.MeterProvider.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics shutdown failed", slog.String("error", err.Error()))
		}
		return nil
	})

	err := g.Wait()
	a.logger.Info("server stopped")
	return err
}

// Router exposes the assembled route tree for tests
func (a *App) Router() chi.Router {
	return a.router
}
