// Package app orchestrates the service lifecycle: the HTTP server and
// the background task scheduler, with graceful shutdown on context
// cancellation.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// App owns the long-running components of the service.
type App struct {
	logger          *slog.Logger
	httpServer      *http.Server
	scheduler       *Scheduler
	shutdownTimeout time.Duration
}

// New creates the application orchestrator.
func New(logger *slog.Logger, listen string, handler http.Handler, scheduler *Scheduler, shutdownTimeout time.Duration) *App {
	return &App{
		logger: logger.With("component", "app"),
		httpServer: &http.Server{
			Addr:              listen,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		scheduler:       scheduler,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run starts all components and blocks until ctx is canceled or a
// component fails. Shutdown is graceful: in-flight HTTP requests get
// shutdownTimeout to complete and the scheduler waits for running jobs.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("Starting application...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server", "addr", a.httpServer.Addr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()
		if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}

		<-gCtx.Done()
		a.logger.Info("Shutdown signal received, stopping scheduler...")
		if err := a.scheduler.Stop(); err != nil {
			a.logger.Error("Error stopping scheduler", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Application stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Application stopped gracefully.")
	return nil
}
