// Package app orchestrates the application components: the HTTP/WebSocket
// server, the ingestion poller, and the periodic task scheduler.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/daejeonsafe/safenet/internal/poller"
)

// App runs all long-lived components and coordinates their shutdown.
type App struct {
	logger          *slog.Logger
	server          *http.Server
	poller          *poller.Poller
	scheduler       *Scheduler
	shutdownTimeout time.Duration
}

// New wires the application. The handler is the fully-routed HTTP
// surface including WebSocket endpoints.
func New(logger *slog.Logger, addr string, handler http.Handler, p *poller.Poller, sched *Scheduler, shutdownTimeout time.Duration) *App {
	return &App{
		logger: logger.With("component", "app"),
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		poller:          p,
		scheduler:       sched,
		shutdownTimeout: shutdownTimeout,
	}
}

// Run starts every component and blocks until the context is canceled or
// a component fails. Shutdown is graceful: the HTTP server drains within
// the configured timeout and the scheduler waits for running jobs.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("http server shutdown incomplete", "error", err)
			return a.server.Close()
		}
		a.logger.Info("http server stopped")
		return nil
	})

	g.Go(func() error {
		if err := a.poller.Run(gCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("poller failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		<-gCtx.Done()
		if err := a.scheduler.Stop(); err != nil {
			a.logger.Warn("scheduler stop failed", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	a.logger.Info("application stopped")
	return nil
}
