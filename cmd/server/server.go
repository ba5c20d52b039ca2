package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run serves HTTP and runs the reconciler until ctx is cancelled, then shuts
// everything down within server.shutdown_timeout.
func (app *application) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", app.config.Server.Port),
		Handler:           app.setupRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.logger.Info("starting server", "port", app.config.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return app.reconciler.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		app.logger.Info("shutting down server")
		return app.shutdown(server)
	})

	err := g.Wait()
	app.cleanup()
	return err
}

// shutdown stops accepting requests, then stops in-flight generation runs.
// Interrupted runs record their failure before Stop returns.
func (app *application) shutdown(server *http.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("server shutdown failed: %w", err))
	}
	if err := app.taskRunner.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("task runner shutdown failed: %w", err))
	}

	if len(errs) == 0 {
		app.logger.Info("server shutdown completed")
	}
	return errors.Join(errs...)
}
