// Package app runs the relay as a long-lived service: the scheduler fires the
// relay and journal tasks until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// App owns the scheduler lifecycle.
type App struct {
	log       zerolog.Logger
	scheduler *Scheduler
}

// New creates an App around scheduler.
func New(log zerolog.Logger, scheduler *Scheduler) *App {
	return &App{
		log:       log.With().Str("component", "app").Logger(),
		scheduler: scheduler,
	}
}

// Run blocks until ctx is cancelled or the scheduler fails to start.
func (a *App) Run(ctx context.Context) error {
	a.log.Info().Msg("Starting relay service")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		a.log.Info().Strs("jobs", a.scheduler.Jobs()).Msg("Relay service running")

		<-gCtx.Done()
		a.log.Info().Msg("Shutdown signal received, stopping scheduler")

		if err := a.scheduler.Stop(); err != nil {
			a.log.Error().Err(err).Msg("Error stopping scheduler")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Error().Err(err).Msg("Relay service stopped due to error")
		return err
	}

	a.log.Info().Msg("Relay service stopped")
	return nil
}
