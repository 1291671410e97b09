package tasks

import (
	"context"
	"fmt"
	"time"
)

func newRelayTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With().Str("task", "relay").Logger()

	return func(ctx context.Context) error {
		start := time.Now()

		report, err := deps.Runner.Run(ctx)
		if err != nil {
			log.Error().Err(err).Dur("duration", time.Since(start)).Msg("Relay run failed")
			return fmt.Errorf("relay failed: %w", err)
		}

		log.Debug().
			Int("retained", report.Retained).
			Int("failed", report.Failed()).
			Dur("duration", time.Since(start)).
			Msg("Relay task completed")
		return nil
	}
}
