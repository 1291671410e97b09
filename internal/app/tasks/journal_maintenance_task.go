package tasks

import (
	"context"
	"fmt"
	"time"
)

// newJournalMaintenanceTask prunes runs older than the configured retention
// and then compacts the database file.
func newJournalMaintenanceTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With().Str("task", "journal_maintenance").Logger()

	return func(ctx context.Context) error {
		start := time.Now()
		cutoff := deps.now().Add(-deps.Config.Database.Retention)

		pruned, err := deps.Store.PruneRuns(ctx, cutoff)
		if err != nil {
			log.Error().Err(err).Msg("Journal pruning failed")
			return fmt.Errorf("journal pruning failed: %w", err)
		}

		if err := deps.Store.RunSQLMaintenance(ctx); err != nil {
			log.Error().Err(err).Msg("SQL maintenance failed")
			return fmt.Errorf("sql maintenance failed: %w", err)
		}

		log.Info().
			Int64("pruned_runs", pruned).
			Time("cutoff", cutoff).
			Dur("duration", time.Since(start)).
			Msg("Journal maintenance completed")
		return nil
	}
}
