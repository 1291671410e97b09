package tasks

import (
	"context"

	"github.com/edgard/kakeibo/internal/config"
)

// ScheduledTaskFunc is the signature of every scheduled task. The context is
// cancelled when the scheduler shuts down.
type ScheduledTaskFunc func(ctx context.Context) error

// RegisterAllTasks returns the tasks keyed by the names used under
// scheduler.tasks in the configuration.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	tasks := map[string]ScheduledTaskFunc{
		config.TaskRelay: newRelayTask(deps),
	}

	if deps.Store != nil {
		tasks[config.TaskJournalMaintenance] = newJournalMaintenanceTask(deps)
	}

	deps.Logger.Debug().Int("count", len(tasks)).Msg("Initialized scheduled tasks")
	return tasks
}
