// Package tasks defines the scheduled jobs of the relay service and their
// dependencies.
package tasks

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/edgard/kakeibo/internal/config"
	"github.com/edgard/kakeibo/internal/database"
	"github.com/edgard/kakeibo/internal/pipeline"
)

// Runner runs one relay pass.
type Runner interface {
	Run(ctx context.Context) (pipeline.Report, error)
}

// TaskDeps carries what the scheduled tasks need. Store is nil when the run
// journal is disabled.
type TaskDeps struct {
	Logger zerolog.Logger
	Runner Runner
	Store  database.Store
	Config *config.Config
	Now    func() time.Time
}

func (d TaskDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
