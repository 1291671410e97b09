package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"

	"github.com/edgard/kakeibo/internal/app/tasks"
	"github.com/edgard/kakeibo/internal/config"
	"github.com/edgard/kakeibo/internal/errs"
	"github.com/edgard/kakeibo/internal/logger"
)

// Scheduler runs the registered tasks on their cron schedules.
type Scheduler struct {
	scheduler gocron.Scheduler
	log       zerolog.Logger
	cfg       *config.SchedulerConfig
	taskMap   map[string]tasks.ScheduledTaskFunc
	mu        sync.Mutex
	running   bool
	jobs      []string
}

// NewScheduler creates a scheduler for the tasks in taskMap. Only tasks that
// are enabled in cfg get scheduled.
func NewScheduler(log zerolog.Logger, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) (*Scheduler, error) {
	log = log.With().Str("component", "scheduler").Logger()

	s, err := gocron.NewScheduler(gocron.WithLogger(logger.NewGocronLogger(log)))
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		log:       log,
		cfg:       cfg,
		taskMap:   taskMap,
	}, nil
}

// Start registers the enabled tasks and starts ticking. A task that fails to
// register is logged and skipped.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return errors.New("scheduler is already running")
	}

	if s.cfg == nil || len(s.cfg.Tasks) == 0 {
		s.log.Warn().Msg("No scheduler tasks configured")
		s.scheduler.Start()
		s.running = true
		return nil
	}

	names := make([]string, 0, len(s.cfg.Tasks))
	for name := range s.cfg.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		taskCfg := s.cfg.Tasks[name]
		if !taskCfg.Enabled {
			s.log.Info().Str("task_name", name).Msg("Skipping disabled task")
			continue
		}

		taskFunc, ok := s.taskMap[name]
		if !ok {
			s.log.Debug().Str("task_name", name).Msg("Task configured but not registered, skipping")
			continue
		}

		opts := []gocron.JobOption{
			gocron.WithName(name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		}
		if taskCfg.RunOnStart {
			opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
		}

		if _, err := s.scheduler.NewJob(
			gocron.CronJob(taskCfg.Schedule, true),
			gocron.NewTask(s.wrap(taskFunc), name),
			opts...,
		); err != nil {
			s.log.Error().Err(err).Str("task_name", name).Str("schedule", taskCfg.Schedule).Msg("Failed to schedule task")
			continue
		}

		s.log.Info().Str("task_name", name).Str("schedule", taskCfg.Schedule).Msg("Scheduled task")
		s.jobs = append(s.jobs, name)
	}

	s.scheduler.Start()
	s.running = true
	s.log.Info().Int("tasks_scheduled", len(s.jobs)).Msg("Scheduler started")

	return nil
}

// wrap adds per-run logging around fn. gocron injects a context that is
// cancelled on shutdown as the first argument.
func (s *Scheduler) wrap(fn tasks.ScheduledTaskFunc) func(ctx context.Context, name string) {
	return func(ctx context.Context, name string) {
		s.log.Info().Str("task_name", name).Msg("Running scheduled task")
		start := time.Now()

		if err := fn(ctx); err != nil {
			s.log.Error().Err(err).Str("code", errs.Code(err)).Str("task_name", name).Msg("Scheduled task failed")
		}

		s.log.Info().Str("task_name", name).Dur("duration", time.Since(start)).Msg("Finished scheduled task")
	}
}

// Jobs returns the names of the scheduled tasks in start order.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.jobs...)
}

// Stop waits for running jobs and shuts the scheduler down.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	err := s.scheduler.Shutdown()
	if err != nil {
		s.log.Error().Err(err).Msg("Error during scheduler shutdown")
	} else {
		s.log.Info().Msg("Scheduler stopped")
	}

	s.running = false
	s.jobs = nil
	return err
}
