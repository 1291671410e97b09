// Package main is the entry point of the Slack to webhook relay.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/edgard/kakeibo/internal/app"
	"github.com/edgard/kakeibo/internal/app/tasks"
	"github.com/edgard/kakeibo/internal/config"
	"github.com/edgard/kakeibo/internal/database"
	"github.com/edgard/kakeibo/internal/errs"
	"github.com/edgard/kakeibo/internal/logger"
	"github.com/edgard/kakeibo/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx, os.Args[1:])
	stop()
	os.Exit(exitCode)
}

// run wires the components and either performs a single relay pass or serves
// the scheduler until ctx is cancelled. It returns the process exit code.
func run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("kakeibo", flag.ContinueOnError)
	configPath := fs.String("config", "./config.yaml", "Path to configuration file")
	serve := fs.Bool("serve", false, "Run the scheduler until interrupted instead of a single pass")
	showRuns := fs.Int("runs", 0, "Print the latest N journal runs with their deliveries and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration from %s: %v\n", *configPath, err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.JSON)
	log.Debug().Str("level", cfg.Log.Level).Bool("json", cfg.Log.JSON).Str("sink", cfg.Notify.Sink).Msg("Logger initialized")

	var store database.Store
	opts := []pipeline.Option{pipeline.WithLogger(log)}
	if cfg.Database.Enabled() {
		db, err := database.NewDB(cfg.Database.Path, log)
		if err != nil {
			log.Error().Err(err).Str("code", errs.Code(err)).Str("path", cfg.Database.Path).Msg("Failed to open run journal")
			return 1
		}
		defer database.CloseDB(db, log)

		store = database.NewStore(db, log)
		if err := store.Ping(ctx); err != nil {
			log.Error().Err(err).Str("code", errs.Code(err)).Msg("Run journal is not reachable")
			return 1
		}
		opts = append(opts, pipeline.WithJournal(database.NewJournal(store)))
	}

	if *showRuns > 0 {
		if store == nil {
			log.Error().Msg("-runs needs database.path to be set")
			return 1
		}
		if err := printRuns(ctx, os.Stdout, store, *showRuns); err != nil {
			log.Error().Err(err).Str("code", errs.Code(err)).Msg("Failed to read run journal")
			return 1
		}
		return 0
	}

	notifier, err := buildNotifier(cfg, log)
	if err != nil {
		log.Error().Err(err).Str("code", errs.Code(err)).Str("sink", cfg.Notify.Sink).Msg("Failed to create notifier")
		return 1
	}

	p := pipeline.New(buildHistory(cfg, log), notifier, cfg.Filter.Window(), opts...)

	if !*serve {
		if _, err := p.Run(ctx); err != nil {
			return 1
		}
		return 0
	}

	return serveLoop(ctx, log, cfg, p, store)
}

func serveLoop(ctx context.Context, log zerolog.Logger, cfg *config.Config, p *pipeline.Pipeline, store database.Store) int {
	taskMap := tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger: log,
		Runner: p,
		Store:  store,
		Config: cfg,
	})

	sched, err := app.NewScheduler(log, &cfg.Scheduler, taskMap)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create scheduler")
		return 1
	}

	if err := app.New(log, sched).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return 1
	}
	return 0
}
