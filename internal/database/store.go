package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog"

	"github.com/edgard/kakeibo/internal/errs"
)

// Store is the journal's data access layer.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RecordRun inserts the run and its deliveries in one transaction and
	// returns the new run ID.
	RecordRun(ctx context.Context, run *RunRecord) (int64, error)

	// RecentRuns returns up to limit runs, newest first, without deliveries.
	RecentRuns(ctx context.Context, limit int) ([]RunRecord, error)

	// DeliveriesForRun returns the deliveries of a run in insertion order.
	DeliveriesForRun(ctx context.Context, runID int64) ([]DeliveryRecord, error)

	// PruneRuns deletes runs started before the cutoff along with their
	// deliveries and reports how many runs were removed.
	PruneRuns(ctx context.Context, before time.Time) (int64, error)

	// RunSQLMaintenance reclaims free pages with VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db  *sqlx.DB
	log zerolog.Logger
}

// NewStore returns a Store backed by db.
func NewStore(db *sqlx.DB, log zerolog.Logger) Store {
	return &sqlxStore{
		db:  db,
		log: log.With().Str("component", "store").Logger(),
	}
}

// Timestamps are stored in UTC at second precision so that the text form
// sorts chronologically.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return errs.NewDatabaseError("ping failed", err)
	}
	return nil
}

func (s *sqlxStore) RecordRun(ctx context.Context, run *RunRecord) (int64, error) {
	if run == nil {
		return 0, errs.NewDatabaseError("cannot record nil run", nil)
	}
	if run.StartedAt.IsZero() {
		return 0, errs.NewDatabaseError("run must have a start time", nil)
	}

	run.StartedAt = dbTime(run.StartedAt)
	run.FinishedAt = dbTime(run.FinishedAt)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errs.NewDatabaseError("failed to begin transaction", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Warn().Err(rbErr).Msg("Error rolling back transaction")
		}
	}()

	res, err := tx.NamedExecContext(ctx, `
		INSERT INTO runs (started_at, finished_at, threshold, fetched, retained, delivered, failed, error)
		VALUES (:started_at, :finished_at, :threshold, :fetched, :retained, :delivered, :failed, :error)`, run)
	if err != nil {
		return 0, errs.NewDatabaseError("failed to insert run", err)
	}

	runID, err := res.LastInsertId()
	if err != nil {
		return 0, errs.NewDatabaseError("failed to read run id", err)
	}
	run.ID = runID

	for i := range run.Deliveries {
		d := &run.Deliveries[i]
		d.RunID = runID
		if d.CreatedAt.IsZero() {
			d.CreatedAt = run.FinishedAt
		}
		d.CreatedAt = dbTime(d.CreatedAt)

		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO deliveries (run_id, ts, text, status, error, created_at)
			VALUES (:run_id, :ts, :text, :status, :error, :created_at)`, d)
		if err != nil {
			return 0, errs.NewDatabaseError("failed to insert delivery", err)
		}
		if d.ID, err = res.LastInsertId(); err != nil {
			return 0, errs.NewDatabaseError("failed to read delivery id", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.NewDatabaseError("failed to commit run", err)
	}

	s.log.Debug().Int64("run_id", runID).Int("deliveries", len(run.Deliveries)).Msg("Run recorded")
	return runID, nil
}

func (s *sqlxStore) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		return nil, errs.NewDatabaseError("limit must be positive", nil)
	}

	var runs []RunRecord
	err := s.db.SelectContext(ctx, &runs, `
		SELECT id, started_at, finished_at, threshold, fetched, retained, delivered, failed, error
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errs.NewDatabaseError("failed to list recent runs", err)
	}
	return runs, nil
}

func (s *sqlxStore) DeliveriesForRun(ctx context.Context, runID int64) ([]DeliveryRecord, error) {
	var deliveries []DeliveryRecord
	err := s.db.SelectContext(ctx, &deliveries, `
		SELECT id, run_id, ts, text, status, error, created_at
		FROM deliveries
		WHERE run_id = ?
		ORDER BY id ASC`, runID)
	if err != nil {
		return nil, errs.NewDatabaseError("failed to list deliveries", err)
	}
	return deliveries, nil
}

func (s *sqlxStore) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	cutoff := dbTime(before)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errs.NewDatabaseError("failed to begin transaction", err)
	}
	defer func() {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.log.Warn().Err(rbErr).Msg("Error rolling back transaction")
		}
	}()

	// Foreign keys are off by default in SQLite, so deliveries go first.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM deliveries
		WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`, cutoff); err != nil {
		return 0, errs.NewDatabaseError("failed to prune deliveries", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, errs.NewDatabaseError("failed to prune runs", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errs.NewDatabaseError("failed to count pruned runs", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errs.NewDatabaseError("failed to commit prune", err)
	}

	s.log.Info().Int64("runs", n).Time("before", cutoff).Msg("Pruned journal")
	return n, nil
}

func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.log.Info().Msg("Starting database maintenance (VACUUM)")

	// VACUUM cannot run inside a transaction.
	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.log.Warn().Err(err).Msg("VACUUM timed out or was cancelled")
		return errs.NewDatabaseError("database maintenance (VACUUM) timed out", err)
	case err != nil:
		return errs.NewDatabaseError("failed to execute VACUUM", err)
	}

	s.log.Info().Msg("Database maintenance (VACUUM) completed")
	return nil
}
