package database

import (
	"context"

	"github.com/edgard/kakeibo/internal/pipeline"
)

// Journal records pipeline reports in a Store.
type Journal struct {
	store Store
}

// NewJournal wraps store as a pipeline.Journal.
func NewJournal(store Store) *Journal {
	return &Journal{store: store}
}

// Record persists the report and its deliveries.
func (j *Journal) Record(ctx context.Context, report pipeline.Report) error {
	_, err := j.store.RecordRun(ctx, RunFromReport(report))
	return err
}

// RunFromReport maps a pipeline report onto a journal row.
func RunFromReport(report pipeline.Report) *RunRecord {
	run := &RunRecord{
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Threshold:  report.Threshold,
		Fetched:    report.Fetched,
		Retained:   report.Retained,
		Delivered:  report.Delivered(),
		Failed:     report.Failed(),
	}
	if report.Err != nil {
		run.Error = report.Err.Error()
	}

	run.Deliveries = make([]DeliveryRecord, 0, len(report.Deliveries))
	for _, d := range report.Deliveries {
		rec := DeliveryRecord{
			TS:     d.Message.TimestampString(),
			Text:   d.Message.Text,
			Status: d.Status,
		}
		if d.Err != nil {
			rec.Error = d.Err.Error()
		}
		run.Deliveries = append(run.Deliveries, rec)
	}
	return run
}

var _ pipeline.Journal = (*Journal)(nil)
