// Package pipeline runs one relay pass: fetch the channel history, keep the
// messages inside the recency window, and forward them oldest first.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/edgard/kakeibo/internal/domain/model"
	"github.com/edgard/kakeibo/internal/errs"
	"github.com/edgard/kakeibo/internal/filter"
	"github.com/edgard/kakeibo/internal/logger"
)

// History retrieves the latest messages of the configured channel.
type History interface {
	ConversationHistory(ctx context.Context) ([]model.Message, error)
}

// Notifier forwards messages in the given order. Failures are reported per
// message in the returned deliveries, never as a run failure.
type Notifier interface {
	Notify(ctx context.Context, msgs []model.Message) []model.Delivery
}

// Journal records finished runs. It is optional.
type Journal interface {
	Record(ctx context.Context, report Report) error
}

// Report summarizes one run.
type Report struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Threshold  float64
	Fetched    int
	Retained   int
	Deliveries []model.Delivery
	Err        error
}

// Delivered counts the messages accepted by the sink.
func (r Report) Delivered() int {
	n := 0
	for _, d := range r.Deliveries {
		if d.OK() {
			n++
		}
	}
	return n
}

// Failed counts the messages the sink did not accept.
func (r Report) Failed() int {
	return len(r.Deliveries) - r.Delivered()
}

// Pipeline wires a History source to a Notifier sink.
type Pipeline struct {
	history  History
	notifier Notifier
	window   filter.Window
	journal  Journal
	now      func() time.Time
	log      zerolog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides time.Now as the reference instant for the threshold.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithJournal records every run in j.
func WithJournal(j Journal) Option {
	return func(p *Pipeline) { p.journal = j }
}

// WithLogger sets the logger; the default discards output.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// New creates a pipeline that excludes messages older than window.
func New(history History, notifier Notifier, window filter.Window, opts ...Option) *Pipeline {
	p := &Pipeline{
		history:  history,
		notifier: notifier,
		window:   window,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = p.log.With().Str("component", "pipeline").Logger()
	return p
}

// Run performs one pass. The returned error is the fetch error, if any;
// notification failures only show up in the report.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	started := p.now()
	report := Report{
		StartedAt: started,
		Threshold: p.window.Threshold(started),
	}

	p.log.Debug().Float64("threshold", report.Threshold).Msg("Starting relay run")

	fetched, err := p.history.ConversationHistory(ctx)
	if err != nil {
		evt := p.log.Error().Err(err).Str("code", errs.Code(err))
		var fetchErr *errs.FetchError
		if errors.As(err, &fetchErr) {
			evt = evt.Str("reason", fetchErr.Reason())
		}
		evt.Msg("Failed to fetch conversation history")
		report.Err = err
		p.finish(ctx, &report)
		return report, err
	}
	report.Fetched = len(fetched)

	retained := filter.Apply(fetched, report.Threshold)
	report.Retained = len(retained)
	for _, m := range retained {
		p.log.Info().Str("ts", m.TimestampString()).Str("text", logger.Truncate(m.Text, 200)).Msg("Message selected")
	}

	if len(retained) == 0 {
		p.log.Info().Int("fetched", report.Fetched).Msg("No new messages to relay")
		p.finish(ctx, &report)
		return report, nil
	}

	report.Deliveries = p.notifier.Notify(ctx, retained)
	p.finish(ctx, &report)

	p.log.Info().
		Int("fetched", report.Fetched).
		Int("retained", report.Retained).
		Int("delivered", report.Delivered()).
		Int("failed", report.Failed()).
		Msg("Relay run finished")

	return report, nil
}

func (p *Pipeline) finish(ctx context.Context, report *Report) {
	report.FinishedAt = p.now()
	if p.journal == nil {
		return
	}
	if err := p.journal.Record(ctx, *report); err != nil {
		p.log.Warn().Err(err).Str("code", errs.Code(err)).Msg("Failed to record run in journal")
	}
}
