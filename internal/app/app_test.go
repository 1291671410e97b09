package app

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/edgard/kakeibo/internal/app/tasks"
	"github.com/edgard/kakeibo/internal/config"
	"github.com/edgard/kakeibo/internal/errs"
)

func newTestScheduler(t *testing.T, cfg *config.SchedulerConfig, taskMap map[string]tasks.ScheduledTaskFunc) *Scheduler {
	t.Helper()

	s, err := NewScheduler(zerolog.Nop(), cfg, taskMap)
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func noop(context.Context) error { return nil }

func TestSchedulerRegistersEnabledTasks(t *testing.T) {
	t.Parallel()

	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"relay":               {Enabled: true, Schedule: "0 */10 * * * *"},
		"journal_maintenance": {Enabled: true, Schedule: "0 0 3 * * *"},
		"disabled":            {Enabled: false, Schedule: "0 0 3 * * *"},
		"unregistered":        {Enabled: true, Schedule: "0 0 3 * * *"},
		"bad_schedule":        {Enabled: true, Schedule: "not a cron line"},
	}}
	taskMap := map[string]tasks.ScheduledTaskFunc{
		"relay":               noop,
		"journal_maintenance": noop,
		"disabled":            noop,
		"bad_schedule":        noop,
	}

	s := newTestScheduler(t, cfg, taskMap)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got, want := s.Jobs(), []string{"journal_maintenance", "relay"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Jobs() = %v, want %v", got, want)
	}

	if err := s.Start(); err == nil {
		t.Error("second Start() error = nil")
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() on stopped scheduler error = %v", err)
	}
	if len(s.Jobs()) != 0 {
		t.Errorf("Jobs() after Stop = %v", s.Jobs())
	}
}

func TestSchedulerWithoutTasks(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if len(s.Jobs()) != 0 {
		t.Errorf("Jobs() = %v, want none", s.Jobs())
	}
}

func TestSchedulerRunOnStart(t *testing.T) {
	t.Parallel()

	ran := make(chan struct{}, 1)
	task := func(ctx context.Context) error {
		if ctx == nil {
			t.Error("task got nil context")
		}
		select {
		case ran <- struct{}{}:
		default:
		}
		return errors.New("failure is only logged")
	}

	// The cron line fires once a year; only run_on_start can trigger it here.
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"relay": {Enabled: true, Schedule: "0 0 0 1 1 *", RunOnStart: true},
	}}
	s := newTestScheduler(t, cfg, map[string]tasks.ScheduledTaskFunc{"relay": task})
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run on start")
	}
}

func TestAppRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"relay": {Enabled: true, Schedule: "0 0 0 1 1 *", RunOnStart: true},
	}}
	s := newTestScheduler(t, cfg, map[string]tasks.ScheduledTaskFunc{
		"relay": func(context.Context) error {
			calls.Add(1)
			return nil
		},
	})

	logs := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(zerolog.New(logs), s).Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}

	if calls.Load() == 0 {
		t.Error("relay task never ran")
	}
	if !strings.Contains(logs.String(), `"jobs":["relay"]`) {
		t.Errorf("running jobs not logged: %s", logs.String())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestSchedulerLogsTaskErrorCode(t *testing.T) {
	t.Parallel()

	logs := &syncBuffer{}
	ran := make(chan struct{})
	cfg := &config.SchedulerConfig{Tasks: map[string]config.TaskConfig{
		"relay": {Enabled: true, Schedule: "0 0 0 1 1 *", RunOnStart: true},
	}}
	s, err := NewScheduler(zerolog.New(logs), cfg, map[string]tasks.ScheduledTaskFunc{
		"relay": func(context.Context) error {
			defer close(ran)
			return errs.NewFetchError("slack API returned an error", nil, nil)
		},
	})
	if err != nil {
		t.Fatalf("NewScheduler() error = %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run on start")
	}
	// Stop waits for the wrapper to finish logging.
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if !strings.Contains(logs.String(), `"code":"FETCH"`) {
		t.Errorf("task failure logged without code: %s", logs.String())
	}
}

func TestAppRunSchedulerStartFailure(t *testing.T) {
	t.Parallel()

	s := newTestScheduler(t, nil, nil)
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Already running, so the app cannot start it again.
	if err := New(zerolog.Nop(), s).Run(context.Background()); err == nil {
		t.Error("Run() error = nil, want start failure")
	}
}
