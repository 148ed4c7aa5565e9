// Package worker fires ticks on a schedule when no external timer is
// available, such as in local development.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/orchestrator"
	"github.com/robfig/cron/v3"
)

type Ticker interface {
	Tick(ctx context.Context) orchestrator.Report
}

type Worker struct {
	ticker   Ticker
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	last   orchestrator.Report
}

// New schedules ticks with a standard five-field cron expression or a
// descriptor such as "@every 30s". A tick still running when the next one is
// due causes that one to be skipped.
func New(t Ticker, schedule string, timeout time.Duration, logger *slog.Logger) (*Worker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{ticker: t, schedule: schedule, timeout: timeout, logger: logger, ctx: ctx, cancel: cancel}

	cl := cronLogger{logger}
	w.cron = cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))
	if _, err := w.cron.AddFunc(schedule, w.fire); err != nil {
		cancel()
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return w, nil
}

func (w *Worker) Start() {
	w.logger.Info("worker.start", "schedule", w.schedule)
	w.cron.Start()
}

// Stop cancels the running tick and waits for it to return.
func (w *Worker) Stop() {
	w.cancel()
	<-w.cron.Stop().Done()
	w.logger.Info("worker.stop")
}

// RunOnce runs a single tick outside the schedule.
func (w *Worker) RunOnce(ctx context.Context) orchestrator.Report {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	report := w.ticker.Tick(ctx)

	w.mu.Lock()
	w.last = report
	w.mu.Unlock()
	return report
}

// Last returns the report of the most recent tick.
func (w *Worker) Last() orchestrator.Report {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *Worker) fire() {
	report := w.RunOnce(w.ctx)
	for _, k := range report.Kinds {
		if k.Result != orchestrator.ResultIdle {
			w.logger.Info("worker.tick", "kind", k.Kind, "result", k.Result, "job_id", k.JobID)
		}
	}
}

// cronLogger routes cron's own messages to slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("worker.cron."+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("worker.cron."+msg, append(keysAndValues, "error", err)...)
}
