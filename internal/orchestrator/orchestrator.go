// Package orchestrator advances jobs one step per tick.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline"
	"github.com/joshu-sajeev/brokerjobs/internal/policy"
)

// Store is the part of the job store a tick needs.
type Store interface {
	ClaimNext(ctx context.Context, kind config.JobKind, workerID string, lease time.Duration) (*models.Job, error)
	UpdateState(ctx context.Context, id string, expectedAttempt int, patch models.JobPatch) (models.UpdateResult, error)
	ReleaseClaim(ctx context.Context, id string, expectedAttempt int) error
	ListStale(ctx context.Context, lease time.Duration) ([]models.Job, error)
}

type Result string

const (
	ResultIdle     Result = "idle"
	ResultAdvanced Result = "advanced"
	ResultRetrying Result = "retrying"
	ResultFailed   Result = "failed"
	ResultConflict Result = "conflict"
	ResultError    Result = "error"
)

// KindReport describes what one tick did for one job kind.
type KindReport struct {
	Kind     config.JobKind   `json:"kind"`
	Result   Result           `json:"result"`
	JobID    string           `json:"job_id,omitempty"`
	Step     string           `json:"step,omitempty"`
	From     config.JobStatus `json:"from,omitempty"`
	To       config.JobStatus `json:"to,omitempty"`
	Progress int              `json:"progress,omitempty"`
	RetryAt  *time.Time       `json:"retry_at,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type Report struct {
	Invocation string       `json:"invocation"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMS int64        `json:"duration_ms"`
	Stale      int          `json:"stale"`
	Kinds      []KindReport `json:"kinds"`
}

type Options struct {
	Policy policy.Policy
	Lease  time.Duration
	// CommitTimeout bounds the writes made after a step, which run even when
	// the tick context has expired.
	CommitTimeout time.Duration
	Now           func() time.Time
	Logger        *slog.Logger
}

type Orchestrator struct {
	store     Store
	pipelines []pipeline.Pipeline
	opts      Options
}

func New(store Store, pipelines []pipeline.Pipeline, opts Options) *Orchestrator {
	if opts.Policy == (policy.Policy{}) {
		opts.Policy = policy.Default()
	}
	if opts.Lease <= 0 {
		opts.Lease = 5 * time.Minute
	}
	if opts.CommitTimeout <= 0 {
		opts.CommitTimeout = 10 * time.Second
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Orchestrator{store: store, pipelines: pipelines, opts: opts}
}

// Tick claims at most one job per registered kind and runs its next step.
// Step and store failures are recorded in the report, never returned.
func (o *Orchestrator) Tick(ctx context.Context) Report {
	start := o.opts.Now()
	report := Report{
		Invocation: uuid.NewString(),
		StartedAt:  start,
		Kinds:      make([]KindReport, 0, len(o.pipelines)),
	}
	log := o.opts.Logger.With("invocation", report.Invocation)

	if stale, err := o.store.ListStale(ctx, o.opts.Lease); err != nil {
		log.Warn("orchestrator.stale.error", "error", err)
	} else {
		report.Stale = len(stale)
		for _, j := range stale {
			log.Warn("orchestrator.stale",
				"job_id", j.ID,
				"kind", j.Kind,
				"status", j.Status,
				"claimed_by", j.ClaimedBy,
				"claimed_at", j.ClaimedAt,
			)
		}
	}

	for _, p := range o.pipelines {
		kr := o.advance(ctx, log, report.Invocation, p)
		report.Kinds = append(report.Kinds, kr)
	}

	report.DurationMS = o.opts.Now().Sub(start).Milliseconds()
	log.Info("orchestrator.tick.done", "stale", report.Stale, "duration_ms", report.DurationMS)
	return report
}

func (o *Orchestrator) advance(ctx context.Context, log *slog.Logger, invocation string, p pipeline.Pipeline) KindReport {
	kind := p.Kind()
	kr := KindReport{Kind: kind, Result: ResultIdle}
	log = log.With("kind", kind)

	if err := ctx.Err(); err != nil {
		kr.Result, kr.Error = ResultError, err.Error()
		return kr
	}

	job, err := o.store.ClaimNext(ctx, kind, invocation, o.opts.Lease)
	if err != nil {
		log.Error("orchestrator.claim.error", "error", err)
		kr.Result, kr.Error = ResultError, err.Error()
		return kr
	}
	if job == nil {
		return kr
	}

	attempt := job.AttemptCount
	kr.JobID, kr.From = job.ID, job.Status
	log = log.With("job_id", job.ID, "attempt", attempt)
	log.Info("orchestrator.tick.claimed", "status", job.Status)

	defer func() {
		rctx, cancel := o.commitContext(ctx)
		defer cancel()
		if err := o.store.ReleaseClaim(rctx, job.ID, attempt); err != nil {
			log.Error("orchestrator.release.error", "error", err)
		}
	}()

	step, ok := p.StepFor(job.Status)
	if !ok {
		return o.fail(ctx, log, kr, job, pipeline.Outcome{},
			policy.Terminal(fmt.Errorf("no step for status %s", job.Status), ""))
	}
	kr.Step = step.Name
	log = log.With("step", step.Name)

	if !config.CanTransition(kind, job.Status, step.Working) {
		return o.fail(ctx, log, kr, job, pipeline.Outcome{},
			policy.Terminal(fmt.Errorf("invalid transition %s -> %s", job.Status, step.Working), ""))
	}

	res, err := o.commit(ctx, job.ID, attempt, models.JobPatch{
		Status:       &step.Working,
		Progress:     &step.Progress,
		ProgressStep: &step.Label,
	})
	if err != nil {
		log.Error("orchestrator.commit.error", "phase", "start", "error", err)
		kr.Result, kr.Error = ResultError, err.Error()
		return kr
	}
	if res == models.UpdateConflict {
		log.Warn("orchestrator.conflict", "phase", "start")
		kr.Result = ResultConflict
		return kr
	}
	job.Status = step.Working

	out, err := run(ctx, step, job)
	if err != nil {
		return o.fail(ctx, log, kr, job, out, err)
	}

	if !config.CanTransition(kind, job.Status, out.Status) {
		return o.fail(ctx, log, kr, job, pipeline.Outcome{},
			policy.Terminal(fmt.Errorf("step %s returned invalid transition %s -> %s", step.Name, job.Status, out.Status), ""))
	}

	patch := models.JobPatch{
		Status:       &out.Status,
		Progress:     &out.Progress,
		ProgressStep: &out.Label,
	}.ClearError()
	if out.State != nil {
		raw, err := json.Marshal(out.State)
		if err != nil {
			return o.fail(ctx, log, kr, job, pipeline.Outcome{}, policy.Terminal(fmt.Errorf("encode step state: %w", err), ""))
		}
		patch.StepState = raw
	}
	if out.Status == config.JobStatusComplete {
		now := o.opts.Now()
		patch.CompletedAt = &now
	}

	res, err = o.commit(ctx, job.ID, attempt, patch)
	if err != nil {
		log.Error("orchestrator.commit.error", "phase", "success", "error", err)
		kr.Result, kr.Error = ResultError, err.Error()
		return kr
	}
	if res == models.UpdateConflict {
		log.Warn("orchestrator.conflict", "phase", "success")
		kr.Result = ResultConflict
		return kr
	}

	log.Info("orchestrator.step.done", "from", job.Status, "to", out.Status, "progress", out.Progress)
	kr.Result, kr.To, kr.Progress = ResultAdvanced, out.Status, out.Progress
	return kr
}

// fail records a failed step according to the retry policy. Partial state
// returned with the error is kept so the retry does not repeat it.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, kr KindReport, job *models.Job, out pipeline.Outcome, stepErr error) KindReport {
	d := o.opts.Policy.Decide(job, stepErr, o.opts.Now())

	patch := models.JobPatch{
		FailureCount:   &d.FailureCount,
		Error:          &d.Error,
		ErrorKind:      &d.Kind,
		FailureSummary: &d.Summary,
	}
	if out.State != nil {
		if raw, err := json.Marshal(out.State); err == nil {
			patch.StepState = raw
		} else {
			log.Warn("orchestrator.partial_state.encode_error", "error", err)
		}
	}

	if d.Terminal {
		status := config.JobStatusError
		now := o.opts.Now()
		patch.Status = &status
		patch.CompletedAt = &now
	} else {
		patch.AvailableAt = &d.RetryAt
	}

	res, err := o.commit(ctx, job.ID, job.AttemptCount, patch)
	if err != nil {
		log.Error("orchestrator.commit.error", "phase", "failure", "error", err, "step_error", stepErr)
		kr.Result, kr.Error = ResultError, err.Error()
		return kr
	}
	if res == models.UpdateConflict {
		log.Warn("orchestrator.conflict", "phase", "failure", "step_error", stepErr)
		kr.Result = ResultConflict
		return kr
	}

	kr.Error = d.Summary
	if d.Terminal {
		log.Error("orchestrator.step.failed", "error_kind", d.Kind, "failures", d.FailureCount, "error", stepErr)
		kr.Result, kr.To = ResultFailed, config.JobStatusError
		return kr
	}

	log.Warn("orchestrator.step.retry", "error_kind", d.Kind, "failures", d.FailureCount, "retry_at", d.RetryAt, "error", stepErr)
	kr.Result = ResultRetrying
	kr.RetryAt = &d.RetryAt
	return kr
}

func (o *Orchestrator) commit(ctx context.Context, id string, attempt int, patch models.JobPatch) (models.UpdateResult, error) {
	cctx, cancel := o.commitContext(ctx)
	defer cancel()
	return o.store.UpdateState(cctx, id, attempt, patch)
}

func (o *Orchestrator) commitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), o.opts.CommitTimeout)
}

// run calls the step, turning a panic into an ordinary step error.
func run(ctx context.Context, step pipeline.Step, job *models.Job) (out pipeline.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = pipeline.Outcome{}
			err = fmt.Errorf("step %s panicked: %v", step.Name, r)
		}
	}()
	out, err = step.Run(ctx, job)
	if err == nil && out.Status == "" {
		err = errors.New("step " + step.Name + " returned no status")
	}
	return out, err
}
