package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/job"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"gorm.io/gorm"
)

const defaultClaimCandidates = 5

type JobRepository struct {
	db         *gorm.DB
	now        func() time.Time
	candidates int
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{
		db:         db,
		now:        func() time.Time { return time.Now().UTC() },
		candidates: defaultClaimCandidates,
	}
}

var _ job.JobRepoInterface = (*JobRepository)(nil)

// WithClock replaces the time source used for claims, leases and backoff.
func (r *JobRepository) WithClock(now func() time.Time) *JobRepository {
	r.now = now
	return r
}

// WithCandidateLimit bounds how many eligible rows a claim looks at before
// giving up on a contended kind.
func (r *JobRepository) WithCandidateLimit(n int) *JobRepository {
	if n > 0 {
		r.candidates = n
	}
	return r
}

// Create inserts a new pending job of the given kind.
func (r *JobRepository) Create(ctx context.Context, j *models.Job) error {
	now := r.now()
	if j.CreatedAt.IsZero() {
		j.CreatedAt = now
	}
	if j.AvailableAt.IsZero() {
		j.AvailableAt = now
	}
	j.Status = config.JobStatusPending

	if err := r.db.WithContext(ctx).Create(j).Error; err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

// Get retrieves a single job by id.
func (r *JobRepository) Get(ctx context.Context, id string) (*models.Job, error) {
	var j models.Job
	if err := r.db.WithContext(ctx).First(&j, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("job not found: %w", err)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return &j, nil
}

// List returns jobs filtered by kind and status, newest first. Empty filters
// match everything.
func (r *JobRepository) List(ctx context.Context, kind config.JobKind, status config.JobStatus) ([]models.Job, error) {
	q := r.db.WithContext(ctx).Order("created_at DESC")
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var jobs []models.Job
	if err := q.Limit(200).Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// ClaimNext claims the oldest eligible job of a kind. A job is eligible when
// its status is claimable, its backoff has elapsed and it holds no live
// lease. The claim is a single conditional UPDATE guarded by the attempt
// count that was read, so two invocations racing for the same row cannot
// both win. Returns nil, nil when nothing is eligible.
func (r *JobRepository) ClaimNext(ctx context.Context, kind config.JobKind, workerID string, lease time.Duration) (*models.Job, error) {
	now := r.now()
	staleBefore := now.Add(-lease)

	var candidates []models.Job
	err := r.db.WithContext(ctx).
		Where("kind = ? AND status IN ? AND available_at <= ?", kind, config.ClaimableStatuses, now).
		Where("(claimed_at IS NULL OR claimed_at < ?)", staleBefore).
		Order("created_at ASC").
		Order("id ASC").
		Limit(r.candidates).
		Find(&candidates).Error
	if err != nil {
		return nil, fmt.Errorf("find claim candidates: %w", err)
	}

	for i := range candidates {
		c := &candidates[i]

		updates := map[string]any{
			"claimed_at":    now,
			"claimed_by":    workerID,
			"attempt_count": gorm.Expr("attempt_count + ?", 1),
			"updated_at":    now,
		}
		if c.Status == config.JobStatusPending {
			updates["status"] = config.JobStatusClaimed
		}

		res := r.db.WithContext(ctx).Model(&models.Job{}).
			Where("id = ? AND attempt_count = ? AND status = ?", c.ID, c.AttemptCount, c.Status).
			Where("(claimed_at IS NULL OR claimed_at < ?)", staleBefore).
			Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("claim job: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// another invocation got there first
			continue
		}

		c.AttemptCount++
		c.ClaimedAt = &now
		c.ClaimedBy = workerID
		c.UpdatedAt = now
		if c.Status == config.JobStatusPending {
			c.Status = config.JobStatusClaimed
		}
		return c, nil
	}

	return nil, nil
}

// UpdateState applies patch only if the job's attempt count still equals
// expectedAttempt. A newer claim or an operator override makes the update a
// conflict, reported through the result rather than as an error. Progress
// never moves backwards.
func (r *JobRepository) UpdateState(ctx context.Context, id string, expectedAttempt int, patch models.JobPatch) (models.UpdateResult, error) {
	if patch.IsEmpty() {
		return models.UpdateApplied, nil
	}

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND attempt_count = ?", id, expectedAttempt).
		Updates(r.patchColumns(patch))
	if res.Error != nil {
		return "", fmt.Errorf("update job state: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.UpdateConflict, nil
	}
	return models.UpdateApplied, nil
}

func (r *JobRepository) patchColumns(p models.JobPatch) map[string]any {
	cols := map[string]any{"updated_at": r.now()}
	if p.Status != nil {
		cols["status"] = *p.Status
	}
	if p.StepState != nil {
		cols["step_state"] = p.StepState
	}
	if p.Progress != nil {
		cols["progress"] = gorm.Expr("CASE WHEN progress < ? THEN ? ELSE progress END", *p.Progress, *p.Progress)
	}
	if p.ProgressStep != nil {
		cols["progress_step"] = *p.ProgressStep
	}
	if p.FailureCount != nil {
		cols["failure_count"] = *p.FailureCount
	}
	if p.AvailableAt != nil {
		cols["available_at"] = *p.AvailableAt
	}
	if p.Error != nil {
		cols["error"] = *p.Error
	}
	if p.ErrorKind != nil {
		cols["error_kind"] = *p.ErrorKind
	}
	if p.FailureSummary != nil {
		cols["failure_summary"] = *p.FailureSummary
	}
	if p.CompletedAt != nil {
		cols["completed_at"] = *p.CompletedAt
	}
	return cols
}

// ReleaseClaim clears the lease fields. It is a no-op when the job has been
// claimed again or overridden since expectedAttempt.
func (r *JobRepository) ReleaseClaim(ctx context.Context, id string, expectedAttempt int) error {
	if err := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND attempt_count = ?", id, expectedAttempt).
		Updates(map[string]any{
			"claimed_at": nil,
			"claimed_by": "",
			"updated_at": r.now(),
		}).Error; err != nil {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

// Reset moves an errored job back to pending, clearing its error and failure
// count. Step state and progress are kept so finished work is not repeated.
// The attempt count is kept too, so a late commit from an earlier claim still
// conflicts. A job whose lease is still live cannot be reset.
func (r *JobRepository) Reset(ctx context.Context, id string, lease time.Duration) error {
	now := r.now()

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, config.JobStatusError).
		Where("(claimed_at IS NULL OR claimed_at < ?)", now.Add(-lease)).
		Updates(map[string]any{
			"status":          config.JobStatusPending,
			"error":           "",
			"error_kind":      "",
			"failure_summary": "",
			"failure_count":   0,
			"claimed_at":      nil,
			"claimed_by":      "",
			"available_at":    now,
			"completed_at":    nil,
			"updated_at":      now,
		})
	if res.Error != nil {
		return fmt.Errorf("reset job: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	j, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if j.Status != config.JobStatusError {
		return fmt.Errorf("reset job %s from %s: %w", id, j.Status, models.ErrInvalidState)
	}
	return fmt.Errorf("reset job %s: %w", id, models.ErrClaimActive)
}

// Cancel marks a non-terminal job as failed. The attempt count is bumped so
// a step still running for the job loses its commit. Matches still waiting
// for a decision are rejected in the same transaction. The lease is left in
// place until it expires or the running invocation finishes.
func (r *JobRepository) Cancel(ctx context.Context, id string, reason string) error {
	now := r.now()

	var cancelled bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Job{}).
			Where("id = ? AND status NOT IN ?", id, config.TerminalStatuses).
			Updates(map[string]any{
				"status":          config.JobStatusError,
				"error":           reason,
				"error_kind":      config.ErrorKindTerminal,
				"failure_summary": "This job was cancelled by an operator.",
				"attempt_count":   gorm.Expr("attempt_count + ?", 1),
				"updated_at":      now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}
		cancelled = true

		return tx.Model(&models.PendingMatch{}).
			Where("job_id = ? AND status = ?", id, config.MatchStatusPending).
			Updates(map[string]any{
				"status":     config.MatchStatusRejected,
				"decided_at": now,
			}).Error
	})
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	if cancelled {
		return nil
	}

	j, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("cancel job %s in %s: %w", id, j.Status, models.ErrInvalidState)
}

// ResolveApproval moves a roster job out of awaiting_approval once every
// pending match has been decided.
func (r *JobRepository) ResolveApproval(ctx context.Context, id string) error {
	now := r.now()

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where("id = ? AND status = ?", id, config.JobStatusAwaitingApproval).
		Updates(map[string]any{
			"status":        config.JobStatusApplying,
			"progress_step": "Importing approved records",
			"available_at":  now,
			"updated_at":    now,
		})
	if res.Error != nil {
		return fmt.Errorf("resolve approval: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("resolve approval for %s: %w", id, models.ErrInvalidState)
	}
	return nil
}

// ListStale returns non-terminal jobs whose lease expired without being
// released, which is what a crashed invocation leaves behind.
func (r *JobRepository) ListStale(ctx context.Context, lease time.Duration) ([]models.Job, error) {
	var jobs []models.Job
	if err := r.db.WithContext(ctx).
		Where("status IN ? AND claimed_at IS NOT NULL AND claimed_at < ?", config.ClaimableStatuses, r.now().Add(-lease)).
		Order("claimed_at ASC").
		Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("list stale jobs: %w", err)
	}
	return jobs, nil
}
