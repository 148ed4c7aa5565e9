package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"github.com/joshu-sajeev/brokerjobs/internal/job"
	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline/roster"
	"gorm.io/gorm"
)

type MatchRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var (
	_ job.MatchRepoInterface = (*MatchRepository)(nil)
	_ roster.MatchStore      = (*MatchRepository)(nil)
)

// ReplaceForJob swaps the job's pending matches for the given set in one
// transaction, so re-running the match step never leaves duplicates behind.
func (r *MatchRepository) ReplaceForJob(ctx context.Context, jobID string, matches []models.PendingMatch) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", jobID).Delete(&models.PendingMatch{}).Error; err != nil {
			return err
		}
		if len(matches) == 0 {
			return nil
		}
		for i := range matches {
			matches[i].JobID = jobID
			if matches[i].Status == "" {
				matches[i].Status = config.MatchStatusPending
			}
		}
		return tx.Create(&matches).Error
	})
	if err != nil {
		return fmt.Errorf("replace pending matches: %w", err)
	}
	return nil
}

// ListByJob returns the job's matches, best score first.
func (r *MatchRepository) ListByJob(ctx context.Context, jobID string) ([]models.PendingMatch, error) {
	var matches []models.PendingMatch
	if err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("match_score DESC").
		Order("row_index ASC").
		Find(&matches).Error; err != nil {
		return nil, fmt.Errorf("list pending matches: %w", err)
	}
	return matches, nil
}

// Decide records approvals and rejections and returns how many matches of
// the job are still undecided. Matches that were already decided keep their
// first verdict.
func (r *MatchRepository) Decide(ctx context.Context, jobID string, decisions []models.MatchDecision) (int64, error) {
	var remaining int64
	now := r.now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, d := range decisions {
			status := config.MatchStatusRejected
			if d.Approve {
				status = config.MatchStatusApproved
			}

			var count int64
			if err := tx.Model(&models.PendingMatch{}).
				Where("id = ? AND job_id = ?", d.MatchID, jobID).
				Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return fmt.Errorf("match %d of job %s: %w", d.MatchID, jobID, gorm.ErrRecordNotFound)
			}

			if err := tx.Model(&models.PendingMatch{}).
				Where("id = ? AND job_id = ? AND status = ?", d.MatchID, jobID, config.MatchStatusPending).
				Updates(map[string]any{"status": status, "decided_at": now}).Error; err != nil {
				return err
			}
		}

		return tx.Model(&models.PendingMatch{}).
			Where("job_id = ? AND status = ?", jobID, config.MatchStatusPending).
			Count(&remaining).Error
	})
	if err != nil {
		return 0, fmt.Errorf("decide pending matches: %w", err)
	}
	return remaining, nil
}
