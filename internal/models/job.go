package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Job struct {
	ID             string           `gorm:"type:varchar(36);primaryKey"`
	Kind           config.JobKind   `gorm:"type:varchar(64);not null;index:idx_jobs_claim,priority:1"`
	Status         config.JobStatus `gorm:"type:varchar(32);not null;default:'pending';index:idx_jobs_claim,priority:2"`
	Payload        datatypes.JSON   `gorm:"type:jsonb"`
	StepState      datatypes.JSON   `gorm:"type:jsonb"`
	Progress       int              `gorm:"not null;default:0"`
	ProgressStep   string           `gorm:"type:varchar(128)"`
	AttemptCount   int              `gorm:"not null;default:0"`
	FailureCount   int              `gorm:"not null;default:0"`
	MaxAttempts    int              `gorm:"not null;default:3"`
	AvailableAt    time.Time        `gorm:"not null"`
	ClaimedAt      *time.Time
	ClaimedBy      string           `gorm:"type:varchar(128)"`
	Error          string           `gorm:"type:text"`
	ErrorKind      config.ErrorKind `gorm:"type:varchar(16)"`
	FailureSummary string           `gorm:"type:text"`
	CreatedAt      time.Time        `gorm:"autoCreateTime;index:idx_jobs_claim,priority:3"`
	UpdatedAt      time.Time        `gorm:"autoUpdateTime"`
	CompletedAt    *time.Time
}

func (j *Job) BeforeCreate(tx *gorm.DB) error {
	if j.ID == "" {
		j.ID = uuid.NewString()
	}
	if j.Status == "" {
		j.Status = config.JobStatusPending
	}
	if j.AvailableAt.IsZero() {
		j.AvailableAt = tx.NowFunc()
	}
	return nil
}

// IsClaimedAt reports whether the job holds a lease that is still live at now.
func (j *Job) IsClaimedAt(now time.Time, lease time.Duration) bool {
	return j.ClaimedAt != nil && j.ClaimedAt.After(now.Add(-lease))
}
