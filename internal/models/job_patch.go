package models

import (
	"errors"
	"time"

	"github.com/joshu-sajeev/brokerjobs/internal/config"
	"gorm.io/datatypes"
)

var (
	ErrInvalidState = errors.New("job is not in a state that allows this operation")
	ErrClaimActive  = errors.New("job is claimed by a running invocation")
)

// UpdateResult is the outcome of an optimistic job update.
type UpdateResult string

const (
	UpdateApplied  UpdateResult = "applied"
	UpdateConflict UpdateResult = "conflict"
)

// JobPatch lists the columns a state update may change. Nil fields are left
// untouched.
type JobPatch struct {
	Status         *config.JobStatus
	StepState      datatypes.JSON
	Progress       *int
	ProgressStep   *string
	FailureCount   *int
	AvailableAt    *time.Time
	Error          *string
	ErrorKind      *config.ErrorKind
	FailureSummary *string
	CompletedAt    *time.Time
}

// ClearError resets the error columns and the consecutive failure counter.
func (p JobPatch) ClearError() JobPatch {
	empty := ""
	none := config.ErrorKind("")
	zero := 0
	p.Error = &empty
	p.ErrorKind = &none
	p.FailureSummary = &empty
	p.FailureCount = &zero
	return p
}

func (p JobPatch) IsEmpty() bool {
	return p.Status == nil && p.StepState == nil && p.Progress == nil &&
		p.ProgressStep == nil && p.FailureCount == nil && p.AvailableAt == nil &&
		p.Error == nil && p.ErrorKind == nil && p.FailureSummary == nil &&
		p.CompletedAt == nil
}

func Ptr[T any](v T) *T {
	return &v
}
