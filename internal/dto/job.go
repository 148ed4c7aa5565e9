package dto

import (
	"encoding/json"
	"time"
)

type BrandingDTO struct {
	BrokerName     string `json:"broker_name" validate:"omitempty,max=128"`
	LogoURL        string `json:"logo_url" validate:"omitempty,url"`
	PrimaryColor   string `json:"primary_color" validate:"omitempty,hexcolor"`
	SecondaryColor string `json:"secondary_color" validate:"omitempty,hexcolor"`
}

type ConflictJobCreateDTO struct {
	ClientName       string       `json:"client_name" validate:"required,max=255"`
	SPDKey           string       `json:"spd_key" validate:"required"`
	SPDFilename      string       `json:"spd_filename" validate:"max=255"`
	HandbookKey      string       `json:"handbook_key" validate:"required"`
	HandbookFilename string       `json:"handbook_filename" validate:"max=255"`
	FocusAreas       []string     `json:"focus_areas" validate:"max=20,dive,required,max=128"`
	EmailRecipients  []string     `json:"email_recipients" validate:"required,min=1,max=20,dive,email"`
	Branding         *BrandingDTO `json:"branding,omitempty"`
}

type RosterJobCreateDTO struct {
	TeamID     string `json:"team_id" validate:"required,max=64"`
	FileKey    string `json:"file_key" validate:"required"`
	Filename   string `json:"filename" validate:"required,max=255"`
	UploadedBy string `json:"uploaded_by" validate:"omitempty,max=255"`
}

type JobCreatedDTO struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
}

// JobStatusDTO is what a client polls. It carries the user-facing failure
// summary, never the raw error.
type JobStatusDTO struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"`
	Status         string          `json:"status"`
	Stage          string          `json:"stage"`
	Progress       int             `json:"progress"`
	ProgressStep   string          `json:"progress_step,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	FailureSummary string          `json:"failure_summary,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	CompletedAt    *time.Time      `json:"completed_at,omitempty"`
}

type ConflictResultDTO struct {
	TotalConflicts int      `json:"total_conflicts"`
	Critical       int      `json:"critical"`
	Medium         int      `json:"medium"`
	Low            int      `json:"low"`
	OverallRisk    string   `json:"overall_risk,omitempty"`
	SentTo         []string `json:"sent_to,omitempty"`
}

type RosterResultDTO struct {
	Records  int `json:"records"`
	Invalid  int `json:"invalid"`
	Exact    int `json:"exact"`
	Fuzzy    int `json:"fuzzy"`
	New      int `json:"new"`
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// JobAdminDTO is the operator view of a job, raw error included.
type JobAdminDTO struct {
	ID             string     `json:"id"`
	Kind           string     `json:"kind"`
	Status         string     `json:"status"`
	Progress       int        `json:"progress"`
	ProgressStep   string     `json:"progress_step,omitempty"`
	AttemptCount   int        `json:"attempt_count"`
	FailureCount   int        `json:"failure_count"`
	AvailableAt    time.Time  `json:"available_at"`
	ClaimedBy      string     `json:"claimed_by,omitempty"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	Error          string     `json:"error,omitempty"`
	ErrorKind      string     `json:"error_kind,omitempty"`
	FailureSummary string     `json:"failure_summary,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type CancelJobDTO struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}
