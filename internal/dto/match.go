package dto

import (
	"encoding/json"
	"time"
)

type PendingMatchDTO struct {
	ID               uint            `json:"id"`
	RowIndex         int             `json:"row_index"`
	ParsedName       string          `json:"parsed_name"`
	ParsedRecord     json.RawMessage `json:"parsed_record,omitempty"`
	ExistingMemberID uint            `json:"existing_member_id"`
	ExistingName     string          `json:"existing_name"`
	MatchScore       float64         `json:"match_score"`
	MatchReason      string          `json:"match_reason"`
	Status           string          `json:"status"`
	DecidedAt        *time.Time      `json:"decided_at,omitempty"`
}

type MatchDecisionDTO struct {
	MatchID uint   `json:"match_id" validate:"required"`
	Action  string `json:"action" validate:"required,oneof=approve reject"`
}

type MatchDecisionsDTO struct {
	Decisions []MatchDecisionDTO `json:"decisions" validate:"required,min=1,max=500,dive"`
}

type MatchDecisionResultDTO struct {
	Remaining int64  `json:"remaining"`
	Status    string `json:"status"`
}
