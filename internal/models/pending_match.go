package models

import (
	"time"

	"gorm.io/datatypes"
)

// PendingMatch is a fuzzy association between an imported roster row and an
// existing member, held until someone approves or rejects it.
type PendingMatch struct {
	ID               uint           `gorm:"primaryKey"`
	JobID            string         `gorm:"type:varchar(36);not null;uniqueIndex:idx_pending_match_row,priority:1"`
	RowIndex         int            `gorm:"not null;uniqueIndex:idx_pending_match_row,priority:2"`
	ParsedRecord     datatypes.JSON `gorm:"type:jsonb"`
	ParsedName       string         `gorm:"type:varchar(255)"`
	ExistingMemberID uint           `gorm:"not null"`
	ExistingName     string         `gorm:"type:varchar(255)"`
	MatchScore       float64        `gorm:"not null"`
	MatchReason      string         `gorm:"type:varchar(255)"`
	Status           string         `gorm:"type:varchar(16);not null;default:'pending'"`
	DecidedAt        *time.Time
	CreatedAt        time.Time `gorm:"autoCreateTime"`
}
