package models

import (
	"time"

	"gorm.io/datatypes"
)

type RosterMember struct {
	ID           uint           `gorm:"primaryKey"`
	TeamID       string         `gorm:"type:varchar(64);not null;index"`
	EmployeeID   string         `gorm:"type:varchar(64)"`
	FirstName    string         `gorm:"type:varchar(128)"`
	LastName     string         `gorm:"type:varchar(128)"`
	FullName     string         `gorm:"type:varchar(255)"`
	Email        string         `gorm:"type:varchar(255)"`
	DateOfBirth  string         `gorm:"type:varchar(32)"`
	HireDate     string         `gorm:"type:varchar(32)"`
	Department   string         `gorm:"type:varchar(128)"`
	JobTitle     string         `gorm:"type:varchar(128)"`
	Salary       float64        `gorm:"default:0"`
	CoverageTier string         `gorm:"type:varchar(64)"`
	Gender       string         `gorm:"type:varchar(16)"`
	RawData      datatypes.JSON `gorm:"type:jsonb"`
	SourceJobID  *string        `gorm:"type:varchar(36);uniqueIndex:idx_member_source,priority:1"`
	SourceRow    *int           `gorm:"uniqueIndex:idx_member_source,priority:2"`
	IsActive     bool           `gorm:"not null;default:true"`
	CreatedAt    time.Time      `gorm:"autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime"`
}
