package models

import "time"

// Delivery records one report email handed to the mail provider for a job.
type Delivery struct {
	ID                uint      `gorm:"primaryKey"`
	JobID             string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_delivery_recipient,priority:1"`
	Recipient         string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_delivery_recipient,priority:2"`
	ProviderMessageID string    `gorm:"type:varchar(255)"`
	SentAt            time.Time `gorm:"not null"`
}

func (Delivery) TableName() string {
	return "job_deliveries"
}
