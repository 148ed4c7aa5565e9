package postgres

import (
	"context"
	"fmt"

	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline/conflict"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DeliveryRepository struct {
	db *gorm.DB
}

func NewDeliveryRepository(db *gorm.DB) *DeliveryRepository {
	return &DeliveryRepository{db: db}
}

var _ conflict.DeliveryLedger = (*DeliveryRepository)(nil)

// Delivered returns the job's recorded sends keyed by recipient.
func (r *DeliveryRepository) Delivered(ctx context.Context, jobID string) (map[string]models.Delivery, error) {
	var rows []models.Delivery
	if err := r.db.WithContext(ctx).Where("job_id = ?", jobID).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}

	out := make(map[string]models.Delivery, len(rows))
	for _, d := range rows {
		out[d.Recipient] = d
	}
	return out, nil
}

// Record stores a send. Recording the same recipient twice keeps the first row.
func (r *DeliveryRepository) Record(ctx context.Context, d *models.Delivery) error {
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_id"}, {Name: "recipient"}},
			DoNothing: true,
		}).
		Create(d).Error; err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	return nil
}
