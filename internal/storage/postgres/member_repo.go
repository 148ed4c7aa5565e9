package postgres

import (
	"context"
	"fmt"

	"github.com/joshu-sajeev/brokerjobs/internal/models"
	"github.com/joshu-sajeev/brokerjobs/internal/pipeline/roster"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

var _ roster.MemberStore = (*MemberRepository)(nil)

func (r *MemberRepository) ListActive(ctx context.Context, teamID string) ([]models.RosterMember, error) {
	var members []models.RosterMember
	if err := r.db.WithContext(ctx).
		Where("team_id = ? AND is_active = ?", teamID, true).
		Order("id ASC").
		Find(&members).Error; err != nil {
		return nil, fmt.Errorf("list roster members: %w", err)
	}
	return members, nil
}

// InsertImported adds a member created by an import. A row already inserted
// for the same (source job, source row) is left alone and reported as not
// inserted.
func (r *MemberRepository) InsertImported(ctx context.Context, m *models.RosterMember) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "source_job_id"}, {Name: "source_row"}},
			DoNothing: true,
		}).
		Create(m)
	if res.Error != nil {
		return false, fmt.Errorf("insert roster member: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *MemberRepository) Update(ctx context.Context, id uint, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&models.RosterMember{}).
		Where("id = ?", id).
		Updates(fields).Error; err != nil {
		return fmt.Errorf("update roster member: %w", err)
	}
	return nil
}
