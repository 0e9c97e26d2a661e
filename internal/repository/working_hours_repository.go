package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
)

type WorkingHoursRepository interface {
	// GetForDay returns gorm.ErrRecordNotFound when the walker has no row
	// for that weekday.
	GetForDay(ctx context.Context, walkerID uuid.UUID, dayOfWeek int) (*model.WorkingHours, error)
	ListByWalker(ctx context.Context, walkerID uuid.UUID) ([]model.WorkingHours, error)
	// Upsert replaces the row for (walker, day_of_week).
	Upsert(ctx context.Context, wh *model.WorkingHours) error
}

type GormWorkingHoursRepository struct {
	db *gorm.DB
}

func NewGormWorkingHoursRepository(db *gorm.DB) *GormWorkingHoursRepository {
	return &GormWorkingHoursRepository{db: db}
}

func (r *GormWorkingHoursRepository) GetForDay(ctx context.Context, walkerID uuid.UUID, dayOfWeek int) (*model.WorkingHours, error) {
	var wh model.WorkingHours
	err := r.db.WithContext(ctx).
		Where("walker_id = ? AND day_of_week = ?", walkerID, dayOfWeek).
		First(&wh).Error
	if err != nil {
		return nil, err
	}
	return &wh, nil
}

func (r *GormWorkingHoursRepository) ListByWalker(ctx context.Context, walkerID uuid.UUID) ([]model.WorkingHours, error) {
	var hours []model.WorkingHours
	err := r.db.WithContext(ctx).
		Where("walker_id = ?", walkerID).
		Order("day_of_week ASC").
		Find(&hours).Error
	if err != nil {
		return nil, err
	}
	return hours, nil
}

func (r *GormWorkingHoursRepository) Upsert(ctx context.Context, wh *model.WorkingHours) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "walker_id"}, {Name: "day_of_week"}},
			DoUpdates: clause.AssignmentColumns([]string{"start_time", "end_time", "is_active", "updated_at"}),
		}).
		Create(wh).Error
}
