package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
)

type SeriesRepository interface {
	// Create fails with gorm.ErrDuplicatedKey when the idempotency key is
	// already taken (requires TranslateError on the connection).
	Create(ctx context.Context, series *model.RecurringBookingSeries) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.RecurringBookingSeries, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*model.RecurringBookingSeries, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.SeriesStatus) error
	// Finish stores the final report together with the terminal status.
	Finish(ctx context.Context, id uuid.UUID, status model.SeriesStatus, report datatypes.JSON) error
}

type GormSeriesRepository struct {
	db *gorm.DB
}

func NewGormSeriesRepository(db *gorm.DB) *GormSeriesRepository {
	return &GormSeriesRepository{db: db}
}

func (r *GormSeriesRepository) Create(ctx context.Context, series *model.RecurringBookingSeries) error {
	return r.db.WithContext(ctx).Create(series).Error
}

func (r *GormSeriesRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.RecurringBookingSeries, error) {
	var s model.RecurringBookingSeries
	if err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSeriesRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.RecurringBookingSeries, error) {
	var s model.RecurringBookingSeries
	if err := r.db.WithContext(ctx).First(&s, "idempotency_key = ?", key).Error; err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GormSeriesRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.SeriesStatus) error {
	return r.db.WithContext(ctx).
		Model(&model.RecurringBookingSeries{}).
		Where("id = ?", id).
		Update("status", status).
		Error
}

func (r *GormSeriesRepository) Finish(
	ctx context.Context,
	id uuid.UUID,
	status model.SeriesStatus,
	report datatypes.JSON,
) error {
	return r.db.WithContext(ctx).
		Model(&model.RecurringBookingSeries{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status": status,
			"report": report,
		}).
		Error
}
