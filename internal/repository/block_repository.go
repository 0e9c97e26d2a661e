package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
)

type BlockRepository interface {
	Create(ctx context.Context, block *model.Block) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Block, error)
	// ListBlockingByWalkerRange returns blocks with is_blocking = true that
	// overlap [from, to), ordered by start.
	ListBlockingByWalkerRange(ctx context.Context, walkerID uuid.UUID, from, to time.Time) ([]model.Block, error)
	ListByGroup(ctx context.Context, groupID uuid.UUID) ([]model.Block, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type GormBlockRepository struct {
	db *gorm.DB
}

func NewGormBlockRepository(db *gorm.DB) *GormBlockRepository {
	return &GormBlockRepository{db: db}
}

func (r *GormBlockRepository) Create(ctx context.Context, block *model.Block) error {
	return r.db.WithContext(ctx).Create(block).Error
}

func (r *GormBlockRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Block, error) {
	var b model.Block
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBlockRepository) ListBlockingByWalkerRange(
	ctx context.Context,
	walkerID uuid.UUID,
	from, to time.Time,
) ([]model.Block, error) {
	var blocks []model.Block
	err := r.db.WithContext(ctx).
		Where("walker_id = ?", walkerID).
		Where("is_blocking = ?", true).
		Where("start_time < ? AND end_time > ?", to.UTC(), from.UTC()).
		Order("start_time ASC").
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

func (r *GormBlockRepository) ListByGroup(ctx context.Context, groupID uuid.UUID) ([]model.Block, error) {
	var blocks []model.Block
	err := r.db.WithContext(ctx).
		Where("recurrence_group_id = ?", groupID).
		Order("start_time ASC").
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}
	return blocks, nil
}

// Delete removes a single block; other occurrences of its group stay.
func (r *GormBlockRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.Block{}, "id = ?", id).Error
}
