package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
)

type WalkerRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Walker, error)
	Create(ctx context.Context, walker *model.Walker) error
	// ListEligible returns active walkers that offer the service.
	ListEligible(ctx context.Context, serviceID uuid.UUID) ([]model.Walker, error)
	AssignService(ctx context.Context, walkerID, serviceID uuid.UUID) error
}

type GormWalkerRepository struct {
	db *gorm.DB
}

func NewGormWalkerRepository(db *gorm.DB) *GormWalkerRepository {
	return &GormWalkerRepository{db: db}
}

func (r *GormWalkerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Walker, error) {
	var w model.Walker
	if err := r.db.WithContext(ctx).First(&w, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *GormWalkerRepository) Create(ctx context.Context, walker *model.Walker) error {
	return r.db.WithContext(ctx).Create(walker).Error
}

func (r *GormWalkerRepository) ListEligible(ctx context.Context, serviceID uuid.UUID) ([]model.Walker, error) {
	var walkers []model.Walker
	err := r.db.WithContext(ctx).
		Model(&model.Walker{}).
		Joins("JOIN walker_services ON walker_services.walker_id = walkers.id").
		Where("walker_services.service_id = ?", serviceID).
		Where("walkers.is_active = ?", true).
		Order("walkers.display_name ASC").
		Find(&walkers).Error
	if err != nil {
		return nil, err
	}
	return walkers, nil
}

func (r *GormWalkerRepository) AssignService(ctx context.Context, walkerID, serviceID uuid.UUID) error {
	return r.db.WithContext(ctx).Create(&model.WalkerService{
		WalkerID:  walkerID,
		ServiceID: serviceID,
	}).Error
}
