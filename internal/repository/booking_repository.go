package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/model"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *model.Booking) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error)
	// UpdateStatus changes the booking status, e.g. on cancellation.
	UpdateStatus(ctx context.Context, id uuid.UUID, status model.BookingStatus, cancelledAt *time.Time) error
	// ListOccupyingByWalkerRange returns the walker's non-cancelled bookings
	// overlapping [from, to), ordered by start. No-shows still occupy time.
	ListOccupyingByWalkerRange(ctx context.Context, walkerID uuid.UUID, from, to time.Time) ([]model.Booking, error)
	ListBySeries(ctx context.Context, seriesID uuid.UUID) ([]model.Booking, error)
}

type GormBookingRepository struct {
	db *gorm.DB
}

func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

func (r *GormBookingRepository) Create(ctx context.Context, booking *model.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *GormBookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	var b model.Booking
	if err := r.db.WithContext(ctx).First(&b, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *GormBookingRepository) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status model.BookingStatus,
	cancelledAt *time.Time,
) error {
	update := map[string]any{
		"status": status,
	}
	if cancelledAt != nil {
		update["cancelled_at"] = cancelledAt.UTC()
	}
	return r.db.WithContext(ctx).
		Model(&model.Booking{}).
		Where("id = ?", id).
		Updates(update).
		Error
}

func (r *GormBookingRepository) ListOccupyingByWalkerRange(
	ctx context.Context,
	walkerID uuid.UUID,
	from, to time.Time,
) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Where("walker_id = ?", walkerID).
		Where("status <> ?", model.BookingStatusCancelled).
		Where("scheduled_start < ? AND scheduled_end > ?", to.UTC(), from.UTC()).
		Order("scheduled_start ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *GormBookingRepository) ListBySeries(ctx context.Context, seriesID uuid.UUID) ([]model.Booking, error) {
	var bookings []model.Booking
	err := r.db.WithContext(ctx).
		Where("recurring_series_id = ?", seriesID).
		Order("scheduled_start ASC").
		Find(&bookings).Error
	if err != nil {
		return nil, err
	}
	return bookings, nil
}
