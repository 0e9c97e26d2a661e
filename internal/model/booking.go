package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusConfirmed  BookingStatus = "confirmed"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
	BookingStatusNoShow     BookingStatus = "no_show"
)

// bookings
type Booking struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CustomerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_bookings_customer_service_start,priority:1"`
	ServiceID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_bookings_customer_service_start,priority:2"`
	WalkerID   uuid.UUID `gorm:"type:uuid;not null;index:idx_bookings_walker_start,priority:1"`
	LocationID uuid.UUID `gorm:"type:uuid;not null;index"`

	ScheduledStart time.Time `gorm:"not null;uniqueIndex:ux_bookings_customer_service_start,priority:3;index:idx_bookings_walker_start,priority:2"`
	ScheduledEnd   time.Time `gorm:"not null"`

	Status BookingStatus `gorm:"type:varchar(32);not null;index"`

	RecurringSeriesID *uuid.UUID `gorm:"type:uuid;index"`
	OccurrenceNumber  *int

	Notes       string `gorm:"type:text"`
	CancelledAt *time.Time

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Walker   *Walker                 `gorm:"foreignKey:WalkerID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Service  *Service                `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Location *Location               `gorm:"foreignKey:LocationID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Series   *RecurringBookingSeries `gorm:"foreignKey:RecurringSeriesID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b *Booking) BeforeSave(tx *gorm.DB) error {
	b.ScheduledStart = b.ScheduledStart.UTC()
	b.ScheduledEnd = b.ScheduledEnd.UTC()
	return nil
}

func (b Booking) Interval() calendar.TimeRange {
	return calendar.TimeRange{Start: b.ScheduledStart, End: b.ScheduledEnd}
}
