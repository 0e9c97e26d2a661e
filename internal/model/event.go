package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EventType names an audit event.
type EventType string

const (
	EventTypeBookingCreated  EventType = "booking_created"
	EventTypeBlockCreated    EventType = "block_created"
	EventTypeSeriesCreated   EventType = "series_created"
	EventTypeSeriesCompleted EventType = "series_completed"
)

// events is the audit trail of scheduling writes.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"not null;index"`

	WalkerID  *uuid.UUID `gorm:"type:uuid;index"`
	BookingID *uuid.UUID `gorm:"type:uuid;index"`
	BlockID   *uuid.UUID `gorm:"type:uuid;index"`
	SeriesID  *uuid.UUID `gorm:"type:uuid;index"`

	Details string `gorm:"type:text"`
}

func (e *Event) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
