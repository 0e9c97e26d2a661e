package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type SeriesStatus string

const (
	SeriesStatusRequested          SeriesStatus = "requested"
	SeriesStatusExpanding          SeriesStatus = "expanding"
	SeriesStatusSubmitting         SeriesStatus = "submitting"
	SeriesStatusCompleted          SeriesStatus = "completed"
	SeriesStatusPartiallyCompleted SeriesStatus = "partially_completed"
)

// Terminal reports whether materialization has finished.
func (s SeriesStatus) Terminal() bool {
	return s == SeriesStatusCompleted || s == SeriesStatusPartiallyCompleted
}

// recurring_booking_series
type RecurringBookingSeries struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	CustomerID uuid.UUID `gorm:"type:uuid;not null;index"`
	WalkerID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ServiceID  uuid.UUID `gorm:"type:uuid;not null"`
	LocationID uuid.UUID `gorm:"type:uuid;not null"`

	Frequency string `gorm:"type:varchar(16);not null"`
	DayOfWeek int    `gorm:"type:smallint;not null"`
	TimeOfDay string `gorm:"type:varchar(8);not null"`
	TimeZone  string `gorm:"type:varchar(64);not null"`

	// Exactly one of EndDate and TotalOccurrences is set.
	EndDate          *datatypes.Date `gorm:"type:date"`
	TotalOccurrences *int

	Status SeriesStatus `gorm:"type:varchar(32);not null;index"`

	// ExpandedFrom is the instant the occurrences were enumerated from. A
	// resumed run expands from it again so occurrence numbers stay stable.
	ExpandedFrom time.Time `gorm:"not null"`

	IdempotencyKey *string `gorm:"type:varchar(255);uniqueIndex"`

	// Report returned to the caller, stored once materialization finished
	// so retries with the same idempotency key replay it.
	Report datatypes.JSON

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Bookings []Booking `gorm:"foreignKey:RecurringSeriesID"`
}

func (RecurringBookingSeries) TableName() string {
	return "recurring_booking_series"
}

func (s *RecurringBookingSeries) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s *RecurringBookingSeries) BeforeSave(tx *gorm.DB) error {
	s.ExpandedFrom = s.ExpandedFrom.UTC()
	return nil
}
