package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
)

// WorkingHours is the weekly working window of a walker for one weekday.
// StartTime and EndTime are local wall-clock "HH:MM" values.
type WorkingHours struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	WalkerID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_working_hours_walker_day,priority:1"`

	// 0 = Sunday ... 6 = Saturday
	DayOfWeek int `gorm:"type:smallint;not null;uniqueIndex:ux_working_hours_walker_day,priority:2"`

	StartTime string `gorm:"type:varchar(8);not null"`
	EndTime   string `gorm:"type:varchar(8);not null"`

	IsActive bool `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Walker *Walker `gorm:"foreignKey:WalkerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (WorkingHours) TableName() string {
	return "working_hours"
}

func (w *WorkingHours) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// BeforeSave rejects windows that do not end after they start.
func (w *WorkingHours) BeforeSave(tx *gorm.DB) error {
	start, err := calendar.ParseWallClock(w.StartTime)
	if err != nil {
		return err
	}
	end, err := calendar.ParseWallClock(w.EndTime)
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("working hours: end_time %s must be after start_time %s", w.EndTime, w.StartTime)
	}
	return nil
}

// Window places the working hours on date in loc.
func (w WorkingHours) Window(date time.Time, loc *time.Location) (calendar.TimeRange, error) {
	start, err := calendar.ParseWallClock(w.StartTime)
	if err != nil {
		return calendar.TimeRange{}, err
	}
	end, err := calendar.ParseWallClock(w.EndTime)
	if err != nil {
		return calendar.TimeRange{}, err
	}
	return calendar.NewTimeRange(start.On(date, loc), end.On(date, loc))
}
