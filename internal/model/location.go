package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// locations
type Location struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Address   string  `gorm:"type:varchar(500)"`
	Latitude  float64 `gorm:"not null"`
	Longitude float64 `gorm:"not null"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (l *Location) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
