package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Walker offers services inside an organization. Working hours are wall-clock
// values interpreted in TimeZone.
type Walker struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index"`

	// Owning user account, managed outside the scheduling core.
	UserID *uuid.UUID `gorm:"type:uuid;index"`

	DisplayName string `gorm:"type:varchar(255);not null"`

	// IANA zone name, e.g. "America/Denver".
	TimeZone string `gorm:"type:varchar(64);not null;default:'UTC'"`

	IsActive bool `gorm:"not null;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	WorkingHours []WorkingHours `gorm:"foreignKey:WalkerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Blocks       []Block        `gorm:"foreignKey:WalkerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (w *Walker) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
