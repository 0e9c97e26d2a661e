package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kcirtapfromspace/offleash-sub002/internal/calendar"
)

// Block is time a walker marked as unavailable. Non-blocking blocks are
// informational and leave availability untouched.
type Block struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	WalkerID uuid.UUID `gorm:"type:uuid;not null;index:idx_blocks_walker_start,priority:1"`

	StartTime time.Time `gorm:"not null;index:idx_blocks_walker_start,priority:2"`
	EndTime   time.Time `gorm:"not null"`

	Reason     string `gorm:"type:varchar(255)"`
	IsBlocking bool   `gorm:"not null"`

	// Set on every row materialized from the same recurring request,
	// e.g. "WEEKLY:1,3,5:8".
	RecurrenceRule    *string    `gorm:"type:varchar(64)"`
	RecurrenceGroupID *uuid.UUID `gorm:"type:uuid;index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Walker *Walker `gorm:"foreignKey:WalkerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (b *Block) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

func (b *Block) BeforeSave(tx *gorm.DB) error {
	b.StartTime = b.StartTime.UTC()
	b.EndTime = b.EndTime.UTC()
	return nil
}

func (b Block) Interval() calendar.TimeRange {
	return calendar.TimeRange{Start: b.StartTime, End: b.EndTime}
}
