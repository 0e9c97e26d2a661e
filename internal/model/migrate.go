package model

import "gorm.io/gorm"

// AutoMigrate migrates every scheduling entity.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Walker{},
		&Service{},
		&WalkerService{},
		&Location{},
		&WorkingHours{},
		&Block{},
		&RecurringBookingSeries{},
		&Booking{},
		&TravelCacheEntry{},
		&Event{},
	)
}
