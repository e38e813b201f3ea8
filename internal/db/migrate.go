package db

import (
	"fmt"

	"github.com/setlistapp/setlist/internal/models"
	"gorm.io/gorm"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.Event{},
		&models.Answer{},
		&models.Swipe{},
		&models.Request{},
		&models.UpsellClick{},
		&models.PhoneSession{},
		&models.AnalyticsEvent{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}
