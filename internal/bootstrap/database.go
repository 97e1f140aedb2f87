package bootstrap

import (
	"fmt"

	"gorm.io/gorm"

	"academypay/internal/models"
)

// MigrateAndSeed ensures the payment tables exist.
func MigrateAndSeed(db *gorm.DB) error {
	if err := db.AutoMigrate(allModels()...); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}

func allModels() []interface{} {
	return []interface{}{
		// Bookings are owned by the booking service; only the payment columns are mapped.
		&models.Booking{},
		&models.Payment{},
		// Debit orders
		&models.DebitOrderMandate{},
		&models.DebitOrderTransaction{},
	}
}
