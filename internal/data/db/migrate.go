package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/charity-iap-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		// Purchases and their donation ledger
		&types.Charity{},
		&types.Purchase{},
		&types.CharityDonation{},

		// Reporting
		&types.MonthlyReport{},

		// Job queue
		&types.JobRun{},
		&types.JobRunEvent{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
