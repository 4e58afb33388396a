// database/migrate.go - Database Migration Runner
package database

import (
	"log"
	"typerush/models"

	"gorm.io/gorm"
)

// Migrate runs all schema migrations.
func Migrate(db *gorm.DB) error {
	log.Println("🔄 Running database migrations...")

	if err := db.AutoMigrate(
		&models.User{},
		&models.Result{},
		&models.Reward{},
		&models.PaymentEvent{},
	); err != nil {
		return err
	}

	createIndexes(db)

	log.Println("✅ Migrations completed")
	return nil
}

func createIndexes(db *gorm.DB) {
	// Result indexes: history feed and personal-best lookups
	db.Exec("CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at DESC)")
	db.Exec("CREATE INDEX IF NOT EXISTS idx_results_user_wpm ON results(user_id, wpm DESC)")

	// Reward indexes: per-user earnings aggregation
	db.Exec("CREATE INDEX IF NOT EXISTS idx_rewards_user ON rewards(user_id)")
}
