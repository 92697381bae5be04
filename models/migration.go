package models

import (
	"log"

	"bitbucket.org/mmdatafocus/docs_backend/config"
)

// MigrateTable runs AutoMigrate for every persisted model. Disabled on
// startup via SKIP_MIGRATIONS when schema changes must run as a separate
// job.
func MigrateTable() {
	db := config.GetDB()
	err := db.AutoMigrate(
		&DocumentRecord{},
		&Entity{},
		&ActivityLog{},
	)
	if err != nil {
		log.Printf("auto-migration failed: %v", err)
	}
}
