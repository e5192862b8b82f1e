// manage.go: schema migration shared by both database backends.
package datastore

import (
	"fmt"
	"log"

	"gorm.io/gorm"
)

// performAutoMigration automates database migrations with error handling.
func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	err := db.AutoMigrate(
		&Book{},
		&PageRun{},
		&LineRun{},
		&CharacterRun{},
		&Spread{},
		&Page{},
		&Line{},
		&CharacterClass{},
		&BreakageType{},
		&Character{},
		&User{},
		&CharacterGrouping{},
	)
	if err != nil {
		return fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)
	}

	if debug {
		log.Printf("%s database connection initialized: %s", dbType, connectionInfo)
	}

	return nil
}

// Migrate applies the full schema to an already-open database. Used by tests
// and the seed command, which manage their own connections.
func Migrate(db *gorm.DB) error {
	return performAutoMigration(db, false, "SQLite", "external")
}
