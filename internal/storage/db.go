package storage

import (
	"fmt"
	"strings"

	"chatgogo/minichat/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the database behind driver. The client keeps its history
// in SQLite; the server keeps accounts in PostgreSQL. Both go through gorm.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("storage: unsupported driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", driver, err)
	}

	// Every pooled connection to ":memory:" would see its own empty database.
	if driver == DriverSQLite && strings.Contains(dsn, ":memory:") {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("storage: sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// MigrateClient creates the tables of the local client store.
func MigrateClient(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Message{}, &models.Contact{}, &models.Room{}); err != nil {
		return fmt.Errorf("storage: migrate client schema: %w", err)
	}
	return nil
}

// MigrateServer creates the tables of the server account store.
func MigrateServer(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}); err != nil {
		return fmt.Errorf("storage: migrate server schema: %w", err)
	}
	return nil
}
