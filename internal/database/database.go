package database

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/safecli/safecli/internal/logger"
	"github.com/safecli/safecli/internal/models"
)

// Connect opens the SQLite database at dbPath, applies WAL and a busy timeout so
// concurrent handlers wait on the writer lock instead of failing, and migrates
// the schema.
func Connect(dbPath string) (*gorm.DB, error) {
	db, err := Open(withPragmas(dbPath))
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Open bootstraps a SQLite database using the provided DSN without migrating.
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	return db, nil
}

// Migrate creates or updates the tables for every persisted model.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func withPragmas(dbPath string) string {
	if strings.Contains(dbPath, "?") {
		return dbPath
	}
	return dbPath + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
}

// newGormLogger routes gorm's warnings and errors through logrus. Missing rows are
// an expected lookup outcome and are not logged.
func newGormLogger() gormlogger.Interface {
	return gormlogger.New(logger.Log().WithField("component", "gorm"), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}
