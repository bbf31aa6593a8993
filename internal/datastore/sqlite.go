package datastore

import (
	"fmt"
	"path/filepath"

	"github.com/campuskit/faceroll/internal/conf"
	"github.com/campuskit/faceroll/internal/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements Interface for SQLite
type SQLiteStore struct {
	DataStore
	Settings *conf.Settings
}

func validateSQLiteConfig(settings *conf.Settings) error {
	if settings.Output.SQLite.Path == "" {
		return errors.Newf("SQLite database path is empty").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Context("operation", "validate_sqlite_config").
			Build()
	}
	return nil
}

// Open sets up the SQLite database connection and runs migrations.
func (store *SQLiteStore) Open() error {
	if err := validateSQLiteConfig(store.Settings); err != nil {
		return err // validateSQLiteConfig returns a properly formatted error
	}

	dir, fileName := filepath.Split(store.Settings.Output.SQLite.Path)
	basePath := conf.GetBasePath(dir)
	absoluteFilePath := filepath.Join(basePath, fileName)

	// Several recognition sessions share the camera and can race their
	// attendance commits. WAL plus a busy timeout lets a losing writer wait
	// for the winner instead of failing with SQLITE_BUSY.
	dsn := absoluteFilePath + "?_busy_timeout=5000&_journal_mode=WAL"

	// Create a new GORM logger wired to the datastore metrics
	newLogger := createGormLogger(store.getMetrics())

	// Open the SQLite database
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: newLogger})
	if err != nil {
		getLogger().Error("Failed to open SQLite database",
			"path", absoluteFilePath,
			"error", err)
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store.DB = db
	return performAutoMigration(db, store.Settings.Debug, "SQLite", absoluteFilePath)
}

// Close releases the SQLite database connection.
func (store *SQLiteStore) Close() error {
	if store.DB == nil {
		return nil
	}

	store.StopMonitoring()

	sqlDB, err := store.DB.DB()
	if err != nil {
		getLogger().Error("Failed to retrieve generic DB object", "error", err)
		return err
	}

	if err := sqlDB.Close(); err != nil {
		getLogger().Error("Failed to close SQLite database", "error", err)
		return err
	}

	if store.Settings.Debug {
		getLogger().Debug("SQLite database connection closed successfully")
	}
	return nil
}
