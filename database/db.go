package database

import (
	"fmt"

	"github.com/chxlky/squadbooster/internal/models"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Init opens the SQLite database at dbPath and migrates the schema.
func Init(dbPath string) (*gorm.DB, error) {
	dbFile := sqlite.Open(dbPath + "?_foreign_keys=on&_busy_timeout=5000")
	db, err := gorm.Open(dbFile, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	// SQLite allows a single writer; one pooled connection serialises
	// transactions instead of surfacing SQLITE_BUSY to callers.
	sqlDB.SetMaxOpenConns(1)

	if err := Migrate(db); err != nil {
		return nil, err
	}

	zap.L().Info("Database initialised and migrated successfully", zap.String("path", dbPath))

	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Ritual{}, &models.RetroCard{}, &models.Action{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}
