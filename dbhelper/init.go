package dbhelper

import (
	"fmt"
	"time"

	"stylestudioapi/config"
	"stylestudioapi/models"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// AllModels is the migration order; referenced tables come first.
var AllModels = []interface{}{
	&models.UserAccount{},
	&models.UserPushToken{},
	&models.CatalogueBlob{},
	&models.PersonPhoto{},
	&models.StudioSession{},
	&models.ClassifyingItem{},
	&models.TryOnBatch{},
	&models.TryOnResult{},
}

func SetupDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(300)
	sqlDB.SetConnMaxLifetime(time.Minute * 5)

	if err := MigrateAll(db); err != nil {
		return nil, err
	}
	return db, nil
}

// SetupTestDB opens a private in-memory sqlite database with the full schema.
func SetupTestDB() *gorm.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		panic(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		panic(err)
	}
	// one connection keeps the shared cache database alive and serializes writers
	sqlDB.SetMaxOpenConns(1)
	if err := MigrateAll(db); err != nil {
		panic(err)
	}
	return db
}

func MigrateAll(db *gorm.DB) error {
	for _, model := range AllModels {
		if err := Migrate(db, model); err != nil {
			return err
		}
	}
	return nil
}
