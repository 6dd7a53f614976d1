package database

import (
	"fmt"
	"time"

	"go-stock-analytics/internal/config"
	"go-stock-analytics/internal/model"
	"go-stock-analytics/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Connect opens the Postgres pool described by cfg
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: true, // pgbouncer transaction mode has no prepared statements
	}), &gorm.Config{
		Logger:      logger.NewGormLogger(log, logger.GormLevel(cfg.LogLevel), time.Second),
		PrepareStmt: false,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	log.Info("database connection established", zap.String("host", cfg.Host), zap.String("db", cfg.DBName))
	return db, nil
}

// Models lists every table owned by the service
func Models() []interface{} {
	return []interface{}{
		&model.Merchant{},
		&model.Product{},
		&model.Variant{},
		&model.Order{},
		&model.LineItem{},
		&model.InventoryAnalytics{},
	}
}

// Migrate creates or updates the schema
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
