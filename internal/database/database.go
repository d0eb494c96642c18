package database

import (
	"errors"
	"fmt"

	"fundhub/config"
	"fundhub/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB opens the ledger store. "mysql" is the production driver; "sqlite"
// (pure Go) is used for local runs and tests.
func NewDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "sqlite":
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Error), // Only log errors, not every SQL query
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.Driver == "sqlite" {
		// one writer; in-memory databases also live only as long as their connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, nil
}

// AutoMigrate runs Gorm auto-migration for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Wallet{},
		&models.Transaction{},
		&models.Order{},
		&models.OrderItem{},
		&models.Product{},
		&models.InterestConfig{},
		&models.InterestHistoryEntry{},
		&models.Notification{},
	)
}

// SeedInterestConfig creates the singleton interest config from defaults
// when it does not exist yet. An existing row is left untouched.
func SeedInterestConfig(db *gorm.DB, cfg *config.InterestConfig) error {
	var existing models.InterestConfig
	err := db.First(&existing, 1).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	dailyRate, err := decimal.NewFromString(cfg.DailyRate)
	if err != nil {
		return fmt.Errorf("interest.daily_rate: %w", err)
	}
	minBalance, err := decimal.NewFromString(cfg.MinBalance)
	if err != nil {
		return fmt.Errorf("interest.min_balance: %w", err)
	}
	return db.Create(&models.InterestConfig{
		ID:         1,
		DailyRate:  dailyRate,
		MinBalance: minBalance,
		Tiers:      models.InterestTiers{},
		UpdatedBy:  "system",
	}).Error
}
