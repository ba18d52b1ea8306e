package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fleetway/fleetway/internal/domain"
)

// Open connects to the configured store. TranslateError is on so uniqueness
// violations surface as gorm.ErrDuplicatedKey regardless of driver.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

// Migrate applies the schema and seeds the protected default group.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.Account{},
		&domain.Group{},
		&domain.Membership{},
		&domain.Session{},
		&domain.UsedBackupCode{},
	); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return seedDefaultGroup(db)
}

func seedDefaultGroup(db *gorm.DB) error {
	var existing domain.Group
	err := db.Where("name = ?", domain.DefaultGroupName).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	now := time.Now().UTC()
	return db.Create(&domain.Group{
		ID:          uuid.NewString(),
		Name:        domain.DefaultGroupName,
		Description: "Baseline group for every non-elevated account",
		RequireTOTP: false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}).Error
}
