package repository

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fleetway/fleetway/internal/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestMigrateSeedsDefaultGroup(t *testing.T) {
	db := newTestDB(t)

	var group domain.Group
	if err := db.Where("name = ?", domain.DefaultGroupName).First(&group).Error; err != nil {
		t.Fatalf("default group not seeded: %v", err)
	}
	if group.RequireTOTP {
		t.Fatal("default group must not mandate totp")
	}

	// Re-running migration must not duplicate the seed.
	if err := Migrate(db); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	var n int64
	if err := db.Model(&domain.Group{}).Where("name = ?", domain.DefaultGroupName).Count(&n).Error; err != nil {
		t.Fatalf("count default groups: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 default group, got %d", n)
	}
}
