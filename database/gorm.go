package database

import (
	"fmt"
	"os"

	"github.com/cacheops/cachectl/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the shared database handle. It stays nil when DATABASE_URL is
// unset: history recording is optional and everything else works
// without it.
var DB *gorm.DB

// Connect opens the rollout history database when DATABASE_URL is set
// and migrates the schema. Returns false when history is disabled.
func Connect() (bool, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return false, nil
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return false, fmt.Errorf("failed to connect to history database: %v", err)
	}

	if err := db.AutoMigrate(&models.RolloutRecord{}); err != nil {
		return false, fmt.Errorf("failed to migrate history schema: %v", err)
	}

	DB = db
	return true, nil
}
