package database

import (
	"fmt"
	"log"
	"time"

	"github.com/ReconquistaDigital/MemberHub/app/models"
	"github.com/ReconquistaDigital/MemberHub/internal/pkg/env"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

var DB *gorm.DB

// SetupDatabase opens the MySQL connection and migrates the pipeline tables.
// TranslateError maps driver duplicate-key errors to gorm.ErrDuplicatedKey,
// which the provisioning service relies on for its race handling.
func SetupDatabase() {
	var err error
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)

	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.Open(dsn), &gorm.Config{
			TranslateError: true,
		})
		if err == nil {
			DB.AutoMigrate(
				&models.Account{},
				&models.Purchase{},
				&models.AccessGrant{},
				&models.MagicLinkToken{},
				&models.WebhookEvent{},
			)
			return
		}

		log.Printf("Failed to connect to database (try %d/%d): %v", i+1, maxRetries, err)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}

// GetDB returns the shared GORM handle.
func GetDB() *gorm.DB {
	return DB
}

// SetDB swaps the shared handle, used by tests to inject a stub connection.
func SetDB(db *gorm.DB) {
	DB = db
}
