package db

import (
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"relaydesk/internal/auth"
	"relaydesk/pkg/models"
)

// NewDatabase creates a new database connection
func NewDatabase() (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		os.Getenv("DB_SSLMODE"),
	)

	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	}

	db, err := gorm.Open(postgres.Open(dsn), config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// AutoMigrate runs database migrations using GORM
func AutoMigrate(db *gorm.DB) error {
	log.Info().Msg("running GORM AutoMigrate")

	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		log.Warn().Err(err).Msg("could not create uuid-ossp extension")
	}

	if err := db.AutoMigrate(models.GetAllModels()...); err != nil {
		return fmt.Errorf("failed to run GORM AutoMigrate: %w", err)
	}

	if err := createCustomIndexes(db); err != nil {
		log.Warn().Err(err).Msg("failed to create some custom indexes")
	}
	return nil
}

// createCustomIndexes creates any custom indexes that GORM might not handle
func createCustomIndexes(db *gorm.DB) error {
	indexes := []string{
		// History reads are always (user, created_at) ordered.
		`CREATE INDEX IF NOT EXISTS idx_messages_user_created ON messages (end_user_id, created_at)`,
	}

	for _, idx := range indexes {
		if err := db.Exec(idx).Error; err != nil {
			log.Warn().Err(err).Str("index", idx).Msg("failed to create index")
		}
	}
	return nil
}

// SeedInitialData creates the first operator account when none exists,
// from OPERATOR_EMAIL, OPERATOR_PASSWORD and OPERATOR_TELEGRAM_ID.
func SeedInitialData(db *gorm.DB) error {
	var count int64
	if err := db.Model(&models.Operator{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count operators: %w", err)
	}
	if count > 0 {
		return nil
	}

	email := os.Getenv("OPERATOR_EMAIL")
	password := os.Getenv("OPERATOR_PASSWORD")
	telegramID := envInt64("OPERATOR_TELEGRAM_ID")
	if email == "" || password == "" || telegramID == 0 {
		log.Warn().Msg("no operators exist and OPERATOR_* variables are not set, skipping seed")
		return nil
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash operator password: %w", err)
	}

	op := models.Operator{
		TelegramID: telegramID,
		Email:      email,
		Password:   hash,
		Name:       "Administrator",
		Role:       models.RoleAdminAccount,
		IsActive:   true,
	}
	if err := db.Create(&op).Error; err != nil {
		return fmt.Errorf("failed to create initial operator: %w", err)
	}

	log.Info().Str("email", email).Int64("telegram_id", telegramID).Msg("initial operator created")
	return nil
}

// RunMigrations is the main migration function called from main.go
func RunMigrations(db *gorm.DB) error {
	if err := AutoMigrate(db); err != nil {
		return fmt.Errorf("AutoMigrate failed: %w", err)
	}
	if err := SeedInitialData(db); err != nil {
		return fmt.Errorf("initial data seeding failed: %w", err)
	}
	return nil
}

func envInt64(key string) int64 {
	v, _ := strconv.ParseInt(os.Getenv(key), 10, 64)
	return v
}
