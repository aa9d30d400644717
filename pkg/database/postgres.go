package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"mailwatch/config"
	"mailwatch/internal/domain/emaillog"
	"mailwatch/internal/settings"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Connect(cfg *config.Config) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatalf("Failed to get generic database object: %v", err)
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connection established")
}

func Close() {
	if DB == nil {
		return
	}
	if sqlDB, err := DB.DB(); err == nil {
		sqlDB.Close()
	}
}

func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// AutoMigrate creates/updates the tracking tables.
func AutoMigrate() error {
	return DB.AutoMigrate(
		&emaillog.EmailLog{},
		&emaillog.EmailEvent{},
		&settings.Setting{},
	)
}

// ApplyRawMigrations reads .sql files from the migrations directory and executes them.
// This is a simple implementation for executing extensions/types migrations.
func ApplyRawMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) == ".sql" {
			path := filepath.Join(migrationsDir, file.Name())
			content, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read migration file %s: %w", file.Name(), err)
			}

			log.Printf("Applying migration: %s", file.Name())
			if err := DB.Exec(string(content)).Error; err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", file.Name(), err)
			}
		}
	}
	return nil
}

// RunFullMigration applies raw SQL migrations followed by the gorm schema.
func RunFullMigration(migrationsDir string) error {
	if err := ApplyRawMigrations(migrationsDir); err != nil {
		return err
	}
	return AutoMigrate()
}

func TableExists(table string) (bool, error) {
	return DB.Migrator().HasTable(table), nil
}

func GetTableCount(table string) (int64, error) {
	var count int64
	err := DB.Table(table).Count(&count).Error
	return count, err
}

func HealthCheck() error {
	var one int
	return DB.Raw("SELECT 1").Scan(&one).Error
}
