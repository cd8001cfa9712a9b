package database

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"bazaar-chat/config"
	"bazaar-chat/internal/domain/conversation"
	"bazaar-chat/internal/domain/event"
	"bazaar-chat/internal/domain/message"
	"bazaar-chat/internal/domain/offer"
)

var DB *gorm.DB

func Connect(cfg *config.Config) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
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
		_ = sqlDB.Close()
	}
}

func Ping() error {
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// ApplyRawMigrations reads .sql files from the migrations directory and
// executes them in lexical order. Used for extensions, types and constraints
// that AutoMigrate cannot express.
func ApplyRawMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if filepath.Ext(file.Name()) != ".sql" {
			continue
		}
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
	return nil
}

// AutoMigrateTables creates/updates the core tables from the domain structs.
func AutoMigrateTables() error {
	return DB.AutoMigrate(
		&conversation.Conversation{},
		&conversation.Participant{},
		&conversation.ConversationSequence{},
		&message.Message{},
		&offer.Offer{},
		&event.OutboxEvent{},
	)
}

// RunFullMigration applies raw SQL migrations followed by AutoMigrate.
func RunFullMigration(migrationsDir string) error {
	if err := ApplyRawMigrations(migrationsDir); err != nil {
		return err
	}
	return AutoMigrateTables()
}

func TableExists(table string) (bool, error) {
	var exists bool
	err := DB.Raw(
		"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = ?)",
		table,
	).Scan(&exists).Error
	return exists, err
}

func TableCount(table string) (int64, error) {
	var count int64
	err := DB.Table(table).Count(&count).Error
	return count, err
}

func DropAllTables() error {
	tables := []string{
		"outbox_events",
		"offers",
		"messages",
		"conversation_sequences",
		"participants",
		"conversations",
	}
	for _, table := range tables {
		if err := DB.Exec("DROP TABLE IF EXISTS " + table + " CASCADE").Error; err != nil {
			return err
		}
	}
	return nil
}
