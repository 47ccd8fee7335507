package db

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"speakup/internal/config"
	"speakup/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to Postgres when DATABASE_URL is set, otherwise to a local SQLite file,
// and migrates the schema.
func Open(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return OpenSQLite(cfg.DatabasePath)
	}

	log.Printf("[DB] Connecting to PostgreSQL")
	conn, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{
		Logger: newLogger(os.Stdout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// OpenSQLite opens (creating if needed) a SQLite database file and migrates it.
func OpenSQLite(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	log.Printf("[DB] Opening SQLite database at %s", path)
	conn, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), &gorm.Config{
		Logger: newLogger(os.Stdout),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sqlite handle: %w", err)
	}
	// SQLite doesn't support multiple writers
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(conn); err != nil {
		return nil, err
	}
	return conn, nil
}

// newLogger reports slow queries and errors. Missing rows are an expected
// lookup outcome and are not logged.
func newLogger(out io.Writer) logger.Interface {
	return logger.New(log.New(out, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// Migrate creates or updates every table the service owns.
func Migrate(conn *gorm.DB) error {
	err := conn.AutoMigrate(
		&model.User{},
		&model.Scenario{},
		&model.Conversation{},
		&model.Message{},
		&model.Evaluation{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
