// Package db wraps the GORM connection used as the service's durable store.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps *gorm.DB so the rest of the service depends on a concrete type
// rather than the interface, matching the teacher's db.DB{*sql.DB} shape.
type DB struct {
	*gorm.DB
}

// Config holds connection parameters for the relational store.
type Config struct {
	Driver   string // "mysql" or "sqlite"
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	// DSN, when set, is used verbatim instead of assembling one from the
	// discrete fields above (mirrors DATABASE_URL taking precedence).
	DSN string
}

// New opens the configured store and verifies connectivity.
func New(cfg Config) (*DB, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite", "":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = cfg.DBName
		}
		if dsn == "" {
			dsn = "file::memory:?mode=memory&cache=shared"
		}
		dialector = sqlite.Open(dsn)
	case "mysql":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4",
				cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)
		}
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("db: unknown driver %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("db: underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("db: ping: %w", err)
	}

	return &DB{gdb}, nil
}

// AutoMigrate creates/updates the schema for every model the store owns.
// It is the only schema step the server runs at boot (via Store.Migrate)
// and what the in-memory SQLite test harness relies on; the numbered SQL
// runner in internal/migrations is not called by the server.
func (d *DB) AutoMigrate(models ...interface{}) error {
	return d.DB.AutoMigrate(models...)
}
