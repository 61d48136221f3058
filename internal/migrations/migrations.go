// Package migrations runs the numbered SQL files under /migrations
// against a MySQL production database, adapted from the teacher's
// internal/migrations/migrations.go. The server itself does not call this
// runner: config.InitializeServices applies the schema with GORM
// AutoMigrate (internal/store, internal/db) at every boot, and the
// in-memory SQLite test harness uses the same path.
package migrations

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/blameazu/minesweeper/internal/db"
)

// RunMigrations executes all pending migrations in dir against cfg.
func RunMigrations(cfg db.Config, dir string) error {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&multiStatements=true",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("migrations: connect: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("migrations: ping: %w", err)
	}
	log.Println("[MIGRATIONS] connected")

	if err := ensureMigrationsTable(sqlDB); err != nil {
		return fmt.Errorf("migrations: create schema_migrations: %w", err)
	}

	applied, err := getAppliedMigrations(sqlDB)
	if err != nil {
		return fmt.Errorf("migrations: list applied: %w", err)
	}

	files, err := getMigrationFiles(dir)
	if err != nil {
		return fmt.Errorf("migrations: list files: %w", err)
	}

	pending := 0
	for _, filename := range files {
		name := strings.TrimSuffix(filename, ".sql")
		if applied[name] {
			log.Printf("[MIGRATIONS] %s already applied, skipping", name)
			continue
		}

		log.Printf("[MIGRATIONS] applying %s", name)
		content, err := os.ReadFile(filepath.Join(dir, filename))
		if err != nil {
			return fmt.Errorf("migrations: read %s: %w", filename, err)
		}
		if _, err := sqlDB.Exec(string(content)); err != nil {
			return fmt.Errorf("migrations: exec %s: %w", name, err)
		}
		if err := recordMigration(sqlDB, name); err != nil {
			return fmt.Errorf("migrations: record %s: %w", name, err)
		}
		log.Printf("[MIGRATIONS] applied %s", name)
		pending++
	}

	if pending == 0 {
		log.Println("[MIGRATIONS] no pending migrations")
	} else {
		log.Printf("[MIGRATIONS] applied %d migration(s)", pending)
	}
	return nil
}

func ensureMigrationsTable(sqlDB *sql.DB) error {
	_, err := sqlDB.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			migration_name VARCHAR(255) UNIQUE NOT NULL,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4
	`)
	return err
}

func getAppliedMigrations(sqlDB *sql.DB) (map[string]bool, error) {
	rows, err := sqlDB.Query("SELECT migration_name FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}
	return applied, rows.Err()
}

func getMigrationFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

func recordMigration(sqlDB *sql.DB, name string) error {
	_, err := sqlDB.Exec("INSERT INTO schema_migrations (migration_name) VALUES (?)", name)
	return err
}
