// Package db owns the persistent clipboard history: schema, identity,
// dedup, trim, expiry and stats. All other packages pass through it.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/stashd/stash/internal/config"
	stasherr "github.com/stashd/stash/internal/errors"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Open opens (and creates if needed) the history database at path.
// WAL journaling and a busy timeout are set in the connection string so
// they apply to every pooled connection; the daemon and short-lived CLI
// processes share the file through SQLite's own lock discipline.
func Open(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, stasherr.NewIo("create state directory", err)
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	database, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, stasherr.NewIo("open database", err)
	}

	if err := verifyWALMode(database); err != nil {
		database.Close()
		return nil, mapSQLiteError(path, err)
	}

	if err := migrate(database); err != nil {
		database.Close()
		return nil, mapSQLiteError(path, err)
	}

	// History may hold anything the user copied; keep it private.
	_ = os.Chmod(path, 0600)

	return database, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(database *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		database.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		database.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// migrate applies schema migrations based on user_version.
func migrate(database *sql.DB) error {
	version, err := userVersion(database)
	if err != nil {
		return err
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS entries (
		  id           INTEGER PRIMARY KEY AUTOINCREMENT,
		  created_at   INTEGER NOT NULL,
		  mime         TEXT NOT NULL,
		  payload      BLOB NOT NULL,
		  preview      TEXT NOT NULL,
		  source_app   TEXT,
		  ttl_seconds  INTEGER,
		  is_expired   INTEGER NOT NULL DEFAULT 0,
		  content_hash BLOB NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_active
		ON entries(is_expired, id DESC);

		CREATE INDEX IF NOT EXISTS idx_entries_hash
		ON entries(content_hash);
		`
		if _, err := database.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := setUserVersion(database, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(database *sql.DB) error {
	var journalMode string
	if err := database.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

func userVersion(database *sql.DB) (int, error) {
	var version int
	if err := database.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("get user_version: %w", err)
	}
	return version, nil
}

func setUserVersion(database *sql.DB, version int) error {
	if _, err := database.Exec(fmt.Sprintf("PRAGMA user_version=%d", version)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// mapSQLiteError classifies driver errors into store error kinds.
func mapSQLiteError(path string, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "file is not a database"),
		strings.Contains(msg, "database disk image is malformed"):
		return stasherr.NewStoreCorrupt(path, err)
	case strings.Contains(msg, "database or disk is full"):
		return stasherr.NewStoreFull(err)
	case strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "SQLITE_BUSY"):
		return stasherr.NewStoreBusy(err)
	default:
		return stasherr.NewIo("database", err)
	}
}
