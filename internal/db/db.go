package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/ecapsule/internal/config"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 2

// FileName is the database file inside the base directory.
const FileName = "dev.db"

// Init initializes the SQLite database at baseDir/dev.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.ecapsule.
func Init(baseDir string) (*sql.DB, error) {
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Pragmas in the connection string apply to every pooled connection.
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0600)

	return db, nil
}

// ConfigurePool applies connection pool settings from config.
// Only sets limits if explicitly configured (non-zero values).
func ConfigurePool(db *sql.DB, cfg *config.Config) {
	if cfg == nil {
		return
	}
	if cfg.DBMaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	}
	if cfg.DBMaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	}
}

// schemaV1 is the initial schema.
const schemaV1 = `
	CREATE TABLE IF NOT EXISTS users (
	  id            TEXT PRIMARY KEY,
	  email         TEXT NOT NULL,
	  name          TEXT NOT NULL,
	  password_hash TEXT NOT NULL,
	  created_at    INTEGER NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email
	ON users(email);

	CREATE TABLE IF NOT EXISTS tokens (
	  token      TEXT PRIMARY KEY,
	  user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	  created_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS capsules (
	  id          TEXT PRIMARY KEY,
	  owner_id    TEXT NOT NULL REFERENCES users(id),
	  title       TEXT NOT NULL,
	  description TEXT NOT NULL,
	  opening_at  INTEGER NOT NULL,
	  vision      TEXT NOT NULL,
	  privacy     TEXT NOT NULL,
	  design      TEXT NOT NULL,
	  created_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_capsules_owner_created
	ON capsules(owner_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS capsule_images (
	  capsule_id TEXT NOT NULL REFERENCES capsules(id) ON DELETE CASCADE,
	  position   INTEGER NOT NULL,
	  file_name  TEXT NOT NULL,
	  media_type TEXT NOT NULL,
	  data       BLOB NOT NULL,
	  caption    TEXT NOT NULL DEFAULT '',
	  PRIMARY KEY (capsule_id, position)
	);

	CREATE TABLE IF NOT EXISTS capsule_shares (
	  capsule_id TEXT NOT NULL REFERENCES capsules(id) ON DELETE CASCADE,
	  position   INTEGER NOT NULL,
	  user_id    TEXT NOT NULL REFERENCES users(id),
	  PRIMARY KEY (capsule_id, user_id)
	);
	`

// schemaV2 gives each share an id and an answer, and records who added an image.
// Existing shares get ids derived from their capsule and position.
const schemaV2 = `
	ALTER TABLE capsule_shares ADD COLUMN id TEXT NOT NULL DEFAULT '';
	ALTER TABLE capsule_shares ADD COLUMN status TEXT NOT NULL DEFAULT 'pending';
	ALTER TABLE capsule_shares ADD COLUMN updated_at INTEGER NOT NULL DEFAULT 0;
	UPDATE capsule_shares SET id = capsule_id || '-' || position WHERE id = '';

	CREATE UNIQUE INDEX IF NOT EXISTS idx_capsule_shares_id
	ON capsule_shares(id);

	CREATE INDEX IF NOT EXISTS idx_capsule_shares_user_status
	ON capsule_shares(user_id, status);

	ALTER TABLE capsule_images ADD COLUMN added_by TEXT NOT NULL DEFAULT '';
	`

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		if _, err := db.Exec(schemaV1); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Migration 1 -> 2: share ids and answers, contributed images
	if version < 2 {
		if _, err := db.Exec(schemaV2); err != nil {
			return fmt.Errorf("migration 2 failed: %w", err)
		}
		if err := SetUserVersion(db, 2); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 3 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
