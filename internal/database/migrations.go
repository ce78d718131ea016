package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	SQL     string
}

// GetMigrations returns all available migrations in order
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_text_samples_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS text_samples (
					id TEXT PRIMARY KEY,
					description TEXT NOT NULL,
					text TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_text_samples_created_at ON text_samples (created_at);
			`,
		},
		{
			Version: 2,
			Name:    "create_tokens_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS tokens (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					token TEXT NOT NULL UNIQUE CHECK (length(token) >= 1),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
		{
			Version: 3,
			Name:    "create_chunk_tables",
			SQL: `
				-- Character chunks. seq and prefix hold varint-encoded atom sequences;
				-- prefix is seq without its last atom and drives next-chunk lookup.
				CREATE TABLE IF NOT EXISTS word_chunks (
					sample_id TEXT NOT NULL,
					size INTEGER NOT NULL CHECK (size >= 1),
					seq BLOB NOT NULL,
					prefix BLOB NOT NULL,
					count INTEGER NOT NULL CHECK (count >= 1),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (sample_id, size, seq)
				);

				CREATE INDEX IF NOT EXISTS idx_word_chunks_prefix ON word_chunks (sample_id, size, prefix);

				-- Token chunks; atoms are token ids.
				CREATE TABLE IF NOT EXISTS sentence_chunks (
					sample_id TEXT NOT NULL,
					size INTEGER NOT NULL CHECK (size >= 1),
					seq BLOB NOT NULL,
					prefix BLOB NOT NULL,
					count INTEGER NOT NULL CHECK (count >= 1),
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (sample_id, size, seq)
				);

				CREATE INDEX IF NOT EXISTS idx_sentence_chunks_prefix ON sentence_chunks (sample_id, size, prefix);
			`,
		},
		{
			Version: 4,
			Name:    "create_settings_table",
			SQL: `
				CREATE TABLE IF NOT EXISTS settings (
					var TEXT PRIMARY KEY,
					value TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);
			`,
		},
	}
}

// RunMigrations executes all pending migrations
func RunMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	currentVersion, err := getCurrentVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range GetMigrations() {
		if migration.Version <= currentVersion {
			continue
		}

		if err := runMigration(db, migration); err != nil {
			return fmt.Errorf("failed to run migration %d (%s): %w", migration.Version, migration.Name, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);
	`)
	return err
}

// CurrentVersion returns the highest applied migration version.
func CurrentVersion(db *sql.DB) (int, error) {
	return getCurrentVersion(db)
}

func getCurrentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		if strings.Contains(err.Error(), "no such table: schema_migrations") {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

// runMigration executes a single migration
func runMigration(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(migration.SQL); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		migration.Version, migration.Name,
	); err != nil {
		return err
	}

	return tx.Commit()
}

// ConfigureDatabase applies SQLite optimizations and runs migrations
func ConfigureDatabase(db *sql.DB) error {
	// SQLite serializes writes; WAL lets a few readers run alongside.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=10000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply pragma '%s': %w", pragma, err)
		}
	}

	if err := RunMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Open opens the SQLite database at path, configures it and brings the schema
// up to date.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := ConfigureDatabase(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}
	return db, nil
}

// Optimize runs PRAGMA optimize and, when vacuum is set, VACUUM.
func Optimize(ctx context.Context, db *sql.DB, vacuum bool) error {
	if _, err := db.ExecContext(ctx, "PRAGMA optimize"); err != nil {
		return fmt.Errorf("failed to optimize database: %w", err)
	}
	if vacuum {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			return fmt.Errorf("failed to vacuum database: %w", err)
		}
	}
	return nil
}
