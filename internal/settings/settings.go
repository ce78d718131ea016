// Package settings stores user-adjustable generation defaults. A stored value
// takes precedence over the configured default of the same name.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// KeyChunkSize holds "all" or a positive chunk size.
	KeyChunkSize = "chunk_size"
	// KeyOutputSize holds a positive output length.
	KeyOutputSize = "output_size"
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidValue   = errors.New("invalid setting value")
)

// Keys lists the known settings.
func Keys() []string {
	return []string{KeyChunkSize, KeyOutputSize}
}

// Validate checks value for key.
func Validate(key, value string) error {
	value = strings.TrimSpace(value)
	switch key {
	case KeyChunkSize:
		if strings.EqualFold(value, "all") {
			return nil
		}
		return positive(key, value)
	case KeyOutputSize:
		return positive(key, value)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSetting, key)
	}
}

func positive(key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return fmt.Errorf("%w: %s must be a positive integer, got %q", ErrInvalidValue, key, value)
	}
	return nil
}

// Store reads and writes the settings table.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store over a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Get returns the stored value of key and whether it is set.
func (s *Store) Get(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE var = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	if !value.Valid || value.String == "" {
		return "", false, nil
	}
	return value.String, true, nil
}

// Set validates and stores value for key.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := Validate(key, value); err != nil {
		return err
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (var, value, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (var) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, strings.ToLower(strings.TrimSpace(value)), now, now)
	if err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}

// Unset removes key so the configured default applies again.
func (s *Store) Unset(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM settings WHERE var = ?`, key); err != nil {
		return fmt.Errorf("failed to delete setting %s: %w", key, err)
	}
	return nil
}

// All returns every stored setting.
func (s *Store) All(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT var, value FROM settings WHERE value IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		out[key] = value
	}
	return out, rows.Err()
}
