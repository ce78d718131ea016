package registry

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// queryBatchSize bounds the number of placeholders in one IN (...) clause.
const queryBatchSize = 500

// SQLiteStore keeps tokens in the tokens table created by the database
// migrations.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// InsertMissing inserts every new text inside one transaction.
func (s *SQLiteStore) InsertMissing(ctx context.Context, texts []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO tokens (token) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range texts {
		if _, err := stmt.ExecContext(ctx, t); err != nil {
			return fmt.Errorf("failed to insert token: %w", err)
		}
	}

	return tx.Commit()
}

// IDsFor looks up texts in batches.
func (s *SQLiteStore) IDsFor(ctx context.Context, texts []string) (map[string]int64, error) {
	result := make(map[string]int64, len(texts))
	for start := 0; start < len(texts); start += queryBatchSize {
		end := min(start+queryBatchSize, len(texts))
		batch := texts[start:end]

		args := make([]any, len(batch))
		for i, t := range batch {
			args[i] = t
		}
		query := `SELECT id, token FROM tokens WHERE token IN (` + placeholders(len(batch)) + `)`
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id int64
			var text string
			if err := rows.Scan(&id, &text); err != nil {
				rows.Close()
				return nil, err
			}
			result[text] = id
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// TextsFor looks up IDs in batches.
func (s *SQLiteStore) TextsFor(ctx context.Context, ids []int64) (map[int64]string, error) {
	result := make(map[int64]string, len(ids))
	for start := 0; start < len(ids); start += queryBatchSize {
		end := min(start+queryBatchSize, len(ids))
		batch := ids[start:end]

		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		query := `SELECT id, token FROM tokens WHERE id IN (` + placeholders(len(batch)) + `)`
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id int64
			var text string
			if err := rows.Scan(&id, &text); err != nil {
				rows.Close()
				return nil, err
			}
			result[id] = text
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// Count returns the number of stored tokens.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tokens`).Scan(&n)
	return n, err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
