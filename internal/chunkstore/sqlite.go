package chunkstore

import (
	"context"
	"database/sql"
	"fmt"

	"chunkchain/internal/ngram"
)

// Table names one of the chunk tables created by the database migrations.
type Table string

const (
	WordChunks     Table = "word_chunks"
	SentenceChunks Table = "sentence_chunks"
)

// SQLite stores chunks in one chunk table of an already migrated database.
// Sequences and prefixes are stored as encoded keys, so next-chunk lookups
// are an indexed equality match on prefix.
type SQLite struct {
	db    *sql.DB
	table Table
}

// NewSQLite returns a store over table.
func NewSQLite(db *sql.DB, table Table) (*SQLite, error) {
	switch table {
	case WordChunks, SentenceChunks:
	default:
		return nil, fmt.Errorf("chunkstore: unknown chunk table %q", table)
	}
	return &SQLite{db: db, table: table}, nil
}

// UpsertBatch writes all rows in one transaction.
func (s *SQLite) UpsertBatch(ctx context.Context, rows []ngram.Chunk) error {
	if err := validate(rows); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO `+string(s.table)+` (sample_id, size, seq, prefix, count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (sample_id, size, seq) DO UPDATE SET count = excluded.count`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx,
			row.SampleID, row.Size, []byte(row.Key()), []byte(row.Prefix().Key()), row.Count); err != nil {
			return fmt.Errorf("failed to insert chunk: %w", err)
		}
	}

	return tx.Commit()
}

// FindBySampleAndSize returns all chunks of one size.
func (s *SQLite) FindBySampleAndSize(ctx context.Context, sampleID string, size int) ([]ngram.Chunk, error) {
	return s.query(ctx, sampleID, size,
		`SELECT seq, count FROM `+string(s.table)+` WHERE sample_id = ? AND size = ? ORDER BY seq`,
		sampleID, size)
}

// FindBySampleSizeAndPrefix returns the chunks continuing prefix.
func (s *SQLite) FindBySampleSizeAndPrefix(ctx context.Context, sampleID string, size int, prefix ngram.Sequence) ([]ngram.Chunk, error) {
	return s.query(ctx, sampleID, size,
		`SELECT seq, count FROM `+string(s.table)+` WHERE sample_id = ? AND size = ? AND prefix = ? ORDER BY seq`,
		sampleID, size, []byte(prefix.Key()))
}

func (s *SQLite) query(ctx context.Context, sampleID string, size int, query string, args ...any) ([]ngram.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []ngram.Chunk
	for rows.Next() {
		var seq []byte
		var count int
		if err := rows.Scan(&seq, &count); err != nil {
			return nil, err
		}
		atoms, err := ngram.Key(seq).Sequence()
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, ngram.Chunk{
			SampleID: sampleID,
			Size:     size,
			Atoms:    atoms,
			Count:    count,
		})
	}
	return chunks, rows.Err()
}

// ExistsForSample reports whether the sample has any chunk.
func (s *SQLite) ExistsForSample(ctx context.Context, sampleID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM `+string(s.table)+` WHERE sample_id = ? LIMIT 1`, sampleID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteAllForSample removes every chunk of the sample.
func (s *SQLite) DeleteAllForSample(ctx context.Context, sampleID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+string(s.table)+` WHERE sample_id = ?`, sampleID)
	return err
}

// SizesForSample counts distinct chunks per size.
func (s *SQLite) SizesForSample(ctx context.Context, sampleID string) (map[int]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT size, COUNT(*) FROM `+string(s.table)+` WHERE sample_id = ? GROUP BY size`, sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sizes := make(map[int]int)
	for rows.Next() {
		var size, n int
		if err := rows.Scan(&size, &n); err != nil {
			return nil, err
		}
		sizes[size] = n
	}
	return sizes, rows.Err()
}

// Close is a no-op; the database belongs to the caller.
func (s *SQLite) Close() error {
	return nil
}
