package samples

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrSampleNotFound is returned for an unknown sample id.
	ErrSampleNotFound = errors.New("sample not found")
	// ErrInvalidSample is returned when a description or text is empty.
	ErrInvalidSample = errors.New("invalid sample")
)

// Sample is a source text that chunks are built from.
type Sample struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Text        string    `json:"text"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks the required fields.
func (s *Sample) Validate() error {
	if strings.TrimSpace(s.Description) == "" {
		return fmt.Errorf("%w: description is required", ErrInvalidSample)
	}
	if s.Text == "" {
		return fmt.Errorf("%w: text is required", ErrInvalidSample)
	}
	if !utf8.ValidString(s.Text) {
		return fmt.Errorf("%w: text is not valid UTF-8", ErrInvalidSample)
	}
	return nil
}

// Store keeps samples in the text_samples table.
type Store struct {
	db *sql.DB
}

// NewStore returns a Store over a migrated database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create validates and inserts a new sample with a fresh id.
func (s *Store) Create(ctx context.Context, description, text string) (*Sample, error) {
	now := time.Now().UTC()
	sample := &Sample{
		ID:          uuid.New().String(),
		Description: strings.TrimSpace(description),
		Text:        text,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := sample.Validate(); err != nil {
		return nil, err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO text_samples (id, description, text, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, sample.ID, sample.Description, sample.Text, sample.CreatedAt, sample.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create sample: %w", err)
	}
	return sample, nil
}

// Get returns the sample with id.
func (s *Store) Get(ctx context.Context, id string) (*Sample, error) {
	var sample Sample
	err := s.db.QueryRowContext(ctx, `
		SELECT id, description, text, created_at, updated_at
		FROM text_samples WHERE id = ?
	`, id).Scan(&sample.ID, &sample.Description, &sample.Text, &sample.CreatedAt, &sample.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrSampleNotFound, id)
		}
		return nil, fmt.Errorf("failed to get sample: %w", err)
	}
	return &sample, nil
}

// List returns every sample, oldest first.
func (s *Store) List(ctx context.Context) ([]Sample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, description, text, created_at, updated_at
		FROM text_samples ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list samples: %w", err)
	}
	defer rows.Close()

	var out []Sample
	for rows.Next() {
		var sample Sample
		if err := rows.Scan(&sample.ID, &sample.Description, &sample.Text, &sample.CreatedAt, &sample.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}

// Update saves a changed description and text. Chunks built from the old
// text stay until the sample is analysed again.
func (s *Store) Update(ctx context.Context, sample *Sample) error {
	if err := sample.Validate(); err != nil {
		return err
	}
	sample.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE text_samples SET description = ?, text = ?, updated_at = ? WHERE id = ?
	`, sample.Description, sample.Text, sample.UpdatedAt, sample.ID)
	if err != nil {
		return fmt.Errorf("failed to update sample: %w", err)
	}
	return requireRow(res, sample.ID)
}

// Delete removes the sample record. Its chunks are removed by the corpus
// service.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM text_samples WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete sample: %w", err)
	}
	return requireRow(res, id)
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSampleNotFound, id)
	}
	return nil
}
