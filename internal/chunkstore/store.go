package chunkstore

import (
	"context"
	"errors"
	"fmt"

	"chunkchain/internal/ngram"
)

// ErrInvalidChunk is returned when a row's atoms do not match its size or its
// count is below 1.
var ErrInvalidChunk = errors.New("chunkstore: invalid chunk")

// Store persists chunk rows for one strategy.
type Store interface {
	// UpsertBatch stores rows atomically: readers see all of them or none.
	// Re-upserting a (sample, size, sequence) row replaces its count.
	UpsertBatch(ctx context.Context, rows []ngram.Chunk) error

	// FindBySampleAndSize returns every chunk of one size for a sample,
	// ordered by sequence key.
	FindBySampleAndSize(ctx context.Context, sampleID string, size int) ([]ngram.Chunk, error)

	// FindBySampleSizeAndPrefix returns the chunks whose first size-1 atoms
	// equal prefix, ordered by sequence key.
	FindBySampleSizeAndPrefix(ctx context.Context, sampleID string, size int, prefix ngram.Sequence) ([]ngram.Chunk, error)

	// ExistsForSample reports whether any chunk was ever built for a sample.
	ExistsForSample(ctx context.Context, sampleID string) (bool, error)

	// DeleteAllForSample removes every chunk of a sample.
	DeleteAllForSample(ctx context.Context, sampleID string) error

	// SizesForSample returns the number of distinct chunks per size.
	SizesForSample(ctx context.Context, sampleID string) (map[int]int, error)

	Close() error
}

func validate(rows []ngram.Chunk) error {
	for _, row := range rows {
		if row.Size < 1 || len(row.Atoms) != row.Size {
			return fmt.Errorf("%w: %d atoms for size %d", ErrInvalidChunk, len(row.Atoms), row.Size)
		}
		if row.Count < 1 {
			return fmt.Errorf("%w: count %d", ErrInvalidChunk, row.Count)
		}
		if row.SampleID == "" {
			return fmt.Errorf("%w: missing sample id", ErrInvalidChunk)
		}
	}
	return nil
}
