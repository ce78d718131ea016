package ngram

import (
	"context"
	"fmt"

	"chunkchain/internal/logger"
)

// Sink receives the chunk rows built for one (sample, size) pair.
type Sink interface {
	UpsertBatch(ctx context.Context, rows []Chunk) error
}

// SaveStrategy selects how rows reach the Sink.
type SaveStrategy string

const (
	// SaveInsertAll writes every row for a size in one atomic batch.
	SaveInsertAll SaveStrategy = "insert_all"
	// SaveEach writes rows one at a time. Much slower; a failure part way
	// leaves earlier rows behind for the caller to clean up.
	SaveEach SaveStrategy = "each"
)

// ParseSaveStrategy validates a configured strategy name.
func ParseSaveStrategy(s string) (SaveStrategy, error) {
	switch SaveStrategy(s) {
	case "", SaveInsertAll:
		return SaveInsertAll, nil
	case SaveEach:
		return SaveEach, nil
	default:
		return "", fmt.Errorf("unknown save strategy %q", s)
	}
}

// Indexer builds frequency tables over a stream and persists them.
type Indexer struct {
	sink     Sink
	strategy SaveStrategy
	logger   logger.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithSaveStrategy overrides the default SaveInsertAll.
func WithSaveStrategy(s SaveStrategy) Option {
	return func(ix *Indexer) { ix.strategy = s }
}

// WithLogger sets the indexer logger.
func WithLogger(l logger.Logger) Option {
	return func(ix *Indexer) { ix.logger = l }
}

// NewIndexer returns an Indexer writing to sink. An unknown save strategy is
// a programming error and panics.
func NewIndexer(sink Sink, opts ...Option) *Indexer {
	ix := &Indexer{
		sink:     sink,
		strategy: SaveInsertAll,
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	if ix.strategy != SaveInsertAll && ix.strategy != SaveEach {
		panic(invalidStrategy(ix.strategy))
	}
	return ix
}

// SizeSummary reports what was indexed for one chunk size.
type SizeSummary struct {
	Size    int `json:"size"`
	Windows int `json:"windows"`
	Unique  int `json:"unique"`
}

// Index counts every window of each requested size over stream and saves the
// result tagged with sampleID. Sizes larger than the stream are skipped. The
// first error stops indexing; sizes already saved are left for the caller to
// remove.
func (ix *Indexer) Index(ctx context.Context, stream Sequence, sampleID string, sizes []int) ([]SizeSummary, error) {
	var summaries []SizeSummary
	for _, k := range sizes {
		if k < 1 {
			return summaries, fmt.Errorf("%w: %d", ErrInvalidSize, k)
		}
		if len(stream) < k {
			ix.logger.Debug("skipping undersized chunk size", "sample", sampleID, "size", k, "atoms", len(stream))
			continue
		}
		if err := ctx.Err(); err != nil {
			return summaries, err
		}

		rows, err := Chunks(Count(stream, k), sampleID, k)
		if err != nil {
			return summaries, err
		}
		if err := ix.save(ctx, rows); err != nil {
			return summaries, fmt.Errorf("failed to save size %d chunks for sample %s: %w", k, sampleID, err)
		}

		summaries = append(summaries, SizeSummary{
			Size:    k,
			Windows: len(stream) - k + 1,
			Unique:  len(rows),
		})
		ix.logger.Debug("indexed chunk size", "sample", sampleID, "size", k, "unique", len(rows))
	}
	return summaries, nil
}

func (ix *Indexer) save(ctx context.Context, rows []Chunk) error {
	switch ix.strategy {
	case SaveInsertAll:
		return ix.sink.UpsertBatch(ctx, rows)
	case SaveEach:
		for _, row := range rows {
			if err := ix.sink.UpsertBatch(ctx, []Chunk{row}); err != nil {
				return err
			}
		}
		return nil
	default:
		panic(invalidStrategy(ix.strategy))
	}
}

func invalidStrategy(s SaveStrategy) string {
	return fmt.Sprintf("ngram: InvalidStrategyParameter: unknown save strategy %q", s)
}
