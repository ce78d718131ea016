package chunkstore

import (
	"context"
	"slices"
	"sort"
	"sync"

	"chunkchain/internal/ngram"
)

type sizeKey struct {
	sampleID string
	size     int
}

// table holds the chunks of one (sample, size) pair plus the prefix index
// used for continuation lookups.
type table struct {
	rows     map[ngram.Key]ngram.Chunk
	byPrefix map[ngram.Key][]ngram.Key
}

func newTable() *table {
	return &table{
		rows:     make(map[ngram.Key]ngram.Chunk),
		byPrefix: make(map[ngram.Key][]ngram.Key),
	}
}

func (t *table) put(row ngram.Chunk) {
	key := row.Key()
	if _, ok := t.rows[key]; !ok {
		prefix := row.Prefix().Key()
		t.byPrefix[prefix] = append(t.byPrefix[prefix], key)
	}
	t.rows[key] = row
}

func (t *table) collect(keys []ngram.Key) []ngram.Chunk {
	sorted := slices.Clone(keys)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	out := make([]ngram.Chunk, len(sorted))
	for i, k := range sorted {
		out[i] = t.rows[k]
	}
	return out
}

// Memory is an in-memory chunk store.
type Memory struct {
	mu     sync.RWMutex
	tables map[sizeKey]*table
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{tables: make(map[sizeKey]*table)}
}

// UpsertBatch validates every row before touching any table.
func (m *Memory) UpsertBatch(ctx context.Context, rows []ngram.Chunk) error {
	if err := validate(rows); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range rows {
		row.Atoms = slices.Clone(row.Atoms)
		k := sizeKey{row.SampleID, row.Size}
		t, ok := m.tables[k]
		if !ok {
			t = newTable()
			m.tables[k] = t
		}
		t.put(row)
	}
	return nil
}

// FindBySampleAndSize returns all chunks of one size.
func (m *Memory) FindBySampleAndSize(ctx context.Context, sampleID string, size int) ([]ngram.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[sizeKey{sampleID, size}]
	if !ok {
		return nil, nil
	}
	keys := make([]ngram.Key, 0, len(t.rows))
	for k := range t.rows {
		keys = append(keys, k)
	}
	return t.collect(keys), nil
}

// FindBySampleSizeAndPrefix answers from the prefix index.
func (m *Memory) FindBySampleSizeAndPrefix(ctx context.Context, sampleID string, size int, prefix ngram.Sequence) ([]ngram.Chunk, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tables[sizeKey{sampleID, size}]
	if !ok {
		return nil, nil
	}
	keys := t.byPrefix[prefix.Key()]
	if len(keys) == 0 {
		return nil, nil
	}
	return t.collect(keys), nil
}

// ExistsForSample reports whether the sample has any chunk.
func (m *Memory) ExistsForSample(ctx context.Context, sampleID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, t := range m.tables {
		if k.sampleID == sampleID && len(t.rows) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// DeleteAllForSample drops every table of the sample.
func (m *Memory) DeleteAllForSample(ctx context.Context, sampleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.tables {
		if k.sampleID == sampleID {
			delete(m.tables, k)
		}
	}
	return nil
}

// SizesForSample counts distinct chunks per size.
func (m *Memory) SizesForSample(ctx context.Context, sampleID string) (map[int]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sizes := make(map[int]int)
	for k, t := range m.tables {
		if k.sampleID == sampleID {
			sizes[k.size] = len(t.rows)
		}
	}
	return sizes, nil
}

// Close is a no-op for memory storage.
func (m *Memory) Close() error {
	return nil
}
