package chunkstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"chunkchain/internal/ngram"
)

// DefaultCacheEntries is the default number of cached lookups.
const DefaultCacheEntries = 4096

type lookupKey struct {
	sampleID string
	size     int
	prefix   ngram.Key
	all      bool
}

// Cached wraps a Store with an LRU cache of read lookups. Any write purges
// the cache, so cached results never outlive the rows they came from.
// A lookup whose load overlapped a write is returned but not cached.
type Cached struct {
	Store
	lookups *lru.Cache[lookupKey, []ngram.Chunk]

	mu         sync.Mutex
	generation uint64
}

// NewCached wraps store with a cache of up to entries lookups.
func NewCached(store Store, entries int) (*Cached, error) {
	if entries <= 0 {
		entries = DefaultCacheEntries
	}
	cache, err := lru.New[lookupKey, []ngram.Chunk](entries)
	if err != nil {
		return nil, fmt.Errorf("failed to create chunk cache: %w", err)
	}
	return &Cached{Store: store, lookups: cache}, nil
}

// Len returns the number of cached lookups.
func (c *Cached) Len() int {
	return c.lookups.Len()
}

func (c *Cached) UpsertBatch(ctx context.Context, rows []ngram.Chunk) error {
	c.invalidate()
	defer c.invalidate()
	return c.Store.UpsertBatch(ctx, rows)
}

func (c *Cached) DeleteAllForSample(ctx context.Context, sampleID string) error {
	c.invalidate()
	defer c.invalidate()
	return c.Store.DeleteAllForSample(ctx, sampleID)
}

// invalidate runs on both sides of a write so a load that started before
// the write finished sees a new generation.
func (c *Cached) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.lookups.Purge()
}

func (c *Cached) FindBySampleAndSize(ctx context.Context, sampleID string, size int) ([]ngram.Chunk, error) {
	return c.lookup(lookupKey{sampleID: sampleID, size: size, all: true}, func() ([]ngram.Chunk, error) {
		return c.Store.FindBySampleAndSize(ctx, sampleID, size)
	})
}

func (c *Cached) FindBySampleSizeAndPrefix(ctx context.Context, sampleID string, size int, prefix ngram.Sequence) ([]ngram.Chunk, error) {
	key := lookupKey{sampleID: sampleID, size: size, prefix: prefix.Key()}
	return c.lookup(key, func() ([]ngram.Chunk, error) {
		return c.Store.FindBySampleSizeAndPrefix(ctx, sampleID, size, prefix)
	})
}

func (c *Cached) lookup(key lookupKey, load func() ([]ngram.Chunk, error)) ([]ngram.Chunk, error) {
	if chunks, ok := c.lookups.Get(key); ok {
		return slices.Clone(chunks), nil
	}
	c.mu.Lock()
	start := c.generation
	c.mu.Unlock()

	chunks, err := load()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generation == start {
		c.lookups.Add(key, chunks)
	}
	c.mu.Unlock()
	return slices.Clone(chunks), nil
}
