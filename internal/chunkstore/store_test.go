package chunkstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunkchain/internal/database"
	"chunkchain/internal/ngram"
)

func newSQLite(t *testing.T, table Table) *SQLite {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "chunks.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewSQLite(db, table)
	require.NoError(t, err)
	return store
}

func storesUnderTest(t *testing.T) map[string]Store {
	cached, err := NewCached(NewMemory(), 16)
	require.NoError(t, err)
	return map[string]Store{
		"memory":          NewMemory(),
		"sqlite_word":     newSQLite(t, WordChunks),
		"sqlite_sentence": newSQLite(t, SentenceChunks),
		"cached":          cached,
	}
}

// rowsFor counts every window of text at size k, the way analysis does.
func rowsFor(t *testing.T, sampleID, text string, k int) []ngram.Chunk {
	t.Helper()
	rows, err := ngram.Chunks(ngram.Count(ngram.FromRunes(text), k), sampleID, k)
	require.NoError(t, err)
	return rows
}

func atomsOf(chunks []ngram.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = string(c.Atoms.Runes())
	}
	return out
}

func TestStore_UpsertAndFind(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.UpsertBatch(ctx, rowsFor(t, "s1", "ant ant ", 4)))

			chunks, err := store.FindBySampleAndSize(ctx, "s1", 4)
			require.NoError(t, err)
			require.Len(t, chunks, 4)

			counts := make(map[string]int)
			for _, c := range chunks {
				assert.Equal(t, "s1", c.SampleID)
				assert.Equal(t, 4, c.Size)
				counts[string(c.Atoms.Runes())] = c.Count
			}
			assert.Equal(t, map[string]int{"ant ": 2, "nt a": 1, "t an": 1, " ant": 1}, counts)

			none, err := store.FindBySampleAndSize(ctx, "s1", 3)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestStore_FindByPrefix(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.UpsertBatch(ctx, rowsFor(t, "s1", "abacad", 2)))

			chunks, err := store.FindBySampleSizeAndPrefix(ctx, "s1", 2, ngram.FromRunes("a"))
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"ab", "ac", "ad"}, atomsOf(chunks))

			chunks, err = store.FindBySampleSizeAndPrefix(ctx, "s1", 2, ngram.FromRunes("d"))
			require.NoError(t, err)
			assert.Empty(t, chunks)

			chunks, err = store.FindBySampleSizeAndPrefix(ctx, "other", 2, ngram.FromRunes("a"))
			require.NoError(t, err)
			assert.Empty(t, chunks)
		})
	}
}

func TestStore_OrderedByKey(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, store.UpsertBatch(ctx, rowsFor(t, "s1", "zyxabc", 2)))

			chunks, err := store.FindBySampleAndSize(ctx, "s1", 2)
			require.NoError(t, err)
			require.NotEmpty(t, chunks)
			for i := 1; i < len(chunks); i++ {
				assert.Less(t, string(chunks[i-1].Key()), string(chunks[i].Key()))
			}
		})
	}
}

func TestStore_UpsertReplacesCount(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			row := ngram.Chunk{SampleID: "s1", Size: 2, Atoms: ngram.FromRunes("ab"), Count: 1}
			require.NoError(t, store.UpsertBatch(ctx, []ngram.Chunk{row}))

			row.Count = 7
			require.NoError(t, store.UpsertBatch(ctx, []ngram.Chunk{row}))

			chunks, err := store.FindBySampleAndSize(ctx, "s1", 2)
			require.NoError(t, err)
			require.Len(t, chunks, 1)
			assert.Equal(t, 7, chunks[0].Count)
		})
	}
}

func TestStore_RejectsInvalidBatchWithoutWriting(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rows := []ngram.Chunk{
				{SampleID: "s1", Size: 2, Atoms: ngram.FromRunes("ab"), Count: 1},
				{SampleID: "s1", Size: 2, Atoms: ngram.FromRunes("abc"), Count: 1},
			}
			err := store.UpsertBatch(ctx, rows)
			assert.ErrorIs(t, err, ErrInvalidChunk)

			exists, err := store.ExistsForSample(ctx, "s1")
			require.NoError(t, err)
			assert.False(t, exists)

			err = store.UpsertBatch(ctx, []ngram.Chunk{{SampleID: "s1", Size: 1, Atoms: ngram.FromRunes("a"), Count: 0}})
			assert.ErrorIs(t, err, ErrInvalidChunk)
		})
	}
}

func TestStore_ExistsAndDelete(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			exists, err := store.ExistsForSample(ctx, "s1")
			require.NoError(t, err)
			assert.False(t, exists)

			require.NoError(t, store.UpsertBatch(ctx, rowsFor(t, "s1", "hello", 2)))
			require.NoError(t, store.UpsertBatch(ctx, rowsFor(t, "s1", "hello", 3)))
			require.NoError(t, store.UpsertBatch(ctx, rowsFor(t, "s2", "hello", 2)))

			exists, err = store.ExistsForSample(ctx, "s1")
			require.NoError(t, err)
			assert.True(t, exists)

			sizes, err := store.SizesForSample(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, map[int]int{2: 4, 3: 3}, sizes)

			require.NoError(t, store.DeleteAllForSample(ctx, "s1"))

			exists, err = store.ExistsForSample(ctx, "s1")
			require.NoError(t, err)
			assert.False(t, exists)

			chunks, err := store.FindBySampleAndSize(ctx, "s1", 2)
			require.NoError(t, err)
			assert.Empty(t, chunks)

			// Other samples are untouched.
			chunks, err = store.FindBySampleAndSize(ctx, "s2", 2)
			require.NoError(t, err)
			assert.Len(t, chunks, 4)

			assert.NoError(t, store.Close())
		})
	}
}

func TestStore_TokenIDAtoms(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			stream := ngram.FromIDs([]int64{1, 2, 3, 2, 3, 900000})
			rows, err := ngram.Chunks(ngram.Count(stream, 3), "s1", 3)
			require.NoError(t, err)
			require.NoError(t, store.UpsertBatch(ctx, rows))

			chunks, err := store.FindBySampleSizeAndPrefix(ctx, "s1", 3, ngram.FromIDs([]int64{2, 3}))
			require.NoError(t, err)
			require.Len(t, chunks, 2)
			lasts := []ngram.Atom{chunks[0].Last(), chunks[1].Last()}
			assert.ElementsMatch(t, []ngram.Atom{2, 900000}, lasts)
		})
	}
}

func TestNewSQLite_UnknownTable(t *testing.T) {
	_, err := NewSQLite(nil, Table("tokens"))
	assert.Error(t, err)
}

func TestCached_PurgesOnWrite(t *testing.T) {
	ctx := context.Background()
	cached, err := NewCached(NewMemory(), 0)
	require.NoError(t, err)

	require.NoError(t, cached.UpsertBatch(ctx, rowsFor(t, "s1", "abab", 2)))

	_, err = cached.FindBySampleSizeAndPrefix(ctx, "s1", 2, ngram.FromRunes("a"))
	require.NoError(t, err)
	_, err = cached.FindBySampleAndSize(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Len())

	// A repeated lookup is served from the cache.
	_, err = cached.FindBySampleAndSize(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Len())

	require.NoError(t, cached.DeleteAllForSample(ctx, "s1"))
	assert.Equal(t, 0, cached.Len())

	chunks, err := cached.FindBySampleAndSize(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

// writeDuringLoad deletes the sample through the cache while the first
// size lookup is still loading.
type writeDuringLoad struct {
	*Memory
	cached *Cached
	once   sync.Once
}

func (w *writeDuringLoad) FindBySampleAndSize(ctx context.Context, sampleID string, size int) ([]ngram.Chunk, error) {
	chunks, err := w.Memory.FindBySampleAndSize(ctx, sampleID, size)
	w.once.Do(func() {
		err = errors.Join(err, w.cached.DeleteAllForSample(ctx, sampleID))
	})
	return chunks, err
}

func TestCached_SkipsLoadOverlappingWrite(t *testing.T) {
	ctx := context.Background()
	inner := &writeDuringLoad{Memory: NewMemory()}
	cached, err := NewCached(inner, 0)
	require.NoError(t, err)
	inner.cached = cached

	require.NoError(t, cached.UpsertBatch(ctx, rowsFor(t, "s1", "abab", 2)))

	stale, err := cached.FindBySampleAndSize(ctx, "s1", 2)
	require.NoError(t, err)
	assert.NotEmpty(t, stale)
	assert.Equal(t, 0, cached.Len())

	chunks, err := cached.FindBySampleAndSize(ctx, "s1", 2)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}
