package registry

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunkchain/internal/database"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStore(db)
}

func storesUnderTest(t *testing.T) map[string]Store {
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": newSQLiteStore(t),
	}
}

func TestRegistry_RoundTrip(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			reg := New(store)

			ids, err := reg.Intern(ctx, []string{"a", "b", "a"})
			require.NoError(t, err)
			require.Len(t, ids, 3)
			assert.Equal(t, ids[0], ids[2])
			assert.NotEqual(t, ids[0], ids[1])

			texts, err := reg.Resolve(ctx, ids)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "a"}, texts)
		})
	}
}

func TestRegistry_InternIsStable(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			first, err := New(store).Intern(ctx, []string{"the", " ", "hat"})
			require.NoError(t, err)

			// A fresh registry over the same store sees the same IDs.
			second, err := New(store).Intern(ctx, []string{"hat", "the"})
			require.NoError(t, err)
			assert.Equal(t, []int64{first[2], first[0]}, second)
		})
	}
}

func TestRegistry_DuplicatesInsertedOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := New(store).Intern(ctx, []string{"the", "hat", "hat"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.Len())

	_, err = New(store).Intern(ctx, []string{"the", "cat"})
	require.NoError(t, err)
	assert.Equal(t, 3, store.Len())
}

func TestRegistry_SQLiteCount(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	_, err := New(store).Intern(ctx, []string{"the", " ", "hat", " ", "hat"})
	require.NoError(t, err)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestRegistry_ResolveUnknownID(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			_, err := New(store).Resolve(context.Background(), []int64{9999})
			require.Error(t, err)

			var unknown *UnknownTokenError
			require.True(t, errors.As(err, &unknown))
			assert.True(t, unknown.ByID)
			assert.Equal(t, int64(9999), unknown.ID)
			assert.ErrorIs(t, err, ErrUnknownToken)
			assert.Contains(t, err.Error(), "reanalyse")
		})
	}
}

func TestRegistry_LookupUnknownText(t *testing.T) {
	ctx := context.Background()
	reg := New(NewMemoryStore())

	_, err := reg.Intern(ctx, []string{"the", " ", "hat"})
	require.NoError(t, err)

	ids, err := reg.Lookup(ctx, []string{"the", " ", "hat", " ", "hat"})
	require.NoError(t, err)
	assert.Len(t, ids, 5)
	assert.Equal(t, ids[1], ids[3])

	_, err = reg.Lookup(ctx, []string{"the", " ", "cat"})
	var unknown *UnknownTokenError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "cat", unknown.Text)
	assert.False(t, unknown.ByID)
}

func TestSQLiteStore_LargeBatch(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	texts := make([]string, 1200)
	for i := range texts {
		texts[i] = string(rune('a'+i%26)) + string(rune('A'+i/26))
	}
	ids, err := New(store).Intern(ctx, texts)
	require.NoError(t, err)

	resolved, err := New(store).Resolve(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, texts, resolved)
}
