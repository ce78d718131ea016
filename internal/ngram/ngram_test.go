package ngram

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	batches [][]Chunk
	failOn  int
}

func (s *recordingSink) UpsertBatch(_ context.Context, rows []Chunk) error {
	if s.failOn > 0 && len(s.batches)+1 == s.failOn {
		return errors.New("disk full")
	}
	s.batches = append(s.batches, rows)
	return nil
}

func countsBySequence(t *testing.T, counts map[Key]int) map[string]int {
	t.Helper()
	out := make(map[string]int, len(counts))
	for k, c := range counts {
		seq, err := k.Sequence()
		require.NoError(t, err)
		out[seq.String()] = c
	}
	return out
}

func TestCount_TokenStream(t *testing.T) {
	counts := Count(Sequence{1, 2, 1, 2}, 2)

	assert.Equal(t, map[string]int{"[1 2]": 2, "[2 1]": 1}, countsBySequence(t, counts))
}

func TestCount_Characters(t *testing.T) {
	tests := []struct {
		text string
		k    int
		want map[string]int
	}{
		{"at", 2, map[string]int{"at": 1}},
		{"!!!", 2, map[string]int{"!!": 2}},
		{"ant ant ", 4, map[string]int{"ant ": 2, "nt a": 1, "t an": 1, " ant": 1}},
	}

	for _, tt := range tests {
		counts := Count(FromRunes(tt.text), tt.k)
		got := make(map[string]int)
		for k, c := range counts {
			seq, err := k.Sequence()
			require.NoError(t, err)
			got[string(seq.Runes())] = c
		}
		assert.Equal(t, tt.want, got, "text %q", tt.text)
	}
}

func TestCount_Undersized(t *testing.T) {
	assert.Nil(t, Count(Sequence{1}, 2))
	assert.Nil(t, Count(Sequence{1, 2}, 0))
}

func TestCount_SumEqualsWindowCount(t *testing.T) {
	texts := []string{"The rain in Spain falls mainly on the plain.", "aaaaaaa", "ab", "mice"}
	for _, text := range texts {
		stream := FromRunes(text)
		for k := 1; k <= 8; k++ {
			counts := Count(stream, k)
			if len(stream) < k {
				assert.Nil(t, counts)
				continue
			}
			total := 0
			for _, c := range counts {
				total += c
			}
			assert.Equal(t, len(stream)-k+1, total, "text %q size %d", text, k)
		}
	}
}

func TestKey_RoundTrip(t *testing.T) {
	seq := Sequence{0, 1, -5, 300, 1 << 40}
	got, err := seq.Key().Sequence()
	require.NoError(t, err)
	assert.True(t, seq.Equal(got))

	_, err = Key([]byte{0x80}).Sequence()
	assert.Error(t, err)
}

func TestChunk_PrefixAndLast(t *testing.T) {
	c := Chunk{Atoms: Sequence{4, 5, 6}}
	assert.Equal(t, Sequence{4, 5}, c.Prefix())
	assert.Equal(t, Atom(6), c.Last())
	assert.Equal(t, Sequence{5, 6}, c.Atoms.Tail(2))
}

func TestSizeRange(t *testing.T) {
	r := DefaultSizeRange()
	assert.Equal(t, []int{2, 3, 4, 5, 6, 7, 8}, r.Sizes())
	assert.NoError(t, r.Validate())
	assert.True(t, r.Contains(8))
	assert.False(t, r.Contains(9))

	assert.ErrorIs(t, SizeRange{Min: 0, Max: 3}.Validate(), ErrInvalidSize)
	assert.ErrorIs(t, SizeRange{Min: 4, Max: 3}.Validate(), ErrInvalidSize)
}

func TestIndexer_SkipsUndersizedSizes(t *testing.T) {
	sink := &recordingSink{}
	ix := NewIndexer(sink)

	summaries, err := ix.Index(context.Background(), FromRunes("At"), "s1", []int{2, 3, 4})
	require.NoError(t, err)

	require.Len(t, sink.batches, 1)
	assert.Equal(t, []SizeSummary{{Size: 2, Windows: 1, Unique: 1}}, summaries)
	row := sink.batches[0][0]
	assert.Equal(t, "s1", row.SampleID)
	assert.Equal(t, 2, row.Size)
	assert.Equal(t, 1, row.Count)
}

func TestIndexer_OneBatchPerSize(t *testing.T) {
	sink := &recordingSink{}
	ix := NewIndexer(sink)

	_, err := ix.Index(context.Background(), Sequence{1, 2, 1, 2}, "s1", []int{2, 3})
	require.NoError(t, err)

	require.Len(t, sink.batches, 2)
	assert.Len(t, sink.batches[0], 2)
	assert.Len(t, sink.batches[1], 2)
	for _, batch := range sink.batches {
		total := 0
		for _, row := range batch {
			total += row.Count
		}
		assert.Equal(t, 4-batch[0].Size+1, total)
	}
}

func TestIndexer_SaveEach(t *testing.T) {
	sink := &recordingSink{}
	ix := NewIndexer(sink, WithSaveStrategy(SaveEach))

	_, err := ix.Index(context.Background(), Sequence{1, 2, 3}, "s1", []int{2})
	require.NoError(t, err)

	assert.Len(t, sink.batches, 2)
	for _, batch := range sink.batches {
		assert.Len(t, batch, 1)
	}
}

func TestIndexer_StopsOnError(t *testing.T) {
	sink := &recordingSink{failOn: 2}
	ix := NewIndexer(sink)

	summaries, err := ix.Index(context.Background(), Sequence{1, 2, 3, 4}, "s1", []int{2, 3, 4})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Len(t, summaries, 1)
	assert.Len(t, sink.batches, 1)
}

func TestIndexer_RejectsInvalidSize(t *testing.T) {
	ix := NewIndexer(&recordingSink{})
	_, err := ix.Index(context.Background(), Sequence{1, 2}, "s1", []int{0})
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestNewIndexer_PanicsOnUnknownSaveStrategy(t *testing.T) {
	assert.PanicsWithValue(t,
		`ngram: InvalidStrategyParameter: unknown save strategy "bogus"`,
		func() { NewIndexer(&recordingSink{}, WithSaveStrategy("bogus")) })
}

func TestParseSaveStrategy(t *testing.T) {
	s, err := ParseSaveStrategy("")
	require.NoError(t, err)
	assert.Equal(t, SaveInsertAll, s)

	s, err = ParseSaveStrategy("each")
	require.NoError(t, err)
	assert.Equal(t, SaveEach, s)

	_, err = ParseSaveStrategy("create!")
	assert.Error(t, err)
}
