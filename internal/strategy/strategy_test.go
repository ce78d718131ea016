package strategy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chunkchain/internal/chunkstore"
	"chunkchain/internal/ngram"
	"chunkchain/internal/registry"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Name
		wantErr bool
	}{
		{"", CharacterChunks, false},
		{"word_chunk", CharacterChunks, false},
		{" sentence_chunk ", TokenChunks, false},
		{"paragraph_chunk", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew(t *testing.T) {
	s, err := New(CharacterChunks, nil)
	require.NoError(t, err)
	assert.Equal(t, chunkstore.WordChunks, s.Table())

	_, err = New(TokenChunks, nil)
	assert.Error(t, err)

	s, err = New(TokenChunks, registry.New(registry.NewMemoryStore()))
	require.NoError(t, err)
	assert.Equal(t, TokenChunks, s.Name())
	assert.Equal(t, chunkstore.SentenceChunks, s.Table())

	_, err = New(Name("nope"), nil)
	assert.Error(t, err)
}

func TestCharacters_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := Characters{}
	text := "héllo, wörld"

	atoms, err := s.Atoms(ctx, text)
	require.NoError(t, err)
	assert.Len(t, atoms, s.Count(text))

	out, err := s.Render(ctx, atoms)
	require.NoError(t, err)
	assert.Equal(t, text, out)
}

func TestTokens_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := New(TokenChunks, registry.New(registry.NewMemoryStore()))
	require.NoError(t, err)
	text := "The cat sat.  On the mat!"

	atoms, err := s.Atoms(ctx, text)
	require.NoError(t, err)
	assert.Len(t, atoms, s.Count(text))

	out, err := s.Render(ctx, atoms)
	require.NoError(t, err)
	assert.Equal(t, text, out)
}

func TestTokens_RenderUnknownID(t *testing.T) {
	s, err := New(TokenChunks, registry.New(registry.NewMemoryStore()))
	require.NoError(t, err)

	_, err = s.Render(context.Background(), ngram.FromIDs([]int64{42}))
	assert.ErrorIs(t, err, registry.ErrUnknownToken)
}
