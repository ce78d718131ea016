// Package strategy defines how a sample's text becomes a stream of atoms and
// how generated atoms become text again.
package strategy

import (
	"context"
	"fmt"
	"strings"

	"chunkchain/internal/chunkstore"
	"chunkchain/internal/ngram"
	"chunkchain/internal/registry"
	"chunkchain/internal/tokenizer"
)

// Name identifies a strategy in config and persisted data.
type Name string

const (
	// CharacterChunks uses single characters as atoms.
	CharacterChunks Name = "word_chunk"
	// TokenChunks uses interned tokens as atoms.
	TokenChunks Name = "sentence_chunk"
)

// Parse maps a configured name to a Name. Empty selects CharacterChunks.
func Parse(s string) (Name, error) {
	switch Name(strings.TrimSpace(s)) {
	case "", CharacterChunks:
		return CharacterChunks, nil
	case TokenChunks:
		return TokenChunks, nil
	default:
		return "", fmt.Errorf("unknown strategy %q (want %s or %s)", s, CharacterChunks, TokenChunks)
	}
}

// Strategy converts between sample text and atom streams.
type Strategy interface {
	Name() Name
	// Table is the chunk table this strategy's chunks live in.
	Table() chunkstore.Table
	// Atoms converts text to the atom stream that gets indexed.
	Atoms(ctx context.Context, text string) (ngram.Sequence, error)
	// Count returns len(Atoms(text)) without touching any store.
	Count(text string) int
	// Render converts generated atoms back to text.
	Render(ctx context.Context, seq ngram.Sequence) (string, error)
}

// New returns the strategy for name. TokenChunks needs a registry.
func New(name Name, reg *registry.Registry) (Strategy, error) {
	switch name {
	case CharacterChunks:
		return Characters{}, nil
	case TokenChunks:
		if reg == nil {
			return nil, fmt.Errorf("strategy %s requires a token registry", name)
		}
		return &Tokens{registry: reg}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
}

// Characters treats every rune as an atom.
type Characters struct{}

func (Characters) Name() Name              { return CharacterChunks }
func (Characters) Table() chunkstore.Table { return chunkstore.WordChunks }
func (Characters) Count(text string) int   { return tokenizer.CharCount(text) }

func (Characters) Atoms(_ context.Context, text string) (ngram.Sequence, error) {
	return ngram.FromRunes(text), nil
}

func (Characters) Render(_ context.Context, seq ngram.Sequence) (string, error) {
	return string(seq.Runes()), nil
}

// Tokens treats every token as an atom, keyed by its registry ID.
type Tokens struct {
	registry *registry.Registry
}

func (*Tokens) Name() Name              { return TokenChunks }
func (*Tokens) Table() chunkstore.Table { return chunkstore.SentenceChunks }
func (*Tokens) Count(text string) int   { return tokenizer.TokenCount(text) }

// Atoms tokenizes text and interns every token.
func (t *Tokens) Atoms(ctx context.Context, text string) (ngram.Sequence, error) {
	ids, err := t.registry.Intern(ctx, tokenizer.Tokenize(text))
	if err != nil {
		return nil, fmt.Errorf("failed to intern tokens: %w", err)
	}
	return ngram.FromIDs(ids), nil
}

// Render resolves every atom to its token text. An ID missing from the
// registry surfaces as a *registry.UnknownTokenError.
func (t *Tokens) Render(ctx context.Context, seq ngram.Sequence) (string, error) {
	texts, err := t.registry.Resolve(ctx, seq.IDs())
	if err != nil {
		return "", err
	}
	return strings.Join(texts, ""), nil
}
