// Package generator produces atom sequences by walking a chain of stored
// chunks: a uniformly chosen seed chunk, then frequency-weighted
// continuations whose leading atoms match the tail of the output so far.
package generator

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"

	"chunkchain/internal/ngram"
)

// ErrNoChunks is returned when a sample has no chunks of the requested size.
var ErrNoChunks = errors.New("generator: no chunks for sample and size")

// Rand is the random source used for seed and continuation choices.
// *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
	Int64N(n int64) int64
}

type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

func (l *lockedRand) Int64N(n int64) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Int64N(n)
}

// Synchronized returns a Rand safe for concurrent use. *rand.Rand is not.
func Synchronized(r Rand) Rand {
	if _, ok := r.(*lockedRand); ok {
		return r
	}
	return &lockedRand{r: r}
}

// Source is the read side of a chunk store.
type Source interface {
	FindBySampleAndSize(ctx context.Context, sampleID string, size int) ([]ngram.Chunk, error)
	FindBySampleSizeAndPrefix(ctx context.Context, sampleID string, size int, prefix ngram.Sequence) ([]ngram.Chunk, error)
}

// Generator walks chunks from one Source.
type Generator struct {
	source Source
	rnd    Rand
}

// New returns a generator reading from source and drawing from rnd.
func New(source Source, rnd Rand) *Generator {
	if rnd == nil {
		panic("generator: nil random source")
	}
	return &Generator{source: source, rnd: rnd}
}

// NewSeeded returns a generator with a deterministic PCG source.
func NewSeeded(source Source, seed uint64) *Generator {
	return New(source, NewRand(seed))
}

// NewRand returns a PCG-backed source. Seed 0 draws a seed from the runtime.
func NewRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = rand.Uint64()
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Generate builds a sequence for sampleID from chunks of the given size.
// desiredLength is a lower bound: the seed chunk is always returned whole, and
// extension stops early when no chunk continues the current tail.
func (g *Generator) Generate(ctx context.Context, sampleID string, size, desiredLength int) (ngram.Sequence, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: %d", ngram.ErrInvalidSize, size)
	}

	seeds, err := g.source.FindBySampleAndSize(ctx, sampleID, size)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed chunks: %w", err)
	}
	if len(seeds) == 0 {
		return ngram.Sequence{}, ErrNoChunks
	}

	seed := seeds[g.rnd.IntN(len(seeds))]
	out := make(ngram.Sequence, len(seed.Atoms), max(len(seed.Atoms), desiredLength))
	copy(out, seed.Atoms)

	for len(out) < desiredLength {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidates, err := g.source.FindBySampleSizeAndPrefix(ctx, sampleID, size, out.Tail(size-1))
		if err != nil {
			return nil, fmt.Errorf("failed to load continuations: %w", err)
		}
		if len(candidates) == 0 {
			break
		}
		out = append(out, Pick(candidates, g.rnd).Last())
	}

	return out, nil
}

// Pick chooses one candidate with probability proportional to its count.
// candidates must be non-empty.
func Pick(candidates []ngram.Chunk, rnd Rand) ngram.Chunk {
	cumulative := make([]int64, len(candidates))
	var total int64
	for i, c := range candidates {
		total += int64(c.Count)
		cumulative[i] = total
	}
	if total <= 0 {
		return candidates[rnd.IntN(len(candidates))]
	}

	r := rnd.Int64N(total)
	i := sort.Search(len(cumulative), func(i int) bool { return cumulative[i] > r })
	return candidates[i]
}
