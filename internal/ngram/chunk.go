package ngram

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidSize is returned for chunk sizes below 1 or inverted ranges.
var ErrInvalidSize = errors.New("ngram: invalid chunk size")

// Chunk is a distinct window of Size atoms from one sample together with the
// number of times it occurs in that sample.
type Chunk struct {
	SampleID string   `json:"sample_id"`
	Size     int      `json:"size"`
	Atoms    Sequence `json:"atoms"`
	Count    int      `json:"count"`
}

// Key returns the encoded atoms.
func (c Chunk) Key() Key { return c.Atoms.Key() }

// Prefix returns the leading Size-1 atoms, the part a continuation must match.
func (c Chunk) Prefix() Sequence {
	if len(c.Atoms) == 0 {
		return Sequence{}
	}
	return c.Atoms[:len(c.Atoms)-1]
}

// Last returns the final atom, the one appended when this chunk extends a
// generated sequence.
func (c Chunk) Last() Atom {
	return c.Atoms[len(c.Atoms)-1]
}

// Count slides a window of width k over stream and counts each distinct
// window. It returns nil when the stream is shorter than k.
func Count(stream Sequence, k int) map[Key]int {
	if k <= 0 || len(stream) < k {
		return nil
	}
	counts := make(map[Key]int)
	for i := 0; i+k <= len(stream); i++ {
		counts[stream[i:i+k].Key()]++
	}
	return counts
}

// Chunks turns a frequency map into Chunk rows tagged with sampleID and k,
// ordered by key so batches are deterministic.
func Chunks(counts map[Key]int, sampleID string, k int) ([]Chunk, error) {
	keys := make([]Key, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	rows := make([]Chunk, 0, len(keys))
	for _, key := range keys {
		atoms, err := key.Sequence()
		if err != nil {
			return nil, err
		}
		rows = append(rows, Chunk{
			SampleID: sampleID,
			Size:     k,
			Atoms:    atoms,
			Count:    counts[key],
		})
	}
	return rows, nil
}

// SizeRange is an inclusive range of chunk sizes.
type SizeRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

// DefaultSizeRange is 2 through 8.
func DefaultSizeRange() SizeRange {
	return SizeRange{Min: 2, Max: 8}
}

// Validate rejects ranges that start below 1 or end before they start.
func (r SizeRange) Validate() error {
	if r.Min < 1 {
		return fmt.Errorf("%w: minimum %d is below 1", ErrInvalidSize, r.Min)
	}
	if r.Max < r.Min {
		return fmt.Errorf("%w: maximum %d is below minimum %d", ErrInvalidSize, r.Max, r.Min)
	}
	return nil
}

// Sizes lists every size in the range in ascending order.
func (r SizeRange) Sizes() []int {
	if r.Max < r.Min {
		return nil
	}
	sizes := make([]int, 0, r.Max-r.Min+1)
	for k := r.Min; k <= r.Max; k++ {
		sizes = append(sizes, k)
	}
	return sizes
}

// Contains reports whether k lies in the range.
func (r SizeRange) Contains(k int) bool {
	return k >= r.Min && k <= r.Max
}

func (r SizeRange) String() string {
	return fmt.Sprintf("%d..%d", r.Min, r.Max)
}
