package ngram

import (
	"encoding/binary"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Atom is one unit of a stream: a rune for the character strategy, a token
// ID for the token strategy.
type Atom int64

// Sequence is an ordered run of atoms.
type Sequence []Atom

// Key is the compact, comparable encoding of a Sequence used as a map key and
// as the stored sequence/prefix column. Atoms are varint encoded back to back.
type Key string

// Key encodes s.
func (s Sequence) Key() Key {
	buf := make([]byte, 0, len(s)*2)
	for _, a := range s {
		buf = binary.AppendVarint(buf, int64(a))
	}
	return Key(buf)
}

// Equal reports whether s and o hold the same atoms.
func (s Sequence) Equal(o Sequence) bool {
	return slices.Equal(s, o)
}

// Tail returns the last n atoms of s (all of s when shorter).
func (s Sequence) Tail(n int) Sequence {
	if n <= 0 {
		return Sequence{}
	}
	if n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Runes interprets every atom as a rune.
func (s Sequence) Runes() []rune {
	r := make([]rune, len(s))
	for i, a := range s {
		r[i] = rune(a)
	}
	return r
}

func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, a := range s {
		parts[i] = strconv.FormatInt(int64(a), 10)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// FromRunes builds a Sequence from the runes of text. Invalid UTF-8 bytes
// become U+FFFD.
func FromRunes(text string) Sequence {
	seq := make(Sequence, 0, len(text))
	for _, r := range text {
		seq = append(seq, Atom(r))
	}
	return seq
}

// FromIDs builds a Sequence from token IDs.
func FromIDs(ids []int64) Sequence {
	seq := make(Sequence, len(ids))
	for i, id := range ids {
		seq[i] = Atom(id)
	}
	return seq
}

// IDs returns the atoms as int64 token IDs.
func (s Sequence) IDs() []int64 {
	ids := make([]int64, len(s))
	for i, a := range s {
		ids[i] = int64(a)
	}
	return ids
}

// Sequence decodes k.
func (k Key) Sequence() (Sequence, error) {
	buf := []byte(k)
	var seq Sequence
	for len(buf) > 0 {
		v, n := binary.Varint(buf)
		if n <= 0 {
			return nil, fmt.Errorf("ngram: corrupt sequence key at byte %d", len(k)-len(buf))
		}
		seq = append(seq, Atom(v))
		buf = buf[n:]
	}
	return seq, nil
}
