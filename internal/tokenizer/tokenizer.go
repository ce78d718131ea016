package tokenizer

import (
	"unicode"
	"unicode/utf8"
)

type class uint8

const (
	classWord class = iota
	classSpace
	classPunct
)

// classify puts a rune into one of the three token classes. ASCII symbols
// such as '$' or '+' count as punctuation, matching POSIX [:punct:].
func classify(r rune) class {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case unicode.IsPunct(r):
		return classPunct
	case r < utf8.RuneSelf && unicode.IsSymbol(r):
		return classPunct
	default:
		return classWord
	}
}

// Tokenize splits text into words, whitespace runs and single punctuation
// marks, in order.
//
//	"hey, dude!" -> ["hey" "," " " "dude" "!"]
//
// A whitespace run is kept whole, so " " and "  " are different tokens.
// Every punctuation mark is its own token. Empty input yields nil.
func Tokenize(text string) []string {
	var tokens []string
	start := 0
	prev := classWord

	for i, r := range text {
		c := classify(r)
		if i > start && (c != prev || c == classPunct) {
			tokens = append(tokens, text[start:i])
			start = i
		}
		prev = c
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}

	return tokens
}

// Characters splits text into one string per rune.
func Characters(text string) []string {
	if text == "" {
		return nil
	}
	chars := make([]string, 0, utf8.RuneCountInString(text))
	for _, r := range text {
		chars = append(chars, string(r))
	}
	return chars
}

// TokenCount returns len(Tokenize(text)) without allocating the tokens.
func TokenCount(text string) int {
	count := 0
	start := 0
	prev := classWord

	for i, r := range text {
		c := classify(r)
		if i > start && (c != prev || c == classPunct) {
			count++
			start = i
		}
		prev = c
	}
	if start < len(text) {
		count++
	}

	return count
}

// CharCount returns the number of runes in text.
func CharCount(text string) int {
	return utf8.RuneCountInString(text)
}
