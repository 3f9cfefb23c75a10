package correlate

import (
	"regexp"
	"strings"
	"unicode"
)

// PersonKey identifies one person across their uploaded documents.
type PersonKey string

func (k PersonKey) String() string { return string(k) }

var (
	parenSegment = regexp.MustCompile(`\([^)]*\)?`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// DeriveKey normalises a printed name into a PersonKey:
//
//  1. remove parenthesised segments
//  2. drop every character that is not a letter, digit or whitespace
//  3. trim, then join the remaining words with underscores
//  4. lowercase
//
// Names differing only in case, spacing, parentheticals or punctuation map
// to the same key. An empty result means the name had no usable characters.
func DeriveKey(name string) PersonKey {
	s := parenSegment.ReplaceAllString(name, " ")
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case unicode.IsSpace(r):
			return ' '
		}
		return -1
	}, s)
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), "_")
	return PersonKey(strings.ToLower(s))
}
