// Package textutil holds the word segmentation shared by the classifier and
// the synthesizer.
package textutil

import (
	"strings"
	"unicode"

	"github.com/clipperhouse/uax29/words"
)

// Words splits s into UAX #29 word segments, keeping only segments that
// contain a letter or digit. Whitespace and punctuation are dropped.
func Words(s string) []string {
	segs := words.SegmentAll([]byte(s))
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		if isWord(seg) {
			out = append(out, string(seg))
		}
	}
	return out
}

// Segments splits s into every UAX #29 segment, whitespace and punctuation
// included, so that joining them reproduces s.
func Segments(s string) []string {
	segs := words.SegmentAll([]byte(s))
	out := make([]string, len(segs))
	for i, seg := range segs {
		out[i] = string(seg)
	}
	return out
}

// IsWord reports whether a segment contains a letter or digit.
func IsWord(seg string) bool {
	return isWord([]byte(seg))
}

// CountWords returns the number of words in s.
func CountWords(s string) int {
	n := 0
	for _, seg := range words.SegmentAll([]byte(s)) {
		if isWord(seg) {
			n++
		}
	}
	return n
}

// Normalize lowercases s and rejoins its words with single spaces, padded
// with a space on both sides so phrases can be matched on word boundaries.
func Normalize(s string) string {
	return " " + strings.Join(Words(strings.ToLower(s)), " ") + " "
}

// ContainsPhrase reports whether normalized text contains phrase as a whole
// word sequence.
func ContainsPhrase(normalized, phrase string) bool {
	p := Normalize(phrase)
	if strings.TrimSpace(p) == "" {
		return false
	}
	return strings.Contains(normalized, p)
}

func isWord(seg []byte) bool {
	for _, r := range string(seg) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
