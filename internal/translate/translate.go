// Package translate defines the translation capability and a glossary-backed
// reference implementation.
package translate

import (
	"context"
	"errors"
	"fmt"
	"unicode"

	"golang.org/x/text/language"
)

// English is the pivot language every worker reads and writes.
const English = "en"

// DefaultReviewThreshold is the confidence below which a translated
// response is flagged for review.
const DefaultReviewThreshold = 0.7

var (
	// ErrDetectionFailed is returned when no language can be identified.
	ErrDetectionFailed = errors.New("language detection failed")
	// ErrUnsupportedLanguage is returned for languages without a glossary.
	ErrUnsupportedLanguage = errors.New("unsupported language")
)

// Translator converts farmer text to and from English.
type Translator interface {
	DetectLanguage(ctx context.Context, text string) (string, error)
	ToEnglish(ctx context.Context, text, sourceLang string) (string, float64, error)
	FromEnglish(ctx context.Context, text, targetLang string) (string, float64, error)
}

// Normalize canonicalizes a language code to its base BCP 47 tag, so
// "hi-IN" and "HI" both become "hi".
func Normalize(code string) (string, error) {
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	base, _ := tag.Base()
	return base.String(), nil
}

// scripts maps Unicode scripts to the language they most likely signal
// for farmers in India.
var scripts = []struct {
	table *unicode.RangeTable
	lang  string
}{
	{unicode.Devanagari, "hi"},
	{unicode.Bengali, "bn"},
	{unicode.Gurmukhi, "pa"},
	{unicode.Gujarati, "gu"},
	{unicode.Oriya, "or"},
	{unicode.Tamil, "ta"},
	{unicode.Telugu, "te"},
	{unicode.Kannada, "kn"},
	{unicode.Malayalam, "ml"},
	{unicode.Latin, English},
}

// DetectScript guesses the language from the dominant script of text.
func DetectScript(text string) (string, error) {
	counts := make(map[string]int)
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		for _, s := range scripts {
			if unicode.Is(s.table, r) {
				counts[s.lang]++
				break
			}
		}
	}

	best, bestN := "", 0
	for _, s := range scripts {
		if n := counts[s.lang]; n > bestN {
			best, bestN = s.lang, n
		}
	}
	if best == "" {
		return "", ErrDetectionFailed
	}
	return best, nil
}
