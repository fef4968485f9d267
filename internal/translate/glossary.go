package translate

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/ShayCichocki/krishi/internal/textutil"
)

// Glossary holds approved term mappings: language → English term → local term.
type Glossary map[string]map[string]string

// DefaultGlossary returns the built-in Hindi glossary.
func DefaultGlossary() Glossary {
	return Glossary{
		"hi": {
			"paddy":      "धान",
			"wheat":      "गेहूं",
			"millet":     "बाजरा",
			"cotton":     "कपास",
			"sugarcane":  "गन्ना",
			"soybean":    "सोयाबीन",
			"chickpea":   "चना",
			"maize":      "मक्का",
			"mustard":    "सरसों",
			"water":      "पानी",
			"irrigation": "सिंचाई",
			"soil":       "मिट्टी",
			"seed":       "बीज",
			"crop":       "फसल",
			"farmer":     "किसान",
			"scheme":     "योजना",
			"subsidy":    "सब्सिडी",
			"insurance":  "बीमा",
			"loan":       "ऋण",
			"fertilizer": "खाद",
			"rain":       "बारिश",
			"acres":      "एकड़",
			"rupees":     "रुपये",
			"harvest":    "कटाई",
			"season":     "मौसम",
		},
	}
}

// GlossaryTranslator translates word by word through approved glossary
// terms. Words outside the glossary pass through unchanged and lower the
// reported confidence.
type GlossaryTranslator struct {
	to   map[string]map[string]string
	from map[string]map[string]string
}

// NewGlossaryTranslator validates g and builds lookup tables. Every language
// mapping must be one-to-one so round trips are lossless.
func NewGlossaryTranslator(g Glossary) (*GlossaryTranslator, error) {
	t := &GlossaryTranslator{
		to:   make(map[string]map[string]string),
		from: make(map[string]map[string]string),
	}
	for code, terms := range g {
		lang, err := Normalize(code)
		if err != nil {
			return nil, fmt.Errorf("glossary: %w", err)
		}
		to := make(map[string]string, len(terms))
		from := make(map[string]string, len(terms))
		for en, local := range terms {
			en, local = strings.ToLower(strings.TrimSpace(en)), strings.TrimSpace(local)
			if en == "" || local == "" {
				return nil, fmt.Errorf("glossary %s: empty term", lang)
			}
			if prev, dup := from[local]; dup {
				return nil, fmt.Errorf("glossary %s: %q maps from both %q and %q", lang, local, prev, en)
			}
			to[en] = local
			from[local] = en
		}
		t.to[lang] = to
		t.from[lang] = from
	}
	return t, nil
}

// Languages returns the supported non-English languages, sorted.
func (t *GlossaryTranslator) Languages() []string {
	out := make([]string, 0, len(t.to))
	for lang := range t.to {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Term returns the approved local term for an English term.
func (t *GlossaryTranslator) Term(lang, english string) (string, bool) {
	lang, err := Normalize(lang)
	if err != nil {
		return "", false
	}
	v, ok := t.to[lang][strings.ToLower(english)]
	return v, ok
}

// DetectLanguage implements Translator using the dominant script.
func (t *GlossaryTranslator) DetectLanguage(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return DetectScript(text)
}

// ToEnglish implements Translator.
func (t *GlossaryTranslator) ToEnglish(ctx context.Context, text, sourceLang string) (string, float64, error) {
	return t.translate(ctx, text, sourceLang, t.from)
}

// FromEnglish implements Translator.
func (t *GlossaryTranslator) FromEnglish(ctx context.Context, text, targetLang string) (string, float64, error) {
	return t.translate(ctx, text, targetLang, t.to)
}

func (t *GlossaryTranslator) translate(ctx context.Context, text, lang string, tables map[string]map[string]string) (string, float64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}
	lang, err := Normalize(lang)
	if err != nil {
		return "", 0, err
	}
	if lang == English {
		return text, 1, nil
	}
	table, ok := tables[lang]
	if !ok {
		return "", 0, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
	}

	var b strings.Builder
	words, known := 0, 0
	for _, seg := range textutil.Segments(text) {
		if !textutil.IsWord(seg) {
			b.WriteString(seg)
			continue
		}
		words++
		if v, ok := table[strings.ToLower(seg)]; ok {
			b.WriteString(v)
			known++
			continue
		}
		if isNumeric(seg) || isProperNoun(seg) {
			known++
		}
		b.WriteString(seg)
	}

	confidence := 1.0
	if words > 0 {
		confidence = math.Round(float64(known)/float64(words)*1000) / 1000
	}
	return b.String(), confidence, nil
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return false
		}
	}
	return true
}

// isProperNoun treats all-caps Latin tokens such as scheme acronyms as
// names that need no translation.
func isProperNoun(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			if !unicode.Is(unicode.Latin, r) || !unicode.IsUpper(r) {
				return false
			}
			letters++
		}
	}
	return letters >= 2
}
