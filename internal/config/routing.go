package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/krishi/internal/intent"
	"github.com/ShayCichocki/krishi/internal/synth"
	"github.com/ShayCichocki/krishi/internal/translate"
	"github.com/ShayCichocki/krishi/pkg/models"
)

// Routing is the content of a routing file. Every section is optional and
// replaces the built-in table when present.
type Routing struct {
	// Keywords maps a worker type name to the phrases that signal it.
	Keywords map[string][]string `yaml:"keywords"`
	// Lexicon maps an entity kind to its known mentions.
	Lexicon map[string][]string `yaml:"lexicon"`
	// Units lists unit conversions applied to responses.
	Units []synth.Unit `yaml:"units"`
	// Glossary maps a language to English-to-local term pairs.
	Glossary map[string]map[string]string `yaml:"glossary"`
}

// LoadRouting reads and validates a routing file.
func LoadRouting(path string) (*Routing, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routing file: %w", err)
	}
	var r Routing
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse routing file %s: %w", path, err)
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("routing file %s: %w", path, err)
	}
	return &r, nil
}

// Validate checks worker names, entity kinds and unit factors.
func (r *Routing) Validate() error {
	for name, words := range r.Keywords {
		if !models.WorkerType(name).Valid() {
			return fmt.Errorf("%w: unknown worker %q in keywords", ErrInvalid, name)
		}
		if len(words) == 0 {
			return fmt.Errorf("%w: empty keyword list for %q", ErrInvalid, name)
		}
	}
	for kind := range r.Lexicon {
		switch kind {
		case models.EntityCrop, models.EntityScheme, models.EntityLocation:
		default:
			return fmt.Errorf("%w: unknown entity kind %q in lexicon", ErrInvalid, kind)
		}
	}
	for i, u := range r.Units {
		if len(u.From) == 0 || u.To == "" || u.Factor <= 0 {
			return fmt.Errorf("%w: unit %d needs from, to and a positive factor", ErrInvalid, i)
		}
	}
	if len(r.Glossary) > 0 {
		if _, err := translate.NewGlossaryTranslator(r.Glossary); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}
	return nil
}

// IntentKeywords returns the keyword table, or nil when the file has none.
func (r *Routing) IntentKeywords() intent.Keywords {
	if len(r.Keywords) == 0 {
		return nil
	}
	k := make(intent.Keywords, len(r.Keywords))
	for name, words := range r.Keywords {
		k[models.WorkerType(name)] = append([]string(nil), words...)
	}
	return k
}

// IntentLexicon returns the entity lexicon, or nil when the file has none.
func (r *Routing) IntentLexicon() intent.Lexicon {
	if len(r.Lexicon) == 0 {
		return nil
	}
	l := make(intent.Lexicon, len(r.Lexicon))
	for kind, words := range r.Lexicon {
		l[kind] = append([]string(nil), words...)
	}
	return l
}

// UnitMap returns the unit map, or the default when the file has none.
func (r *Routing) UnitMap() synth.UnitMap {
	if len(r.Units) == 0 {
		return synth.DefaultUnitMap()
	}
	return append(synth.UnitMap(nil), r.Units...)
}

// TranslationGlossary returns the glossary, or the default when the file
// has none.
func (r *Routing) TranslationGlossary() translate.Glossary {
	if len(r.Glossary) == 0 {
		return translate.DefaultGlossary()
	}
	return translate.Glossary(r.Glossary)
}

// WriteDefaultRouting writes the built-in tables as a routing file, as a
// starting point for local edits.
func WriteDefaultRouting(path string) error {
	r := Routing{
		Keywords: make(map[string][]string),
		Lexicon:  map[string][]string(intent.DefaultLexicon()),
		Units:    synth.DefaultUnitMap(),
		Glossary: translate.DefaultGlossary(),
	}
	for w, words := range intent.DefaultKeywords() {
		r.Keywords[string(w)] = words
	}
	data, err := yaml.Marshal(&r)
	if err != nil {
		return fmt.Errorf("marshal routing: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write routing file: %w", err)
	}
	return nil
}
