package translate

import (
	"context"
	"sort"
	"strings"

	"github.com/ShayCichocki/krishi/internal/textutil"
	"github.com/ShayCichocki/krishi/internal/worker"
	"github.com/ShayCichocki/krishi/pkg/models"
)

// GlossaryWorker answers "what is the local word for X" questions from the
// approved glossary. It runs as the translator worker.
type GlossaryWorker struct {
	Glossary *GlossaryTranslator
}

// Descriptor implements worker.Worker.
func (GlossaryWorker) Descriptor() worker.Descriptor {
	return worker.Descriptor{Type: models.WorkerTranslator}
}

// Process implements worker.Worker.
func (w GlossaryWorker) Process(ctx context.Context, req worker.Request) models.WorkerResult {
	if err := ctx.Err(); err != nil {
		return models.WorkerResult{Worker: models.WorkerTranslator, Status: models.StatusError, Error: err.Error()}
	}

	target := req.Query.Language
	if p, ok := req.Context.Profile(); ok && p.PreferredLanguage != "" {
		target = p.PreferredLanguage
	}
	langs := w.Glossary.Languages()
	if lang, err := Normalize(target); err == nil && lang != English {
		langs = []string{lang}
	}

	seen := make(map[string]bool)
	var pairs []string
	for _, word := range textutil.Words(strings.ToLower(req.Query.Text())) {
		for _, lang := range langs {
			if local, ok := w.Glossary.Term(lang, word); ok && !seen[word+lang] {
				seen[word+lang] = true
				pairs = append(pairs, word+" = "+local)
			}
		}
	}
	if len(pairs) == 0 {
		return models.WorkerResult{
			Worker:     models.WorkerTranslator,
			Status:     models.StatusLowConfidence,
			Content:    "No approved local terms found for this question.",
			Confidence: 0.3,
		}
	}
	sort.Strings(pairs)
	return models.WorkerResult{
		Worker:     models.WorkerTranslator,
		Status:     models.StatusOK,
		Content:    "Local terms: " + strings.Join(pairs, ", ") + ".",
		Confidence: 0.9,
		Sources:    []string{"approved agricultural glossary"},
	}
}
