package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ShayCichocki/krishi/pkg/models"
)

const scorerSystemPrompt = `You route farmer questions to advisory specialists.
For each specialist listed, rate from 0 to 1 how relevant the question is to it.
Reply with only a JSON object mapping specialist name to score.`

// Scorer implements the intent classifier's similarity signal with a
// language model.
type Scorer struct {
	llm Completer
}

// NewScorer creates a similarity scorer.
func NewScorer(llm Completer) *Scorer {
	return &Scorer{llm: llm}
}

// Similarity scores text against each candidate worker's topic.
func (s *Scorer) Similarity(ctx context.Context, text string, candidates []models.WorkerType) (map[models.WorkerType]float64, error) {
	var b strings.Builder
	b.WriteString("Specialists:\n")
	for _, w := range candidates {
		fmt.Fprintf(&b, "- %s: %s\n", w, w.Topic())
	}
	b.WriteString("Question:\n")
	b.WriteString(text)

	reply, err := s.llm.Complete(ctx, scorerSystemPrompt, b.String())
	if err != nil {
		return nil, fmt.Errorf("similarity: %w", err)
	}
	obj, err := jsonObject(reply)
	if err != nil {
		return nil, fmt.Errorf("similarity: %w", err)
	}

	parsed := gjson.Parse(obj)
	scores := make(map[models.WorkerType]float64, len(candidates))
	for _, w := range candidates {
		v := parsed.Get(string(w))
		if !v.Exists() {
			continue
		}
		scores[w] = v.Float()
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("similarity: reply scored no candidate")
	}
	return scores, nil
}
