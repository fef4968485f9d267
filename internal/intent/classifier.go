package intent

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ShayCichocki/krishi/internal/textutil"
	"github.com/ShayCichocki/krishi/pkg/models"
)

// Defaults for Config.
const (
	DefaultInclusionThreshold     = 0.35
	DefaultClarificationThreshold = 0.5
	DefaultSimilarityTimeout      = time.Second
)

// SimilarityScorer is the external semantic-similarity signal. It returns a
// score in [0,1] for each candidate worker type.
type SimilarityScorer interface {
	Similarity(ctx context.Context, text string, candidates []models.WorkerType) (map[models.WorkerType]float64, error)
}

// Config tunes the classifier. Zero values take defaults. The three weights
// are defaulted together only when all are zero.
type Config struct {
	InclusionThreshold     float64
	ClarificationThreshold float64
	KeywordWeight          float64
	EntityWeight           float64
	SimilarityWeight       float64
	SimilarityTimeout      time.Duration
}

func (c Config) withDefaults(hasScorer bool) Config {
	if c.InclusionThreshold <= 0 {
		c.InclusionThreshold = DefaultInclusionThreshold
	}
	if c.ClarificationThreshold <= 0 {
		c.ClarificationThreshold = DefaultClarificationThreshold
	}
	if c.SimilarityTimeout <= 0 {
		c.SimilarityTimeout = DefaultSimilarityTimeout
	}
	if c.KeywordWeight == 0 && c.EntityWeight == 0 && c.SimilarityWeight == 0 {
		if hasScorer {
			c.KeywordWeight, c.EntityWeight, c.SimilarityWeight = 0.5, 0.2, 0.3
		} else {
			c.KeywordWeight, c.EntityWeight = 0.7, 0.3
		}
	}
	return c
}

// Classification is the outcome of routing one query.
type Classification struct {
	// Workers is the included worker set in priority order. Empty when
	// NeedsClarification is set.
	Workers []models.WorkerType
	// Primary is the highest-scoring included worker.
	Primary models.WorkerType
	// Confidence is the mean score of the included workers.
	Confidence float64
	// Scores holds every candidate's combined score.
	Scores map[models.WorkerType]float64
	// NeedsClarification asks the orchestrator to short-circuit to a
	// clarification prompt.
	NeedsClarification bool
	// Fallback is set when the similarity signal failed and every candidate
	// was included.
	Fallback bool
	// Entities are the entities the classifier used.
	Entities map[string][]string
	Reason   string
}

// Classifier scores candidate workers by keyword overlap, entity overlap and
// an optional similarity signal.
type Classifier struct {
	mu         sync.RWMutex
	cfg        Config
	keywords   Keywords
	lexicon    Lexicon
	candidates []models.WorkerType
	scorer     SimilarityScorer
	debugLog   func(format string, args ...interface{})
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithScorer sets the similarity signal.
func WithScorer(s SimilarityScorer) Option {
	return func(c *Classifier) { c.scorer = s }
}

// WithKeywords replaces the routing table.
func WithKeywords(k Keywords) Option {
	return func(c *Classifier) { c.keywords = k }
}

// WithLexicon replaces the entity lexicon.
func WithLexicon(l Lexicon) Option {
	return func(c *Classifier) { c.lexicon = l }
}

// WithCandidates restricts classification to the given worker types. This is
// normally the set of registered workers.
func WithCandidates(ws []models.WorkerType) Option {
	return func(c *Classifier) {
		c.candidates = append([]models.WorkerType(nil), ws...)
		models.SortWorkers(c.candidates)
	}
}

// WithDebugLog sets the debug logging function.
func WithDebugLog(fn func(format string, args ...interface{})) Option {
	return func(c *Classifier) {
		if fn != nil {
			c.debugLog = fn
		}
	}
}

// New creates a Classifier.
func New(cfg Config, opts ...Option) *Classifier {
	c := &Classifier{
		keywords:   DefaultKeywords(),
		lexicon:    DefaultLexicon(),
		candidates: models.AllWorkers(),
		debugLog:   func(format string, args ...interface{}) {},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg = cfg.withDefaults(c.scorer != nil)
	return c
}

// SetKeywords swaps the routing table. Safe to call while classifying; used
// when the routing file changes on disk.
func (c *Classifier) SetKeywords(k Keywords) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keywords = k
}

// SetLexicon swaps the entity lexicon.
func (c *Classifier) SetLexicon(l Lexicon) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lexicon = l
}

// Lexicon returns the current entity lexicon.
func (c *Classifier) Lexicon() Lexicon {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lexicon
}

// Extract runs ExtractEntities with the classifier's lexicon.
func (c *Classifier) Extract(text string) map[string][]string {
	return ExtractEntities(text, c.Lexicon())
}

// Classify maps a query to a worker set. It never fails: a failed similarity
// signal includes every candidate, and weak routing asks for clarification.
func (c *Classifier) Classify(ctx context.Context, q models.Query) Classification {
	c.mu.RLock()
	keywords := c.keywords
	lexicon := c.lexicon
	c.mu.RUnlock()

	text := q.Text()
	entities := q.Entities
	if entities == nil {
		entities = ExtractEntities(text, lexicon)
	}

	var sim map[models.WorkerType]float64
	if c.scorer != nil {
		sctx, cancel := context.WithTimeout(ctx, c.cfg.SimilarityTimeout)
		var err error
		sim, err = c.scorer.Similarity(sctx, text, c.candidates)
		cancel()
		if err != nil {
			c.debugLog("[intent] similarity signal failed, including all workers: %v", err)
			return c.fallback(entities, fmt.Sprintf("similarity signal failed: %v", err))
		}
	}

	normalized := textutil.Normalize(text)
	scores := make(map[models.WorkerType]float64, len(c.candidates))
	for _, w := range c.candidates {
		kw := keywordScore(normalized, keywords[w])
		ent := entityScore(entities, w)
		score := c.cfg.KeywordWeight*kw + c.cfg.EntityWeight*ent + c.cfg.SimilarityWeight*clamp(sim[w])
		scores[w] = round(score)
	}

	result := Classification{Scores: scores, Entities: entities}
	var total float64
	for _, w := range c.candidates {
		if scores[w] > c.cfg.InclusionThreshold {
			result.Workers = append(result.Workers, w)
			total += scores[w]
			if result.Primary == "" || scores[w] > scores[result.Primary] {
				result.Primary = w
			}
		}
	}

	if len(result.Workers) == 0 {
		result.NeedsClarification = true
		result.Reason = "no worker cleared the inclusion threshold"
		return result
	}
	result.Confidence = round(total / float64(len(result.Workers)))
	if result.Confidence < c.cfg.ClarificationThreshold {
		c.debugLog("[intent] confidence %.2f below clarification threshold", result.Confidence)
		result.NeedsClarification = true
		result.Workers = nil
		result.Reason = fmt.Sprintf("confidence %.2f below %.2f", result.Confidence, c.cfg.ClarificationThreshold)
		return result
	}
	result.Reason = "matched keywords and entities"
	c.debugLog("[intent] classified %q -> %v (primary %s, confidence %.2f)", text, result.Workers, result.Primary, result.Confidence)
	return result
}

func (c *Classifier) fallback(entities map[string][]string, reason string) Classification {
	ws := append([]models.WorkerType(nil), c.candidates...)
	scores := make(map[models.WorkerType]float64, len(ws))
	for _, w := range ws {
		scores[w] = 1
	}
	primary := models.WorkerType("")
	if len(ws) > 0 {
		primary = ws[0]
	}
	return Classification{
		Workers:    ws,
		Primary:    primary,
		Confidence: 1,
		Scores:     scores,
		Fallback:   true,
		Entities:   entities,
		Reason:     reason,
	}
}

// keywordScore saturates with the number of matched keywords:
// one match scores 0.6, two 0.84, three 0.94.
func keywordScore(normalized string, keywords []string) float64 {
	matches := 0
	for _, kw := range keywords {
		if textutil.ContainsPhrase(normalized, kw) {
			matches++
		}
	}
	if matches == 0 {
		return 0
	}
	return 1 - math.Pow(0.4, float64(matches))
}

func entityScore(entities map[string][]string, w models.WorkerType) float64 {
	for kind, mentions := range entities {
		if entityWorkers[kind] == w && len(mentions) > 0 {
			return 1
		}
	}
	return 0
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
