package conflict

import (
	"fmt"
	"math"
	"strings"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// DefaultMinimalImpact is the economic impact at or below which a conflict
// is resolved automatically in favor of the more sustainable option.
const DefaultMinimalImpact = 0.15

// Resolver applies comparators to a result set. It holds no per-call state;
// Resolve is a pure function of its input.
type Resolver struct {
	comparators   []Comparator
	assessor      ImpactAssessor
	minimalImpact float64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithComparators replaces the default comparator set.
func WithComparators(cs ...Comparator) Option {
	return func(r *Resolver) { r.comparators = cs }
}

// WithAssessor replaces the default impact assessor.
func WithAssessor(a ImpactAssessor) Option {
	return func(r *Resolver) { r.assessor = a }
}

// WithMinimalImpact sets the minimal impact threshold.
func WithMinimalImpact(v float64) Option {
	return func(r *Resolver) {
		if v >= 0 {
			r.minimalImpact = v
		}
	}
}

// NewResolver creates a Resolver with the water requirement comparator and
// the yield impact assessor unless overridden.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		comparators:   []Comparator{WaterRequirementComparator{}},
		assessor:      YieldImpactAssessor{},
		minimalImpact: DefaultMinimalImpact,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve detects conflicts among non-failed results and returns the results
// that survive resolution plus one record per conflicting set. Results
// discarded by a MERGED record are removed from the returned map; results in
// a PRESENTED_BOTH record stay. The input map is not modified.
//
// When more than two results conflict on one axis, every pair is assessed in
// worker priority order. The set is presented in full if any conflicting pair
// has significant impact; otherwise the most sustainable result is kept.
func (r *Resolver) Resolve(results map[models.WorkerType]models.WorkerResult) (map[models.WorkerType]models.WorkerResult, []models.ConflictRecord) {
	merged := make(map[models.WorkerType]models.WorkerResult, len(results))
	for w, res := range results {
		merged[w] = res
	}

	var records []models.ConflictRecord
	for _, cmp := range r.comparators {
		candidates := r.candidates(merged, cmp)
		if len(candidates) < 2 {
			continue
		}

		involved := make(map[models.WorkerType]bool)
		maxImpact := 0.0
		for i := 0; i < len(candidates); i++ {
			for j := i + 1; j < len(candidates); j++ {
				a, b := candidates[i], candidates[j]
				if !cmp.Conflicts(a, b) {
					continue
				}
				involved[a.Worker] = true
				involved[b.Worker] = true
				maxImpact = math.Max(maxImpact, clamp(r.assessor.Impact(a, b)))
			}
		}
		if len(involved) == 0 {
			continue
		}

		var set []models.WorkerResult
		for _, c := range candidates {
			if involved[c.Worker] {
				set = append(set, c)
			}
		}

		rec := models.ConflictRecord{
			Axis:           cmp.Axis(),
			Results:        set,
			EconomicImpact: round(maxImpact),
		}
		if maxImpact <= r.minimalImpact {
			chosen := mostSustainable(cmp, set)
			rec.Outcome = models.OutcomeMerged
			rec.Chosen = chosen.Worker
			for _, res := range set {
				if res.Worker != chosen.Worker {
					delete(merged, res.Worker)
				}
			}
		} else {
			rec.Outcome = models.OutcomePresentedBoth
			rec.TradeOff = tradeOff(cmp, set)
		}
		records = append(records, rec)
	}
	return merged, records
}

// candidates returns the non-failed results the comparator applies to, in
// worker priority order.
func (r *Resolver) candidates(results map[models.WorkerType]models.WorkerResult, cmp Comparator) []models.WorkerResult {
	var out []models.WorkerResult
	for _, w := range sortedKeys(results) {
		res := results[w]
		if res.Status.Failed() || !cmp.Applies(res) {
			continue
		}
		out = append(out, res)
	}
	return out
}

// mostSustainable picks the lowest sustainability rank. Ties go to the
// sustainability worker, then to worker priority.
func mostSustainable(cmp Comparator, set []models.WorkerResult) models.WorkerResult {
	best := set[0]
	for _, res := range set[1:] {
		rb, rr := cmp.Sustainability(best), cmp.Sustainability(res)
		switch {
		case rr < rb:
			best = res
		case rr == rb && res.Worker == models.WorkerSustainability:
			best = res
		}
	}
	return best
}

func tradeOff(cmp Comparator, set []models.WorkerResult) string {
	parts := make([]string, 0, len(set))
	for _, res := range set {
		parts = append(parts, describe(res))
	}
	best := mostSustainable(cmp, set)
	crop, _ := best.Entity(models.EntityRecommendedCrop)
	return strings.Join(parts, "; ") + fmt.Sprintf(". %s uses the least water.", capitalize(crop))
}

func describe(res models.WorkerResult) string {
	crop, _ := res.Entity(models.EntityRecommendedCrop)
	s := capitalize(crop)
	if w, ok := res.Entity(models.EntityWaterRequirement); ok {
		s += fmt.Sprintf(": %s water", w)
	}
	if inc, ok := income(res); ok {
		s += fmt.Sprintf(", about %.0f rupees per acre", inc)
	}
	return s
}

func sortedKeys(m map[models.WorkerType]models.WorkerResult) []models.WorkerType {
	keys := make([]models.WorkerType, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	models.SortWorkers(keys)
	return keys
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func clamp(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
