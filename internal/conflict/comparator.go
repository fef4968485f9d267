// Package conflict detects contradictory worker recommendations and decides
// whether to merge them or present every option.
package conflict

import (
	"math"
	"strconv"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// Comparator decides whether two results disagree on one decision axis.
type Comparator interface {
	// Axis names the decision axis, usually an entity key.
	Axis() string
	// Applies reports whether a result carries a position on the axis.
	Applies(r models.WorkerResult) bool
	// Conflicts reports whether a and b take incompatible positions.
	Conflicts(a, b models.WorkerResult) bool
	// Sustainability ranks a result's position; lower is more sustainable.
	Sustainability(r models.WorkerResult) int
}

// ImpactAssessor scores the economic impact of picking one side of a
// conflict, in [0,1].
type ImpactAssessor interface {
	Impact(a, b models.WorkerResult) float64
}

// waterLevels orders water requirement levels.
var waterLevels = map[string]int{
	"low":    0,
	"medium": 1,
	"high":   2,
}

// WaterRequirementComparator flags two crop recommendations whose water
// requirement levels differ.
type WaterRequirementComparator struct{}

// Axis implements Comparator.
func (WaterRequirementComparator) Axis() string { return models.EntityWaterRequirement }

// Applies implements Comparator.
func (WaterRequirementComparator) Applies(r models.WorkerResult) bool {
	if _, ok := r.Entity(models.EntityRecommendedCrop); !ok {
		return false
	}
	w, _ := r.Entity(models.EntityWaterRequirement)
	_, known := waterLevels[w]
	return known
}

// Conflicts implements Comparator.
func (c WaterRequirementComparator) Conflicts(a, b models.WorkerResult) bool {
	if !c.Applies(a) || !c.Applies(b) {
		return false
	}
	return c.Sustainability(a) != c.Sustainability(b)
}

// Sustainability implements Comparator.
func (WaterRequirementComparator) Sustainability(r models.WorkerResult) int {
	w, _ := r.Entity(models.EntityWaterRequirement)
	if lvl, ok := waterLevels[w]; ok {
		return lvl
	}
	return len(waterLevels)
}

// YieldImpactAssessor measures the relative difference in expected income
// between two recommendations. A missing, unparsable or non-positive income
// scores 1.
type YieldImpactAssessor struct{}

// Impact implements ImpactAssessor.
func (YieldImpactAssessor) Impact(a, b models.WorkerResult) float64 {
	ia, okA := income(a)
	ib, okB := income(b)
	if !okA || !okB {
		return 1
	}
	return math.Abs(ia-ib) / math.Max(ia, ib)
}

func income(r models.WorkerResult) (float64, bool) {
	v, ok := r.Entity(models.EntityExpectedIncome)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
