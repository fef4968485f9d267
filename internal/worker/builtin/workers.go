package builtin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ShayCichocki/krishi/internal/worker"
	"github.com/ShayCichocki/krishi/pkg/models"
)

// Register adds the three reference domain workers to a registry.
func Register(r *worker.Registry) error {
	for _, w := range []worker.Worker{Agriculture{}, Policy{}, Sustainability{}} {
		if err := r.Register(w); err != nil {
			return err
		}
	}
	return nil
}

// Agriculture recommends a crop for the season and field.
type Agriculture struct{}

// Descriptor implements worker.Worker.
func (Agriculture) Descriptor() worker.Descriptor {
	return worker.Descriptor{Type: models.WorkerAgriculture}
}

// Process implements worker.Worker.
func (Agriculture) Process(ctx context.Context, req worker.Request) models.WorkerResult {
	if err := ctx.Err(); err != nil {
		return failed(models.WorkerAgriculture, err)
	}

	season := req.Context.Season()
	confidence := 0.8
	crop, ok := firstKnownCrop(req.Query.Mentions(models.EntityCrop))
	if !ok {
		crop, _ = LookupCrop(seasonDefault[season])
		confidence = 0.7
	}

	content := fmt.Sprintf("%s is a good choice this %s season.", title(crop.Name), season)
	if !fitsSeason(crop, season) && season != "" {
		content = fmt.Sprintf("%s is usually not grown in %s; plan it for %s instead.", title(crop.Name), season, crop.Seasons[0])
		confidence = 0.65
	}
	if p, ok := req.Context.Profile(); ok && p.LandAcres > 0 {
		content += fmt.Sprintf(" On %.1f acres expect about %d rupees net.", p.LandAcres, int(p.LandAcres*float64(crop.IncomePerAcre)))
	}

	return models.WorkerResult{
		Worker:     models.WorkerAgriculture,
		Status:     models.StatusOK,
		Content:    content,
		Confidence: confidence,
		Sources:    []string{"state agriculture department crop calendar"},
		Entities: map[string]string{
			models.EntityRecommendedCrop:  crop.Name,
			models.EntityWaterRequirement: crop.WaterRequirement,
			models.EntityExpectedIncome:   strconv.Itoa(crop.IncomePerAcre),
		},
		ActionSteps: append([]string(nil), crop.Steps...),
		Tips:        []string{"Get your soil tested every three years through the Soil Health Card scheme."},
	}
}

// Sustainability checks the agriculture recommendation for water stress.
type Sustainability struct{}

// Descriptor implements worker.Worker.
func (Sustainability) Descriptor() worker.Descriptor {
	return worker.Descriptor{
		Type:      models.WorkerSustainability,
		DependsOn: []models.WorkerType{models.WorkerAgriculture},
	}
}

// Process implements worker.Worker.
func (Sustainability) Process(ctx context.Context, req worker.Request) models.WorkerResult {
	if err := ctx.Err(); err != nil {
		return failed(models.WorkerSustainability, err)
	}

	agri, ok := req.Upstream[models.WorkerAgriculture]
	if !ok || req.Context.DependencyAbsent(models.WorkerAgriculture) {
		// Degrade: judge whatever crop the farmer named, if any.
		if crop, found := firstKnownCrop(req.Query.Mentions(models.EntityCrop)); found {
			return assessCrop(crop, 0.6)
		}
		return models.WorkerResult{
			Worker:      models.WorkerSustainability,
			Status:      models.StatusLowConfidence,
			Content:     "Mulching and drip irrigation cut water use by a third for most crops.",
			Confidence:  0.45,
			ActionSteps: []string{"Mulch between rows after the first weeding."},
		}
	}

	name, _ := agri.Entity(models.EntityRecommendedCrop)
	crop, found := LookupCrop(name)
	if !found {
		return models.WorkerResult{
			Worker:     models.WorkerSustainability,
			Status:     models.StatusLowConfidence,
			Content:    "No water data for this crop; use drip irrigation where possible.",
			Confidence: 0.4,
		}
	}
	return assessCrop(crop, 0.8)
}

func assessCrop(crop CropFacts, confidence float64) models.WorkerResult {
	if crop.WaterRequirement == "high" && crop.Alternative != "" {
		alt, _ := LookupCrop(crop.Alternative)
		return models.WorkerResult{
			Worker:     models.WorkerSustainability,
			Status:     models.StatusOK,
			Content:    fmt.Sprintf("%s needs far less water than %s and protects the groundwater.", title(alt.Name), crop.Name),
			Confidence: confidence,
			Sources:    []string{"central ground water board advisory"},
			Entities: map[string]string{
				models.EntityRecommendedCrop:  alt.Name,
				models.EntityWaterRequirement: alt.WaterRequirement,
				models.EntityExpectedIncome:   strconv.Itoa(alt.IncomePerAcre),
			},
			ActionSteps: append([]string(nil), alt.Steps...),
			Tips:        []string{"Drip irrigation qualifies for a PMKSY subsidy."},
		}
	}
	return models.WorkerResult{
		Worker:     models.WorkerSustainability,
		Status:     models.StatusOK,
		Content:    fmt.Sprintf("%s has a %s water need; it is sustainable with mulching.", title(crop.Name), crop.WaterRequirement),
		Confidence: confidence,
		Entities: map[string]string{
			models.EntityRecommendedCrop:  crop.Name,
			models.EntityWaterRequirement: crop.WaterRequirement,
			models.EntityExpectedIncome:   strconv.Itoa(crop.IncomePerAcre),
		},
		Tips: []string{"Rotate with a pulse crop to restore soil nitrogen."},
	}
}

// Policy answers scheme and subsidy questions. It may consult the
// agriculture result to tailor insurance advice.
type Policy struct{}

// Descriptor implements worker.Worker.
func (Policy) Descriptor() worker.Descriptor {
	return worker.Descriptor{
		Type:  models.WorkerPolicy,
		Peers: []models.WorkerType{models.WorkerAgriculture},
	}
}

// Process implements worker.Worker.
func (Policy) Process(ctx context.Context, req worker.Request) models.WorkerResult {
	if err := ctx.Err(); err != nil {
		return failed(models.WorkerPolicy, err)
	}

	text := req.Query.Text()
	for _, m := range req.Query.Mentions(models.EntityScheme) {
		text += " " + m
	}
	scheme, ok := MatchScheme(text)
	if !ok {
		return models.WorkerResult{
			Worker:     models.WorkerPolicy,
			Status:     models.StatusLowConfidence,
			Content:    "Schemes that may apply: " + strings.Join(SchemeNames(), ", ") + ".",
			Confidence: 0.45,
			Sources:    []string{"agriwelfare.gov.in"},
		}
	}

	result := models.WorkerResult{
		Worker:      models.WorkerPolicy,
		Status:      models.StatusOK,
		Content:     scheme.Summary + " Eligibility: " + scheme.Eligibility,
		Confidence:  0.85,
		Sources:     []string{scheme.Source},
		Entities:    map[string]string{models.EntitySchemeName: scheme.Name},
		ActionSteps: append([]string(nil), scheme.Steps...),
	}

	if req.Peers != nil {
		if agri, err := req.Peers.Request(ctx, models.WorkerAgriculture); err == nil {
			if crop, ok := agri.Entity(models.EntityRecommendedCrop); ok {
				result.Tips = append(result.Tips, fmt.Sprintf("Insure your %s crop under PMFBY before sowing closes.", crop))
			}
		}
	}
	return result
}

func failed(t models.WorkerType, err error) models.WorkerResult {
	return models.WorkerResult{Worker: t, Status: models.StatusError, Error: err.Error()}
}

func firstKnownCrop(mentions []string) (CropFacts, bool) {
	for _, m := range mentions {
		if c, ok := LookupCrop(m); ok {
			return c, true
		}
	}
	return CropFacts{}, false
}

func fitsSeason(c CropFacts, s models.Season) bool {
	for _, cs := range c.Seasons {
		if cs == s {
			return true
		}
	}
	return false
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
