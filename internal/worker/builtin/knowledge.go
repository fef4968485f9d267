// Package builtin provides rule-based reference workers backed by small
// static knowledge tables. They let the orchestrator run end to end without
// external capability providers.
package builtin

import (
	"strings"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// CropFacts are the static facts the reference workers know about a crop.
type CropFacts struct {
	Name             string
	Seasons          []models.Season
	WaterRequirement string
	// IncomePerAcre is a typical net income in rupees.
	IncomePerAcre int
	// Alternative is a lower-water crop for the same season, if any.
	Alternative string
	Steps       []string
}

var crops = map[string]CropFacts{
	"paddy": {
		Name: "paddy", Seasons: []models.Season{models.SeasonKharif},
		WaterRequirement: "high", IncomePerAcre: 32000, Alternative: "millet",
		Steps: []string{"Prepare nursery beds 25 days before transplanting.", "Keep 5 cm standing water after transplanting."},
	},
	"sugarcane": {
		Name: "sugarcane", Seasons: []models.Season{models.SeasonKharif, models.SeasonZaid},
		WaterRequirement: "high", IncomePerAcre: 60000, Alternative: "soybean",
		Steps: []string{"Plant setts in furrows 90 cm apart.", "Use trash mulching to save water."},
	},
	"wheat": {
		Name: "wheat", Seasons: []models.Season{models.SeasonRabi},
		WaterRequirement: "medium", IncomePerAcre: 28000, Alternative: "chickpea",
		Steps: []string{"Sow by mid November.", "Give the first irrigation at crown root stage, about 21 days."},
	},
	"cotton": {
		Name: "cotton", Seasons: []models.Season{models.SeasonKharif},
		WaterRequirement: "medium", IncomePerAcre: 35000, Alternative: "pigeon pea",
		Steps: []string{"Use certified Bt seed.", "Scout weekly for pink bollworm."},
	},
	"millet": {
		Name: "millet", Seasons: []models.Season{models.SeasonKharif},
		WaterRequirement: "low", IncomePerAcre: 29000,
		Steps: []string{"Sow after the first good rain.", "Thin seedlings at 15 days."},
	},
	"soybean": {
		Name: "soybean", Seasons: []models.Season{models.SeasonKharif},
		WaterRequirement: "medium", IncomePerAcre: 30000,
		Steps: []string{"Treat seed with rhizobium culture.", "Ensure drainage after heavy rain."},
	},
	"chickpea": {
		Name: "chickpea", Seasons: []models.Season{models.SeasonRabi},
		WaterRequirement: "low", IncomePerAcre: 26000,
		Steps: []string{"Sow on residual moisture.", "One irrigation at flowering is enough."},
	},
	"moong": {
		Name: "moong", Seasons: []models.Season{models.SeasonZaid},
		WaterRequirement: "low", IncomePerAcre: 18000,
		Steps: []string{"Sow right after the rabi harvest.", "Pick pods in two rounds."},
	},
	"pigeon pea": {
		Name: "pigeon pea", Seasons: []models.Season{models.SeasonKharif},
		WaterRequirement: "low", IncomePerAcre: 31000,
		Steps: []string{"Intercrop with soybean in a 1:4 ratio."},
	},
}

// seasonDefault is the crop suggested when the query names none.
var seasonDefault = map[models.Season]string{
	models.SeasonKharif: "paddy",
	models.SeasonRabi:   "wheat",
	models.SeasonZaid:   "moong",
}

// LookupCrop returns the facts for a crop name.
func LookupCrop(name string) (CropFacts, bool) {
	c, ok := crops[strings.ToLower(strings.TrimSpace(name))]
	return c, ok
}

// CropNames returns every crop the reference workers know.
func CropNames() []string {
	out := make([]string, 0, len(crops))
	for name := range crops {
		out = append(out, name)
	}
	return out
}

// Scheme is a government programme the policy worker knows about.
type Scheme struct {
	Name        string
	Aliases     []string
	Summary     string
	Eligibility string
	Steps       []string
	Source      string
}

var schemes = []Scheme{
	{
		Name:        "PM-KISAN",
		Aliases:     []string{"pm kisan", "pm-kisan", "kisan samman"},
		Summary:     "PM-KISAN pays 6000 rupees a year in three instalments to landholding farmer families.",
		Eligibility: "All landholding farmer families, except income tax payers and institutional landholders.",
		Steps:       []string{"Register at the nearest Common Service Centre with Aadhaar and land records.", "Complete e-KYC on the PM-KISAN portal."},
		Source:      "pmkisan.gov.in",
	},
	{
		Name:        "PMFBY",
		Aliases:     []string{"pmfby", "fasal bima", "crop insurance"},
		Summary:     "PMFBY insures notified crops against yield loss at a premium of 2% for kharif and 1.5% for rabi.",
		Eligibility: "Farmers growing notified crops in notified areas, including tenant farmers.",
		Steps:       []string{"Apply through your bank or the PMFBY portal before the cut-off date."},
		Source:      "pmfby.gov.in",
	},
	{
		Name:        "PMKSY",
		Aliases:     []string{"pmksy", "drip subsidy", "micro irrigation", "sinchai"},
		Summary:     "PMKSY subsidises drip and sprinkler systems by 55% for small and marginal farmers.",
		Eligibility: "Farmers with their own land and a water source.",
		Steps:       []string{"Apply at the district horticulture or agriculture office with land papers."},
		Source:      "pmksy.gov.in",
	},
	{
		Name:        "KCC",
		Aliases:     []string{"kcc", "kisan credit card", "crop loan"},
		Summary:     "The Kisan Credit Card gives crop loans up to 3 lakh rupees at 4% effective interest when repaid on time.",
		Eligibility: "Owner cultivators, tenant farmers and sharecroppers.",
		Steps:       []string{"Visit your bank branch with land records and an ID proof."},
		Source:      "nabard.org",
	},
}

// MatchScheme returns the first scheme whose name or alias appears in text.
func MatchScheme(text string) (Scheme, bool) {
	lower := strings.ToLower(text)
	for _, s := range schemes {
		if strings.Contains(lower, strings.ToLower(s.Name)) {
			return s, true
		}
		for _, a := range s.Aliases {
			if strings.Contains(lower, a) {
				return s, true
			}
		}
	}
	return Scheme{}, false
}

// SchemeNames returns the canonical names of every known scheme.
func SchemeNames() []string {
	out := make([]string, 0, len(schemes))
	for _, s := range schemes {
		out = append(out, s.Name)
	}
	return out
}
