// Package intent routes a query to the set of workers that should answer it.
package intent

import (
	"github.com/ShayCichocki/krishi/pkg/models"
)

// Keywords maps each worker type to the words and phrases that signal it.
// It is the single source of truth for keyword routing; the routing file in
// internal/config overrides it when present.
type Keywords map[models.WorkerType][]string

// DefaultKeywords returns the built-in routing table.
func DefaultKeywords() Keywords {
	return Keywords{
		models.WorkerAgriculture: {
			"crop", "crops", "sow", "sowing", "plant", "planting", "seed", "seeds",
			"variety", "harvest", "yield", "fertilizer", "fertiliser", "urea",
			"pest", "pests", "disease", "grow", "cultivate", "kharif", "rabi",
			"zaid", "spray", "weed", "nursery",
		},
		models.WorkerPolicy: {
			"scheme", "schemes", "subsidy", "subsidies", "loan", "insurance",
			"eligible", "eligibility", "government", "apply", "registration",
			"benefit", "benefits", "msp", "credit", "compensation", "claim",
			"documents",
		},
		models.WorkerSustainability: {
			"water", "groundwater", "irrigation", "drip", "sprinkler", "mulch",
			"mulching", "organic", "soil health", "sustainable", "environment",
			"drought", "save water", "compost", "rainwater", "erosion",
			"climate",
		},
		models.WorkerTranslator: {
			"translate", "translation", "meaning", "in english", "in hindi",
			"what does", "word for",
		},
	}
}

// Lexicon lists the mentions ExtractEntities recognizes, per entity kind.
type Lexicon map[string][]string

// DefaultLexicon returns the built-in entity lexicon.
func DefaultLexicon() Lexicon {
	return Lexicon{
		models.EntityCrop: {
			"paddy", "rice", "wheat", "cotton", "sugarcane", "millet", "bajra",
			"jowar", "ragi", "soybean", "chickpea", "gram", "moong", "pigeon pea",
			"tur", "arhar", "maize", "mustard", "groundnut",
		},
		models.EntityScheme: {
			"pm kisan", "pm-kisan", "kisan samman", "pmfby", "fasal bima",
			"pmksy", "kcc", "kisan credit card", "soil health card",
		},
		models.EntityLocation: {
			"punjab", "haryana", "uttar pradesh", "bihar", "maharashtra",
			"karnataka", "tamil nadu", "andhra pradesh", "telangana",
			"madhya pradesh", "rajasthan", "gujarat", "odisha", "west bengal",
			"vidarbha", "marathwada",
		},
	}
}

// entityWorkers maps entity kinds to the worker they signal.
var entityWorkers = map[string]models.WorkerType{
	models.EntityCrop:   models.WorkerAgriculture,
	models.EntityScheme: models.WorkerPolicy,
}
