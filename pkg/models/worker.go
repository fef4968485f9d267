package models

import "sort"

// WorkerType identifies a specialized capability participating in orchestration.
type WorkerType string

const (
	// WorkerPolicy answers questions about government schemes and subsidies.
	WorkerPolicy WorkerType = "policy"
	// WorkerAgriculture answers questions about crops, seasons, and practices.
	WorkerAgriculture WorkerType = "agriculture"
	// WorkerSustainability evaluates water, soil, and environmental impact.
	WorkerSustainability WorkerType = "sustainability"
	// WorkerTranslator translates content between the farmer's language and English.
	WorkerTranslator WorkerType = "translator"
)

// Valid returns true if the worker type is a known value.
func (w WorkerType) Valid() bool {
	switch w {
	case WorkerPolicy, WorkerAgriculture, WorkerSustainability, WorkerTranslator:
		return true
	default:
		return false
	}
}

// Priority returns the fixed ordering rank of the worker type.
// Lower values sort first. Used for deterministic tie-breaking.
func (w WorkerType) Priority() int {
	switch w {
	case WorkerAgriculture:
		return 0
	case WorkerPolicy:
		return 1
	case WorkerSustainability:
		return 2
	case WorkerTranslator:
		return 3
	default:
		return 4
	}
}

// Topic returns the farmer-facing name of the worker's subject area.
func (w WorkerType) Topic() string {
	switch w {
	case WorkerPolicy:
		return "scheme and subsidy"
	case WorkerAgriculture:
		return "crop advice"
	case WorkerSustainability:
		return "water and soil"
	case WorkerTranslator:
		return "translation"
	default:
		return string(w)
	}
}

// DomainWorkers lists the worker types that answer domain questions.
// The translator is a pipeline capability, not a domain worker.
func DomainWorkers() []WorkerType {
	return []WorkerType{WorkerAgriculture, WorkerPolicy, WorkerSustainability}
}

// AllWorkers lists every known worker type in priority order.
func AllWorkers() []WorkerType {
	return []WorkerType{WorkerAgriculture, WorkerPolicy, WorkerSustainability, WorkerTranslator}
}

// SortWorkers sorts worker types in place by priority, then name.
func SortWorkers(ws []WorkerType) {
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].Priority() != ws[j].Priority() {
			return ws[i].Priority() < ws[j].Priority()
		}
		return ws[i] < ws[j]
	})
}
