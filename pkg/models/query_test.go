package models

import (
	"testing"
	"time"
)

func TestQuery_WithIntentsPreservesOriginal(t *testing.T) {
	q := Query{
		ID:       "q-1",
		RawText:  "which crop for kharif",
		Entities: map[string][]string{EntityCrop: {"paddy"}},
	}

	first := q.WithIntents([]WorkerType{WorkerAgriculture}, WorkerAgriculture)
	if first.Previous != nil {
		t.Error("first classification should not record a previous query")
	}

	second := first.WithIntents([]WorkerType{WorkerAgriculture, WorkerPolicy}, WorkerPolicy)
	if second.Previous == nil {
		t.Fatal("re-classification should preserve the original")
	}
	if len(second.Previous.Intents) != 1 || second.Previous.Intents[0] != WorkerAgriculture {
		t.Errorf("Previous.Intents = %v, want [agriculture]", second.Previous.Intents)
	}
	if len(first.Intents) != 1 {
		t.Errorf("original was mutated: %v", first.Intents)
	}

	second.Entities[EntityCrop][0] = "wheat"
	if first.Entities[EntityCrop][0] != "paddy" {
		t.Error("entity map is shared between query copies")
	}
}

func TestQuery_Text(t *testing.T) {
	q := Query{RawText: "dhan ki kheti"}
	if q.Text() != "dhan ki kheti" {
		t.Errorf("Text() = %q, want raw text", q.Text())
	}
	q.TranslatedText = "paddy farming"
	if q.Text() != "paddy farming" {
		t.Errorf("Text() = %q, want translated text", q.Text())
	}
}

func TestSharedContext_IsReadOnly(t *testing.T) {
	profile := &FarmerProfile{FarmerID: "f-1", PrimaryCrops: []string{"cotton"}}
	history := []Turn{{QueryID: "a", Question: "first"}, {QueryID: "b", Question: "second"}}

	sc := NewSharedContext(ContextInput{
		Location: "Nagpur",
		Season:   SeasonKharif,
		History:  history,
		Profile:  profile,
		Weather:  &Weather{RainfallMM: 12, ObservedAt: time.Now()},
	})

	// Mutating inputs must not leak into the context.
	profile.PrimaryCrops[0] = "soybean"
	history[0].Question = "changed"

	got, ok := sc.Profile()
	if !ok || got.PrimaryCrops[0] != "cotton" {
		t.Errorf("Profile().PrimaryCrops = %v, want [cotton]", got.PrimaryCrops)
	}

	h := sc.History()
	if h[0].Question != "first" || h[1].Question != "second" {
		t.Errorf("History() = %v, want original order", h)
	}

	// Mutating accessor results must not leak back either.
	h[0].Question = "mutated"
	if sc.History()[0].Question != "first" {
		t.Error("History() returned the internal slice")
	}
}

func TestSharedContext_WithAbsent(t *testing.T) {
	base := NewSharedContext(ContextInput{Location: "Pune"})
	annotated := base.WithAbsent(WorkerAgriculture)

	if base.DependencyAbsent(WorkerAgriculture) {
		t.Error("WithAbsent mutated the base context")
	}
	if !annotated.DependencyAbsent(WorkerAgriculture) {
		t.Error("annotated context should mark agriculture absent")
	}
	if annotated.Location() != "Pune" {
		t.Errorf("Location() = %q, want Pune", annotated.Location())
	}
}
