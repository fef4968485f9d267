package synth

import (
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/krishi/internal/textutil"
	"github.com/ShayCichocki/krishi/pkg/models"
)

var received = time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)

func classified(primary models.WorkerType, intents ...models.WorkerType) models.Query {
	return models.Query{
		ID:            "q-1",
		RawText:       "question",
		Language:      "hi",
		ReceivedAt:    received,
		Intents:       intents,
		PrimaryIntent: primary,
	}
}

func result(w models.WorkerType, content string, conf float64) models.WorkerResult {
	return models.WorkerResult{Worker: w, Status: models.StatusOK, Content: content, Confidence: conf}
}

func budget() Budget {
	return Budget{LineWidth: DefaultPlainLineWidth, Units: DefaultUnitMap(), CompletedAt: received.Add(2 * time.Second)}
}

func TestSynthesize_ContributionsMatchNonFailed(t *testing.T) {
	results := map[models.WorkerType]models.WorkerResult{
		models.WorkerAgriculture:    result(models.WorkerAgriculture, "Sow wheat.", 0.8),
		models.WorkerPolicy:         {Worker: models.WorkerPolicy, Status: models.StatusError, Error: "boom"},
		models.WorkerSustainability: {Worker: models.WorkerSustainability, Status: models.StatusLowConfidence, Content: "Mulch.", Confidence: 0.4},
	}
	q := classified(models.WorkerAgriculture, models.WorkerAgriculture, models.WorkerPolicy, models.WorkerSustainability)

	resp := Synthesize(results, nil, q, budget())

	want := []models.WorkerType{models.WorkerAgriculture, models.WorkerSustainability}
	if got := resp.ContributingWorkers(); !reflect.DeepEqual(got, want) {
		t.Errorf("ContributingWorkers() = %v, want %v", got, want)
	}
	if resp.Confidence != 0.6 {
		t.Errorf("Confidence = %v, want 0.6", resp.Confidence)
	}
	if !resp.Partial {
		t.Error("expected Partial when policy failed")
	}
	if !strings.Contains(resp.Text, "Note: scheme and subsidy information is unavailable right now.") {
		t.Errorf("Text missing partial note:\n%s", resp.Text)
	}
	if resp.Duration != 2*time.Second {
		t.Errorf("Duration = %v, want 2s", resp.Duration)
	}
}

func TestSynthesize_SectionOrder(t *testing.T) {
	agri := result(models.WorkerAgriculture, "Grow cotton this kharif.", 0.8)
	agri.ActionSteps = []string{"Use certified seed."}
	agri.Tips = []string{"Test your soil."}
	policy := result(models.WorkerPolicy, "PM-KISAN pays 6000 rupees a year.", 0.9)
	policy.ActionSteps = []string{"Register at a CSC."}

	results := map[models.WorkerType]models.WorkerResult{
		models.WorkerAgriculture: agri,
		models.WorkerPolicy:      policy,
	}
	resp := Synthesize(results, nil, classified(models.WorkerPolicy, models.WorkerAgriculture, models.WorkerPolicy), budget())

	order := []string{
		"PM-KISAN pays",
		"Grow cotton",
		"Steps:",
		"1. Register at a CSC.",
		"2. Use certified seed.",
		"Tips:",
		"- Test your soil.",
	}
	last := -1
	for _, s := range order {
		i := strings.Index(resp.Text, s)
		if i < 0 {
			t.Fatalf("Text missing %q:\n%s", s, resp.Text)
		}
		if i < last {
			t.Errorf("%q appears out of order:\n%s", s, resp.Text)
		}
		last = i
	}
	if resp.Partial {
		t.Error("no worker failed, response should not be partial")
	}
}

func TestSynthesize_PresentedBothRendersOptions(t *testing.T) {
	agri := result(models.WorkerAgriculture, "Sugarcane pays best.", 0.8)
	sust := result(models.WorkerSustainability, "Soybean saves water.", 0.8)
	conflicts := []models.ConflictRecord{{
		Axis:     models.EntityWaterRequirement,
		Results:  []models.WorkerResult{agri, sust},
		Outcome:  models.OutcomePresentedBoth,
		TradeOff: "Sugarcane earns more; soybean uses less water.",
	}}
	results := map[models.WorkerType]models.WorkerResult{
		models.WorkerAgriculture:    agri,
		models.WorkerSustainability: sust,
	}

	resp := Synthesize(results, conflicts, classified(models.WorkerAgriculture, models.WorkerAgriculture, models.WorkerSustainability), budget())
	for _, s := range []string{"Options:", "1) Sugarcane pays best.", "2) Soybean saves water.", "Trade-off: Sugarcane earns more"} {
		if !strings.Contains(resp.Text, s) {
			t.Errorf("Text missing %q:\n%s", s, resp.Text)
		}
	}
	for _, s := range []string{"Sugarcane pays best.", "Soybean saves water."} {
		if n := strings.Count(resp.Text, s); n != 1 {
			t.Errorf("%q appears %d times, want once:\n%s", s, n, resp.Text)
		}
	}
	if !strings.HasPrefix(resp.Text, "Options:") {
		t.Errorf("no side of an unresolved conflict should lead as the answer:\n%s", resp.Text)
	}
}

func TestSynthesize_PresentedBothKeepsOtherDirectAnswer(t *testing.T) {
	agri := result(models.WorkerAgriculture, "Sugarcane pays best.", 0.8)
	sust := result(models.WorkerSustainability, "Soybean saves water.", 0.8)
	policy := result(models.WorkerPolicy, "PMFBY covers both crops.", 0.9)
	conflicts := []models.ConflictRecord{{
		Axis:     models.EntityWaterRequirement,
		Results:  []models.WorkerResult{agri, sust},
		Outcome:  models.OutcomePresentedBoth,
		TradeOff: "T",
	}}
	results := map[models.WorkerType]models.WorkerResult{
		models.WorkerAgriculture:    agri,
		models.WorkerPolicy:         policy,
		models.WorkerSustainability: sust,
	}

	resp := Synthesize(results, conflicts, classified(models.WorkerAgriculture, models.WorkerAgriculture, models.WorkerPolicy, models.WorkerSustainability), budget())

	if !strings.HasPrefix(resp.Text, "PMFBY covers both crops.\nOptions:") {
		t.Errorf("non-conflicting answer should lead before the options:\n%s", resp.Text)
	}
	for _, s := range []string{"Sugarcane pays best.", "Soybean saves water.", "PMFBY covers both crops."} {
		if n := strings.Count(resp.Text, s); n != 1 {
			t.Errorf("%q appears %d times, want once:\n%s", s, n, resp.Text)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		width int
		want  string
	}{
		{name: "strips escapes and bells", in: "\x07\x1b[31mred\x1b[0m text", width: 0, want: "red text"},
		{name: "keeps line breaks", in: "one\r\n\ntwo", width: 0, want: "one\n\ntwo"},
		{name: "wraps long lines", in: "aaa bbb ccc", width: 7, want: "aaa bbb\nccc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Format(tt.in, tt.width); got != tt.want {
				t.Errorf("Format(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
			}
		})
	}
}

func TestSynthesize_MergedShowsOnlyChosen(t *testing.T) {
	agri := result(models.WorkerAgriculture, "Paddy is a good choice.", 0.8)
	sust := result(models.WorkerSustainability, "Millet needs far less water.", 0.8)
	conflicts := []models.ConflictRecord{{
		Axis:    models.EntityWaterRequirement,
		Results: []models.WorkerResult{agri, sust},
		Outcome: models.OutcomeMerged,
		Chosen:  models.WorkerSustainability,
	}}
	// The resolver already removed the discarded agriculture result.
	results := map[models.WorkerType]models.WorkerResult{models.WorkerSustainability: sust}

	resp := Synthesize(results, conflicts, classified(models.WorkerAgriculture, models.WorkerAgriculture, models.WorkerSustainability), budget())

	if !strings.HasPrefix(resp.Text, "Millet needs far less water.") {
		t.Errorf("merged recommendation should lead:\n%s", resp.Text)
	}
	if strings.Contains(resp.Text, "Paddy") || strings.Contains(resp.Text, "Options:") {
		t.Errorf("discarded alternative must not appear:\n%s", resp.Text)
	}
	if resp.Partial {
		t.Error("a merged-away worker is not missing")
	}
	if _, ok := resp.Contributions[models.WorkerAgriculture]; ok {
		t.Error("discarded result must not be a contribution")
	}
}

func TestSynthesize_LowBandwidthKeepsDirectAndSteps(t *testing.T) {
	agri := result(models.WorkerAgriculture, "Sow wheat by mid November.", 0.8)
	agri.ActionSteps = []string{"Irrigate at crown root stage."}
	agri.Tips = []string{strings.Repeat("tip ", 60)}
	sust := result(models.WorkerSustainability, strings.Repeat("detail ", 60), 0.8)

	results := map[models.WorkerType]models.WorkerResult{
		models.WorkerAgriculture:    agri,
		models.WorkerSustainability: sust,
	}
	b := budget()
	b.LowBandwidth = true
	b.LowBandwidthWords = 20

	resp := Synthesize(results, nil, classified(models.WorkerAgriculture, models.WorkerAgriculture, models.WorkerSustainability), b)

	if !strings.Contains(resp.Text, "Sow wheat by mid November.") {
		t.Error("direct answer dropped")
	}
	if !strings.Contains(resp.Text, "Irrigate at crown root stage.") {
		t.Error("action steps dropped")
	}
	if strings.Contains(resp.Text, "tip") || strings.Contains(resp.Text, "detail") {
		t.Errorf("tips and details should be dropped:\n%s", resp.Text)
	}
	if _, ok := resp.Contributions[models.WorkerSustainability]; !ok {
		t.Error("compressed-away worker still contributed a result")
	}
}

func TestSynthesize_DropsTipsBeforeDetails(t *testing.T) {
	agri := result(models.WorkerAgriculture, "Sow wheat.", 0.8)
	agri.Tips = []string{"Rotate crops every season to keep soil healthy."}
	sust := result(models.WorkerSustainability, "Wheat has a medium water need.", 0.8)

	results := map[models.WorkerType]models.WorkerResult{
		models.WorkerAgriculture:    agri,
		models.WorkerSustainability: sust,
	}
	b := budget()
	b.TargetWords = 10

	resp := Synthesize(results, nil, classified(models.WorkerAgriculture), b)
	if strings.Contains(resp.Text, "Rotate") {
		t.Errorf("tips should go first:\n%s", resp.Text)
	}
	if !strings.Contains(resp.Text, "medium water need") {
		t.Errorf("details should survive when tips alone make room:\n%s", resp.Text)
	}
	if n := textutil.CountWords(resp.Text); n > 10 {
		t.Errorf("word count = %d, want <= 10", n)
	}
}

func TestSynthesize_Formatting(t *testing.T) {
	agri := result(models.WorkerAgriculture, "Plant on 2 hectares\x07 now.\x1b[31m Expect 3 tonnes.\x1b[0m", 0.8)
	results := map[models.WorkerType]models.WorkerResult{models.WorkerAgriculture: agri}

	resp := Synthesize(results, nil, classified(models.WorkerAgriculture, models.WorkerAgriculture), budget())

	if resp.Text != "Plant on 4.9 acres now. Expect 30 quintals." {
		t.Errorf("Text = %q", resp.Text)
	}
}

func TestSynthesize_WrapsLines(t *testing.T) {
	agri := result(models.WorkerAgriculture, strings.Repeat("water ", 40), 0.8)
	results := map[models.WorkerType]models.WorkerResult{models.WorkerAgriculture: agri}
	b := budget()
	b.LineWidth = 30

	resp := Synthesize(results, nil, classified(models.WorkerAgriculture), b)
	for _, line := range strings.Split(resp.Text, "\n") {
		if len(line) > 30 {
			t.Errorf("line %q exceeds 30 columns", line)
		}
	}
}

func TestSynthesize_Structured(t *testing.T) {
	agri := result(models.WorkerAgriculture, "Sow wheat.", 0.8)
	agri.ActionSteps = []string{"Sow by mid November."}
	results := map[models.WorkerType]models.WorkerResult{models.WorkerAgriculture: agri}
	b := budget()
	b.Format = models.FormatStructured

	resp := Synthesize(results, nil, classified(models.WorkerAgriculture), b)
	for _, s := range []string{"## Answer", "## Steps"} {
		if !strings.Contains(resp.Text, s) {
			t.Errorf("structured text missing %q:\n%s", s, resp.Text)
		}
	}
	if resp.Format != models.FormatStructured {
		t.Errorf("Format = %s", resp.Format)
	}
}

func TestSynthesize_Idempotent(t *testing.T) {
	agri := result(models.WorkerAgriculture, "Sow wheat.", 0.8)
	agri.Tips = []string{"a", "b"}
	results := map[models.WorkerType]models.WorkerResult{
		models.WorkerAgriculture: agri,
		models.WorkerPolicy:      result(models.WorkerPolicy, "KCC gives cheap loans.", 0.9),
	}
	q := classified(models.WorkerAgriculture, models.WorkerAgriculture, models.WorkerPolicy, models.WorkerSustainability)

	first := Synthesize(results, nil, q, budget())
	second := Synthesize(results, nil, q, budget())
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Synthesize not idempotent:\n%+v\n%+v", first, second)
	}
}

func TestUnitMap_Apply(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"1 hectare", "2.5 acres"},
		{"1,000 ha of land", "2471 acres of land"},
		{"harvest 2 tonnes", "harvest 20 quintals"},
		{"a hat and 5 hats", "a hat and 5 hats"},
	}
	for _, tt := range tests {
		if got := DefaultUnitMap().Apply(tt.in); got != tt.want {
			t.Errorf("Apply(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
