// Package synth merges resolved worker results into one bounded response.
//
// Synthesize is pure: given the same results, conflicts, query and budget
// it returns an identical Response. Timestamps come from the query and the
// budget, never from the clock.
package synth

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/x/ansi"

	"github.com/ShayCichocki/krishi/internal/textutil"
	"github.com/ShayCichocki/krishi/pkg/models"
)

// Defaults for Budget.
const (
	DefaultTargetWords       = 250
	DefaultLowBandwidthWords = 100
	DefaultPlainLineWidth    = 160
)

// Budget bounds and shapes the synthesized text.
type Budget struct {
	// TargetWords is the soft word limit. Zero means DefaultTargetWords.
	TargetWords int
	// LowBandwidth switches to LowBandwidthWords.
	LowBandwidth      bool
	LowBandwidthWords int
	// LineWidth wraps lines; zero disables wrapping.
	LineWidth int
	Format    models.FormatType
	Units     UnitMap
	// CompletedAt stamps the response.
	CompletedAt time.Time
}

func (b Budget) limit() int {
	if b.LowBandwidth {
		if b.LowBandwidthWords > 0 {
			return b.LowBandwidthWords
		}
		return DefaultLowBandwidthWords
	}
	if b.TargetWords > 0 {
		return b.TargetWords
	}
	return DefaultTargetWords
}

// sections holds the rendered pieces in their fixed order.
type sections struct {
	direct  string
	options []optionBlock
	details []string
	steps   []string
	tips    []string
	note    string
}

type optionBlock struct {
	items    []string
	tradeOff string
}

// Synthesize builds the Response for a query from resolved results.
//
// Contributions holds every non-failed result in results. Required workers
// (the query's intents) that neither contributed nor were set aside by a
// MERGED conflict are reported missing and make the response partial.
func Synthesize(results map[models.WorkerType]models.WorkerResult, conflicts []models.ConflictRecord, q models.Query, b Budget) models.Response {
	resp := models.Response{
		QueryID:     q.ID,
		Language:    q.Language,
		Format:      b.Format,
		CreatedAt:   q.ReceivedAt,
		CompletedAt: b.CompletedAt,
		Conflicts:   conflicts,
	}
	if resp.Format == "" {
		resp.Format = models.FormatPlain
	}
	if !b.CompletedAt.IsZero() && !q.ReceivedAt.IsZero() {
		resp.Duration = b.CompletedAt.Sub(q.ReceivedAt)
	}

	contributing := make([]models.WorkerType, 0, len(results))
	for w, r := range results {
		if !r.Status.Failed() {
			contributing = append(contributing, w)
		}
	}
	models.SortWorkers(contributing)

	if len(contributing) > 0 {
		resp.Contributions = make(map[models.WorkerType]models.WorkerResult, len(contributing))
		var sum float64
		for _, w := range contributing {
			resp.Contributions[w] = results[w]
			sum += results[w].Confidence
		}
		resp.Confidence = roundConfidence(sum / float64(len(contributing)))
	}

	resp.MissingTopics = missingTopics(q, results, conflicts)
	resp.Partial = len(resp.MissingTopics) > 0

	sec := buildSections(results, contributing, conflicts, q, b.Units)
	if resp.Partial {
		sec.note = fmt.Sprintf("Note: %s information is unavailable right now.", strings.Join(resp.MissingTopics, " and "))
	}
	fit(&sec, b.limit())

	resp.Text = render(sec, resp.Format, b.LineWidth)
	return resp
}

// directWorker picks whose content answers the query first: the primary
// intent if it contributed, else the result chosen over it in a merge, else
// the highest-priority contributor.
func directWorker(q models.Query, results map[models.WorkerType]models.WorkerResult, contributing []models.WorkerType, conflicts []models.ConflictRecord) models.WorkerType {
	if r, ok := results[q.PrimaryIntent]; ok && !r.Status.Failed() {
		return q.PrimaryIntent
	}
	for _, c := range conflicts {
		if c.Outcome != models.OutcomeMerged {
			continue
		}
		for _, w := range c.Workers() {
			if w == q.PrimaryIntent {
				return c.Chosen
			}
		}
	}
	if len(contributing) > 0 {
		return contributing[0]
	}
	return ""
}

func buildSections(results map[models.WorkerType]models.WorkerResult, contributing []models.WorkerType, conflicts []models.ConflictRecord, q models.Query, units UnitMap) sections {
	clean := func(s string) string { return units.Apply(sanitize(s)) }

	var sec sections
	presented := make(map[models.WorkerType]bool)
	for _, c := range conflicts {
		if c.Outcome != models.OutcomePresentedBoth {
			continue
		}
		block := optionBlock{tradeOff: clean(c.TradeOff)}
		for _, r := range c.Results {
			block.items = append(block.items, clean(r.Content))
			presented[r.Worker] = true
		}
		sec.options = append(sec.options, block)
	}

	// A worker shown as an option is never also the direct answer or a
	// detail; the options block speaks for it.
	direct := directWorker(q, results, contributing, conflicts)
	if presented[direct] {
		direct = ""
		for _, w := range contributing {
			if !presented[w] {
				direct = w
				break
			}
		}
	}
	if direct != "" {
		sec.direct = clean(results[direct].Content)
	}

	order := append([]models.WorkerType(nil), contributing...)
	if direct != "" {
		order = append([]models.WorkerType{direct}, without(order, direct)...)
	}

	seenSteps := make(map[string]bool)
	seenTips := make(map[string]bool)
	for _, w := range order {
		r := results[w]
		if w != direct && !presented[w] {
			if d := clean(r.Content); d != "" && d != sec.direct {
				sec.details = append(sec.details, d)
			}
		}
		for _, s := range r.ActionSteps {
			if s = clean(s); s != "" && !seenSteps[s] {
				seenSteps[s] = true
				sec.steps = append(sec.steps, s)
			}
		}
		for _, tip := range r.Tips {
			if tip = clean(tip); tip != "" && !seenTips[tip] {
				seenTips[tip] = true
				sec.tips = append(sec.tips, tip)
			}
		}
	}
	return sec
}

// fit drops tips, then supporting details, one at a time from the end until
// the text fits. The direct answer, options, steps and note always stay.
func fit(sec *sections, limit int) {
	for count(*sec) > limit && len(sec.tips) > 0 {
		sec.tips = sec.tips[:len(sec.tips)-1]
	}
	for count(*sec) > limit && len(sec.details) > 0 {
		sec.details = sec.details[:len(sec.details)-1]
	}
}

func count(sec sections) int {
	n := textutil.CountWords(sec.direct) + textutil.CountWords(sec.note)
	for _, o := range sec.options {
		n += textutil.CountWords(o.tradeOff)
		for _, it := range o.items {
			n += textutil.CountWords(it)
		}
	}
	for _, group := range [][]string{sec.details, sec.steps, sec.tips} {
		for _, s := range group {
			n += textutil.CountWords(s)
		}
	}
	return n
}

func render(sec sections, format models.FormatType, width int) string {
	structured := format == models.FormatStructured
	var lines []string
	heading := func(plain, titled string) {
		if structured {
			if len(lines) > 0 {
				lines = append(lines, "")
			}
			lines = append(lines, "## "+titled)
		} else if plain != "" {
			lines = append(lines, plain)
		}
	}

	if sec.direct != "" {
		heading("", "Answer")
		lines = append(lines, sec.direct)
	}
	for _, o := range sec.options {
		heading("Options:", "Options")
		for i, it := range o.items {
			lines = append(lines, fmt.Sprintf("%d) %s", i+1, it))
		}
		if o.tradeOff != "" {
			lines = append(lines, "Trade-off: "+o.tradeOff)
		}
	}
	if len(sec.details) > 0 {
		heading("", "Details")
		lines = append(lines, sec.details...)
	}
	if len(sec.steps) > 0 {
		heading("Steps:", "Steps")
		for i, s := range sec.steps {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, s))
		}
	}
	if len(sec.tips) > 0 {
		heading("Tips:", "Tips")
		for _, tip := range sec.tips {
			lines = append(lines, "- "+tip)
		}
	}
	if sec.note != "" {
		if structured && len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, sec.note)
	}

	text := strings.Join(lines, "\n")
	if width > 0 {
		text = ansi.Wrap(text, width, "")
	}
	return text
}

// missingTopics names the required workers that did not contribute, in
// priority order. Workers set aside by a MERGED conflict are not missing.
func missingTopics(q models.Query, results map[models.WorkerType]models.WorkerResult, conflicts []models.ConflictRecord) []string {
	merged := make(map[models.WorkerType]bool)
	for _, c := range conflicts {
		if c.Outcome == models.OutcomeMerged {
			for _, w := range c.Workers() {
				merged[w] = true
			}
		}
	}

	required := append([]models.WorkerType(nil), q.Intents...)
	models.SortWorkers(required)

	var out []string
	for _, w := range required {
		if r, ok := results[w]; ok && !r.Status.Failed() {
			continue
		}
		if _, ok := results[w]; !ok && merged[w] {
			continue
		}
		out = append(out, w.Topic())
	}
	return out
}

// Format makes text produced outside Synthesize, such as a translation of
// the response, safe for a plain-text channel. Escape sequences and control
// characters are removed, line breaks are kept and lines are wrapped to
// width. A width of zero disables wrapping.
func Format(text string, width int) string {
	lines := strings.Split(ansi.Strip(text), "\n")
	for i, l := range lines {
		lines[i] = sanitize(l)
	}
	text = strings.Join(lines, "\n")
	if width > 0 {
		text = ansi.Wrap(text, width, "")
	}
	return text
}

// sanitize strips escape sequences and control characters and collapses
// whitespace to single spaces.
func sanitize(s string) string {
	s = ansi.Strip(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func without(ws []models.WorkerType, drop models.WorkerType) []models.WorkerType {
	out := ws[:0:0]
	for _, w := range ws {
		if w != drop {
			out = append(out, w)
		}
	}
	return out
}

func roundConfidence(v float64) float64 {
	return float64(int(v*1000+0.5)) / 1000
}
