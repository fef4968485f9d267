package models

import "time"

// ResultStatus is the outcome of a single worker invocation.
type ResultStatus string

const (
	// StatusOK indicates the worker produced a usable answer.
	StatusOK ResultStatus = "OK"
	// StatusTimeout indicates the worker did not answer within its budget.
	StatusTimeout ResultStatus = "TIMEOUT"
	// StatusError indicates the worker failed.
	StatusError ResultStatus = "ERROR"
	// StatusLowConfidence indicates the worker answered but is unsure.
	StatusLowConfidence ResultStatus = "LOW_CONFIDENCE"
)

// Valid returns true if the status is a known value.
func (s ResultStatus) Valid() bool {
	switch s {
	case StatusOK, StatusTimeout, StatusError, StatusLowConfidence:
		return true
	default:
		return false
	}
}

// Failed reports whether the status means no usable content was produced.
// LOW_CONFIDENCE results still carry content and are not failures.
func (s ResultStatus) Failed() bool {
	return s == StatusTimeout || s == StatusError
}

// Well-known keys of WorkerResult.Entities. Each key is a decision axis
// or a value the conflict resolver and synthesizer understand.
const (
	EntityRecommendedCrop  = "recommended_crop"
	EntityWaterRequirement = "water_requirement"
	EntityExpectedIncome   = "expected_income"
	EntitySchemeName       = "scheme_name"
)

// WorkerResult is the answer of one worker for one query.
type WorkerResult struct {
	// Worker is the type of worker that produced the result.
	Worker WorkerType `json:"worker"`
	// Status is the outcome of the invocation.
	Status ResultStatus `json:"status"`
	// Content is the worker's direct answer text.
	Content string `json:"content,omitempty"`
	// Confidence is the worker's self-reported confidence (0-1).
	Confidence float64 `json:"confidence"`
	// Sources lists references backing the content.
	Sources []string `json:"sources,omitempty"`
	// Entities is the structured payload, keyed by decision axis.
	Entities map[string]string `json:"entities,omitempty"`
	// ActionSteps are concrete things the farmer can do.
	ActionSteps []string `json:"action_steps,omitempty"`
	// Tips are related, lower-priority notes.
	Tips []string `json:"tips,omitempty"`
	// Metadata is free-form worker metadata.
	Metadata map[string]string `json:"metadata,omitempty"`
	// Error holds the failure description for TIMEOUT and ERROR results.
	Error string `json:"error,omitempty"`
	// Duration is how long the invocation took.
	Duration time.Duration `json:"duration"`
}

// Entity returns an entity value and whether it was set.
func (r WorkerResult) Entity(key string) (string, bool) {
	v, ok := r.Entities[key]
	return v, ok && v != ""
}

// ConflictOutcome is how a conflict was resolved.
type ConflictOutcome string

const (
	// OutcomeMerged means one recommendation was chosen.
	OutcomeMerged ConflictOutcome = "MERGED"
	// OutcomePresentedBoth means all options are shown with trade-offs.
	OutcomePresentedBoth ConflictOutcome = "PRESENTED_BOTH"
)

// ConflictRecord captures contradictory results and their resolution.
type ConflictRecord struct {
	// Axis is the decision axis the results disagree on.
	Axis string `json:"axis"`
	// Results are the contradictory results, in worker priority order.
	Results []WorkerResult `json:"results"`
	// Outcome is the resolution applied.
	Outcome ConflictOutcome `json:"outcome"`
	// Chosen is the worker whose recommendation was kept for MERGED records.
	Chosen WorkerType `json:"chosen,omitempty"`
	// TradeOff summarizes the options for PRESENTED_BOTH records.
	TradeOff string `json:"trade_off,omitempty"`
	// EconomicImpact is the assessed impact score (0-1).
	EconomicImpact float64 `json:"economic_impact"`
}

// Workers returns the worker types involved in the conflict.
func (c ConflictRecord) Workers() []WorkerType {
	out := make([]WorkerType, 0, len(c.Results))
	for _, r := range c.Results {
		out = append(out, r.Worker)
	}
	return out
}

// FormatType selects how a response is rendered for a delivery channel.
type FormatType string

const (
	// FormatPlain is plain text for SMS and voice-like channels.
	FormatPlain FormatType = "plain"
	// FormatStructured includes section headings for app and chat channels.
	FormatStructured FormatType = "structured"
)

// ErrorPayload is the user-facing description of a failure.
type ErrorPayload struct {
	Kind           string   `json:"kind"`
	Subkind        string   `json:"subkind,omitempty"`
	Message        string   `json:"message"`
	NextActions    []string `json:"next_actions,omitempty"`
	PartialContent string   `json:"partial_content,omitempty"`
	Retryable      bool     `json:"retryable"`
}

// Response is the final answer returned to the caller. It is built once
// and never mutated afterwards.
type Response struct {
	QueryID  string     `json:"query_id"`
	Text     string     `json:"text"`
	Language string     `json:"language"`
	Format   FormatType `json:"format"`
	// Contributions maps each worker included in synthesis to its result.
	Contributions map[WorkerType]WorkerResult `json:"contributions,omitempty"`
	// Conflicts are the conflicts detected for this query.
	Conflicts []ConflictRecord `json:"conflicts,omitempty"`
	// Confidence is the mean confidence of contributing results.
	Confidence float64 `json:"confidence"`
	// Partial is set when a required worker did not contribute.
	Partial bool `json:"partial"`
	// MissingTopics names the topics of workers that did not contribute.
	MissingTopics []string `json:"missing_topics,omitempty"`
	// NeedsClarification is set when the response asks the farmer to rephrase.
	NeedsClarification bool `json:"needs_clarification"`
	// FlaggedForReview is set when translation confidence was low.
	FlaggedForReview bool `json:"flagged_for_review"`
	// Error is set when the query failed.
	Error *ErrorPayload `json:"error,omitempty"`
	// CreatedAt is when the query was received.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the response was produced.
	CompletedAt time.Time `json:"completed_at"`
	// Duration is the total processing time.
	Duration time.Duration `json:"duration"`
}

// ContributingWorkers returns the contribution keys in priority order.
func (r Response) ContributingWorkers() []WorkerType {
	out := make([]WorkerType, 0, len(r.Contributions))
	for w := range r.Contributions {
		out = append(out, w)
	}
	SortWorkers(out)
	return out
}
