package models

import "time"

// Entity kinds extracted from a query.
const (
	EntityCrop     = "crop"
	EntityLocation = "location"
	EntityScheme   = "scheme"
)

// Query is a single farmer submission. It is immutable once classified;
// use WithIntents to obtain a re-classified copy.
type Query struct {
	// ID is the unique identifier for this query.
	ID string `json:"id"`
	// SessionID links queries from the same conversation.
	SessionID string `json:"session_id"`
	// FarmerID is the anonymous identifier of the submitting farmer.
	FarmerID string `json:"farmer_id"`
	// RawText is the text exactly as submitted.
	RawText string `json:"raw_text"`
	// Language is the detected language code of RawText.
	Language string `json:"language"`
	// TranslatedText is RawText in English.
	TranslatedText string `json:"translated_text"`
	// TranslationConfidence is the translator's confidence for TranslatedText.
	TranslationConfidence float64 `json:"translation_confidence"`
	// ReceivedAt is when the query was submitted.
	ReceivedAt time.Time `json:"received_at"`
	// Entities maps an entity kind to its mentions, in order of appearance.
	Entities map[string][]string `json:"entities,omitempty"`
	// Intents is the classified worker set.
	Intents []WorkerType `json:"intents,omitempty"`
	// PrimaryIntent is the highest-scoring classified worker.
	PrimaryIntent WorkerType `json:"primary_intent,omitempty"`
	// Previous is the query this one re-classified, kept for audit.
	Previous *Query `json:"previous,omitempty"`
}

// Text returns the English text when available, else the raw text.
func (q Query) Text() string {
	if q.TranslatedText != "" {
		return q.TranslatedText
	}
	return q.RawText
}

// Mentions returns a copy of the mentions recorded for an entity kind.
func (q Query) Mentions(kind string) []string {
	m := q.Entities[kind]
	if len(m) == 0 {
		return nil
	}
	out := make([]string, len(m))
	copy(out, m)
	return out
}

// WithIntents returns a new Query carrying the given classification.
// The receiver is preserved in Previous when it was already classified.
func (q Query) WithIntents(intents []WorkerType, primary WorkerType) Query {
	next := q.clone()
	if len(q.Intents) > 0 {
		prev := q.clone()
		next.Previous = &prev
	}
	next.Intents = append([]WorkerType(nil), intents...)
	next.PrimaryIntent = primary
	return next
}

func (q Query) clone() Query {
	c := q
	if q.Entities != nil {
		c.Entities = make(map[string][]string, len(q.Entities))
		for k, v := range q.Entities {
			c.Entities[k] = append([]string(nil), v...)
		}
	}
	c.Intents = append([]WorkerType(nil), q.Intents...)
	return c
}
