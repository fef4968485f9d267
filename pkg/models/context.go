package models

import "time"

// Season is the cropping season a query falls in.
type Season string

const (
	SeasonKharif Season = "kharif"
	SeasonRabi   Season = "rabi"
	SeasonZaid   Season = "zaid"
)

// SeasonFor returns the cropping season for a calendar month.
// Kharif runs June–October, Rabi November–March, Zaid April–May.
func SeasonFor(t time.Time) Season {
	switch m := t.Month(); {
	case m >= time.June && m <= time.October:
		return SeasonKharif
	case m == time.April || m == time.May:
		return SeasonZaid
	default:
		return SeasonRabi
	}
}

// Turn is one exchange in a conversation.
type Turn struct {
	QueryID  string    `json:"query_id"`
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	At       time.Time `json:"at"`
}

// Weather is a point-in-time weather observation for the farmer's location.
type Weather struct {
	TemperatureC float64   `json:"temperature_c"`
	RainfallMM   float64   `json:"rainfall_mm"`
	Summary      string    `json:"summary"`
	ObservedAt   time.Time `json:"observed_at"`
}

// FarmerProfile is the long-lived record for an anonymous farmer.
type FarmerProfile struct {
	FarmerID          string    `json:"farmer_id"`
	InteractionCount  int       `json:"interaction_count"`
	PrimaryCrops      []string  `json:"primary_crops,omitempty"`
	PreferredLanguage string    `json:"preferred_language,omitempty"`
	Location          string    `json:"location,omitempty"`
	LandAcres         float64   `json:"land_acres,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (p FarmerProfile) clone() FarmerProfile {
	p.PrimaryCrops = append([]string(nil), p.PrimaryCrops...)
	return p
}

// ContextInput carries the raw material for a SharedContext.
type ContextInput struct {
	Location string
	Season   Season
	History  []Turn
	Profile  *FarmerProfile
	Weather  *Weather
}

// SharedContext is the read-only per-query context passed to every worker.
// All accessors return copies; there is no way to mutate a built context.
type SharedContext struct {
	location string
	season   Season
	history  []Turn
	profile  *FarmerProfile
	weather  *Weather
	absent   map[WorkerType]bool
}

// NewSharedContext builds an immutable context from the input.
func NewSharedContext(in ContextInput) SharedContext {
	sc := SharedContext{
		location: in.Location,
		season:   in.Season,
		history:  append([]Turn(nil), in.History...),
	}
	if in.Profile != nil {
		p := in.Profile.clone()
		sc.profile = &p
	}
	if in.Weather != nil {
		w := *in.Weather
		sc.weather = &w
	}
	return sc
}

// Location returns the farmer's location, if known.
func (c SharedContext) Location() string { return c.location }

// Season returns the cropping season.
func (c SharedContext) Season() Season { return c.season }

// History returns the conversation history, most recent last.
func (c SharedContext) History() []Turn {
	return append([]Turn(nil), c.history...)
}

// Profile returns the farmer profile and whether one was attached.
func (c SharedContext) Profile() (FarmerProfile, bool) {
	if c.profile == nil {
		return FarmerProfile{}, false
	}
	return c.profile.clone(), true
}

// Weather returns the weather snapshot and whether one was attached.
func (c SharedContext) Weather() (Weather, bool) {
	if c.weather == nil {
		return Weather{}, false
	}
	return *c.weather, true
}

// DependencyAbsent reports whether the scheduler marked a dependency's
// result as absent for this invocation.
func (c SharedContext) DependencyAbsent(w WorkerType) bool {
	return c.absent[w]
}

// WithAbsent returns a copy of the context annotated with absent dependencies.
func (c SharedContext) WithAbsent(ws ...WorkerType) SharedContext {
	next := c
	next.absent = make(map[WorkerType]bool, len(c.absent)+len(ws))
	for w := range c.absent {
		next.absent[w] = true
	}
	for _, w := range ws {
		next.absent[w] = true
	}
	return next
}
