// Package contextbuilder assembles the read-only SharedContext for a query
// from the profile and history stores, and records completed turns.
package contextbuilder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ShayCichocki/krishi/internal/state"
	"github.com/ShayCichocki/krishi/pkg/models"
)

const (
	// DefaultHistoryLimit bounds the turns attached to a context.
	DefaultHistoryLimit = 10
	// DefaultStoreTimeout bounds a single store call.
	DefaultStoreTimeout = 2 * time.Second
	// DefaultWeatherTimeout bounds the weather lookup.
	DefaultWeatherTimeout = 500 * time.Millisecond
)

// ErrStoreUnavailable is returned when the stores failed and no cached data
// could stand in.
var ErrStoreUnavailable = errors.New("profile store unavailable")

// WeatherProvider supplies an optional weather snapshot for a location.
type WeatherProvider interface {
	Current(ctx context.Context, location string) (*models.Weather, error)
}

// Config holds builder settings. Zero values take defaults.
type Config struct {
	HistoryLimit   int
	StoreTimeout   time.Duration
	WeatherTimeout time.Duration
	// CacheSize bounds the fallback cache entries per kind.
	CacheSize int
}

// Builder builds SharedContext values and persists completed turns.
type Builder struct {
	profiles state.ProfileStore
	history  state.HistoryStore
	weather  WeatherProvider
	cfg      Config
	cache    *cache
	debugLog func(format string, args ...interface{})
}

// Option configures a Builder.
type Option func(*Builder)

// WithWeather attaches a weather provider.
func WithWeather(w WeatherProvider) Option {
	return func(b *Builder) { b.weather = w }
}

// WithDebugLog sets the debug logging function.
func WithDebugLog(fn func(format string, args ...interface{})) Option {
	return func(b *Builder) { b.debugLog = fn }
}

// New creates a Builder over the given stores.
func New(profiles state.ProfileStore, history state.HistoryStore, cfg Config, opts ...Option) *Builder {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if cfg.WeatherTimeout <= 0 {
		cfg.WeatherTimeout = DefaultWeatherTimeout
	}
	b := &Builder{
		profiles: profiles,
		history:  history,
		cfg:      cfg,
		cache:    newCache(cfg.CacheSize),
		debugLog: func(string, ...interface{}) {},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns the shared context for q. A farmer without a profile gets
// a context without one. Store failures fall back to cached data; only when
// nothing is cached does Build fail with ErrStoreUnavailable.
func (b *Builder) Build(ctx context.Context, q models.Query) (models.SharedContext, error) {
	in := models.ContextInput{Season: models.SeasonFor(q.ReceivedAt)}

	profile, err := b.loadProfile(ctx, q.FarmerID)
	if err != nil {
		return models.SharedContext{}, err
	}
	in.Profile = profile

	history, err := b.loadHistory(ctx, q.SessionID)
	if err != nil {
		return models.SharedContext{}, err
	}
	in.History = history

	if locs := q.Mentions(models.EntityLocation); len(locs) > 0 {
		in.Location = locs[0]
	} else if profile != nil {
		in.Location = profile.Location
	}

	if b.weather != nil && in.Location != "" {
		wctx, cancel := context.WithTimeout(ctx, b.cfg.WeatherTimeout)
		w, err := b.weather.Current(wctx, in.Location)
		cancel()
		if err != nil {
			b.debugLog("[context] weather for %s unavailable: %v", in.Location, err)
		} else {
			in.Weather = w
		}
	}

	return models.NewSharedContext(in), nil
}

func (b *Builder) loadProfile(ctx context.Context, farmerID string) (*models.FarmerProfile, error) {
	if farmerID == "" || b.profiles == nil {
		return nil, nil
	}
	var p *models.FarmerProfile
	err := b.retry(ctx, func(ctx context.Context) error {
		var err error
		p, err = b.profiles.GetProfile(ctx, farmerID)
		return err
	})
	switch {
	case errors.Is(err, state.ErrNotFound):
		return nil, nil
	case err != nil:
		if cached, ok := b.cache.profile(farmerID); ok {
			log.Printf("[context] profile store failed, using cached profile for %s: %v", farmerID, err)
			return cached, nil
		}
		return nil, fmt.Errorf("%w: load profile: %v", ErrStoreUnavailable, err)
	}
	b.cache.putProfile(p)
	return p, nil
}

func (b *Builder) loadHistory(ctx context.Context, sessionID string) ([]models.Turn, error) {
	if sessionID == "" || b.history == nil {
		return nil, nil
	}
	var turns []models.Turn
	err := b.retry(ctx, func(ctx context.Context) error {
		var err error
		turns, err = b.history.RecentTurns(ctx, sessionID, b.cfg.HistoryLimit)
		return err
	})
	if err != nil {
		if cached, ok := b.cache.turns(sessionID); ok {
			log.Printf("[context] history store failed, using cached turns for %s: %v", sessionID, err)
			return cached, nil
		}
		return nil, fmt.Errorf("%w: load history: %v", ErrStoreUnavailable, err)
	}
	b.cache.putTurns(sessionID, turns)
	return turns, nil
}

// Record persists a delivered turn and the farmer's profile increment.
// Callers serialize Record per farmer.
func (b *Builder) Record(ctx context.Context, q models.Query, answer string) error {
	turn := models.Turn{QueryID: q.ID, Question: q.RawText, Answer: answer, At: q.ReceivedAt}
	b.cache.appendTurn(q.SessionID, turn, b.cfg.HistoryLimit)

	var errs []error
	if b.history != nil && q.SessionID != "" {
		err := b.retry(ctx, func(ctx context.Context) error {
			if err := b.history.TouchSession(ctx, q.SessionID, q.FarmerID); err != nil {
				return err
			}
			return b.history.AppendTurn(ctx, q.SessionID, turn)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("record turn: %w", err))
		}
	}
	if b.profiles != nil && q.FarmerID != "" {
		var p *models.FarmerProfile
		err := b.retry(ctx, func(ctx context.Context) error {
			var err error
			p, err = b.profiles.RecordInteraction(ctx, q.FarmerID, q.Mentions(models.EntityCrop), q.Language)
			return err
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("record interaction: %w", err))
		} else {
			b.cache.putProfile(p)
		}
	}
	return errors.Join(errs...)
}

// retry runs fn with the store timeout, retrying once on a transient error.
func (b *Builder) retry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		cctx, cancel := context.WithTimeout(ctx, b.cfg.StoreTimeout)
		err = fn(cctx)
		cancel()
		if err == nil || !state.IsTransient(err) || ctx.Err() != nil {
			return err
		}
		b.debugLog("[context] transient store error, retrying: %v", err)
	}
	return err
}
