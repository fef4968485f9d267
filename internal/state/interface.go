package state

import (
	"context"
	"io"
	"time"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// ProfileStore handles farmer profile persistence.
type ProfileStore interface {
	// GetProfile returns ErrNotFound for an unknown farmer.
	GetProfile(ctx context.Context, farmerID string) (*models.FarmerProfile, error)
	// SaveProfile inserts or replaces a profile.
	SaveProfile(ctx context.Context, p *models.FarmerProfile) error
	// RecordInteraction increments the interaction count, folds the crops
	// into the primary crop list and returns the updated profile. The
	// profile is created when missing.
	RecordInteraction(ctx context.Context, farmerID string, crops []string, lang string) (*models.FarmerProfile, error)
}

// HistoryStore handles conversation sessions and their turns.
type HistoryStore interface {
	// TouchSession creates the session if needed and marks it active.
	TouchSession(ctx context.Context, sessionID, farmerID string) error
	// AppendTurn records a turn at the end of the session's history.
	AppendTurn(ctx context.Context, sessionID string, turn models.Turn) error
	// RecentTurns returns up to limit turns, most recent last.
	RecentTurns(ctx context.Context, sessionID string, limit int) ([]models.Turn, error)
	// PurgeInactive deletes sessions idle since before cutoff.
	PurgeInactive(ctx context.Context, cutoff time.Time) (int, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	Migrate() error
}

// Store is the full persistence surface the orchestrator depends on.
type Store interface {
	io.Closer
	Migrator
	ProfileStore
	HistoryStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store        = (*DB)(nil)
	_ ProfileStore = (*DB)(nil)
	_ HistoryStore = (*DB)(nil)
)
