package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// MaxPrimaryCrops bounds the crops remembered per farmer.
const MaxPrimaryCrops = 5

// GetProfile retrieves a farmer profile by id.
func (db *DB) GetProfile(ctx context.Context, farmerID string) (*models.FarmerProfile, error) {
	row := db.queryRow(ctx, `
		SELECT id, interaction_count, primary_crops, preferred_language, location, land_acres, updated_at
		FROM farmers WHERE id = ?
	`, farmerID)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", farmerID, err)
	}
	return p, nil
}

// SaveProfile inserts or replaces a farmer profile.
func (db *DB) SaveProfile(ctx context.Context, p *models.FarmerProfile) error {
	if p.FarmerID == "" {
		return fmt.Errorf("save profile: empty farmer id")
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now()
	}
	crops, err := json.Marshal(nonNil(p.PrimaryCrops))
	if err != nil {
		return fmt.Errorf("marshal primary_crops: %w", err)
	}

	_, err = db.exec(ctx, `
		INSERT INTO farmers (id, interaction_count, primary_crops, preferred_language, location, land_acres, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			interaction_count = excluded.interaction_count,
			primary_crops = excluded.primary_crops,
			preferred_language = excluded.preferred_language,
			location = excluded.location,
			land_acres = excluded.land_acres,
			updated_at = excluded.updated_at
	`, p.FarmerID, p.InteractionCount, string(crops), p.PreferredLanguage, p.Location, p.LandAcres, formatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.FarmerID, err)
	}
	return nil
}

// RecordInteraction implements ProfileStore. The read and the write happen
// in one transaction so concurrent increments are never lost.
func (db *DB) RecordInteraction(ctx context.Context, farmerID string, crops []string, lang string) (*models.FarmerProfile, error) {
	if farmerID == "" {
		return nil, fmt.Errorf("record interaction: empty farmer id")
	}

	var out *models.FarmerProfile
	err := db.transaction(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT id, interaction_count, primary_crops, preferred_language, location, land_acres, updated_at
			FROM farmers WHERE id = ?
		`, farmerID)
		p, err := scanProfile(row)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			p = &models.FarmerProfile{FarmerID: farmerID}
		case err != nil:
			return err
		}

		p.InteractionCount++
		p.PrimaryCrops = foldCrops(p.PrimaryCrops, crops)
		if lang != "" {
			p.PreferredLanguage = lang
		}
		p.UpdatedAt = time.Now()

		cropsJSON, err := json.Marshal(nonNil(p.PrimaryCrops))
		if err != nil {
			return fmt.Errorf("marshal primary_crops: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO farmers (id, interaction_count, primary_crops, preferred_language, location, land_acres, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				interaction_count = excluded.interaction_count,
				primary_crops = excluded.primary_crops,
				preferred_language = excluded.preferred_language,
				updated_at = excluded.updated_at
		`, p.FarmerID, p.InteractionCount, string(cropsJSON), p.PreferredLanguage, p.Location, p.LandAcres, formatTime(p.UpdatedAt))
		if err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record interaction %s: %w", farmerID, err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.FarmerProfile, error) {
	var p models.FarmerProfile
	var cropsJSON, updatedAt string
	if err := row.Scan(&p.FarmerID, &p.InteractionCount, &cropsJSON, &p.PreferredLanguage, &p.Location, &p.LandAcres, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(cropsJSON), &p.PrimaryCrops); err != nil {
		return nil, fmt.Errorf("unmarshal primary_crops: %w", err)
	}
	if len(p.PrimaryCrops) == 0 {
		p.PrimaryCrops = nil
	}
	t, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	p.UpdatedAt = t
	return &p, nil
}

// foldCrops moves newly mentioned crops to the front of the list, keeping
// at most MaxPrimaryCrops entries.
func foldCrops(existing, mentioned []string) []string {
	out := make([]string, 0, len(existing)+len(mentioned))
	seen := make(map[string]bool)
	for _, c := range append(append([]string(nil), mentioned...), existing...) {
		c = strings.ToLower(strings.TrimSpace(c))
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	if len(out) > MaxPrimaryCrops {
		out = out[:MaxPrimaryCrops]
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
