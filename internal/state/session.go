package state

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/krishi/pkg/models"
)

// Session is a conversation with one farmer.
type Session struct {
	ID           string    `json:"id"`
	FarmerID     string    `json:"farmer_id"`
	StartedAt    time.Time `json:"started_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// TouchSession implements HistoryStore.
func (db *DB) TouchSession(ctx context.Context, sessionID, farmerID string) error {
	now := formatTime(time.Now())
	_, err := db.exec(ctx, `
		INSERT INTO sessions (id, farmer_id, started_at, last_active_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET last_active_at = excluded.last_active_at
	`, sessionID, farmerID, now, now)
	if err != nil {
		return fmt.Errorf("touch session %s: %w", sessionID, err)
	}
	return nil
}

// GetSession retrieves a session by id.
func (db *DB) GetSession(ctx context.Context, id string) (*Session, error) {
	var s Session
	var startedAt, lastActive string
	err := db.queryRow(ctx, `
		SELECT id, farmer_id, started_at, last_active_at FROM sessions WHERE id = ?
	`, id).Scan(&s.ID, &s.FarmerID, &startedAt, &lastActive)
	if err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	if s.StartedAt, err = parseTime(startedAt); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if s.LastActiveAt, err = parseTime(lastActive); err != nil {
		return nil, fmt.Errorf("parse last_active_at: %w", err)
	}
	return &s, nil
}

// AppendTurn implements HistoryStore. The session must exist.
func (db *DB) AppendTurn(ctx context.Context, sessionID string, turn models.Turn) error {
	if turn.At.IsZero() {
		turn.At = time.Now()
	}
	_, err := db.exec(ctx, `
		INSERT INTO turns (session_id, query_id, question, answer, at)
		VALUES (?, ?, ?, ?, ?)
	`, sessionID, turn.QueryID, turn.Question, turn.Answer, formatTime(turn.At))
	if err != nil {
		return fmt.Errorf("append turn to %s: %w", sessionID, err)
	}
	return nil
}

// RecentTurns implements HistoryStore. Turns come back in insertion order.
func (db *DB) RecentTurns(ctx context.Context, sessionID string, limit int) ([]models.Turn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := db.query(ctx, `
		SELECT query_id, question, answer, at FROM (
			SELECT seq, query_id, question, answer, at FROM turns
			WHERE session_id = ? ORDER BY seq DESC LIMIT ?
		) ORDER BY seq ASC
	`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent turns for %s: %w", sessionID, err)
	}
	defer rows.Close()

	var turns []models.Turn
	for rows.Next() {
		var t models.Turn
		var at string
		if err := rows.Scan(&t.QueryID, &t.Question, &t.Answer, &at); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if t.At, err = parseTime(at); err != nil {
			return nil, fmt.Errorf("parse turn time: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

// PurgeInactive implements HistoryStore. Turns go with their session.
func (db *DB) PurgeInactive(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := db.exec(ctx, `DELETE FROM sessions WHERE last_active_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("purge inactive sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge inactive sessions: %w", err)
	}
	return int(n), nil
}

// Stats summarizes store contents for status output.
type Stats struct {
	Farmers  int
	Sessions int
	Turns    int
}

// Stats counts stored farmers, sessions and turns.
func (db *DB) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := db.queryRow(ctx, `
		SELECT (SELECT COUNT(*) FROM farmers), (SELECT COUNT(*) FROM sessions), (SELECT COUNT(*) FROM turns)
	`).Scan(&s.Farmers, &s.Sessions, &s.Turns)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	return s, nil
}
