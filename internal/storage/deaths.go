package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/volanre/jollyred/internal/game"
)

// DefaultDeathLimit bounds ListDeaths when no limit is given
const DefaultDeathLimit = 50

// RecordDeath appends a death to the ledger
func (s *Store) RecordDeath(ctx context.Context, rec game.DeathRecord) error {
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}

	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO deaths (id, character_id, name, profile, killer_id, overkill, tick, sim_time, died_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		uuid.NewString(), rec.CharacterID, rec.Name, rec.Profile, rec.KillerID,
		rec.Overkill, int64(rec.Tick), rec.SimTime, at.UnixNano())
	if err != nil {
		return fmt.Errorf("record death %s: %w", rec.CharacterID, err)
	}
	return nil
}

// ListDeaths returns the most recent deaths, newest first
func (s *Store) ListDeaths(ctx context.Context, limit int) ([]game.DeathRecord, error) {
	if limit <= 0 {
		limit = DefaultDeathLimit
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT character_id, name, profile, killer_id, overkill, tick, sim_time, died_at
		FROM deaths
		ORDER BY died_at DESC
		LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("list deaths: %w", err)
	}
	defer rows.Close()

	var out []game.DeathRecord
	for rows.Next() {
		var rec game.DeathRecord
		var tick, diedAt int64
		if err := rows.Scan(&rec.CharacterID, &rec.Name, &rec.Profile, &rec.KillerID,
			&rec.Overkill, &tick, &rec.SimTime, &diedAt); err != nil {
			return nil, fmt.Errorf("list deaths: %w", err)
		}
		rec.Tick = uint64(tick)
		rec.At = time.Unix(0, diedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ game.DeathRecorder = (*Store)(nil)
