package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/volanre/jollyred/internal/game"
)

// SaveProfile inserts or replaces a profile
func (s *Store) SaveProfile(ctx context.Context, p game.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	base, tuning, err := encodeProfile(p)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO profiles (name, title, base, tuning, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			title = excluded.title,
			base = excluded.base,
			tuning = excluded.tuning,
			updated_at = excluded.updated_at`),
		p.Name, p.Title, base, tuning, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("save profile %s: %w", p.Name, err)
	}
	return nil
}

// SeedProfiles stores each profile that is not stored yet. Existing rows win,
// so edits made through the API survive a restart.
func (s *Store) SeedProfiles(ctx context.Context, profiles []game.Profile) (int, error) {
	seeded := 0
	for _, p := range profiles {
		base, tuning, err := encodeProfile(p)
		if err != nil {
			return seeded, err
		}
		res, err := s.db.ExecContext(ctx, s.rebind(`
			INSERT INTO profiles (name, title, base, tuning, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (name) DO NOTHING`),
			p.Name, p.Title, base, tuning, time.Now().UnixNano())
		if err != nil {
			return seeded, fmt.Errorf("seed profile %s: %w", p.Name, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			seeded++
		}
	}
	return seeded, nil
}

// GetProfile loads a profile by name
func (s *Store) GetProfile(ctx context.Context, name string) (game.Profile, error) {
	row := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT name, title, base, tuning FROM profiles WHERE name = ?`), name)

	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Profile{}, fmt.Errorf("get profile %s: %w", name, ErrProfileNotFound)
	}
	if err != nil {
		return game.Profile{}, fmt.Errorf("get profile %s: %w", name, err)
	}
	return p, nil
}

// ListProfiles returns every stored profile ordered by name
func (s *Store) ListProfiles(ctx context.Context) ([]game.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, title, base, tuning FROM profiles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []game.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("list profiles: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(sc scanner) (game.Profile, error) {
	var p game.Profile
	var base, tuning string
	if err := sc.Scan(&p.Name, &p.Title, &base, &tuning); err != nil {
		return p, err
	}
	if err := json.Unmarshal([]byte(base), &p.Base); err != nil {
		return p, fmt.Errorf("decode base stats: %w", err)
	}
	if err := json.Unmarshal([]byte(tuning), &p.Tuning); err != nil {
		return p, fmt.Errorf("decode tuning: %w", err)
	}
	return p, nil
}

func encodeProfile(p game.Profile) (string, string, error) {
	base, err := json.Marshal(p.Base)
	if err != nil {
		return "", "", fmt.Errorf("encode base stats: %w", err)
	}
	tuning, err := json.Marshal(p.Tuning)
	if err != nil {
		return "", "", fmt.Errorf("encode tuning: %w", err)
	}
	return string(base), string(tuning), nil
}
