package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// CoreTraits is the fixed ten-element personality vocabulary (spec.md §3),
// seeded at value 0.5 on first run.
var CoreTraits = []string{
	"formality", "verbosity", "enthusiasm", "humor", "empathy",
	"technical_depth", "creativity", "assertiveness", "patience", "curiosity",
}

// SeedPersonalityTraits inserts the fixed trait vocabulary at 0.5 if the
// traits table is empty. Safe to call on every startup (idempotent).
func (s *Store) SeedPersonalityTraits(ctx context.Context) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM personality_traits`).Scan(&count); err != nil {
		return fmt.Errorf("count traits: %w", err)
	}
	if count > 0 {
		return nil
	}
	return s.Tx(ctx, func(tx pgx.Tx) error {
		for _, name := range CoreTraits {
			if _, err := tx.Exec(ctx, `
				INSERT INTO personality_traits (name, value, type, active)
				VALUES ($1, 0.5, 'core', true)
				ON CONFLICT (name) DO NOTHING`, name); err != nil {
				return fmt.Errorf("seed trait %s: %w", name, err)
			}
		}
		return nil
	})
}

// LoadPersonalityTraits returns all traits keyed by name.
func (s *Store) LoadPersonalityTraits(ctx context.Context) (map[string]PersonalityTrait, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT name, value, type, origin_story, last_updated, active FROM personality_traits`)
	if err != nil {
		return nil, fmt.Errorf("load traits: %w", err)
	}
	defer rows.Close()

	out := make(map[string]PersonalityTrait)
	for rows.Next() {
		var t PersonalityTrait
		if err := rows.Scan(&t.Name, &t.Value, &t.Type, &t.OriginStory, &t.LastUpdated, &t.Active); err != nil {
			return nil, fmt.Errorf("scan trait: %w", err)
		}
		out[t.Name] = t
	}
	return out, rows.Err()
}

// ApplyPersonalityChanges upserts new trait values and writes one
// PersonalityChange row per change, all in a single transaction (spec.md
// invariant: "every mutation writes exactly one PersonalityChange row with
// old != new").
func (s *Store) ApplyPersonalityChanges(ctx context.Context, changes []PersonalityChange) error {
	if len(changes) == 0 {
		return nil
	}
	return s.Tx(ctx, func(tx pgx.Tx) error {
		for _, c := range changes {
			if c.Old == c.New {
				return fmt.Errorf("refusing no-op personality change for trait %s", c.Trait)
			}
			if _, err := tx.Exec(ctx, `
				UPDATE personality_traits SET value = $2, last_updated = now() WHERE name = $1`,
				c.Trait, c.New); err != nil {
				return fmt.Errorf("update trait %s: %w", c.Trait, err)
			}
			if _, err := tx.Exec(ctx, `
				INSERT INTO personality_changes (ts, trait, old_value, new_value, reason)
				VALUES (now(), $1, $2, $3, $4)`,
				c.Trait, c.Old, c.New, c.Reason); err != nil {
				return fmt.Errorf("insert change for %s: %w", c.Trait, err)
			}
		}
		return nil
	})
}

// PersonalityHistory returns change rows, most recent first.
func (s *Store) PersonalityHistory(ctx context.Context, limit int) ([]PersonalityChange, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, trait, old_value, new_value, reason
		FROM personality_changes ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("personality history: %w", err)
	}
	defer rows.Close()

	var out []PersonalityChange
	for rows.Next() {
		var c PersonalityChange
		if err := rows.Scan(&c.ID, &c.Timestamp, &c.Trait, &c.Old, &c.New, &c.Reason); err != nil {
			return nil, fmt.Errorf("scan change: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertPersonalitySnapshot writes a nightly snapshot of all trait values.
func (s *Store) InsertPersonalitySnapshot(ctx context.Context, snap PersonalitySnapshot) (int64, error) {
	data, err := json.Marshal(snap.Data)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot data: %w", err)
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = time.Now()
	}
	var id int64
	err = s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO personality_snapshots (name, ts, data, type, description)
			VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			snap.Name, snap.Timestamp, data, snap.Type, snap.Description,
		).Scan(&id)
	})
	return id, err
}
