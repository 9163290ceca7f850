package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// InsertGoal creates a new active goal.
func (s *Store) InsertGoal(ctx context.Context, g Goal) (int64, error) {
	var id int64
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO goals (name, type, current, target, progress, status, created_at, authored_by, description)
			VALUES ($1, $2, $3, $4, 0, 'active', now(), $5, $6) RETURNING id`,
			g.Name, g.Type, g.Current, g.Target, g.AuthoredBy, g.Description,
		).Scan(&id)
	})
	return id, err
}

// ActiveGoals returns all goals with status = 'active'.
func (s *Store) ActiveGoals(ctx context.Context) ([]Goal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, type, current, target, progress, status, created_at, authored_by, description
		FROM goals WHERE status = 'active' ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("active goals: %w", err)
	}
	defer rows.Close()
	return scanGoals(rows)
}

// AdvanceGoal applies current = min(current+delta, target), updates
// progress = current/target, and marks the goal completed once current
// reaches target (spec.md's goal-progress invariant).
func (s *Store) AdvanceGoal(ctx context.Context, id int64, delta float64) (Goal, error) {
	var g Goal
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, `
			SELECT id, name, type, current, target, progress, status, created_at, authored_by, description
			FROM goals WHERE id = $1 FOR UPDATE`, id,
		).Scan(&g.ID, &g.Name, &g.Type, &g.Current, &g.Target, &g.Progress, &g.Status,
			&g.CreatedAt, &g.AuthoredBy, &g.Description); err != nil {
			return fmt.Errorf("load goal %d: %w", id, err)
		}
		g.Current += delta
		if g.Current > g.Target {
			g.Current = g.Target
		}
		if g.Target > 0 {
			g.Progress = g.Current / g.Target
		}
		if g.Current >= g.Target {
			g.Status = "completed"
		}
		if _, err := tx.Exec(ctx, `
			UPDATE goals SET current = $2, progress = $3, status = $4 WHERE id = $1`,
			g.ID, g.Current, g.Progress, g.Status); err != nil {
			return fmt.Errorf("update goal %d: %w", id, err)
		}
		return nil
	})
	return g, err
}

func scanGoals(rows pgx.Rows) ([]Goal, error) {
	var out []Goal
	for rows.Next() {
		var g Goal
		if err := rows.Scan(&g.ID, &g.Name, &g.Type, &g.Current, &g.Target, &g.Progress,
			&g.Status, &g.CreatedAt, &g.AuthoredBy, &g.Description); err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
