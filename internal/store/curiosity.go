package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// InsertCuriosityItem adds a pending research topic. The partial unique
// index on (topic_lc) WHERE status = 'pending' enforces that two pending
// items never share a lowercased topic; a conflicting insert is treated
// as a no-op rather than an error, since the caller only cares that the
// topic is now tracked.
func (s *Store) InsertCuriosityItem(ctx context.Context, c CuriosityItem) (int64, error) {
	topicLC := strings.ToLower(strings.TrimSpace(c.Topic))
	var id int64
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO curiosity_items (topic, topic_lc, priority, added_at, reason, status, research_notes)
			VALUES ($1, $2, $3, now(), $4, 'pending', '')
			ON CONFLICT (topic_lc) WHERE status = 'pending' DO NOTHING
			RETURNING id`,
			c.Topic, topicLC, c.Priority, c.Reason,
		).Scan(&id)
	})
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("insert curiosity item: %w", err)
	}
	return id, nil
}

// TopPendingCuriosityItems returns up to limit pending items, ordered by
// priority descending then FIFO (added_at ascending) for ties.
func (s *Store) TopPendingCuriosityItems(ctx context.Context, limit int) ([]CuriosityItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, topic, priority, added_at, reason, status, research_notes, completed_at
		FROM curiosity_items WHERE status = 'pending'
		ORDER BY priority DESC, added_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top pending curiosity items: %w", err)
	}
	defer rows.Close()
	return scanCuriosityItems(rows)
}

// CompleteCuriosityItem transitions a pending item to completed, recording
// research notes. Once completed it drops out of the partial-unique scope,
// so the same topic may be re-added later as a fresh pending item.
func (s *Store) CompleteCuriosityItem(ctx context.Context, id int64, notes string) error {
	return s.Tx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE curiosity_items SET status = 'completed', research_notes = $2, completed_at = now()
			WHERE id = $1 AND status = 'pending'`, id, notes)
		if err != nil {
			return fmt.Errorf("complete curiosity item %d: %w", id, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("curiosity item %d is not pending", id)
		}
		return nil
	})
}

// CompletedCuriosityItemsSince returns items completed on or after since,
// most recently completed first — the Daily Summary's researched-today list.
func (s *Store) CompletedCuriosityItemsSince(ctx context.Context, since time.Time) ([]CuriosityItem, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, topic, priority, added_at, reason, status, research_notes, completed_at
		FROM curiosity_items WHERE status = 'completed' AND completed_at >= $1
		ORDER BY completed_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("completed curiosity items since: %w", err)
	}
	defer rows.Close()
	return scanCuriosityItems(rows)
}

func scanCuriosityItems(rows pgx.Rows) ([]CuriosityItem, error) {
	var out []CuriosityItem
	for rows.Next() {
		var c CuriosityItem
		if err := rows.Scan(&c.ID, &c.Topic, &c.Priority, &c.AddedAt, &c.Reason,
			&c.Status, &c.ResearchNotes, &c.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan curiosity item: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
