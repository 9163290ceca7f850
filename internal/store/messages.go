package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// InsertMessage appends a Message row and returns its assigned ID. A zero
// Timestamp is filled in with the current time.
func (s *Store) InsertMessage(ctx context.Context, m Message) (int64, error) {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now()
	}
	var id int64
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO messages (ts, role, content, importance, emotional_weight, context_tags, platform, version)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id`,
			m.Timestamp, m.Role, m.Content, m.Importance, m.EmotionalWeight, m.ContextTags, m.Platform, m.Version,
		).Scan(&id)
	})
	return id, err
}

// RecentMessages returns the last n Messages in chronological order.
func (s *Store) RecentMessages(ctx context.Context, n int) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, role, content, importance, emotional_weight, context_tags, platform, version
		FROM (
			SELECT * FROM messages ORDER BY id DESC LIMIT $1
		) recent ORDER BY id ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MessagesInRange returns Messages with id in [startID, endID] inclusive.
func (s *Store) MessagesInRange(ctx context.Context, startID, endID int64) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, role, content, importance, emotional_weight, context_tags, platform, version
		FROM messages WHERE id BETWEEN $1 AND $2 ORDER BY id ASC`, startID, endID)
	if err != nil {
		return nil, fmt.Errorf("messages in range: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

// MaxMessageID returns the highest assigned message id, or 0 if none exist.
func (s *Store) MaxMessageID(ctx context.Context) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) FROM messages`).Scan(&id)
	return id, err
}

// MessagesSince returns Messages created on or after the given date (used by
// the Consolidation Job to extract facts "from today's messages").
func (s *Store) MessagesSince(ctx context.Context, since string) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, role, content, importance, emotional_weight, context_tags, platform, version
		FROM messages WHERE ts >= $1::date ORDER BY id ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("messages since: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]Message, error) {
	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Role, &m.Content, &m.Importance,
			&m.EmotionalWeight, &m.ContextTags, &m.Platform, &m.Version); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
