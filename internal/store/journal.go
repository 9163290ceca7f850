package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// InsertJournalEntry writes a journal row. Content is expected to already
// be Secret-Box-encrypted by the caller; the store treats it opaquely.
func (s *Store) InsertJournalEntry(ctx context.Context, e JournalEntry) (int64, error) {
	var id int64
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO journal_entries (ts, type, title, content, mood, topics, word_count)
			VALUES (now(), $1, $2, $3, $4, $5, $6) RETURNING id`,
			e.Type, e.Title, e.Content, e.Mood, e.Topics, e.WordCount,
		).Scan(&id)
	})
	return id, err
}

// RecentJournalEntries returns the n most recent entries, newest first.
// Content remains encrypted; callers decrypt via the Secret Box.
func (s *Store) RecentJournalEntries(ctx context.Context, n int) ([]JournalEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, type, title, content, mood, topics, word_count
		FROM journal_entries ORDER BY id DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("recent journal entries: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Type, &e.Title, &e.Content, &e.Mood, &e.Topics, &e.WordCount); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// JournalEntriesByType returns entries of a given type, newest first.
func (s *Store) JournalEntriesByType(ctx context.Context, entryType string, limit int) ([]JournalEntry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, type, title, content, mood, topics, word_count
		FROM journal_entries WHERE type = $1 ORDER BY id DESC LIMIT $2`, entryType, limit)
	if err != nil {
		return nil, fmt.Errorf("journal entries by type: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Type, &e.Title, &e.Content, &e.Mood, &e.Topics, &e.WordCount); err != nil {
			return nil, fmt.Errorf("scan journal entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
