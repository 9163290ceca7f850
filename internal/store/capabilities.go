package store

import (
	"context"
	"fmt"
)

// CapabilitiesSnapshot gathers the counts and last-run timestamps the
// Conversation Core embeds in its system prompt, grounded on
// ai_engine.py's get_live_capabilities (one cursor.execute per counter,
// tolerant of a fresh/empty database).
func (s *Store) CapabilitiesSnapshot(ctx context.Context) (Capabilities, error) {
	var c Capabilities

	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM messages WHERE role = 'user'`).Scan(&c.Conversations)
	if err != nil {
		return c, fmt.Errorf("count conversations: %w", err)
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM knowledge_facts`).Scan(&c.KnowledgeEntries); err != nil {
		return c, fmt.Errorf("count knowledge facts: %w", err)
	}

	if err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(MAX(ts), 'epoch'::timestamptz) FROM journal_entries`,
	).Scan(&c.JournalEntries, &c.LastJournal); err != nil {
		return c, fmt.Errorf("count journal entries: %w", err)
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM goals WHERE status = 'active'`).Scan(&c.ActiveGoals); err != nil {
		return c, fmt.Errorf("count active goals: %w", err)
	}

	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM curiosity_items WHERE status = 'pending'`).Scan(&c.CuriosityPending); err != nil {
		return c, fmt.Errorf("count curiosity pending: %w", err)
	}

	if err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(run_date), 'epoch'::date) FROM consolidation_runs`,
	).Scan(&c.LastConsolidation); err != nil {
		return c, fmt.Errorf("last consolidation: %w", err)
	}

	return c, nil
}
