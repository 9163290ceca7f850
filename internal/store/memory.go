package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"
)

// UpsertKnowledgeFact inserts a fact by topic, or — on conflict — raises
// confidence (never lowers it), increments confirmation_count, and appends
// to source_weeks. Matches spec.md's invariant for KnowledgeFact UPSERTs.
func (s *Store) UpsertKnowledgeFact(ctx context.Context, f KnowledgeFact) error {
	var vec any
	if len(f.Embedding) > 0 {
		vec = pgvector.NewVector(f.Embedding)
	}
	return s.Tx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO knowledge_facts (topic, content, source, confidence, learned_at, last_accessed, confirmation_count, source_weeks, embedding)
			VALUES ($1, $2, $3, $4, now(), now(), 1, $5, $6)
			ON CONFLICT (topic) DO UPDATE SET
				content = EXCLUDED.content,
				source = knowledge_facts.source,
				confidence = GREATEST(knowledge_facts.confidence, EXCLUDED.confidence),
				last_accessed = now(),
				confirmation_count = knowledge_facts.confirmation_count + 1,
				source_weeks = array(SELECT DISTINCT unnest(knowledge_facts.source_weeks || EXCLUDED.source_weeks) ORDER BY 1)
			`, f.Topic, f.Content, f.Source, f.Confidence, f.SourceWeeks, vec)
		if err != nil {
			return fmt.Errorf("upsert knowledge fact %s: %w", f.Topic, err)
		}
		return nil
	})
}

// SearchKnowledgeFacts returns facts whose topic or content matches the
// (lowercased) query as a substring — the keyword-search contract used by
// the request path and Mistake-topic scan (spec.md §4.10, §9).
func (s *Store) SearchKnowledgeFacts(ctx context.Context, query string, limit int) ([]KnowledgeFact, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, topic, content, source, confidence, learned_at, last_accessed, confirmation_count, source_weeks
		FROM knowledge_facts
		WHERE topic ILIKE '%' || $1 || '%' OR content ILIKE '%' || $1 || '%'
		ORDER BY confidence DESC, last_accessed DESC LIMIT $2`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search knowledge facts: %w", err)
	}
	defer rows.Close()

	var out []KnowledgeFact
	for rows.Next() {
		var f KnowledgeFact
		if err := rows.Scan(&f.ID, &f.Topic, &f.Content, &f.Source, &f.Confidence,
			&f.LearnedAt, &f.LastAccessed, &f.ConfirmationCount, &f.SourceWeeks); err != nil {
			return nil, fmt.Errorf("scan knowledge fact: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// MaxCommittedEpisodeEnd returns the highest message_range_end across all
// EpisodeSummary rows (committed or not) so new summaries always cover
// strictly id > this value, keeping ranges disjoint (spec.md invariant 2).
func (s *Store) MaxCommittedEpisodeEnd(ctx context.Context) (int64, error) {
	var end int64
	err := s.pool.QueryRow(ctx, `SELECT COALESCE(MAX(message_range_end), 0) FROM episode_summaries`).Scan(&end)
	return end, err
}

// InsertEpisodeSummary writes a new EpisodeSummary row.
func (s *Store) InsertEpisodeSummary(ctx context.Context, e EpisodeSummary) (int64, error) {
	var id int64
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO episode_summaries (created_at, week_number, message_range_start, message_range_end, summary, topics, importance, committed, archived)
			VALUES (now(), $1, $2, $3, $4, $5, $6, false, false) RETURNING id`,
			e.WeekNumber, e.MessageRangeStart, e.MessageRangeEnd, e.Summary, e.Topics, e.Importance,
		).Scan(&id)
	})
	return id, err
}

// UncommittedEpisodesSince returns all uncommitted, non-archived episodes
// created on or after since (the weekly synthesis input set).
func (s *Store) UncommittedEpisodesSince(ctx context.Context, since time.Time) ([]EpisodeSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, week_number, message_range_start, message_range_end, summary, topics, importance, committed, archived
		FROM episode_summaries
		WHERE committed = false AND archived = false AND created_at >= $1
		ORDER BY message_range_start ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("uncommitted episodes: %w", err)
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

// RecentEpisodes returns the n most recent non-archived episodes in
// chronological order (oldest first).
func (s *Store) RecentEpisodes(ctx context.Context, n int) ([]EpisodeSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, week_number, message_range_start, message_range_end, summary, topics, importance, committed, archived
		FROM (
			SELECT * FROM episode_summaries WHERE archived = false ORDER BY id DESC LIMIT $1
		) recent ORDER BY id ASC`, n)
	if err != nil {
		return nil, fmt.Errorf("recent episodes: %w", err)
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

// EpisodesMatchingTopics returns non-archived episodes whose Topics overlap
// any of the given confirmed topics.
func (s *Store) EpisodesMatchingTopics(ctx context.Context, topics []string) ([]EpisodeSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, created_at, week_number, message_range_start, message_range_end, summary, topics, importance, committed, archived
		FROM episode_summaries WHERE archived = false AND topics && $1 ORDER BY id ASC`, topics)
	if err != nil {
		return nil, fmt.Errorf("episodes matching topics: %w", err)
	}
	defer rows.Close()
	return scanEpisodes(rows)
}

// CommitAndArchiveEpisodes marks the given episode ids committed=true,
// archived=true in one transaction.
func (s *Store) CommitAndArchiveEpisodes(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return s.Tx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE episode_summaries SET committed = true, archived = true WHERE id = ANY($1)`, ids)
		return err
	})
}

func scanEpisodes(rows pgx.Rows) ([]EpisodeSummary, error) {
	var out []EpisodeSummary
	for rows.Next() {
		var e EpisodeSummary
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.WeekNumber, &e.MessageRangeStart, &e.MessageRangeEnd,
			&e.Summary, &e.Topics, &e.Importance, &e.Committed, &e.Archived); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// WeeklySynthesisExists reports whether a WeeklySynthesis row already
// exists for the ISO week starting at weekStart (spec.md invariant 3).
func (s *Store) WeeklySynthesisExists(ctx context.Context, weekStart time.Time) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM weekly_syntheses WHERE week_start = $1)`, weekStart).Scan(&exists)
	return exists, err
}

// InsertWeeklySynthesis writes a WeeklySynthesis row. Callers must have
// already checked WeeklySynthesisExists to preserve the at-most-once
// invariant; a unique constraint on week_start is the backstop.
func (s *Store) InsertWeeklySynthesis(ctx context.Context, w WeeklySynthesis) (int64, error) {
	var id int64
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO weekly_syntheses (week_start, week_end, synthesis, confirmed_topics, tentative_topics, corrections, knowledge_items_added)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (week_start) DO NOTHING
			RETURNING id`,
			w.WeekStart, w.WeekEnd, w.Synthesis, w.ConfirmedTopics, w.TentativeTopics, w.Corrections, w.KnowledgeItemsAdded,
		).Scan(&id)
	})
	return id, err
}
