// Package store is the Store component (spec.md §4.1): a transactional,
// single-writer-friendly relational store with schema auto-migration on
// open. It is grounded on agentic_memory.go's idempotent migration pattern
// (CREATE TABLE IF NOT EXISTS / ADD COLUMN IF NOT EXISTS / CREATE INDEX IF
// NOT EXISTS) and backed by Postgres via pgx, chosen so embeddings can live
// alongside relational rows via pgvector (see DESIGN.md Open Question 1).
//
// All writes from other components go through Tx, which commits on success
// and rolls back on error — mirroring the source's open(path)/tx(f)
// contract. The handle is process-wide and safe for concurrent use; pgxpool
// serializes nothing itself, but each write is scoped to one short
// transaction per logical write, per spec.md §5.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// ActivityPublisher mirrors an ActivityEvent row to an external
// observability consumer. Implementations must not block the write path;
// SetActivityPublisher wires one in optionally.
type ActivityPublisher interface {
	Publish(ctx context.Context, e ActivityEvent)
}

// Store is the process-wide handle onto the relational backend.
type Store struct {
	pool          *pgxpool.Pool
	embeddingDims int
	activityPub   ActivityPublisher
}

// SetActivityPublisher wires an optional ActivityEvent mirror (e.g. Kafka).
// Nil disables mirroring; this is the only caller-visible hook into
// InsertActivityEvent's side channel.
func (s *Store) SetActivityPublisher(p ActivityPublisher) {
	s.activityPub = p
}

// Open connects to Postgres, verifies connectivity, and runs the idempotent
// schema migration. embeddingDims sizes the pgvector columns.
func Open(ctx context.Context, connString string, embeddingDims int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	cfg.MaxConns = 16
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 10 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{pool: pool, embeddingDims: embeddingDims}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Tx runs f inside a transaction, committing on success and rolling back on
// any error (including a panic, which is re-raised after rollback).
func (s *Store) Tx(ctx context.Context, f func(tx pgx.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
	}()

	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			log.Error().Err(rbErr).Msg("store: rollback failed")
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// migrate applies the schema idempotently. Every statement is safe to
// re-run, following agentic_memory.go's EnsureAgenticMemoryTable shape.
func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,

		`CREATE TABLE IF NOT EXISTS messages (
			id SERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			importance DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			emotional_weight DOUBLE PRECISION NOT NULL DEFAULT 0,
			context_tags TEXT[] NOT NULL DEFAULT '{}',
			platform TEXT NOT NULL DEFAULT '',
			version TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS messages_ts_idx ON messages (ts)`,

		`CREATE TABLE IF NOT EXISTS personality_traits (
			name TEXT PRIMARY KEY,
			value DOUBLE PRECISION NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			origin_story TEXT NOT NULL DEFAULT '',
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
			active BOOLEAN NOT NULL DEFAULT true
		)`,

		`CREATE TABLE IF NOT EXISTS personality_changes (
			id SERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			trait TEXT NOT NULL,
			old_value DOUBLE PRECISION NOT NULL,
			new_value DOUBLE PRECISION NOT NULL,
			reason TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS personality_changes_ts_idx ON personality_changes (ts)`,

		`CREATE TABLE IF NOT EXISTS personality_snapshots (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			data JSONB NOT NULL,
			type TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT ''
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_facts (
			id SERIAL PRIMARY KEY,
			topic TEXT NOT NULL UNIQUE,
			content TEXT NOT NULL,
			source TEXT NOT NULL DEFAULT '',
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
			learned_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_accessed TIMESTAMPTZ NOT NULL DEFAULT now(),
			confirmation_count INT NOT NULL DEFAULT 1,
			source_weeks INT[] NOT NULL DEFAULT '{}',
			embedding vector(%d)
		)`, s.embeddingDims),

		`CREATE TABLE IF NOT EXISTS episode_summaries (
			id SERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			week_number INT NOT NULL,
			message_range_start BIGINT NOT NULL,
			message_range_end BIGINT NOT NULL,
			summary TEXT NOT NULL,
			topics TEXT[] NOT NULL DEFAULT '{}',
			importance DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			committed BOOLEAN NOT NULL DEFAULT false,
			archived BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE INDEX IF NOT EXISTS episode_summaries_range_idx ON episode_summaries (message_range_end)`,

		`CREATE TABLE IF NOT EXISTS weekly_syntheses (
			id SERIAL PRIMARY KEY,
			week_start TIMESTAMPTZ NOT NULL,
			week_end TIMESTAMPTZ NOT NULL,
			synthesis TEXT NOT NULL,
			confirmed_topics TEXT[] NOT NULL DEFAULT '{}',
			tentative_topics TEXT[] NOT NULL DEFAULT '{}',
			corrections TEXT NOT NULL DEFAULT '',
			knowledge_items_added INT NOT NULL DEFAULT 0,
			UNIQUE (week_start)
		)`,

		`CREATE TABLE IF NOT EXISTS curiosity_items (
			id SERIAL PRIMARY KEY,
			topic TEXT NOT NULL,
			topic_lc TEXT NOT NULL,
			priority DOUBLE PRECISION NOT NULL DEFAULT 0.6,
			added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			reason TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'pending',
			research_notes TEXT NOT NULL DEFAULT '',
			completed_at TIMESTAMPTZ
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS curiosity_items_pending_topic_idx
			ON curiosity_items (topic_lc) WHERE status = 'pending'`,

		`CREATE TABLE IF NOT EXISTS interests (
			topic TEXT PRIMARY KEY,
			level TEXT NOT NULL,
			mention_count INT NOT NULL DEFAULT 0,
			first_mention TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_activity TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS skill_observations (
			id SERIAL PRIMARY KEY,
			domain TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			ts TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS skill_levels (
			domain TEXT PRIMARY KEY,
			rolling_mean DOUBLE PRECISION NOT NULL DEFAULT 0,
			observation_count INT NOT NULL DEFAULT 0,
			classification TEXT NOT NULL DEFAULT 'developing'
		)`,

		`CREATE TABLE IF NOT EXISTS goals (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			current DOUBLE PRECISION NOT NULL DEFAULT 0,
			target DOUBLE PRECISION NOT NULL,
			progress DOUBLE PRECISION NOT NULL DEFAULT 0,
			status TEXT NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			authored_by TEXT NOT NULL DEFAULT 'system',
			description TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS journal_entries (
			id SERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			type TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			mood TEXT NOT NULL DEFAULT '',
			topics TEXT[] NOT NULL DEFAULT '{}',
			word_count INT NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS self_awareness_samples (
			id SERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			self_ref_score DOUBLE PRECISION NOT NULL,
			uncertainty_score DOUBLE PRECISION NOT NULL,
			meta_cognition_score DOUBLE PRECISION NOT NULL,
			composite_score DOUBLE PRECISION NOT NULL,
			word_count INT NOT NULL,
			sample TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS self_awareness_samples_ts_idx ON self_awareness_samples (ts)`,

		`CREATE TABLE IF NOT EXISTS consolidation_runs (
			id SERIAL PRIMARY KEY,
			run_date DATE NOT NULL UNIQUE,
			counters JSONB NOT NULL DEFAULT '{}',
			duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
			summary TEXT NOT NULL DEFAULT ''
		)`,

		`CREATE TABLE IF NOT EXISTS activity_events (
			id SERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			type TEXT NOT NULL,
			label TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			extra JSONB NOT NULL DEFAULT '{}'
		)`,
		`CREATE INDEX IF NOT EXISTS activity_events_ts_idx ON activity_events (ts)`,

		`CREATE TABLE IF NOT EXISTS operating_notes (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			created TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
			update_count INT NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS mistakes (
			id SERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			topic TEXT NOT NULL,
			correction TEXT NOT NULL DEFAULT '',
			behavioral_rule TEXT NOT NULL DEFAULT '',
			applied_count INT NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS user_model_attrs (
			attribute TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 0.5,
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now(),
			evidence_count INT NOT NULL DEFAULT 1
		)`,

		`CREATE TABLE IF NOT EXISTS threads (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			keywords TEXT[] NOT NULL DEFAULT '{}',
			message_count INT NOT NULL DEFAULT 0,
			started_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_activity TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,

		`CREATE TABLE IF NOT EXISTS thread_messages (
			thread_id TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
			message_id BIGINT NOT NULL,
			PRIMARY KEY (thread_id, message_id)
		)`,

		`CREATE TABLE IF NOT EXISTS creative_outputs (
			id SERIAL PRIMARY KEY,
			ts TIMESTAMPTZ NOT NULL DEFAULT now(),
			kind TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			exec_stdout TEXT NOT NULL DEFAULT '',
			exec_stderr TEXT NOT NULL DEFAULT '',
			exec_exit_code INT NOT NULL DEFAULT 0,
			executed BOOLEAN NOT NULL DEFAULT false
		)`,
		`CREATE INDEX IF NOT EXISTS creative_outputs_ts_idx ON creative_outputs (ts)`,

		`CREATE TABLE IF NOT EXISTS email_log (
			id SERIAL PRIMARY KEY,
			sent_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			recipient TEXT NOT NULL,
			subject TEXT NOT NULL,
			email_type TEXT NOT NULL DEFAULT 'general',
			success BOOLEAN NOT NULL DEFAULT false,
			error TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS email_log_sent_at_idx ON email_log (sent_at)`,

		// idempotent column additions for schema drift, per agentic_memory.go's
		// ALTER TABLE ... ADD COLUMN IF NOT EXISTS idiom.
		`ALTER TABLE messages ADD COLUMN IF NOT EXISTS platform TEXT NOT NULL DEFAULT ''`,
		`ALTER TABLE knowledge_facts ADD COLUMN IF NOT EXISTS source_weeks INT[] NOT NULL DEFAULT '{}'`,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec migration statement: %w\nstatement: %s", err, stmt)
		}
	}
	return nil
}
