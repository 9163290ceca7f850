package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// UpsertOperatingNote inserts a self-authored style rule, or — on
// conflict — replaces its value and bumps update_count.
func (s *Store) UpsertOperatingNote(ctx context.Context, key, value string) error {
	return s.Tx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO operating_notes (key, value, created, last_updated, update_count)
			VALUES ($1, $2, now(), now(), 1)
			ON CONFLICT (key) DO UPDATE SET
				value = EXCLUDED.value,
				last_updated = now(),
				update_count = operating_notes.update_count + 1`, key, value)
		if err != nil {
			return fmt.Errorf("upsert operating note %s: %w", key, err)
		}
		return nil
	})
}

// OperatingNotes returns all self-authored style rules.
func (s *Store) OperatingNotes(ctx context.Context) ([]OperatingNote, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT key, value, created, last_updated, update_count FROM operating_notes ORDER BY key ASC`)
	if err != nil {
		return nil, fmt.Errorf("operating notes: %w", err)
	}
	defer rows.Close()

	var out []OperatingNote
	for rows.Next() {
		var n OperatingNote
		if err := rows.Scan(&n.Key, &n.Value, &n.Created, &n.LastUpdated, &n.UpdateCount); err != nil {
			return nil, fmt.Errorf("scan operating note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// InsertMistake records a rule extracted from user pushback.
func (s *Store) InsertMistake(ctx context.Context, m Mistake) (int64, error) {
	var id int64
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO mistakes (ts, topic, correction, behavioral_rule, applied_count)
			VALUES (now(), $1, $2, $3, 0) RETURNING id`,
			m.Topic, m.Correction, m.BehavioralRule,
		).Scan(&id)
	})
	return id, err
}

// MistakesForTopic returns mistakes whose topic matches (substring,
// case-insensitive) — used to surface prior corrections before a response
// touching the same ground.
func (s *Store) MistakesForTopic(ctx context.Context, topic string) ([]Mistake, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, topic, correction, behavioral_rule, applied_count
		FROM mistakes WHERE topic ILIKE '%' || $1 || '%' ORDER BY id DESC`, topic)
	if err != nil {
		return nil, fmt.Errorf("mistakes for topic: %w", err)
	}
	defer rows.Close()

	var out []Mistake
	for rows.Next() {
		var m Mistake
		if err := rows.Scan(&m.ID, &m.Timestamp, &m.Topic, &m.Correction, &m.BehavioralRule, &m.AppliedCount); err != nil {
			return nil, fmt.Errorf("scan mistake: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// BumpMistakeApplied increments a mistake's applied_count when its
// behavioral rule was consulted for a new response.
func (s *Store) BumpMistakeApplied(ctx context.Context, id int64) error {
	return s.Tx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `UPDATE mistakes SET applied_count = applied_count + 1 WHERE id = $1`, id)
		return err
	})
}

// UpsertUserModelAttr inserts or updates an inferred attribute of the user.
func (s *Store) UpsertUserModelAttr(ctx context.Context, a UserModelAttr) error {
	return s.Tx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO user_model_attrs (attribute, value, confidence, last_updated, evidence_count)
			VALUES ($1, $2, $3, now(), 1)
			ON CONFLICT (attribute) DO UPDATE SET
				value = EXCLUDED.value,
				confidence = EXCLUDED.confidence,
				last_updated = now(),
				evidence_count = user_model_attrs.evidence_count + 1`,
			a.Attribute, a.Value, a.Confidence)
		if err != nil {
			return fmt.Errorf("upsert user model attr %s: %w", a.Attribute, err)
		}
		return nil
	})
}

// UserModel returns the full set of inferred user attributes.
func (s *Store) UserModel(ctx context.Context) ([]UserModelAttr, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT attribute, value, confidence, last_updated, evidence_count FROM user_model_attrs ORDER BY attribute ASC`)
	if err != nil {
		return nil, fmt.Errorf("user model: %w", err)
	}
	defer rows.Close()

	var out []UserModelAttr
	for rows.Next() {
		var a UserModelAttr
		if err := rows.Scan(&a.Attribute, &a.Value, &a.Confidence, &a.LastUpdated, &a.EvidenceCount); err != nil {
			return nil, fmt.Errorf("scan user model attr: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpsertThread inserts a thread or bumps its activity/message count.
func (s *Store) UpsertThread(ctx context.Context, t Thread) error {
	return s.Tx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO threads (id, name, keywords, message_count, started_at, last_activity)
			VALUES ($1, $2, $3, $4, now(), now())
			ON CONFLICT (id) DO UPDATE SET
				message_count = threads.message_count + 1,
				last_activity = now()`,
			t.ID, t.Name, t.Keywords, t.MessageCount)
		if err != nil {
			return fmt.Errorf("upsert thread %s: %w", t.ID, err)
		}
		return nil
	})
}

// LinkThreadMessage associates a message with a thread.
func (s *Store) LinkThreadMessage(ctx context.Context, tm ThreadMessage) error {
	return s.Tx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO thread_messages (thread_id, message_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, tm.ThreadID, tm.MessageID)
		return err
	})
}

// RecentThreads returns threads ordered by last activity, most recent first.
func (s *Store) RecentThreads(ctx context.Context, limit int) ([]Thread, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, keywords, message_count, started_at, last_activity
		FROM threads ORDER BY last_activity DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent threads: %w", err)
	}
	defer rows.Close()

	var out []Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.ID, &t.Name, &t.Keywords, &t.MessageCount, &t.StartedAt, &t.LastActivity); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertActivityEvent appends a user-visible audit log row.
func (s *Store) InsertActivityEvent(ctx context.Context, e ActivityEvent) (int64, error) {
	extra, err := json.Marshal(e.Extra)
	if err != nil {
		return 0, fmt.Errorf("marshal activity extra: %w", err)
	}
	var id int64
	err = s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO activity_events (ts, type, label, detail, extra)
			VALUES (now(), $1, $2, $3, $4) RETURNING id`,
			e.Type, e.Label, e.Detail, extra,
		).Scan(&id)
	})
	if err == nil && s.activityPub != nil {
		e.ID = id
		s.activityPub.Publish(ctx, e)
	}
	return id, err
}

// RecentActivityEvents returns the n most recent audit rows, newest first.
func (s *Store) RecentActivityEvents(ctx context.Context, n int) ([]ActivityEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, type, label, detail, extra FROM activity_events ORDER BY id DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("recent activity events: %w", err)
	}
	defer rows.Close()

	var out []ActivityEvent
	for rows.Next() {
		var e ActivityEvent
		var extra []byte
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Type, &e.Label, &e.Detail, &extra); err != nil {
			return nil, fmt.Errorf("scan activity event: %w", err)
		}
		if len(extra) > 0 {
			if err := json.Unmarshal(extra, &e.Extra); err != nil {
				return nil, fmt.Errorf("unmarshal activity extra: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ConsolidationRunExists reports whether a run already exists for runDate,
// the at-most-once-per-day backstop enforced by run_date's unique
// constraint (spec.md's nightly idempotency invariant).
func (s *Store) ConsolidationRunExists(ctx context.Context, runDate string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM consolidation_runs WHERE run_date = $1::date)`, runDate).Scan(&exists)
	return exists, err
}

// ConsolidationRunCount returns how many nightly runs have ever completed,
// used to gate the philosophical journal entry to every Nth run.
func (s *Store) ConsolidationRunCount(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM consolidation_runs`).Scan(&n)
	return n, err
}

// InsertConsolidationRun records one nightly pipeline execution. A
// conflicting run_date is silently ignored (id 0 returned), since the
// caller should have already checked ConsolidationRunExists.
func (s *Store) InsertConsolidationRun(ctx context.Context, run ConsolidationRun) (int64, error) {
	counters, err := json.Marshal(run.Counters)
	if err != nil {
		return 0, fmt.Errorf("marshal consolidation counters: %w", err)
	}
	var id int64
	err = s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO consolidation_runs (run_date, counters, duration_seconds, summary)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (run_date) DO NOTHING
			RETURNING id`,
			run.RunDate, counters, run.DurationSeconds, run.Summary,
		).Scan(&id)
	})
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	return id, err
}
