package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// InsertSelfAwarenessSample records one scored assistant response.
func (s *Store) InsertSelfAwarenessSample(ctx context.Context, sample SelfAwarenessSample) (int64, error) {
	var id int64
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO self_awareness_samples (ts, self_ref_score, uncertainty_score, meta_cognition_score, composite_score, word_count, sample)
			VALUES (now(), $1, $2, $3, $4, $5, $6) RETURNING id`,
			sample.SelfRefScore, sample.UncertaintyScore, sample.MetaCognitionScore,
			sample.CompositeScore, sample.WordCount, sample.Sample,
		).Scan(&id)
	})
	return id, err
}

// SelfAwarenessRollingMean returns the mean composite score over the
// trailing window days (spec.md's 7-day rolling self-awareness trend).
func (s *Store) SelfAwarenessRollingMean(ctx context.Context, window time.Duration) (float64, int, error) {
	var mean float64
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(avg(composite_score), 0), count(*)
		FROM self_awareness_samples WHERE ts >= now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(window.Seconds())),
	).Scan(&mean, &count)
	return mean, count, err
}

// RecentSelfAwarenessSamples returns the n most recent samples, newest first.
func (s *Store) RecentSelfAwarenessSamples(ctx context.Context, n int) ([]SelfAwarenessSample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, self_ref_score, uncertainty_score, meta_cognition_score, composite_score, word_count, sample
		FROM self_awareness_samples ORDER BY id DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("recent self-awareness samples: %w", err)
	}
	defer rows.Close()

	var out []SelfAwarenessSample
	for rows.Next() {
		var sample SelfAwarenessSample
		if err := rows.Scan(&sample.ID, &sample.Timestamp, &sample.SelfRefScore, &sample.UncertaintyScore,
			&sample.MetaCognitionScore, &sample.CompositeScore, &sample.WordCount, &sample.Sample); err != nil {
			return nil, fmt.Errorf("scan self-awareness sample: %w", err)
		}
		out = append(out, sample)
	}
	return out, rows.Err()
}
