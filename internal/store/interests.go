package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// interestLevelFor classifies a mention count into the fixed four-tier
// scale: 1-4 casual, 5-14 interested, 15-29 deep, 30+ passion.
func interestLevelFor(count int) string {
	switch {
	case count >= 30:
		return "passion"
	case count >= 15:
		return "deep"
	case count >= 5:
		return "interested"
	default:
		return "casual"
	}
}

// BumpInterest increments the mention count for a topic (inserting it at
// count 1 if new) and recomputes its level from the fixed thresholds.
func (s *Store) BumpInterest(ctx context.Context, topic string) (Interest, error) {
	var it Interest
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		var count int
		err := tx.QueryRow(ctx, `
			INSERT INTO interests (topic, level, mention_count, first_mention, last_activity)
			VALUES ($1, 'casual', 1, now(), now())
			ON CONFLICT (topic) DO UPDATE SET
				mention_count = interests.mention_count + 1,
				last_activity = now()
			RETURNING mention_count`, topic).Scan(&count)
		if err != nil {
			return fmt.Errorf("bump interest %s: %w", topic, err)
		}
		level := interestLevelFor(count)
		if err := tx.QueryRow(ctx, `
			UPDATE interests SET level = $2 WHERE topic = $1
			RETURNING topic, level, mention_count, first_mention, last_activity`,
			topic, level,
		).Scan(&it.Topic, &it.Level, &it.MentionCount, &it.FirstMention, &it.LastActivity); err != nil {
			return fmt.Errorf("update interest level %s: %w", topic, err)
		}
		return nil
	})
	return it, err
}

// TopInterests returns interests ordered by mention count descending.
func (s *Store) TopInterests(ctx context.Context, limit int) ([]Interest, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT topic, level, mention_count, first_mention, last_activity
		FROM interests ORDER BY mention_count DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("top interests: %w", err)
	}
	defer rows.Close()

	var out []Interest
	for rows.Next() {
		var it Interest
		if err := rows.Scan(&it.Topic, &it.Level, &it.MentionCount, &it.FirstMention, &it.LastActivity); err != nil {
			return nil, fmt.Errorf("scan interest: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// skillClassificationFor classifies a rolling mean confidence into the
// three-tier scale used by the Skill Tracker.
func skillClassificationFor(mean float64) string {
	switch {
	case mean >= 0.75:
		return "strong"
	case mean >= 0.55:
		return "competent"
	default:
		return "developing"
	}
}

// RecordSkillObservation inserts an observation and updates the rolling
// mean + classification for its domain.
func (s *Store) RecordSkillObservation(ctx context.Context, domain string, confidence float64) (SkillLevel, error) {
	var lvl SkillLevel
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO skill_observations (domain, confidence, ts) VALUES ($1, $2, now())`,
			domain, confidence); err != nil {
			return fmt.Errorf("insert skill observation: %w", err)
		}
		var mean float64
		var count int
		if err := tx.QueryRow(ctx, `
			SELECT avg(confidence), count(*) FROM skill_observations WHERE domain = $1`, domain,
		).Scan(&mean, &count); err != nil {
			return fmt.Errorf("compute rolling mean: %w", err)
		}
		classification := skillClassificationFor(mean)
		if _, err := tx.Exec(ctx, `
			INSERT INTO skill_levels (domain, rolling_mean, observation_count, classification)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (domain) DO UPDATE SET
				rolling_mean = EXCLUDED.rolling_mean,
				observation_count = EXCLUDED.observation_count,
				classification = EXCLUDED.classification`,
			domain, mean, count, classification); err != nil {
			return fmt.Errorf("upsert skill level: %w", err)
		}
		lvl = SkillLevel{Domain: domain, RollingMean: mean, ObservationCt: count, Classification: classification}
		return nil
	})
	return lvl, err
}

// SkillLevels returns all tracked domain classifications.
func (s *Store) SkillLevels(ctx context.Context) ([]SkillLevel, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT domain, rolling_mean, observation_count, classification FROM skill_levels ORDER BY domain ASC`)
	if err != nil {
		return nil, fmt.Errorf("skill levels: %w", err)
	}
	defer rows.Close()

	var out []SkillLevel
	for rows.Next() {
		var lvl SkillLevel
		if err := rows.Scan(&lvl.Domain, &lvl.RollingMean, &lvl.ObservationCt, &lvl.Classification); err != nil {
			return nil, fmt.Errorf("scan skill level: %w", err)
		}
		out = append(out, lvl)
	}
	return out, rows.Err()
}
