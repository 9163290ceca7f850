package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// InsertCreativeOutput records one code block or creative passage saved by
// the Action Pipeline.
func (s *Store) InsertCreativeOutput(ctx context.Context, o CreativeOutput) (int64, error) {
	var id int64
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO creative_outputs (ts, kind, language, content, exec_stdout, exec_stderr, exec_exit_code, executed)
			VALUES (now(), $1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			o.Kind, o.Language, o.Content, o.Stdout, o.Stderr, o.ExitCode, o.Executed,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("insert creative output: %w", err)
	}
	return id, nil
}

// RecentCreativeOutputs returns the n most recent saved outputs, newest first.
func (s *Store) RecentCreativeOutputs(ctx context.Context, n int) ([]CreativeOutput, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, ts, kind, language, content, exec_stdout, exec_stderr, exec_exit_code, executed
		FROM creative_outputs ORDER BY id DESC LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("recent creative outputs: %w", err)
	}
	defer rows.Close()

	var out []CreativeOutput
	for rows.Next() {
		var o CreativeOutput
		if err := rows.Scan(&o.ID, &o.Timestamp, &o.Kind, &o.Language, &o.Content, &o.Stdout, &o.Stderr, &o.ExitCode, &o.Executed); err != nil {
			return nil, fmt.Errorf("scan creative output: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
