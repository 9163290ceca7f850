package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// InsertEmailLog records one send attempt, successful or not, mirroring
// email_service.py's _log_email (it logs regardless of outcome).
func (s *Store) InsertEmailLog(ctx context.Context, e EmailLog) (int64, error) {
	var id int64
	err := s.Tx(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `
			INSERT INTO email_log (sent_at, recipient, subject, email_type, success, error)
			VALUES (now(), $1, $2, $3, $4, $5) RETURNING id`,
			e.Recipient, e.Subject, e.Type, e.Success, e.Error,
		).Scan(&id)
	})
	if err != nil {
		return 0, fmt.Errorf("insert email log: %w", err)
	}
	return id, nil
}

// EmailSentTodayCount returns how many successful sends of emailType have
// happened since local midnight of the given day, mirroring
// should_send_today()'s underlying query.
func (s *Store) EmailSentTodayCount(ctx context.Context, day time.Time, emailType string) (int, error) {
	dayStr := day.Format("2006-01-02")
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM email_log
		WHERE DATE(sent_at) = $1 AND email_type = $2 AND success = true`,
		dayStr, emailType,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("email sent today count: %w", err)
	}
	return n, nil
}
