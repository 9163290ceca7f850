package selfawareness

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// ClickHouseSinkConfig configures an optional analytics mirror for
// SelfAwarenessSample rows, letting an operator run ad-hoc rollups beyond
// the in-process 7-day mean. Grounded on
// internal/agentd/metrics_clickhouse.go's DSN-parse-then-Open shape.
type ClickHouseSinkConfig struct {
	DSN      string
	Database string
	Table    string
}

// ClickHouseSink mirrors recorded samples into ClickHouse; it is optional
// and never blocks or fails the primary Postgres write path.
type ClickHouseSink struct {
	conn  clickhouse.Conn
	table string
}

// OpenClickHouseSink returns nil, nil if cfg.DSN is blank, matching the
// teacher's "absent config disables the sink" convention.
func OpenClickHouseSink(ctx context.Context, cfg ClickHouseSinkConfig) (*ClickHouseSink, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, nil
	}

	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	if cfg.Database != "" {
		opts.Auth.Database = cfg.Database
	}

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.Ping(pingCtx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	table := cfg.Table
	if table == "" {
		table = "self_awareness_samples"
	}
	return &ClickHouseSink{conn: conn, table: table}, nil
}

// Mirror writes one scored sample to ClickHouse. Callers should treat a
// non-nil error as informational only — the Postgres write via
// Engine.Record is the source of truth.
func (c *ClickHouseSink) Mirror(ctx context.Context, s Scores, response string) error {
	if c == nil || c.conn == nil {
		return nil
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (ts, self_ref_score, uncertainty_score, meta_cognition_score, composite_score, word_count) VALUES (?, ?, ?, ?, ?, ?)",
		c.table,
	)
	return c.conn.Exec(ctx, query, time.Now(), s.SelfRef, s.Uncertainty, s.MetaCognition, s.Composite, s.WordCount)
}
