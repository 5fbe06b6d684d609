// Package postgres archives trace records for long-term retention.
// The JSONL file on the API host is the primary log; this table is
// the queryable copy the worker maintains.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/email-thread-rag/internal/core/domain"
)

type TraceRepository struct {
	db *sql.DB
}

func NewTraceRepository(db *sql.DB) *TraceRepository {
	return &TraceRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *TraceRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082601)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS trace_archive (
	trace_id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	thread_id TEXT,
	user_text TEXT NOT NULL,
	rewrite TEXT NOT NULL,
	retrieved JSONB NOT NULL DEFAULT '[]'::jsonb,
	answer TEXT NOT NULL,
	citations JSONB NOT NULL DEFAULT '[]'::jsonb,
	asked_at TIMESTAMPTZ NOT NULL,
	archived_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trace_archive_session ON trace_archive(session_id);
CREATE INDEX IF NOT EXISTS idx_trace_archive_asked_at ON trace_archive(asked_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Insert archives one trace record. Redelivered records are a no-op:
// the queue is at-least-once, the table stays exactly-once on trace_id.
func (r *TraceRepository) Insert(ctx context.Context, record domain.TraceRecord) error {
	retrievedJSON, err := json.Marshal(record.Retrieved)
	if err != nil {
		return fmt.Errorf("marshal retrieved: %w", err)
	}
	citationsJSON, err := json.Marshal(record.Citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO trace_archive (
	trace_id, session_id, thread_id, user_text, rewrite, retrieved, answer, citations, asked_at, archived_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (trace_id) DO NOTHING
`,
		record.TraceID, record.SessionID, record.ThreadID, record.UserText, record.Rewrite,
		retrievedJSON, record.Answer, citationsJSON, record.Timestamp, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}
	return nil
}
