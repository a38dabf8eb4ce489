// Package postgres is the relational bookkeeping store: per-recording rows,
// per-ingestion-job rows with retry tracking, conversation sessions, and the
// delivered-transcript rows the transcript-fingerprint filter depends on.
//
// This is the external collaborator named in spec §1 ("the relational
// bookkeeping tables for upload/job state"); the dual-memory core itself
// (chunker, extractor, writer, retrievers, aggregator, ranker, composer)
// never imports this package directly — callers in internal/api wire it in.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlRecordings = `
CREATE TABLE IF NOT EXISTS recordings (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    status      TEXT         NOT NULL DEFAULT 'pending',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_recordings_user_id ON recordings (user_id);
`

const ddlIngestionJobs = `
CREATE TABLE IF NOT EXISTS ingestion_jobs (
    id            TEXT         PRIMARY KEY,
    recording_id  TEXT         NOT NULL REFERENCES recordings (id) ON DELETE CASCADE,
    status        TEXT         NOT NULL DEFAULT 'queued',
    retry_count   INT          NOT NULL DEFAULT 0,
    last_error    TEXT         NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_recording_id
    ON ingestion_jobs (recording_id);

CREATE INDEX IF NOT EXISTS idx_ingestion_jobs_status
    ON ingestion_jobs (status);
`

const ddlConversationSessions = `
CREATE TABLE IF NOT EXISTS conversation_sessions (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL,
    history     JSONB        NOT NULL DEFAULT '[]',
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_conversation_sessions_user_id
    ON conversation_sessions (user_id);
`

const ddlDeliveredTranscripts = `
CREATE TABLE IF NOT EXISTS delivered_transcripts (
    session_id    TEXT         NOT NULL REFERENCES conversation_sessions (id) ON DELETE CASCADE,
    fingerprint   TEXT         NOT NULL,
    delivered_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (session_id, fingerprint)
);
`

// Migrate creates or ensures all required tables exist. It is idempotent
// (CREATE TABLE/INDEX IF NOT EXISTS) and safe to call on every application
// start.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		ddlRecordings,
		ddlIngestionJobs,
		ddlConversationSessions,
		ddlDeliveredTranscripts,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("bookkeeping postgres: migrate: %w", err)
		}
	}
	return nil
}
