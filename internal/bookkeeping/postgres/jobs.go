package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// JobStatus tracks an ingestion job's lifecycle.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job is one row of the ingestion_jobs table.
type Job struct {
	ID          string
	RecordingID string
	Status      JobStatus
	RetryCount  int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CreateJob inserts a new job row in JobQueued status.
func (s *Store) CreateJob(ctx context.Context, id, recordingID string) (*Job, error) {
	const q = `
		INSERT INTO ingestion_jobs (id, recording_id, status)
		VALUES ($1, $2, $3)
		RETURNING id, recording_id, status, retry_count, last_error, created_at, updated_at`

	row := s.pool.QueryRow(ctx, q, id, recordingID, JobQueued)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: create job: %w", err)
	}
	return job, nil
}

// GetJob loads a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	const q = `SELECT id, recording_id, status, retry_count, last_error, created_at, updated_at FROM ingestion_jobs WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: get job: %w", err)
	}
	return job, nil
}

// UpdateJobStatus sets a job's status without touching its retry count.
func (s *Store) UpdateJobStatus(ctx context.Context, id string, status JobStatus) error {
	const q = `UPDATE ingestion_jobs SET status = $2, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, status)
	if err != nil {
		return fmt.Errorf("bookkeeping postgres: update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordRetry increments a job's retry count, records lastErr, and sets its
// status to JobQueued so a retry worker can pick it up again.
func (s *Store) RecordRetry(ctx context.Context, id string, lastErr string) error {
	const q = `
		UPDATE ingestion_jobs
		SET retry_count = retry_count + 1,
		    last_error  = $2,
		    status      = $3,
		    updated_at  = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, q, id, lastErr, JobQueued)
	if err != nil {
		return fmt.Errorf("bookkeeping postgres: record retry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	if err := row.Scan(&j.ID, &j.RecordingID, &j.Status, &j.RetryCount, &j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
		return nil, err
	}
	return &j, nil
}
