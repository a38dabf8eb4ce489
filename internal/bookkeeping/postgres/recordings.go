package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrNotFound is returned when a requested recording or job row does not exist.
var ErrNotFound = errors.New("bookkeeping postgres: not found")

// RecordingStatus tracks a recording's position in the ingestion lifecycle.
type RecordingStatus string

const (
	RecordingPending   RecordingStatus = "pending"
	RecordingIngesting RecordingStatus = "ingesting"
	RecordingReady     RecordingStatus = "ready"
	RecordingFailed    RecordingStatus = "failed"
)

// Recording is one row of the recordings table.
type Recording struct {
	ID        string
	UserID    string
	Status    RecordingStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CreateRecording inserts a new recording row in RecordingPending status.
func (s *Store) CreateRecording(ctx context.Context, id, userID string) (*Recording, error) {
	const q = `
		INSERT INTO recordings (id, user_id, status)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
		RETURNING id, user_id, status, created_at, updated_at`

	row := s.pool.QueryRow(ctx, q, id, userID, RecordingPending)
	rec, err := scanRecording(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return s.GetRecording(ctx, id)
	}
	if err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: create recording: %w", err)
	}
	return rec, nil
}

// GetRecording loads a recording by id.
func (s *Store) GetRecording(ctx context.Context, id string) (*Recording, error) {
	const q = `SELECT id, user_id, status, created_at, updated_at FROM recordings WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, id)
	rec, err := scanRecording(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: get recording: %w", err)
	}
	return rec, nil
}

// UpdateRecordingStatus transitions a recording to a new status.
func (s *Store) UpdateRecordingStatus(ctx context.Context, id string, status RecordingStatus) error {
	const q = `UPDATE recordings SET status = $2, updated_at = now() WHERE id = $1`
	tag, err := s.pool.Exec(ctx, q, id, status)
	if err != nil {
		return fmt.Errorf("bookkeeping postgres: update recording status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRecording(row pgx.Row) (*Recording, error) {
	var r Recording
	if err := row.Scan(&r.ID, &r.UserID, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}
