package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/knowledgeengine/internal/session"
)

// Get implements [session.Store].
func (s *Store) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	const q = `SELECT id, user_id, history, created_at, updated_at FROM conversation_sessions WHERE id = $1`
	sess, err := scanSession(s.pool.QueryRow(ctx, q, sessionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: get session: %w", err)
	}

	delivered, err := s.loadDelivered(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sess.Delivered = delivered
	return sess, nil
}

// Create implements [session.Store].
func (s *Store) Create(ctx context.Context, sessionID, userID string) (*session.Session, error) {
	const q = `
		INSERT INTO conversation_sessions (id, user_id, history)
		VALUES ($1, $2, '[]')
		ON CONFLICT (id) DO NOTHING
		RETURNING id, user_id, history, created_at, updated_at`

	sess, err := scanSession(s.pool.QueryRow(ctx, q, sessionID, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		// Already existed; load the current row instead.
		return s.Get(ctx, sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: create session: %w", err)
	}
	return sess, nil
}

// Commit implements [session.Store]. It atomically appends ex to history
// (truncated to [session.DefaultHistoryLimit]) and records fingerprints as
// newly delivered, in a single transaction — satisfying the ordering
// guarantee that a crash cannot leave a transcript "emitted but not
// recorded".
func (s *Store) Commit(ctx context.Context, sessionID string, ex session.Exchange, fingerprints []string) (*session.Session, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: commit: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var raw []byte
	const selectQ = `SELECT history FROM conversation_sessions WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, selectQ, sessionID).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, session.ErrNotFound
		}
		return nil, fmt.Errorf("bookkeeping postgres: commit: lock session: %w", err)
	}

	var history []session.Exchange
	if err := json.Unmarshal(raw, &history); err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: commit: decode history: %w", err)
	}

	sess := &session.Session{History: history}
	session.AddExchange(sess, ex, session.DefaultHistoryLimit)

	newHistory, err := json.Marshal(sess.History)
	if err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: commit: encode history: %w", err)
	}

	const updateQ = `UPDATE conversation_sessions SET history = $2, updated_at = now() WHERE id = $1`
	if _, err := tx.Exec(ctx, updateQ, sessionID, newHistory); err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: commit: update history: %w", err)
	}

	const insertFPQ = `
		INSERT INTO delivered_transcripts (session_id, fingerprint)
		VALUES ($1, $2)
		ON CONFLICT (session_id, fingerprint) DO NOTHING`
	for _, fp := range fingerprints {
		if _, err := tx.Exec(ctx, insertFPQ, sessionID, fp); err != nil {
			return nil, fmt.Errorf("bookkeeping postgres: commit: record fingerprint: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: commit: %w", err)
	}

	return s.Get(ctx, sessionID)
}

// Reset implements [session.Store]. History and delivered fingerprints are
// cleared atomically, in the same spirit as Commit.
func (s *Store) Reset(ctx context.Context, sessionID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("bookkeeping postgres: reset: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	const updateQ = `UPDATE conversation_sessions SET history = '[]', updated_at = now() WHERE id = $1`
	tag, err := tx.Exec(ctx, updateQ, sessionID)
	if err != nil {
		return fmt.Errorf("bookkeeping postgres: reset: clear history: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return session.ErrNotFound
	}

	const deleteQ = `DELETE FROM delivered_transcripts WHERE session_id = $1`
	if _, err := tx.Exec(ctx, deleteQ, sessionID); err != nil {
		return fmt.Errorf("bookkeeping postgres: reset: clear delivered: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("bookkeeping postgres: reset: %w", err)
	}
	return nil
}

// Delete implements [session.Store]. delivered_transcripts rows cascade via
// the foreign key's ON DELETE CASCADE.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	const q = `DELETE FROM conversation_sessions WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, sessionID); err != nil {
		return fmt.Errorf("bookkeeping postgres: delete session: %w", err)
	}
	return nil
}

func (s *Store) loadDelivered(ctx context.Context, sessionID string) ([]string, error) {
	const q = `SELECT fingerprint FROM delivered_transcripts WHERE session_id = $1 ORDER BY delivered_at`
	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: load delivered: %w", err)
	}
	fps, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("bookkeeping postgres: scan delivered: %w", err)
	}
	return fps, nil
}

func scanSession(row pgx.Row) (*session.Session, error) {
	var (
		s    session.Session
		hist []byte
	)
	if err := row.Scan(&s.ID, &s.UserID, &hist, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if len(hist) > 0 {
		if err := json.Unmarshal(hist, &s.History); err != nil {
			return nil, fmt.Errorf("bookkeeping postgres: decode history: %w", err)
		}
	}
	return &s, nil
}
