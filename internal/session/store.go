package session

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Store.Get when no session exists for the given id.
var ErrNotFound = errors.New("session: not found")

// Store persists Session state. Implementations MUST make Commit atomic:
// the history append and the delivered-fingerprint append land together, or
// neither does (§ "a crash between the two is not permitted to leave a
// transcript emitted but not recorded").
//
// internal/bookkeeping/postgres provides the production implementation;
// NewMemStore provides an in-memory one for tests and for standalone
// deployments without a relational store configured.
type Store interface {
	// Get loads a session by id, or ErrNotFound if it does not exist.
	Get(ctx context.Context, sessionID string) (*Session, error)

	// Create inserts a new, empty session.
	Create(ctx context.Context, sessionID, userID string) (*Session, error)

	// Commit atomically appends ex to history (truncated to
	// DefaultHistoryLimit) and fingerprints to the delivered list, then
	// returns the updated session.
	Commit(ctx context.Context, sessionID string, ex Exchange, fingerprints []string) (*Session, error)

	// Reset clears history and delivered fingerprints but keeps the session
	// row (and its id/user) alive.
	Reset(ctx context.Context, sessionID string) error

	// Delete removes the session entirely.
	Delete(ctx context.Context, sessionID string) error
}
