// Package session tracks per-conversation state: a truncated exchange
// history, the set of transcript fingerprints already delivered, and a
// per-session lock so at most one request mutates a session at a time.
package session

import "time"

// DefaultHistoryLimit is the number of most-recent exchanges kept in
// Session.History.
const DefaultHistoryLimit = 10

// FingerprintLength is the number of leading characters of a transcript's
// content used as its delivery fingerprint.
const FingerprintLength = 50

// Exchange is one user/assistant turn.
type Exchange struct {
	UserUtterance      string
	AssistantUtterance string
	Timestamp          time.Time
}

// Session is the persisted state of one conversation.
type Session struct {
	ID        string
	UserID    string
	History   []Exchange
	Delivered []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New creates an empty session owned by userID.
func New(id, userID string, now time.Time) *Session {
	return &Session{ID: id, UserID: userID, CreatedAt: now, UpdatedAt: now}
}

// IsFirstTurn reports whether no exchange has yet been recorded for this
// session; the prompt composer uses this to decide first-turn vs.
// continuation section inclusion.
func (s *Session) IsFirstTurn() bool {
	return len(s.History) == 0
}

// Fingerprint returns the stable delivery key for transcript content: its
// leading FingerprintLength characters (collision-prone for near-identical
// preambles, matching the original implementation's chosen tradeoff).
func Fingerprint(content string) string {
	r := []rune(content)
	if len(r) <= FingerprintLength {
		return content
	}
	return string(r[:FingerprintLength])
}

// AddExchange appends ex to the session's history and truncates to limit
// (DefaultHistoryLimit if limit <= 0), keeping only the most recent entries.
func AddExchange(s *Session, ex Exchange, limit int) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	s.History = append(s.History, ex)
	if len(s.History) > limit {
		s.History = s.History[len(s.History)-limit:]
	}
	s.UpdatedAt = ex.Timestamp
}

// AddDelivered appends fingerprints not already present in s.Delivered,
// preserving insertion order and the append-only, at-most-once-per-session
// invariant.
func AddDelivered(s *Session, fingerprints []string) {
	if len(fingerprints) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(s.Delivered))
	for _, fp := range s.Delivered {
		seen[fp] = struct{}{}
	}
	for _, fp := range fingerprints {
		if _, ok := seen[fp]; ok {
			continue
		}
		s.Delivered = append(s.Delivered, fp)
		seen[fp] = struct{}{}
	}
}

// HasDelivered reports whether fingerprint is already in the session's
// delivered list.
func (s *Session) HasDelivered(fingerprint string) bool {
	for _, fp := range s.Delivered {
		if fp == fingerprint {
			return true
		}
	}
	return false
}
