package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/MrWong99/knowledgeengine/internal/api"
	"github.com/MrWong99/knowledgeengine/internal/health"
	"github.com/MrWong99/knowledgeengine/internal/observe"
	"github.com/MrWong99/knowledgeengine/internal/plugin"
	"github.com/MrWong99/knowledgeengine/internal/session"
)

// memorySessionStore is a minimal in-memory session.Store double.
type memorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
}

func newMemorySessionStore() *memorySessionStore {
	return &memorySessionStore{sessions: make(map[string]*session.Session)}
}

func (m *memorySessionStore) Get(ctx context.Context, sessionID string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, session.ErrNotFound
	}
	return s, nil
}

func (m *memorySessionStore) Create(ctx context.Context, sessionID, userID string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &session.Session{ID: sessionID, UserID: userID}
	m.sessions[sessionID] = s
	return s, nil
}

func (m *memorySessionStore) Commit(ctx context.Context, sessionID string, ex session.Exchange, fingerprints []string) (*session.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, session.ErrNotFound
	}
	s.History = append(s.History, ex)
	s.Delivered = append(s.Delivered, fingerprints...)
	return s, nil
}

func (m *memorySessionStore) Reset(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return session.ErrNotFound
	}
	s.History = nil
	s.Delivered = nil
	return nil
}

func (m *memorySessionStore) Delete(ctx context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
	return nil
}

func newTestRouter(store *memorySessionStore) http.Handler {
	return api.NewRouter(api.Deps{
		Sessions: session.NewManager(store),
		Plugins:  plugin.NewRegistry(),
		Metrics:  observe.DefaultMetrics(),
		Health:   health.New(),
	})
}

func TestGetSession_CreatesWhenMissing(t *testing.T) {
	router := newTestRouter(newMemorySessionStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/abc?user_id=u1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var got struct {
		ID     string `json:"id"`
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if got.ID != "abc" || got.UserID != "u1" {
		t.Fatalf("got session %+v", got)
	}
}

func TestGetSession_MissingUserID(t *testing.T) {
	router := newTestRouter(newMemorySessionStore())

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestResetSession(t *testing.T) {
	store := newMemorySessionStore()
	router := newTestRouter(store)

	_, _ = store.Create(context.Background(), "abc", "u1")
	_, _ = store.Commit(context.Background(), "abc", session.Exchange{UserUtterance: "hi"}, []string{"fp1"})

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}

	s, err := store.Get(context.Background(), "abc")
	if err != nil {
		t.Fatalf("Get after reset: %v", err)
	}
	if len(s.History) != 0 || len(s.Delivered) != 0 {
		t.Fatalf("expected reset session, got %+v", s)
	}
}

func TestResetSession_NotFound(t *testing.T) {
	router := newTestRouter(newMemorySessionStore())

	req := httptest.NewRequest(http.MethodDelete, "/v1/sessions/ghost", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d; body=%s", rec.Code, http.StatusNotFound, rec.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	router := newTestRouter(newMemorySessionStore())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestIngest_InvalidJSON(t *testing.T) {
	router := newTestRouter(newMemorySessionStore())

	req := httptest.NewRequest(http.MethodPost, "/v1/ingest", strings.NewReader(`{`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
