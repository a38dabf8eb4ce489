package resilience

import (
	"context"

	"github.com/MrWong99/knowledgeengine/internal/entitytype"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/filter"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/graphstore"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
)

// GraphStoreBreaker wraps a [graphstore.Store] with a dedicated circuit
// breaker, the same way [LLMFallback] wraps an [llm.Provider]: a degraded
// graph database fails fast with [ErrCircuitOpen] instead of blocking every
// retrieval call behind its own timeout.
type GraphStoreBreaker struct {
	group *FallbackGroup[graphstore.Store]
}

// Compile-time interface assertion.
var _ graphstore.Store = (*GraphStoreBreaker)(nil)

// NewGraphStoreBreaker wraps store behind a circuit breaker named name.
func NewGraphStoreBreaker(store graphstore.Store, name string, cfg CircuitBreakerConfig) *GraphStoreBreaker {
	return &GraphStoreBreaker{
		group: NewFallbackGroup(store, name, FallbackConfig{CircuitBreaker: cfg}),
	}
}

// Search delegates to the wrapped store through the circuit breaker.
func (b *GraphStoreBreaker) Search(ctx context.Context, query string, filters []filter.Filter, limit int, userID string, extras map[string]any) ([]result.Result, error) {
	return ExecuteWithResult(b.group, func(s graphstore.Store) ([]result.Result, error) {
		return s.Search(ctx, query, filters, limit, userID, extras)
	})
}

// GetByID delegates to the wrapped store through the circuit breaker.
func (b *GraphStoreBreaker) GetByID(ctx context.Context, id string) (*result.Result, error) {
	return ExecuteWithResult(b.group, func(s graphstore.Store) (*result.Result, error) {
		return s.GetByID(ctx, id)
	})
}

// FindEntityMentions delegates to the wrapped store through the circuit
// breaker.
func (b *GraphStoreBreaker) FindEntityMentions(ctx context.Context, name string, entType *entitytype.Type, userID string, limit int) ([]result.Result, error) {
	return ExecuteWithResult(b.group, func(s graphstore.Store) ([]result.Result, error) {
		return s.FindEntityMentions(ctx, name, entType, userID, limit)
	})
}

// FindPathsBetweenEntities delegates to the wrapped store through the
// circuit breaker.
func (b *GraphStoreBreaker) FindPathsBetweenEntities(ctx context.Context, nameA, nameB string, maxDepth int, userID string) ([]result.Result, error) {
	return ExecuteWithResult(b.group, func(s graphstore.Store) ([]result.Result, error) {
		return s.FindPathsBetweenEntities(ctx, nameA, nameB, maxDepth, userID)
	})
}

// HealthCheck delegates to the wrapped store through the circuit breaker.
func (b *GraphStoreBreaker) HealthCheck(ctx context.Context) error {
	_, err := ExecuteWithResult(b.group, func(s graphstore.Store) (struct{}, error) {
		return struct{}{}, s.HealthCheck(ctx)
	})
	return err
}
