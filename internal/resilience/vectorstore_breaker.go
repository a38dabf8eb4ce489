package resilience

import (
	"context"

	"github.com/MrWong99/knowledgeengine/internal/retrieval/filter"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/vectorstore"
)

// VectorStoreBreaker wraps a [vectorstore.Store] with a dedicated circuit
// breaker, the same way [LLMFallback] wraps an [llm.Provider]: a degraded
// vector index fails fast with [ErrCircuitOpen] instead of blocking every
// retrieval call behind its own timeout.
type VectorStoreBreaker struct {
	group *FallbackGroup[vectorstore.Store]
}

// Compile-time interface assertion.
var _ vectorstore.Store = (*VectorStoreBreaker)(nil)

// NewVectorStoreBreaker wraps store behind a circuit breaker named name.
func NewVectorStoreBreaker(store vectorstore.Store, name string, cfg CircuitBreakerConfig) *VectorStoreBreaker {
	return &VectorStoreBreaker{
		group: NewFallbackGroup(store, name, FallbackConfig{CircuitBreaker: cfg}),
	}
}

// Search delegates to the wrapped store through the circuit breaker.
func (b *VectorStoreBreaker) Search(ctx context.Context, query string, filters []filter.Filter, limit int, userID string, extras map[string]any) ([]result.Result, error) {
	return ExecuteWithResult(b.group, func(s vectorstore.Store) ([]result.Result, error) {
		return s.Search(ctx, query, filters, limit, userID, extras)
	})
}

// GetByID delegates to the wrapped store through the circuit breaker.
func (b *VectorStoreBreaker) GetByID(ctx context.Context, id string) (*result.Result, error) {
	return ExecuteWithResult(b.group, func(s vectorstore.Store) (*result.Result, error) {
		return s.GetByID(ctx, id)
	})
}

// HealthCheck delegates to the wrapped store through the circuit breaker.
func (b *VectorStoreBreaker) HealthCheck(ctx context.Context) error {
	_, err := ExecuteWithResult(b.group, func(s vectorstore.Store) (struct{}, error) {
		return struct{}{}, s.HealthCheck(ctx)
	})
	return err
}
