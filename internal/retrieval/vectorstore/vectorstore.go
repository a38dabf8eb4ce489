// Package vectorstore defines the semantic nearest-neighbor retriever
// contract backed by a vector index.
package vectorstore

import (
	"context"

	"github.com/MrWong99/knowledgeengine/internal/retrieval/filter"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
)

// Store is the semantic retriever contract over a vector index. query is raw
// text; implementations embed it before searching. Results are always
// [result.KindChunk] (or [result.KindMixed]), tagged with a source beginning
// "chromadb." or equivalent.
type Store interface {
	// Search finds the limit chunks most similar to query, optionally scoped
	// to userID and narrowed by filters (shared filter algebra, §6.2).
	// Results below the configured similarity floor are dropped. extras
	// carries retriever-specific tuning hints and may be nil.
	Search(ctx context.Context, query string, filters []filter.Filter, limit int, userID string, extras map[string]any) ([]result.Result, error)

	// GetByID fetches a single chunk by id, or (nil, nil) if not found.
	GetByID(ctx context.Context, id string) (*result.Result, error)

	// HealthCheck reports whether the underlying store is reachable.
	HealthCheck(ctx context.Context) error
}
