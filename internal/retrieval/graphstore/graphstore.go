// Package graphstore defines the entity-graph retriever contract: entity-name
// search, text-content search, bounded relationship-path traversal, direct
// entity-mention lookup, and entity-to-entity path finding.
package graphstore

import (
	"context"

	"github.com/MrWong99/knowledgeengine/internal/entitytype"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/filter"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
)

// Store is the entity-graph retriever contract. Results carry Kind
// [result.KindChunk] (chunk-bearing sub-strategies) or [result.KindEntity]
// (direct entity lookups), tagged with a source of the form "neo4j.<sub>".
type Store interface {
	// Search runs entity-name, then text-content, then relationship-path
	// search in order, stopping once limit results have accumulated.
	Search(ctx context.Context, query string, filters []filter.Filter, limit int, userID string, extras map[string]any) ([]result.Result, error)

	// GetByID fetches a chunk or entity by id, or (nil, nil) if not found.
	GetByID(ctx context.Context, id string) (*result.Result, error)

	// FindEntityMentions is a direct form of entity-name search, returning
	// ranked chunks that mention the named entity. entType narrows the
	// search to a single taxonomy member when non-nil.
	FindEntityMentions(ctx context.Context, name string, entType *entitytype.Type, userID string, limit int) ([]result.Result, error)

	// FindPathsBetweenEntities returns chunks lying along entity-to-entity
	// paths between nameA and nameB, up to maxDepth hops (default 2, hard
	// cap 5, enforced by the implementation).
	FindPathsBetweenEntities(ctx context.Context, nameA, nameB string, maxDepth int, userID string) ([]result.Result, error)

	// HealthCheck reports whether the underlying store is reachable.
	HealthCheck(ctx context.Context) error
}

// DefaultTraversalDepth and MaxTraversalDepth bound relationship-path
// searches, per §4.5.
const (
	DefaultTraversalDepth = 2
	MaxTraversalDepth     = 5
)
