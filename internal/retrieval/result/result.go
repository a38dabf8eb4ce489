// Package result defines the tagged-union shape returned by both retrievers
// and consumed by the aggregator, ranker, and prompt composer.
//
// The source systems this was modeled on return heterogeneous maps keyed by
// ad-hoc field names; Kind plus the per-variant accessors below replace that
// dynamic dispatch with a fixed, explicit sum type (§9 design note).
package result

import "time"

// Kind identifies which variant a Result carries.
type Kind string

const (
	KindChunk        Kind = "chunk"
	KindEntity       Kind = "entity"
	KindRelationship Kind = "relationship"
	KindDocument     Kind = "document"
	KindMixed        Kind = "mixed"
)

// Result is the shared shape returned by vectorstore.Store.Search,
// graphstore.Store.Search, and every operation layered on top of them.
type Result struct {
	ID      string
	Kind    Kind
	Content string

	// Score is a similarity/relevance score in [0,1] as produced by the
	// originating retriever. The ranker overwrites this with the unified
	// score; RawScore preserves the retriever's original value.
	Score    float64
	RawScore float64

	// Source identifies the origin, e.g. "chromadb.chunks" or "neo4j.entity_mentions".
	// When a result is merged across sources during dedup, sources are joined
	// with a comma, e.g. "chromadb.chunks,neo4j.entity_mentions".
	Source string

	Timestamp time.Time

	// Entities lists entity surface forms associated with this result.
	Entities []string

	// Relationships lists relationship descriptors associated with this result.
	Relationships []string

	// Embedding is only populated when the caller explicitly requested vectors.
	Embedding []float32

	// Metadata is the escape hatch for anything not promoted to a typed field:
	// recording id, positions, language, tags, category, created-at, user id,
	// entity/chunk counts, path length, and so on.
	Metadata map[string]any
}

// UserID reads the conventional "user_id" metadata key used for the
// mandatory per-user scoping check (§4.4/§4.5, property #2).
func (r Result) UserID() string {
	return stringMeta(r, "user_id")
}

// RecordingID reads the conventional "recording_id" metadata key used by the
// writer's keyed-compensation rollback (§4.3/§9).
func (r Result) RecordingID() string {
	return stringMeta(r, "recording_id")
}

func stringMeta(r Result, key string) string {
	if r.Metadata == nil {
		return ""
	}
	if v, ok := r.Metadata[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// AsChunk returns the result's chunk-specific view. Ok is false when Kind is
// not KindChunk or KindMixed.
func (r Result) AsChunk() (Chunk, bool) {
	if r.Kind != KindChunk && r.Kind != KindMixed {
		return Chunk{}, false
	}
	c := Chunk{
		ID:           r.ID,
		Text:         r.Content,
		RecordingID:  r.RecordingID(),
		UserID:       r.UserID(),
		CreatedAt:    r.Timestamp,
		EntityCount:  intMeta(r, "entity_count"),
		ChunkIndex:   intMeta(r, "chunk_index"),
		ChunkTotal:   intMeta(r, "chunk_total"),
		Language:     stringMeta(r, "language"),
		Category:     stringMeta(r, "category"),
	}
	return c, true
}

// AsEntity returns the result's entity-specific view. Ok is false when Kind
// is not KindEntity or KindMixed.
func (r Result) AsEntity() (Entity, bool) {
	if r.Kind != KindEntity && r.Kind != KindMixed {
		return Entity{}, false
	}
	return Entity{
		ID:            r.ID,
		SurfaceForm:   r.Content,
		NormalizedForm: stringMeta(r, "normalized_form"),
		Type:          stringMeta(r, "entity_type"),
		MentionCount:  intMeta(r, "mention_count"),
	}, true
}

// AsRelationship returns the result's relationship-specific view. Ok is
// false when Kind is not KindRelationship or KindMixed.
func (r Result) AsRelationship() (Relationship, bool) {
	if r.Kind != KindRelationship && r.Kind != KindMixed {
		return Relationship{}, false
	}
	return Relationship{
		ID:       r.ID,
		Label:    r.Content,
		FromID:   stringMeta(r, "from_id"),
		ToID:     stringMeta(r, "to_id"),
		Strength: floatMeta(r, "strength"),
	}, true
}

// AsDocument returns the result's document-specific view (a higher-level
// grouping of chunks, used for future extensions beyond the chunk/entity/
// relationship variants). Ok is false when Kind is not KindDocument or
// KindMixed.
func (r Result) AsDocument() (Document, bool) {
	if r.Kind != KindDocument && r.Kind != KindMixed {
		return Document{}, false
	}
	return Document{
		ID:      r.ID,
		Title:   stringMeta(r, "title"),
		Summary: r.Content,
	}, true
}

func intMeta(r Result, key string) int {
	if r.Metadata == nil {
		return 0
	}
	switch v := r.Metadata[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

func floatMeta(r Result, key string) float64 {
	if r.Metadata == nil {
		return 0
	}
	switch v := r.Metadata[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}

// Chunk is the typed view of a KindChunk result.
type Chunk struct {
	ID          string
	Text        string
	RecordingID string
	UserID      string
	CreatedAt   time.Time
	EntityCount int
	ChunkIndex  int
	ChunkTotal  int
	Language    string
	Category    string
}

// Entity is the typed view of a KindEntity result.
type Entity struct {
	ID             string
	SurfaceForm    string
	NormalizedForm string
	Type           string
	MentionCount   int
}

// Relationship is the typed view of a KindRelationship result.
type Relationship struct {
	ID       string
	Label    string
	FromID   string
	ToID     string
	Strength float64
}

// Document is the typed view of a KindDocument result.
type Document struct {
	ID      string
	Title   string
	Summary string
}
