// Package chroma adapts a Chroma collection to [vectorstore.Store] and
// [writer.VectorWriter].
package chroma

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"

	"github.com/MrWong99/knowledgeengine/internal/ingest/writer"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/filter"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
	"github.com/MrWong99/knowledgeengine/pkg/provider/embeddings"
)

// PushableFields lists the metadata fields the collection can filter on
// natively via a Chroma `where` clause.
var PushableFields = map[string]struct{}{
	"metadata.user_id":      {},
	"metadata.recording_id": {},
	"metadata.language":     {},
	"metadata.category":     {},
	"metadata.created_at":   {},
}

const sourcePrefix = "chromadb."

// Store is a Chroma-backed implementation of [vectorstore.Store] (query-time
// retrieval) and [writer.VectorWriter] (ingestion writes).
type Store struct {
	client          chromago.Client
	collection      chromago.Collection
	collectionName  string
	embedder        embeddings.Provider
	similarityFloor float64
}

// New connects to the Chroma server at baseURL and gets or creates
// collectionName. similarityFloor drops search results whose computed
// similarity falls below it.
func New(ctx context.Context, baseURL, collectionName string, embedder embeddings.Provider, similarityFloor float64) (*Store, error) {
	client, err := chromago.NewHTTPClient(chromago.WithBaseURL(baseURL))
	if err != nil {
		return nil, fmt.Errorf("chroma: new client: %w", err)
	}
	col, err := client.GetOrCreateCollection(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("chroma: get or create collection %q: %w", collectionName, err)
	}
	return &Store{
		client:          client,
		collection:      col,
		collectionName:  collectionName,
		embedder:        embedder,
		similarityFloor: similarityFloor,
	}, nil
}

// Search implements [vectorstore.Store].
func (s *Store) Search(ctx context.Context, query string, filters []filter.Filter, limit int, userID string, extras map[string]any) ([]result.Result, error) {
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chroma: embed query: %w", err)
	}

	pushed, remainder := filter.PushDown(filters, PushableFields)
	if userID != "" {
		pushed = append(pushed, filter.Filter{Field: "metadata.user_id", Op: filter.Equals, Value: userID})
	}

	// Over-fetch so the in-process remainder filters and similarity floor
	// still leave enough rows to satisfy limit when possible.
	fetchN := limit * 2
	if fetchN < limit {
		fetchN = limit
	}

	qr, err := s.collection.Query(ctx,
		chromago.WithQueryEmbeddingsQuery(chromago.NewEmbeddingFromFloat32(vec)),
		chromago.WithNResultsQuery(fetchN),
		chromago.WithWhereQuery(buildWhere(pushed)),
	)
	if err != nil {
		return nil, fmt.Errorf("chroma: query: %w", err)
	}

	results := make([]result.Result, 0, fetchN)
	for _, row := range rowsOf(qr) {
		score := similarityFromDistance(row.distance)
		if score < s.similarityFloor {
			continue
		}
		r := result.Result{
			ID:        row.id,
			Kind:      result.KindChunk,
			Content:   row.document,
			Score:     score,
			RawScore:  score,
			Metadata:  row.metadata,
			Source:    sourcePrefix + s.collectionName,
			Timestamp: createdAtFromMeta(row.metadata),
		}
		if len(remainder) > 0 && !filter.MatchAll(remainder, r) {
			continue
		}
		results = append(results, r)
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetByID implements [vectorstore.Store].
func (s *Store) GetByID(ctx context.Context, id string) (*result.Result, error) {
	res, err := s.collection.Get(ctx, chromago.WithIDsGet(chromago.NewIDsFromStrings(id)))
	if err != nil {
		return nil, fmt.Errorf("chroma: get %q: %w", id, err)
	}
	for _, row := range getRowsOf(res) {
		return &result.Result{
			ID:        row.id,
			Kind:      result.KindChunk,
			Content:   row.document,
			Score:     1,
			RawScore:  1,
			Metadata:  row.metadata,
			Source:    sourcePrefix + s.collectionName,
			Timestamp: createdAtFromMeta(row.metadata),
		}, nil
	}
	return nil, nil
}

// createdAtFromMeta parses the conventional "created_at" metadata key
// (RFC3339) into a time.Time, returning the zero value if absent or
// unparseable — the ranker treats a zero Timestamp as "missing".
func createdAtFromMeta(meta map[string]any) time.Time {
	v, ok := meta["created_at"]
	if !ok {
		return time.Time{}
	}
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// HealthCheck implements [vectorstore.Store].
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("chroma: heartbeat: %w", err)
	}
	return nil
}

// Upsert implements [writer.VectorWriter].
func (s *Store) Upsert(ctx context.Context, entries []writer.VectorEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]string, len(entries))
	docs := make([]string, len(entries))
	embs := make([][]float32, len(entries))
	metas := make([]map[string]any, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
		docs[i] = e.Text
		embs[i] = e.Embedding
		metas[i] = e.Metadata
	}

	err := s.collection.Upsert(ctx,
		chromago.WithIDs(chromago.NewIDsFromStrings(ids...)),
		chromago.WithTexts(docs...),
		chromago.WithEmbeddings(chromago.NewEmbeddingsFromFloat32(embs...)),
		chromago.WithMetadatas(chromago.NewMetadatasFromMaps(metas...)),
	)
	if err != nil {
		return fmt.Errorf("chroma: upsert: %w", err)
	}
	return nil
}

// Delete implements [writer.VectorWriter]. It removes every vector entry
// tagged with recordingID, relying solely on that key — no secondary index
// is needed, per the keyed-compensation design.
func (s *Store) Delete(ctx context.Context, recordingID string) error {
	err := s.collection.Delete(ctx, chromago.WithWhereDelete(chromago.EqString("recording_id", recordingID)))
	if err != nil {
		return fmt.Errorf("chroma: delete recording %q: %w", recordingID, err)
	}
	return nil
}

func buildWhere(pushed []filter.Filter) chromago.WhereFilter {
	var clauses []chromago.WhereFilter
	for _, f := range pushed {
		key := strings.TrimPrefix(f.Field, "metadata.")
		switch f.Op {
		case filter.Equals:
			clauses = append(clauses, chromago.EqString(key, fmt.Sprintf("%v", f.Value)))
		case filter.NotEquals:
			clauses = append(clauses, chromago.NeString(key, fmt.Sprintf("%v", f.Value)))
		case filter.GT:
			clauses = append(clauses, chromago.GtFloat(key, toFloat(f.Value)))
		case filter.GTE:
			clauses = append(clauses, chromago.GteFloat(key, toFloat(f.Value)))
		case filter.LT:
			clauses = append(clauses, chromago.LtFloat(key, toFloat(f.Value)))
		case filter.LTE:
			clauses = append(clauses, chromago.LteFloat(key, toFloat(f.Value)))
		default:
			slog.Warn("chroma: dropping unsupported pushed filter", "field", f.Field, "op", f.Op)
		}
	}
	if len(clauses) == 0 {
		return nil
	}
	if len(clauses) == 1 {
		return clauses[0]
	}
	return chromago.And(clauses...)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

// similarityFromDistance converts a cosine distance into the [0,1]
// similarity score the spec requires: max(0, 1 - distance).
func similarityFromDistance(distance float64) float64 {
	s := 1 - distance
	if s < 0 {
		return 0
	}
	return s
}
