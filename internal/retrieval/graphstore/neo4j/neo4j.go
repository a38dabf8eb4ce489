// Package neo4j adapts a Neo4j database to [graphstore.Store] (query-time
// retrieval) and [writer.GraphWriter] (ingestion writes), using parameterized
// Cypher throughout.
package neo4j

import (
	"context"
	"fmt"
	"strings"

	neodriver "github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/MrWong99/knowledgeengine/internal/entitytype"
	"github.com/MrWong99/knowledgeengine/internal/ingest/chunker"
	"github.com/MrWong99/knowledgeengine/internal/ingest/writer"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/filter"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/graphstore"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
)

// Store is a Neo4j-backed implementation of [graphstore.Store] and
// [writer.GraphWriter]. It is safe for concurrent use; the underlying driver
// manages its own connection pool.
type Store struct {
	driver   neodriver.DriverWithContext
	database string
}

// New connects to uri with the given credentials. database may be "" to use
// the server default.
func New(ctx context.Context, uri, user, password, database string) (*Store, error) {
	driver, err := neodriver.NewDriverWithContext(uri, neodriver.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j: new driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	return &Store{driver: driver, database: database}, nil
}

// Close releases the underlying driver's connection pool.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) session(ctx context.Context) neodriver.SessionWithContext {
	return s.driver.NewSession(ctx, neodriver.SessionConfig{DatabaseName: s.database})
}

// HealthCheck implements both [graphstore.Store] and is reused by the writer
// path for readiness probes.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j: health check: %w", err)
	}
	return nil
}

// ── writer.GraphWriter ──────────────────────────────────────────────────

// EnsureRecording implements [writer.GraphWriter].
func (s *Store) EnsureRecording(ctx context.Context, recordingID, userID string) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neodriver.ManagedTransaction) (any, error) {
		const q = `
			MERGE (r:Recording {id: $recordingID})
			ON CREATE SET r.user_id = $userID, r.created_at = datetime()`
		_, err := tx.Run(ctx, q, map[string]any{"recordingID": recordingID, "userID": userID})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: ensure recording %q: %w", recordingID, err)
	}
	return nil
}

// UpsertChunk implements [writer.GraphWriter]: merges the chunk node, merges
// each mention's entity by (normalized form, type) with a guarded
// mention-count increment, and applies the relationship-inference rules over
// the chunk's entity pairs.
func (s *Store) UpsertChunk(ctx context.Context, chunk chunker.Chunk, userID string, mentions []writer.EntityMention) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neodriver.ManagedTransaction) (any, error) {
		const chunkQuery = `
			MATCH (r:Recording {id: $recordingID})
			MERGE (c:Chunk {id: $chunkID})
			ON CREATE SET c.created_at = datetime()
			SET c.recording_id = $recordingID,
			    c.user_id = $userID,
			    c.text = $text,
			    c.chunk_index = $chunkIndex,
			    c.chunk_total = $chunkTotal,
			    c.language = $language
			MERGE (r)-[:HAS_CHUNK]->(c)`
		if _, err := tx.Run(ctx, chunkQuery, map[string]any{
			"recordingID": chunk.RecordingID,
			"chunkID":     chunk.ID,
			"userID":      userID,
			"text":        chunk.Text,
			"chunkIndex":  chunk.ChunkIndex,
			"chunkTotal":  chunk.ChunkTotal,
			"language":    chunk.Language,
		}); err != nil {
			return nil, fmt.Errorf("upsert chunk node: %w", err)
		}

		for _, m := range mentions {
			const mentionQuery = `
				MATCH (c:Chunk {id: $chunkID})
				MERGE (e:Entity {normalized_form: $normalizedForm, type: $entType, user_id: $userID})
				ON CREATE SET e.id = randomUUID(), e.surface_form = $surface,
				              e.first_seen = datetime(), e.mention_count = 0, e.confidence = 0.0
				SET e.surface_form = $surface, e.last_seen = datetime()
				MERGE (c)-[m:MENTIONS]->(e)
				ON CREATE SET m.start = $start, m.end = $end, m.confidence = $confidence,
				              e.mention_count = e.mention_count + 1,
				              e.confidence = e.confidence + $confidence
				ON MATCH SET m.start = $start, m.end = $end, m.confidence = $confidence`
			if _, err := tx.Run(ctx, mentionQuery, map[string]any{
				"chunkID":        chunk.ID,
				"normalizedForm": m.NormalizedForm,
				"entType":        string(m.Type),
				"userID":         userID,
				"surface":        m.Surface,
				"start":          m.Start,
				"end":            m.End,
				"confidence":     m.Confidence,
			}); err != nil {
				return nil, fmt.Errorf("merge mention: %w", err)
			}
		}

		for i := 0; i < len(mentions); i++ {
			for j := i + 1; j < len(mentions); j++ {
				if err := mergeInferredRelationship(ctx, tx, mentions[i], mentions[j], userID); err != nil {
					return nil, err
				}
			}
		}

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j: upsert chunk %q: %w", chunk.ID, err)
	}
	return nil
}

// inferenceRule is a single first-matching-rule relationship inference entry.
type inferenceRule struct {
	from, to entitytype.Type
	relType  string
	strength float64
}

// inferenceRules is ordered; the first match wins, per §3's rule list.
var inferenceRules = []inferenceRule{
	{entitytype.Person, entitytype.Organization, "WORKS_FOR", 0.7},
	{entitytype.Person, entitytype.Location, "LOCATED_IN", 0.6},
	{entitytype.Organization, entitytype.Location, "BASED_IN", 0.8},
	{entitytype.Person, entitytype.Person, "ASSOCIATED_WITH", 0.5},
}

const defaultRelType = "CO_OCCURS_WITH"
const defaultStrength = 0.3

// mergeInferredRelationship applies the first matching rule for the ordered
// pair (a, b) (or its reverse), falling back to CO_OCCURS_WITH.
func mergeInferredRelationship(ctx context.Context, tx neodriver.ManagedTransaction, a, b writer.EntityMention, userID string) error {
	relType, strength, from, to := defaultRelType, defaultStrength, a, b
	for _, r := range inferenceRules {
		if a.Type == r.from && b.Type == r.to {
			relType, strength, from, to = r.relType, r.strength, a, b
			break
		}
		if b.Type == r.from && a.Type == r.to {
			relType, strength, from, to = r.relType, r.strength, b, a
			break
		}
	}

	q := fmt.Sprintf(`
		MATCH (a:Entity {normalized_form: $aForm, type: $aType, user_id: $userID})
		MATCH (b:Entity {normalized_form: $bForm, type: $bType, user_id: $userID})
		MERGE (a)-[rel:%s]->(b)
		ON CREATE SET rel.strength = $strength, rel.co_occurrence_count = 1
		ON MATCH SET rel.co_occurrence_count = rel.co_occurrence_count + 1`, relType)

	_, err := tx.Run(ctx, q, map[string]any{
		"aForm":    from.NormalizedForm,
		"aType":    string(from.Type),
		"bForm":    to.NormalizedForm,
		"bType":    string(to.Type),
		"userID":   userID,
		"strength": strength,
	})
	if err != nil {
		return fmt.Errorf("merge inferred relationship %s: %w", relType, err)
	}
	return nil
}

// LinkFollowedBy implements [writer.GraphWriter].
func (s *Store) LinkFollowedBy(ctx context.Context, recordingID string, chunkIDs []string) error {
	if len(chunkIDs) < 2 {
		return nil
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neodriver.ManagedTransaction) (any, error) {
		const q = `
			UNWIND range(0, size($chunkIDs) - 2) AS i
			MATCH (a:Chunk {id: $chunkIDs[i]})
			MATCH (b:Chunk {id: $chunkIDs[i + 1]})
			MERGE (a)-[:FOLLOWED_BY]->(b)`
		_, err := tx.Run(ctx, q, map[string]any{"chunkIDs": chunkIDs})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: link followed_by for recording %q: %w", recordingID, err)
	}
	return nil
}

// DeleteRecording implements [writer.GraphWriter]. Every chunk and its edges
// are discoverable via the recording node alone, so rollback needs no
// secondary index. Entity nodes are never deleted here — they may be shared
// with other recordings and orphan cleanup is out of scope.
func (s *Store) DeleteRecording(ctx context.Context, recordingID string) error {
	session := s.session(ctx)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neodriver.ManagedTransaction) (any, error) {
		const q = `
			MATCH (r:Recording {id: $recordingID})
			OPTIONAL MATCH (r)-[:HAS_CHUNK]->(c:Chunk)
			DETACH DELETE r, c`
		_, err := tx.Run(ctx, q, map[string]any{"recordingID": recordingID})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: delete recording %q: %w", recordingID, err)
	}
	return nil
}

// ── graphstore.Store ────────────────────────────────────────────────────

// Search implements [graphstore.Store]: entity-name, then text-content, then
// relationship-path search, in order, stopping once limit is met.
func (s *Store) Search(ctx context.Context, query string, filters []filter.Filter, limit int, userID string, extras map[string]any) ([]result.Result, error) {
	var results []result.Result

	entityResults, err := s.searchByEntityName(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	results = append(results, entityResults...)

	if len(results) < limit {
		textResults, err := s.searchByTextContent(ctx, query, userID, limit-len(results))
		if err != nil {
			return nil, err
		}
		results = append(results, textResults...)
	}

	if len(results) < limit {
		maxDepth := graphstore.DefaultTraversalDepth
		if v, ok := extras["max_traversal_depth"].(int); ok && v > 0 {
			maxDepth = v
		}
		pathResults, err := s.searchRelationshipPaths(ctx, query, userID, maxDepth, limit-len(results))
		if err != nil {
			return nil, err
		}
		results = append(results, pathResults...)
	}

	if len(filters) > 0 {
		filtered := results[:0]
		for _, r := range results {
			if filter.MatchAll(filters, r) {
				filtered = append(filtered, r)
			}
		}
		results = filtered
	}

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

func (s *Store) searchByEntityName(ctx context.Context, query, userID string, limit int) ([]result.Result, error) {
	const q = `
		MATCH (e:Entity)
		WHERE ($userID = "" OR e.user_id = $userID)
		  AND (toLower(e.surface_form) CONTAINS toLower($query) OR toLower(e.normalized_form) CONTAINS toLower($query))
		MATCH (c:Chunk)-[:MENTIONS]->(e)
		WITH c, e, count{ (c)-[:MENTIONS]->() } AS entityCount
		RETURN c.id AS id, c.text AS content, e.surface_form AS surface,
		       e.mention_count AS frequency, entityCount AS entityCount
		ORDER BY frequency DESC, entityCount DESC
		LIMIT $limit`

	qr, err := neodriver.ExecuteQuery(ctx, s.driver, q, map[string]any{
		"query": query, "userID": userID, "limit": limit,
	}, neodriver.EagerResultTransformer, neodriver.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("neo4j: search by entity name: %w", err)
	}

	results := make([]result.Result, 0, len(qr.Records))
	for _, rec := range qr.Records {
		id, _ := rec.Get("id")
		content, _ := rec.Get("content")
		surface, _ := rec.Get("surface")
		frequency, _ := rec.Get("frequency")
		entityCount, _ := rec.Get("entityCount")

		freq := toFloat(frequency)
		count := toFloat(entityCount)
		score := minFloat(1, freq/10+count/20)
		if surfaceStr, ok := surface.(string); ok && strings.EqualFold(surfaceStr, query) {
			score = minFloat(1, score+0.3)
		}

		results = append(results, result.Result{
			ID:       fmt.Sprintf("%v", id),
			Kind:     result.KindChunk,
			Content:  fmt.Sprintf("%v", content),
			Score:    score,
			RawScore: score,
			Metadata: map[string]any{
				"matched_entity":     surface,
				"entity_frequency":   freq,
				"chunk_entity_count": count,
			},
			Source: "neo4j.entity_mentions",
		})
	}
	return results, nil
}

func (s *Store) searchByTextContent(ctx context.Context, query, userID string, limit int) ([]result.Result, error) {
	const q = `
		MATCH (c:Chunk)
		WHERE ($userID = "" OR c.user_id = $userID)
		  AND toLower(c.text) CONTAINS toLower($query)
		RETURN c.id AS id, c.text AS content
		ORDER BY c.created_at DESC
		LIMIT $limit`

	qr, err := neodriver.ExecuteQuery(ctx, s.driver, q, map[string]any{
		"query": query, "userID": userID, "limit": limit,
	}, neodriver.EagerResultTransformer, neodriver.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("neo4j: search by text content: %w", err)
	}

	results := make([]result.Result, 0, len(qr.Records))
	for _, rec := range qr.Records {
		id, _ := rec.Get("id")
		content, _ := rec.Get("content")
		text, _ := content.(string)

		score := 0.2
		lowerText := strings.ToLower(text)
		lowerQuery := strings.ToLower(query)
		if pos := strings.Index(lowerText, lowerQuery); pos >= 0 && len(text) > 0 {
			score = maxFloat(0.2, 1.0-(float64(pos)/float64(len(text)))*0.8)
		}

		results = append(results, result.Result{
			ID:       fmt.Sprintf("%v", id),
			Kind:     result.KindChunk,
			Content:  text,
			Score:    score,
			RawScore: score,
			Metadata: map[string]any{},
			Source:   "neo4j.text_content",
		})
	}
	return results, nil
}

func (s *Store) searchRelationshipPaths(ctx context.Context, query, userID string, maxDepth, limit int) ([]result.Result, error) {
	if maxDepth > graphstore.MaxTraversalDepth {
		maxDepth = graphstore.MaxTraversalDepth
	}

	q := fmt.Sprintf(`
		MATCH (c1:Chunk)-[:MENTIONS]->(e1:Entity), (c2:Chunk)-[:MENTIONS]->(e2:Entity)
		WHERE c1 <> c2
		  AND ($userID = "" OR (c1.user_id = $userID AND c2.user_id = $userID))
		  AND (toLower(c1.text) CONTAINS toLower($query) OR toLower(c2.text) CONTAINS toLower($query))
		MATCH path = (e1)-[*1..%d]-(e2)
		WITH c1, length(path) AS pathLength
		ORDER BY pathLength ASC
		RETURN DISTINCT c1.id AS id, c1.text AS content, pathLength
		LIMIT $limit`, maxDepth)

	qr, err := neodriver.ExecuteQuery(ctx, s.driver, q, map[string]any{
		"query": query, "userID": userID, "limit": limit,
	}, neodriver.EagerResultTransformer, neodriver.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("neo4j: search relationship paths: %w", err)
	}

	results := make([]result.Result, 0, len(qr.Records))
	for _, rec := range qr.Records {
		id, _ := rec.Get("id")
		content, _ := rec.Get("content")
		pathLength, _ := rec.Get("pathLength")

		pl := toFloat(pathLength)
		score := maxFloat(0.2, 1.0/(pl+1))

		results = append(results, result.Result{
			ID:       fmt.Sprintf("%v", id),
			Kind:     result.KindChunk,
			Content:  fmt.Sprintf("%v", content),
			Score:    score,
			RawScore: score,
			Metadata: map[string]any{
				"path_length": pl,
			},
			Source: "neo4j.relationship_paths",
		})
	}
	return results, nil
}

// GetByID implements [graphstore.Store]. It checks chunks first, then
// entities.
func (s *Store) GetByID(ctx context.Context, id string) (*result.Result, error) {
	const chunkQ = `MATCH (c:Chunk {id: $id}) RETURN c.id AS id, c.text AS content`
	qr, err := neodriver.ExecuteQuery(ctx, s.driver, chunkQ, map[string]any{"id": id},
		neodriver.EagerResultTransformer, neodriver.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("neo4j: get by id %q: %w", id, err)
	}
	if len(qr.Records) > 0 {
		content, _ := qr.Records[0].Get("content")
		return &result.Result{ID: id, Kind: result.KindChunk, Content: fmt.Sprintf("%v", content), Score: 1, RawScore: 1, Source: "neo4j.chunk"}, nil
	}

	const entityQ = `MATCH (e:Entity {id: $id}) RETURN e.id AS id, e.surface_form AS surface`
	qr, err = neodriver.ExecuteQuery(ctx, s.driver, entityQ, map[string]any{"id": id},
		neodriver.EagerResultTransformer, neodriver.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("neo4j: get by id %q: %w", id, err)
	}
	if len(qr.Records) > 0 {
		surface, _ := qr.Records[0].Get("surface")
		return &result.Result{ID: id, Kind: result.KindEntity, Content: fmt.Sprintf("%v", surface), Score: 1, RawScore: 1, Source: "neo4j.entity"}, nil
	}

	return nil, nil
}

// FindEntityMentions implements [graphstore.Store]; a direct form of
// entity-name search. entType is not applied: matching entities of every
// type are searched.
func (s *Store) FindEntityMentions(ctx context.Context, name string, entType *entitytype.Type, userID string, limit int) ([]result.Result, error) {
	return s.searchByEntityName(ctx, name, userID, limit)
}

// FindPathsBetweenEntities implements [graphstore.Store].
func (s *Store) FindPathsBetweenEntities(ctx context.Context, nameA, nameB string, maxDepth int, userID string) ([]result.Result, error) {
	if maxDepth <= 0 {
		maxDepth = graphstore.DefaultTraversalDepth
	}
	if maxDepth > graphstore.MaxTraversalDepth {
		maxDepth = graphstore.MaxTraversalDepth
	}

	q := fmt.Sprintf(`
		MATCH (a:Entity), (b:Entity)
		WHERE ($userID = "" OR (a.user_id = $userID AND b.user_id = $userID))
		  AND toLower(a.normalized_form) CONTAINS toLower($nameA)
		  AND toLower(b.normalized_form) CONTAINS toLower($nameB)
		MATCH path = shortestPath((a)-[*1..%d]-(b))
		WITH path, length(path) AS pathLength
		UNWIND nodes(path) AS n
		MATCH (c:Chunk)-[:MENTIONS]->(n)
		WHERE n:Entity
		RETURN DISTINCT c.id AS id, c.text AS content, pathLength`, maxDepth)

	qr, err := neodriver.ExecuteQuery(ctx, s.driver, q, map[string]any{
		"nameA": nameA, "nameB": nameB, "userID": userID,
	}, neodriver.EagerResultTransformer, neodriver.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("neo4j: find paths between %q and %q: %w", nameA, nameB, err)
	}

	results := make([]result.Result, 0, len(qr.Records))
	for _, rec := range qr.Records {
		id, _ := rec.Get("id")
		content, _ := rec.Get("content")
		pathLength, _ := rec.Get("pathLength")
		pl := toFloat(pathLength)

		results = append(results, result.Result{
			ID:       fmt.Sprintf("%v", id),
			Kind:     result.KindChunk,
			Content:  fmt.Sprintf("%v", content),
			Score:    maxFloat(0.2, 1.0/(pl+1)),
			RawScore: maxFloat(0.2, 1.0/(pl+1)),
			Metadata: map[string]any{"path_length": pl},
			Source:   "neo4j.relationship_paths",
		})
	}
	return results, nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
