// Package writer implements the dual-store ingestion write path: every chunk
// of a recording is written to the entity graph (sequentially, so
// FOLLOWED_BY ordering stays simple) and the whole batch is embedded and
// written to the vector store (concurrently). There is no distributed
// transaction across the two stores — consistency is achieved by keyed
// compensation: every node, edge, and vector entry a recording produces is
// discoverable by recording id alone, so a failed ingest can be rolled back
// by deleting everything tagged with that id from both stores.
package writer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/knowledgeengine/internal/coreerr"
	"github.com/MrWong99/knowledgeengine/internal/entitytype"
	"github.com/MrWong99/knowledgeengine/internal/ingest/chunker"
	"github.com/MrWong99/knowledgeengine/internal/ingest/extractor"
	"github.com/MrWong99/knowledgeengine/pkg/provider/embeddings"
)

// EntityMention is a verified entity span, resolved to its normalized form,
// ready to be merged into the graph as a MENTIONS edge.
type EntityMention struct {
	Surface        string
	NormalizedForm string
	Type           entitytype.Type
	Start          int
	End            int
	Confidence     float64
}

// VectorEntry is a single embedded chunk ready for the vector store.
type VectorEntry struct {
	ID          string
	RecordingID string
	UserID      string
	Text        string
	Embedding   []float32
	Metadata    map[string]any
}

// GraphWriter is the narrow slice of graph-store behavior the writer needs.
// Implementations must make every call idempotent under the stable chunk/
// entity keys used here (MERGE semantics, not blind INSERT), so that
// re-ingesting the same recording leaves counts unchanged.
type GraphWriter interface {
	// EnsureRecording creates the recording node if it does not already exist.
	EnsureRecording(ctx context.Context, recordingID, userID string) error

	// UpsertChunk merges the chunk node, merges each mention's entity node by
	// (normalized form, type), adds a MENTIONS edge per mention, and applies
	// the relationship-inference rules over the chunk's entity pairs.
	UpsertChunk(ctx context.Context, chunk chunker.Chunk, userID string, mentions []EntityMention) error

	// LinkFollowedBy creates the FOLLOWED_BY chain over chunkIDs, which must
	// already be in recording order.
	LinkFollowedBy(ctx context.Context, recordingID string, chunkIDs []string) error

	// DeleteRecording removes every node and edge tagged with recordingID.
	DeleteRecording(ctx context.Context, recordingID string) error
}

// VectorWriter is the narrow slice of vector-store behavior the writer needs.
type VectorWriter interface {
	// Upsert writes entries in a single batched call.
	Upsert(ctx context.Context, entries []VectorEntry) error

	// Delete removes every vector entry tagged with recordingID.
	Delete(ctx context.Context, recordingID string) error
}

// Writer coordinates ingestion across the graph and vector stores. It is
// safe for concurrent use across different recordings; per-recording
// serialization, if required, is the caller's responsibility.
type Writer struct {
	graph     GraphWriter
	vector    VectorWriter
	embedder  embeddings.Provider
	extractor extractor.Extractor
	chunkOpts chunker.Options
}

// New returns a Writer. chunkOpts is used for every Ingest call; pass
// chunker.DefaultOptions() for the documented defaults.
func New(graph GraphWriter, vector VectorWriter, embedder embeddings.Provider, ext extractor.Extractor, chunkOpts chunker.Options) *Writer {
	return &Writer{
		graph:     graph,
		vector:    vector,
		embedder:  embedder,
		extractor: ext,
		chunkOpts: chunkOpts,
	}
}

// Ingest splits transcript into chunks, extracts entities from each, and
// writes the whole recording to both stores. On any failure after the
// recording node has been created, Ingest rolls back every artifact it wrote
// for recordingID from both stores before returning the error.
func (w *Writer) Ingest(ctx context.Context, recordingID, userID, transcript, language string) error {
	chunks := chunker.Split(transcript, recordingID, language, w.chunkOpts)
	if len(chunks) == 0 {
		return nil
	}

	if err := w.graph.EnsureRecording(ctx, recordingID, userID); err != nil {
		return coreerr.New(coreerr.Upstream, "writer.Ingest", fmt.Errorf("ensure recording: %w", err))
	}

	chunkIDs := make([]string, len(chunks))
	for i, c := range chunks {
		chunkIDs[i] = c.ID

		spans, err := w.extractor.Extract(ctx, c.Text, language)
		if err != nil {
			w.rollback(ctx, recordingID)
			return coreerr.New(coreerr.Upstream, "writer.Ingest", fmt.Errorf("extract chunk %s: %w", c.ID, err))
		}

		if err := w.graph.UpsertChunk(ctx, c, userID, toMentions(spans, c)); err != nil {
			w.rollback(ctx, recordingID)
			return coreerr.New(coreerr.Upstream, "writer.Ingest", fmt.Errorf("upsert chunk %s: %w", c.ID, err))
		}
	}

	if err := w.graph.LinkFollowedBy(ctx, recordingID, chunkIDs); err != nil {
		w.rollback(ctx, recordingID)
		return coreerr.New(coreerr.Upstream, "writer.Ingest", fmt.Errorf("link followed_by: %w", err))
	}

	entries, err := w.embedBatch(ctx, chunks, recordingID, userID)
	if err != nil {
		w.rollback(ctx, recordingID)
		return coreerr.New(coreerr.Upstream, "writer.Ingest", fmt.Errorf("embed batch: %w", err))
	}

	if err := w.vector.Upsert(ctx, entries); err != nil {
		w.rollback(ctx, recordingID)
		return coreerr.New(coreerr.Upstream, "writer.Ingest", fmt.Errorf("vector upsert: %w", err))
	}

	return nil
}

// embedBatch computes embeddings for every chunk concurrently, joined with
// errgroup so a single failure cancels the rest.
func (w *Writer) embedBatch(ctx context.Context, chunks []chunker.Chunk, recordingID, userID string) ([]VectorEntry, error) {
	entries := make([]VectorEntry, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		g.Go(func() error {
			vec, err := w.embedder.Embed(gctx, c.Text)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", c.ID, err)
			}
			entries[i] = VectorEntry{
				ID:          c.ID,
				RecordingID: recordingID,
				UserID:      userID,
				Text:        c.Text,
				Embedding:   vec,
				Metadata: map[string]any{
					"recording_id": recordingID,
					"user_id":      userID,
					"chunk_index":  c.ChunkIndex,
					"chunk_total":  c.ChunkTotal,
					"language":     c.Language,
				},
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// rollback deletes every artifact tagged with recordingID from both stores.
// Failures are logged rather than returned — rollback is best-effort cleanup
// after an already-failing ingest, and the job layer's retry will reconcile
// any artifact this leaves behind, since every write here is itself keyed
// and idempotent.
func (w *Writer) rollback(ctx context.Context, recordingID string) {
	if err := w.graph.DeleteRecording(ctx, recordingID); err != nil {
		slog.Error("writer: rollback graph delete failed", "recording_id", recordingID, "error", err)
	}
	if err := w.vector.Delete(ctx, recordingID); err != nil {
		slog.Error("writer: rollback vector delete failed", "recording_id", recordingID, "error", err)
	}
}

// toMentions converts extractor spans, which are offset relative to the
// chunk text passed to Extract, into EntityMention records offset relative
// to the full transcript.
func toMentions(spans []extractor.Span, chunk chunker.Chunk) []EntityMention {
	mentions := make([]EntityMention, len(spans))
	for i, s := range spans {
		mentions[i] = EntityMention{
			Surface:        s.Surface,
			NormalizedForm: entitytype.NormalizeForm(s.Surface),
			Type:           entitytype.Normalize(s.Type),
			Start:          chunk.Start + s.Start,
			End:            chunk.Start + s.End,
			Confidence:     s.Confidence,
		}
	}
	return mentions
}
