package neo4j_test

import (
	"context"
	"os"
	"testing"

	"github.com/MrWong99/knowledgeengine/internal/entitytype"
	"github.com/MrWong99/knowledgeengine/internal/ingest/chunker"
	"github.com/MrWong99/knowledgeengine/internal/ingest/writer"
	neo4jstore "github.com/MrWong99/knowledgeengine/internal/retrieval/graphstore/neo4j"
)

// testConn returns the Neo4j connection parameters from the environment, or
// skips the test if KNOWLEDGEENGINE_TEST_NEO4J_URI is not set.
func testConn(t *testing.T) (uri, user, password string) {
	t.Helper()
	uri = os.Getenv("KNOWLEDGEENGINE_TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("KNOWLEDGEENGINE_TEST_NEO4J_URI not set — skipping Neo4j integration tests")
	}
	user = os.Getenv("KNOWLEDGEENGINE_TEST_NEO4J_USER")
	password = os.Getenv("KNOWLEDGEENGINE_TEST_NEO4J_PASSWORD")
	return uri, user, password
}

func TestStore_IngestAndRetrieve(t *testing.T) {
	uri, user, password := testConn(t)
	ctx := context.Background()

	store, err := neo4jstore.New(ctx, uri, user, password, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	const recordingID = "rec-neo4j-test-1"
	const userID = "user-1"
	t.Cleanup(func() { _ = store.DeleteRecording(context.Background(), recordingID) })

	if err := store.EnsureRecording(ctx, recordingID, userID); err != nil {
		t.Fatalf("EnsureRecording: %v", err)
	}
	// Calling it again must not error or duplicate the recording node.
	if err := store.EnsureRecording(ctx, recordingID, userID); err != nil {
		t.Fatalf("EnsureRecording (repeat): %v", err)
	}

	chunk := chunker.Chunk{
		ID:          recordingID + ":0",
		RecordingID: recordingID,
		Text:        "Alice Johnson works with Bob at Acme Corp in Berlin.",
		Start:       0,
		End:         53,
		ChunkIndex:  0,
		ChunkTotal:  1,
		Language:    "en",
	}
	mentions := []writer.EntityMention{
		{Surface: "Alice Johnson", NormalizedForm: "alice johnson", Type: entitytype.Person, Start: 0, End: 13, Confidence: 0.9},
		{Surface: "Acme Corp", NormalizedForm: "acme corp", Type: entitytype.Organization, Start: 33, End: 42, Confidence: 0.85},
		{Surface: "Berlin", NormalizedForm: "berlin", Type: entitytype.Location, Start: 46, End: 52, Confidence: 0.8},
	}

	if err := store.UpsertChunk(ctx, chunk, userID, mentions); err != nil {
		t.Fatalf("UpsertChunk: %v", err)
	}

	if err := store.LinkFollowedBy(ctx, recordingID, []string{chunk.ID}); err != nil {
		t.Fatalf("LinkFollowedBy: %v", err)
	}

	results, err := store.FindEntityMentions(ctx, "Alice Johnson", nil, userID, 10)
	if err != nil {
		t.Fatalf("FindEntityMentions: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one result for Alice Johnson")
	}

	got, err := store.GetByID(ctx, chunk.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got == nil || got.ID != chunk.ID {
		t.Fatalf("expected to find chunk %q, got %+v", chunk.ID, got)
	}

	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck: %v", err)
	}
}

func TestStore_ReingestionLeavesMentionCountUnchanged(t *testing.T) {
	uri, user, password := testConn(t)
	ctx := context.Background()

	store, err := neo4jstore.New(ctx, uri, user, password, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	const recordingID = "rec-neo4j-test-2"
	const userID = "user-1"
	t.Cleanup(func() { _ = store.DeleteRecording(context.Background(), recordingID) })

	chunk := chunker.Chunk{
		ID: recordingID + ":0", RecordingID: recordingID, Text: "Carol leads the project.",
		ChunkIndex: 0, ChunkTotal: 1, Language: "en",
	}
	mentions := []writer.EntityMention{
		{Surface: "Carol", NormalizedForm: "carol", Type: entitytype.Person, Start: 0, End: 5, Confidence: 0.9},
	}

	if err := store.EnsureRecording(ctx, recordingID, userID); err != nil {
		t.Fatalf("EnsureRecording: %v", err)
	}
	if err := store.UpsertChunk(ctx, chunk, userID, mentions); err != nil {
		t.Fatalf("UpsertChunk (first): %v", err)
	}
	if err := store.UpsertChunk(ctx, chunk, userID, mentions); err != nil {
		t.Fatalf("UpsertChunk (second, idempotent): %v", err)
	}

	results, err := store.FindEntityMentions(ctx, "Carol", nil, userID, 10)
	if err != nil {
		t.Fatalf("FindEntityMentions: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected Carol to be found")
	}
	freq, _ := results[0].Metadata["entity_frequency"].(float64)
	if freq != 1 {
		t.Errorf("expected mention_count to stay 1 after re-ingestion, got %v", freq)
	}
}

func TestStore_DeleteRecordingRemovesChunksKeepsEntities(t *testing.T) {
	uri, user, password := testConn(t)
	ctx := context.Background()

	store, err := neo4jstore.New(ctx, uri, user, password, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	const recordingID = "rec-neo4j-test-3"
	const userID = "user-1"

	chunk := chunker.Chunk{
		ID: recordingID + ":0", RecordingID: recordingID, Text: "Dave is here.",
		ChunkIndex: 0, ChunkTotal: 1, Language: "en",
	}
	mentions := []writer.EntityMention{
		{Surface: "Dave", NormalizedForm: "dave", Type: entitytype.Person, Start: 0, End: 4, Confidence: 0.9},
	}

	if err := store.EnsureRecording(ctx, recordingID, userID); err != nil {
		t.Fatalf("EnsureRecording: %v", err)
	}
	if err := store.UpsertChunk(ctx, chunk, userID, mentions); err != nil {
		t.Fatalf("UpsertChunk: %v", err)
	}
	if err := store.DeleteRecording(ctx, recordingID); err != nil {
		t.Fatalf("DeleteRecording: %v", err)
	}

	got, err := store.GetByID(ctx, chunk.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got != nil {
		t.Errorf("expected chunk to be gone after DeleteRecording, got %+v", got)
	}

	// The entity itself survives — only chunks/recordings are deleted.
	results, err := store.FindEntityMentions(ctx, "Dave", nil, "", 10)
	if err != nil {
		t.Fatalf("FindEntityMentions: %v", err)
	}
	_ = results // entity may have zero remaining mentions but the node itself is untouched by DeleteRecording
}
