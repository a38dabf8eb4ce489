package result_test

import (
	"testing"
	"time"

	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
)

func TestAsChunk(t *testing.T) {
	now := time.Now()
	r := result.Result{
		ID:      "rec-1:0",
		Kind:    result.KindChunk,
		Content: "hello world",
		Metadata: map[string]any{
			"recording_id": "rec-1",
			"user_id":      "user-1",
			"chunk_index":  0,
			"chunk_total":  3,
		},
		Timestamp: now,
	}

	c, ok := r.AsChunk()
	if !ok {
		t.Fatal("expected AsChunk to succeed for KindChunk")
	}
	if c.RecordingID != "rec-1" || c.UserID != "user-1" || c.ChunkTotal != 3 {
		t.Errorf("unexpected chunk view: %+v", c)
	}

	if _, ok := r.AsEntity(); ok {
		t.Error("expected AsEntity to fail for KindChunk")
	}
}

func TestAsEntity(t *testing.T) {
	r := result.Result{
		Kind:    result.KindEntity,
		Content: "Acme Corp",
		Metadata: map[string]any{
			"normalized_form": "acme corp",
			"entity_type":     "Organization",
			"mention_count":   5,
		},
	}
	e, ok := r.AsEntity()
	if !ok {
		t.Fatal("expected AsEntity to succeed")
	}
	if e.MentionCount != 5 || e.Type != "Organization" {
		t.Errorf("unexpected entity view: %+v", e)
	}
}

func TestMixedSatisfiesAllAccessors(t *testing.T) {
	r := result.Result{Kind: result.KindMixed}
	if _, ok := r.AsChunk(); !ok {
		t.Error("mixed should satisfy AsChunk")
	}
	if _, ok := r.AsEntity(); !ok {
		t.Error("mixed should satisfy AsEntity")
	}
	if _, ok := r.AsRelationship(); !ok {
		t.Error("mixed should satisfy AsRelationship")
	}
}

func TestUserIDMissingMetadata(t *testing.T) {
	r := result.Result{}
	if got := r.UserID(); got != "" {
		t.Errorf("UserID() = %q, want empty", got)
	}
}
