package aggregator

import (
	"reflect"
	"testing"

	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
)

func TestDedupe_CollapsesSharedID(t *testing.T) {
	xs := []result.Result{
		{ID: "c1", Score: 0.7, Source: "chromadb.chunks", Metadata: map[string]any{"a": 1}},
		{ID: "c1", Score: 0.6, Source: "neo4j.entity_mentions", Metadata: map[string]any{"b": 2}},
	}
	out := Dedupe(xs)
	if len(out) != 1 {
		t.Fatalf("expected 1 result after dedupe, got %d", len(out))
	}
	if out[0].Score != 0.7 {
		t.Errorf("expected max score 0.7, got %v", out[0].Score)
	}
	if out[0].Source != "chromadb.chunks,neo4j.entity_mentions" {
		t.Errorf("expected unioned source tags, got %q", out[0].Source)
	}
	if out[0].Metadata["a"] != 1 || out[0].Metadata["b"] != 2 {
		t.Errorf("expected unioned metadata, got %+v", out[0].Metadata)
	}
}

func TestDedupe_IsIdempotent(t *testing.T) {
	xs := []result.Result{
		{ID: "c1", Score: 0.7, Source: "chromadb.chunks"},
		{ID: "c1", Score: 0.6, Source: "neo4j.entity_mentions"},
		{ID: "c2", Score: 0.5, Source: "chromadb.chunks"},
	}
	once := Dedupe(xs)
	twice := Dedupe(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Dedupe is not idempotent:\nonce: %+v\ntwice: %+v", once, twice)
	}
}

func TestDedupe_PreservesFirstOccurrenceOrder(t *testing.T) {
	xs := []result.Result{
		{ID: "c2", Score: 0.5},
		{ID: "c1", Score: 0.7},
		{ID: "c2", Score: 0.9},
	}
	out := Dedupe(xs)
	if len(out) != 2 || out[0].ID != "c2" || out[1].ID != "c1" {
		t.Fatalf("expected order [c2, c1], got %+v", out)
	}
}

func TestDedupe_NoDuplicatesIsNoop(t *testing.T) {
	xs := []result.Result{{ID: "c1", Score: 0.5}, {ID: "c2", Score: 0.6}}
	out := Dedupe(xs)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
}
