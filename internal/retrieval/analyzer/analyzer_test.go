package analyzer

import (
	"context"
	"testing"

	"github.com/MrWong99/knowledgeengine/internal/ingest/extractor"
)

type stubExtractor struct {
	spans []extractor.Span
	err   error
}

func (s stubExtractor) Extract(_ context.Context, _, _ string) ([]extractor.Span, error) {
	return s.spans, s.err
}

func TestAnalyze_EntityHeavyQuery(t *testing.T) {
	ext := stubExtractor{spans: []extractor.Span{
		{Surface: "Alice", Type: "Person"},
		{Surface: "Acme", Type: "Organization"},
		{Surface: "Q3 launch", Type: "Generic"},
	}}
	a := New(ext)

	f, err := a.Analyze(context.Background(), "Who did Alice talk to at Acme about the Q3 launch?", "en")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if f.EntityCount != 3 {
		t.Errorf("EntityCount = %d, want 3", f.EntityCount)
	}
	if f.IsSemantic {
		t.Error("expected IsSemantic false when entities are present")
	}
}

func TestAnalyze_SemanticQueryNoEntities(t *testing.T) {
	a := New(stubExtractor{})

	f, err := a.Analyze(context.Background(), "something about scaling distributed caches", "en")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if f.EntityCount != 0 {
		t.Errorf("EntityCount = %d, want 0", f.EntityCount)
	}
	if !f.IsSemantic {
		t.Error("expected IsSemantic true")
	}
}

func TestAnalyze_ComplexGraphQueryNeedsMultipleEntitiesAndKeyword(t *testing.T) {
	ext := stubExtractor{spans: []extractor.Span{
		{Surface: "Alice", Type: "Person"},
		{Surface: "Bob", Type: "Person"},
	}}
	a := New(ext)

	f, err := a.Analyze(context.Background(), "What is the relationship between Alice and Bob?", "en")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !f.IsComplexGraph {
		t.Error("expected IsComplexGraph true with 2 entities and 'relationship' keyword")
	}
}

func TestAnalyze_ComplexGraphRequiresMoreThanOneEntity(t *testing.T) {
	ext := stubExtractor{spans: []extractor.Span{{Surface: "Alice", Type: "Person"}}}
	a := New(ext)

	f, err := a.Analyze(context.Background(), "What is Alice's connection to the project?", "en")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if f.IsComplexGraph {
		t.Error("expected IsComplexGraph false with only 1 entity")
	}
}

func TestAnalyze_TemporalQuery(t *testing.T) {
	a := New(stubExtractor{})

	f, err := a.Analyze(context.Background(), "Show me recent updates about the project", "en")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !f.IsTemporal {
		t.Error("expected IsTemporal true")
	}
}

func TestAnalyze_ExtractorFailureDegradesToNoEntities(t *testing.T) {
	a := New(stubExtractor{err: context.DeadlineExceeded})

	f, err := a.Analyze(context.Background(), "about something", "en")
	if err != nil {
		t.Fatalf("Analyze should not propagate extractor errors: %v", err)
	}
	if f.EntityCount != 0 {
		t.Errorf("EntityCount = %d, want 0 on extractor failure", f.EntityCount)
	}
}
