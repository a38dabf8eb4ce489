package aggregator

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/knowledgeengine/internal/entitytype"
	"github.com/MrWong99/knowledgeengine/internal/ingest/extractor"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/analyzer"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/filter"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
)

type stubExtractor struct{ spans []extractor.Span }

func (s stubExtractor) Extract(_ context.Context, _, _ string) ([]extractor.Span, error) {
	return s.spans, nil
}

type fakeVectorStore struct {
	results []result.Result
	err     error
}

func (f fakeVectorStore) Search(_ context.Context, _ string, _ []filter.Filter, limit int, _ string, _ map[string]any) ([]result.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.results) {
		return f.results[:limit], nil
	}
	return f.results, nil
}
func (f fakeVectorStore) GetByID(_ context.Context, _ string) (*result.Result, error) { return nil, nil }
func (f fakeVectorStore) HealthCheck(_ context.Context) error                         { return nil }

type fakeGraphStore struct {
	results []result.Result
	err     error
}

func (f fakeGraphStore) Search(_ context.Context, _ string, _ []filter.Filter, limit int, _ string, _ map[string]any) ([]result.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.results) {
		return f.results[:limit], nil
	}
	return f.results, nil
}
func (f fakeGraphStore) GetByID(_ context.Context, _ string) (*result.Result, error) { return nil, nil }
func (f fakeGraphStore) FindEntityMentions(_ context.Context, _ string, _ *entitytype.Type, _ string, _ int) ([]result.Result, error) {
	return f.results, f.err
}
func (f fakeGraphStore) FindPathsBetweenEntities(_ context.Context, _, _ string, _ int, _ string) ([]result.Result, error) {
	return f.results, f.err
}
func (f fakeGraphStore) HealthCheck(_ context.Context) error { return nil }

func TestResolveStrategy_ManyEntitiesPicksGraphHeavyHybrid(t *testing.T) {
	spans := []extractor.Span{{Surface: "Alice"}, {Surface: "Bob"}, {Surface: "Acme"}}
	a := New(fakeVectorStore{}, fakeGraphStore{}, analyzer.New(stubExtractor{spans: spans}))

	strategy, preset, cfg := a.resolveStrategy(context.Background(), "Who did Alice talk to at Acme about the Q3 launch?", DefaultConfig())
	if strategy != StrategyHybrid {
		t.Errorf("strategy = %v, want hybrid", strategy)
	}
	if preset != PresetEntityFocused {
		t.Errorf("preset = %v, want entity-focused", preset)
	}
	if cfg.VectorWeight != 0.4 || cfg.GraphWeight != 0.6 {
		t.Errorf("weights = %v/%v, want 0.4/0.6", cfg.VectorWeight, cfg.GraphWeight)
	}
}

func TestResolveStrategy_SemanticQueryPicksVectorHeavyHybrid(t *testing.T) {
	a := New(fakeVectorStore{}, fakeGraphStore{}, analyzer.New(stubExtractor{}))

	strategy, preset, cfg := a.resolveStrategy(context.Background(), "something about scaling distributed caches", DefaultConfig())
	if strategy != StrategyHybrid {
		t.Errorf("strategy = %v, want hybrid", strategy)
	}
	if preset != PresetSemanticOnly {
		t.Errorf("preset = %v, want semantic-only", preset)
	}
	if cfg.VectorWeight != 0.8 || cfg.GraphWeight != 0.2 {
		t.Errorf("weights = %v/%v, want 0.8/0.2", cfg.VectorWeight, cfg.GraphWeight)
	}
}

func TestRetrieve_EntityQueryPutsGraphResultsInOutput(t *testing.T) {
	spans := []extractor.Span{{Surface: "Alice"}, {Surface: "Bob"}, {Surface: "Acme"}}
	vec := fakeVectorStore{results: []result.Result{{ID: "v1", Score: 0.5, Source: "chromadb.chunks"}}}
	graph := fakeGraphStore{results: []result.Result{
		{ID: "g1", Score: 0.9, Source: "neo4j.entity_mentions"},
		{ID: "g2", Score: 0.8, Source: "neo4j.entity_mentions"},
		{ID: "g3", Score: 0.7, Source: "neo4j.entity_mentions"},
	}}
	a := New(vec, graph, analyzer.New(stubExtractor{spans: spans}))

	results, preset, metrics, err := a.Retrieve(context.Background(), "Who did Alice talk to at Acme about the Q3 launch?", "", DefaultConfig())
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if preset != PresetEntityFocused {
		t.Errorf("preset = %v, want entity-focused", preset)
	}
	if metrics.GraphCount == 0 {
		t.Error("expected graph results to be fetched")
	}
	graphResults := 0
	for _, r := range results {
		if r.Source == "neo4j.entity_mentions" {
			graphResults++
		}
	}
	if graphResults == 0 {
		t.Error("expected at least one graph-sourced result in output")
	}
}

func TestRetrieve_OneRetrieverFailsYieldsOtherResults(t *testing.T) {
	vec := fakeVectorStore{err: errors.New("vector store down")}
	graph := fakeGraphStore{results: []result.Result{{ID: "g1", Score: 0.9}, {ID: "g2", Score: 0.8}}}
	a := New(vec, graph, analyzer.New(stubExtractor{}))

	cfg := DefaultConfig()
	cfg.Strategy = StrategyEnsemble
	results, _, metrics, err := a.Retrieve(context.Background(), "ensemble query", "", cfg)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected exactly 2 results from the surviving retriever, got %d", len(results))
	}
	if metrics.VectorError == "" {
		t.Error("expected VectorError to be recorded")
	}
}

func TestRetrieve_VectorOnlyStrategy(t *testing.T) {
	vec := fakeVectorStore{results: []result.Result{{ID: "v1", Score: 0.5}}}
	a := New(vec, fakeGraphStore{}, analyzer.New(stubExtractor{}))

	cfg := DefaultConfig()
	cfg.Strategy = StrategyVectorOnly
	results, preset, metrics, err := a.Retrieve(context.Background(), "anything", "", cfg)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if preset != PresetSemanticOnly {
		t.Errorf("preset = %v, want semantic-only", preset)
	}
	if metrics.GraphCount != 0 {
		t.Errorf("expected no graph calls under vector_only, got GraphCount=%d", metrics.GraphCount)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
}

func TestGraphTraversal_TwoEntitiesFindsPaths(t *testing.T) {
	spans := []extractor.Span{{Surface: "Alice"}, {Surface: "Bob"}}
	graph := fakeGraphStore{results: []result.Result{{ID: "p1", Score: 0.5}}}
	a := New(fakeVectorStore{}, graph, analyzer.New(stubExtractor{spans: spans}))

	cfg := DefaultConfig()
	cfg.Strategy = StrategyGraphTraversal
	results, _, _, err := a.Retrieve(context.Background(), "how are Alice and Bob connected", "", cfg)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 path result, got %d", len(results))
	}
}

func TestGraphTraversal_NoEntitiesFallsBackToHybrid(t *testing.T) {
	vec := fakeVectorStore{results: []result.Result{{ID: "v1", Score: 0.5}}}
	a := New(vec, fakeGraphStore{}, analyzer.New(stubExtractor{}))

	cfg := DefaultConfig()
	cfg.Strategy = StrategyGraphTraversal
	results, _, _, err := a.Retrieve(context.Background(), "no entities here", "", cfg)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected fallback dual retrieval to return the vector result, got %d", len(results))
	}
}
