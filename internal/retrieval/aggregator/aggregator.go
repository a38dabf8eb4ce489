// Package aggregator selects a retrieval strategy from the query shape, runs
// the vector and/or graph retrievers concurrently, and deduplicates the
// combined result set. Ranking itself is delegated to internal/retrieval/ranker.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/knowledgeengine/internal/retrieval/analyzer"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/filter"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/graphstore"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/vectorstore"
)

// Strategy is one of the six strategies the selector can choose.
type Strategy string

const (
	StrategyVectorOnly     Strategy = "vector_only"
	StrategyGraphOnly      Strategy = "graph_only"
	StrategyHybrid         Strategy = "hybrid"
	StrategyEnsemble       Strategy = "ensemble"
	StrategyAdaptive       Strategy = "adaptive"
	StrategyGraphTraversal Strategy = "graph_traversal"
)

// Preset is the ranking preset the strategy selector attaches to a choice;
// the ranker applies the matching factor multipliers (§4.7).
type Preset string

const (
	PresetEntityFocused Preset = "entity-focused"
	PresetSemanticOnly  Preset = "semantic-only"
	PresetTemporalBoost Preset = "temporal-boost"
	PresetEnsemble      Preset = "ensemble"
	PresetStructural    Preset = "structural-only"
)

// headroom over-fetches each retriever to leave room for dedup/filter loss
// before ranking and truncation.
const headroom = 1.5

// Config tunes a single aggregation call.
type Config struct {
	Strategy       Strategy
	MaxResults     int
	VectorWeight   float64
	GraphWeight    float64
	Filters        []filter.Filter
	TraversalDepth int
}

// DefaultConfig returns the adaptive-strategy default.
func DefaultConfig() Config {
	return Config{Strategy: StrategyAdaptive, MaxResults: 10, VectorWeight: 0.5, GraphWeight: 0.5}
}

// Metrics reports what happened during one aggregation call, for display and
// diagnostics.
type Metrics struct {
	StrategyUsed      Strategy
	Preset            Preset
	VectorCount       int
	GraphCount        int
	DuplicatesRemoved int
	VectorDuration    time.Duration
	GraphDuration     time.Duration
	VectorError       string
	GraphError        string
}

// Aggregator selects a strategy, fans out to the vector and graph retrievers
// concurrently, and deduplicates results.
type Aggregator struct {
	vector   vectorstore.Store
	graph    graphstore.Store
	analyzer *analyzer.Analyzer
}

// New builds an Aggregator over the given retrievers and query analyzer.
func New(vector vectorstore.Store, graph graphstore.Store, an *analyzer.Analyzer) *Aggregator {
	return &Aggregator{vector: vector, graph: graph, analyzer: an}
}

// Retrieve runs the configured (or adaptively chosen) strategy and returns
// the deduplicated, unranked result set plus aggregation metrics. Ranking
// the returned results is the caller's responsibility (internal/retrieval/ranker).
func (a *Aggregator) Retrieve(ctx context.Context, query string, userID string, cfg Config) ([]result.Result, Preset, Metrics, error) {
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 10
	}

	strategy, preset, cfg := a.resolveStrategy(ctx, query, cfg)

	var (
		results []result.Result
		metrics Metrics
		err     error
	)
	metrics.StrategyUsed = strategy
	metrics.Preset = preset

	switch strategy {
	case StrategyVectorOnly:
		results, metrics, err = a.vectorOnly(ctx, query, userID, cfg, metrics)
	case StrategyGraphOnly:
		results, metrics, err = a.graphOnly(ctx, query, userID, cfg, metrics)
	case StrategyGraphTraversal:
		results, metrics, err = a.graphTraversal(ctx, query, userID, cfg, metrics)
	default: // hybrid, ensemble, adaptive (already resolved to hybrid/ensemble above)
		results, metrics, err = a.dual(ctx, query, userID, cfg, metrics)
	}
	if err != nil {
		return nil, preset, metrics, err
	}

	deduped := Dedupe(results)
	metrics.DuplicatesRemoved = len(results) - len(deduped)
	return deduped, preset, metrics, nil
}

// resolveStrategy applies the adaptive rules of §4.6 when cfg.Strategy is
// StrategyAdaptive, returning the concrete strategy/preset/weights to run.
func (a *Aggregator) resolveStrategy(ctx context.Context, query string, cfg Config) (Strategy, Preset, Config) {
	if cfg.Strategy != StrategyAdaptive {
		preset := PresetEnsemble
		switch cfg.Strategy {
		case StrategyVectorOnly:
			preset = PresetSemanticOnly
		case StrategyGraphOnly:
			preset = PresetStructural
		}
		return cfg.Strategy, preset, cfg
	}

	features, err := a.analyzer.Analyze(ctx, query, "")
	if err != nil {
		slog.Warn("aggregator: query analysis failed, defaulting to ensemble", "error", err)
		cfg.Strategy = StrategyEnsemble
		return StrategyEnsemble, PresetEnsemble, cfg
	}

	switch {
	case features.EntityCount > 2:
		cfg.Strategy = StrategyHybrid
		cfg.VectorWeight, cfg.GraphWeight = 0.4, 0.6
		return StrategyHybrid, PresetEntityFocused, cfg
	case features.IsSemantic:
		cfg.Strategy = StrategyHybrid
		cfg.VectorWeight, cfg.GraphWeight = 0.8, 0.2
		return StrategyHybrid, PresetSemanticOnly, cfg
	case features.IsTemporal:
		cfg.Strategy = StrategyEnsemble
		return StrategyEnsemble, PresetTemporalBoost, cfg
	default:
		cfg.Strategy = StrategyEnsemble
		return StrategyEnsemble, PresetEnsemble, cfg
	}
}

func (a *Aggregator) vectorOnly(ctx context.Context, query, userID string, cfg Config, metrics Metrics) ([]result.Result, Metrics, error) {
	start := time.Now()
	results, err := a.vector.Search(ctx, query, cfg.Filters, cfg.MaxResults, userID, nil)
	metrics.VectorDuration = time.Since(start)
	if err != nil {
		return nil, metrics, fmt.Errorf("aggregator: vector_only: %w", err)
	}
	metrics.VectorCount = len(results)
	return results, metrics, nil
}

func (a *Aggregator) graphOnly(ctx context.Context, query, userID string, cfg Config, metrics Metrics) ([]result.Result, Metrics, error) {
	start := time.Now()
	results, err := a.graph.Search(ctx, query, cfg.Filters, cfg.MaxResults, userID, nil)
	metrics.GraphDuration = time.Since(start)
	if err != nil {
		return nil, metrics, fmt.Errorf("aggregator: graph_only: %w", err)
	}
	metrics.GraphCount = len(results)
	return results, metrics, nil
}

// dual runs both retrievers concurrently, allocating per-retriever limits
// proportional to the configured weights with headroom, and treats either
// retriever's failure as an empty result set rather than a hard error
// (§4.6 Execution).
func (a *Aggregator) dual(ctx context.Context, query, userID string, cfg Config, metrics Metrics) ([]result.Result, Metrics, error) {
	vectorLimit := allocate(cfg.MaxResults, cfg.VectorWeight)
	graphLimit := allocate(cfg.MaxResults, cfg.GraphWeight)

	var vectorResults, graphResults []result.Result
	var vectorDur, graphDur time.Duration

	eg, egCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		start := time.Now()
		res, err := a.vector.Search(egCtx, query, cfg.Filters, vectorLimit, userID, nil)
		vectorDur = time.Since(start)
		if err != nil {
			slog.Error("aggregator: vector retriever failed", "error", err)
			metrics.VectorError = err.Error()
			return nil
		}
		vectorResults = res
		return nil
	})

	eg.Go(func() error {
		start := time.Now()
		res, err := a.graph.Search(egCtx, query, cfg.Filters, graphLimit, userID, nil)
		graphDur = time.Since(start)
		if err != nil {
			slog.Error("aggregator: graph retriever failed", "error", err)
			metrics.GraphError = err.Error()
			return nil
		}
		graphResults = res
		return nil
	})

	// Each goroutine above records its retriever's error and returns nil, so
	// eg.Wait does not fail here; a cancelled ctx surfaces as a retriever
	// error and that retriever contributes no results.
	if err := eg.Wait(); err != nil {
		return nil, metrics, fmt.Errorf("aggregator: dual retrieval cancelled: %w", err)
	}

	metrics.VectorDuration = vectorDur
	metrics.GraphDuration = graphDur
	metrics.VectorCount = len(vectorResults)
	metrics.GraphCount = len(graphResults)

	combined := make([]result.Result, 0, len(vectorResults)+len(graphResults))
	combined = append(combined, vectorResults...)
	combined = append(combined, graphResults...)
	return combined, metrics, nil
}

// graphTraversal implements the graph_traversal strategy: with 2+ query
// entities, find paths between the first two; with exactly one, fall back
// to entity-mention search; with none, fall back to hybrid/dual retrieval.
func (a *Aggregator) graphTraversal(ctx context.Context, query, userID string, cfg Config, metrics Metrics) ([]result.Result, Metrics, error) {
	features, err := a.analyzer.Analyze(ctx, query, "")
	if err != nil || len(features.Entities) == 0 {
		return a.dual(ctx, query, userID, cfg, metrics)
	}

	depth := cfg.TraversalDepth
	if depth <= 0 {
		depth = graphstore.DefaultTraversalDepth
	}

	start := time.Now()
	var results []result.Result
	if len(features.Entities) >= 2 {
		results, err = a.graph.FindPathsBetweenEntities(ctx, features.Entities[0].Surface, features.Entities[1].Surface, depth, userID)
	} else {
		results, err = a.graph.FindEntityMentions(ctx, features.Entities[0].Surface, nil, userID, cfg.MaxResults)
	}
	metrics.GraphDuration = time.Since(start)
	if err != nil {
		return nil, metrics, fmt.Errorf("aggregator: graph_traversal: %w", err)
	}
	metrics.GraphCount = len(results)
	return results, metrics, nil
}

// allocate computes a per-retriever fetch limit proportional to weight, with
// 1.5x headroom so dedup/ranking still has enough candidates to choose from.
func allocate(maxResults int, weight float64) int {
	if weight <= 0 {
		weight = 0.5
	}
	n := int(float64(maxResults)*weight*headroom) + 1
	if n < 1 {
		n = 1
	}
	return n
}
