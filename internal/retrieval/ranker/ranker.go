// Package ranker computes a single explainable score in [0,1] for each
// result returned by the aggregator, from five weighted factors and a
// strategy-dependent preset that scales factor scores before weighting.
package ranker

import (
	"context"
	"strings"
	"time"

	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
)

// Weights holds the five factor weights, normalized to sum to 1 by [New].
type Weights struct {
	SemanticSimilarity float64
	GraphCentrality    float64
	Recency            float64
	EntityOverlap      float64
	ContentQuality     float64
}

// DefaultWeights returns the documented defaults (§4.7); ContentQuality is
// disabled (weight 0) unless explicitly enabled.
func DefaultWeights() Weights {
	return Weights{
		SemanticSimilarity: 0.4,
		GraphCentrality:    0.3,
		Recency:            0.2,
		EntityOverlap:      0.1,
		ContentQuality:     0,
	}
}

func (w Weights) sum() float64 {
	return w.SemanticSimilarity + w.GraphCentrality + w.Recency + w.EntityOverlap + w.ContentQuality
}

func (w Weights) normalized() Weights {
	total := w.sum()
	if total <= 0 {
		return DefaultWeights()
	}
	return Weights{
		SemanticSimilarity: w.SemanticSimilarity / total,
		GraphCentrality:    w.GraphCentrality / total,
		Recency:            w.Recency / total,
		EntityOverlap:      w.EntityOverlap / total,
		ContentQuality:     w.ContentQuality / total,
	}
}

// Preset names the ranking presets the strategy selector attaches to an
// aggregation choice (§4.7). It mirrors aggregator.Preset by value, kept as
// a distinct string type so this package has no import-time dependency on
// the aggregator.
type Preset string

const (
	PresetSemanticOnly  Preset = "semantic-only"
	PresetStructural    Preset = "structural-only"
	PresetTemporalBoost Preset = "temporal-boost"
	PresetEntityFocused Preset = "entity-focused"
	PresetEnsemble      Preset = "ensemble"
)

// multiplier is a per-factor scaling applied before weighting, capped at 1
// after scaling (§4.7 "applied as multipliers before weighting, capped at 1").
type multiplier struct {
	semantic, graph, recency, entityOverlap, quality float64
}

func presetMultiplier(p Preset) multiplier {
	switch p {
	case PresetSemanticOnly:
		return multiplier{semantic: 1.2, graph: 0.5, recency: 0.5, entityOverlap: 0.5, quality: 0.5}
	case PresetStructural:
		return multiplier{semantic: 0.5, graph: 1.2, recency: 0.5, entityOverlap: 0.5, quality: 0.5}
	case PresetTemporalBoost:
		return multiplier{semantic: 1, graph: 1, recency: 1.5, entityOverlap: 1, quality: 1}
	case PresetEntityFocused:
		return multiplier{semantic: 1, graph: 1.3, recency: 1, entityOverlap: 1.3, quality: 1}
	default: // ensemble, hybrid: no modifiers
		return multiplier{semantic: 1, graph: 1, recency: 1, entityOverlap: 1, quality: 1}
	}
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithWeights overrides the default factor weights. They are renormalized
// to sum to 1.
func WithWeights(w Weights) Option {
	return func(r *Ranker) { r.weights = w.normalized() }
}

// WithNow overrides the clock used for the recency factor; intended for
// tests.
func WithNow(now func() time.Time) Option {
	return func(r *Ranker) { r.now = now }
}

// Ranker scores a heterogeneous result list under a single unified factor
// model.
type Ranker struct {
	weights Weights
	now     func() time.Time
}

// New builds a Ranker with [DefaultWeights], or overrides via opts.
func New(opts ...Option) *Ranker {
	r := &Ranker{weights: DefaultWeights(), now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Factors is the per-result breakdown attached as an explanation.
type Factors struct {
	SemanticSimilarity float64
	GraphCentrality    float64
	Recency            float64
	EntityOverlap      float64
	ContentQuality     float64
}

// Rank scores every result in xs against query under preset, mutating each
// result's Score to the unified value and returning a parallel slice of
// per-result factor explanations. RawScore (the retriever's own score) is
// left untouched.
func (r *Ranker) Rank(_ context.Context, xs []result.Result, query string, preset Preset) ([]result.Result, []Factors) {
	mult := presetMultiplier(preset)
	out := make([]result.Result, len(xs))
	explanations := make([]Factors, len(xs))

	for i, x := range xs {
		f := Factors{
			SemanticSimilarity: cap1(semanticSimilarity(x, query) * mult.semantic),
			GraphCentrality:    cap1(graphCentrality(x) * mult.graph),
			Recency:            cap1(recencyScore(x.Timestamp, r.now()) * mult.recency),
			EntityOverlap:      cap1(entityOverlap(x, query) * mult.entityOverlap),
			ContentQuality:     cap1(contentQuality(x.Content) * mult.quality),
		}

		unified := f.SemanticSimilarity*r.weights.SemanticSimilarity +
			f.GraphCentrality*r.weights.GraphCentrality +
			f.Recency*r.weights.Recency +
			f.EntityOverlap*r.weights.EntityOverlap +
			f.ContentQuality*r.weights.ContentQuality

		x.Score = cap1(unified)
		out[i] = x
		explanations[i] = f
	}
	return out, explanations
}

func cap1(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// semanticSimilarity prefers the retriever's own vector score; otherwise
// falls back to a word-overlap ratio between query and content.
func semanticSimilarity(r result.Result, query string) float64 {
	if strings.HasPrefix(r.Source, "chromadb.") && r.RawScore > 0 {
		return r.RawScore
	}
	return wordOverlapRatio(query, r.Content)
}

func wordOverlapRatio(a, b string) float64 {
	aWords := wordSet(a)
	bWords := wordSet(b)
	if len(aWords) == 0 || len(bWords) == 0 {
		return 0
	}
	overlap := 0
	for w := range aWords {
		if _, ok := bWords[w]; ok {
			overlap++
		}
	}
	denom := len(aWords)
	if len(bWords) < denom {
		denom = len(bWords)
	}
	return float64(overlap) / float64(denom)
}

func wordSet(s string) map[string]struct{} {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// graphCentrality prefers a structural score carried in metadata (as the
// graphstore adapter's own Score when the source is a neo4j strategy);
// otherwise a bounded function of entity/related-entity counts.
func graphCentrality(r result.Result) float64 {
	if strings.HasPrefix(r.Source, "neo4j.") && r.RawScore > 0 {
		return r.RawScore
	}
	entityCount := float64(len(r.Entities))
	relatedCount := float64(len(r.Relationships))
	return cap1(entityCount/10 + relatedCount/20)
}

// recencyScore implements the piecewise age curve of §4.7/property #9.
func recencyScore(ts, now time.Time) float64 {
	if ts.IsZero() {
		return 0.5
	}
	age := now.Sub(ts)
	switch {
	case age <= 0:
		return 1.0
	case age <= 7*24*time.Hour:
		return 0.9
	case age <= 30*24*time.Hour:
		return 0.8
	case age <= 90*24*time.Hour:
		return 0.6
	case age <= 365*24*time.Hour:
		return 0.4
	default:
		return 0.2
	}
}

// entityOverlap is the intersection size between the result's entity
// surfaces (lower-cased) and the query's words, normalized by the smaller
// set.
func entityOverlap(r result.Result, query string) float64 {
	if len(r.Entities) == 0 {
		return 0
	}
	queryWords := wordSet(query)
	if len(queryWords) == 0 {
		return 0
	}
	entitySet := make(map[string]struct{}, len(r.Entities))
	for _, e := range r.Entities {
		entitySet[strings.ToLower(e)] = struct{}{}
	}
	overlap := 0
	for w := range queryWords {
		if _, ok := entitySet[w]; ok {
			overlap++
		}
	}
	denom := len(entitySet)
	if len(queryWords) < denom {
		denom = len(queryWords)
	}
	if denom == 0 {
		return 0
	}
	return float64(overlap) / float64(denom)
}

// contentQuality combines a length band (short penalized, mid-length
// favored, very-long penalized) with a simple sentence-per-word readability
// proxy. Only applied when its weight is explicitly enabled.
func contentQuality(content string) float64 {
	words := strings.Fields(content)
	n := len(words)
	var lengthScore float64
	switch {
	case n == 0:
		lengthScore = 0
	case n < 10:
		lengthScore = 0.4
	case n <= 200:
		lengthScore = 1.0
	case n <= 500:
		lengthScore = 0.7
	default:
		lengthScore = 0.4
	}

	sentences := strings.FieldsFunc(content, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	readability := 0.5
	if n > 0 && len(sentences) > 0 {
		wordsPerSentence := float64(n) / float64(len(sentences))
		// A 10-25 words/sentence band reads as "clear"; outside it is
		// penalized proportionally, floored at 0.
		switch {
		case wordsPerSentence >= 10 && wordsPerSentence <= 25:
			readability = 1.0
		case wordsPerSentence < 10:
			readability = cap1(wordsPerSentence / 10)
		default:
			readability = cap1(25 / wordsPerSentence)
		}
	}

	return cap1((lengthScore + readability) / 2)
}
