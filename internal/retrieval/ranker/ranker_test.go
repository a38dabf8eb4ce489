package ranker

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
)

func fixedNow() time.Time {
	return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC)
}

func TestRecencyScore_ExactCurve(t *testing.T) {
	now := fixedNow()
	cases := []struct {
		age  time.Duration
		want float64
	}{
		{0, 1.0},
		{7 * 24 * time.Hour, 0.9},
		{30 * 24 * time.Hour, 0.8},
		{90 * 24 * time.Hour, 0.6},
		{365 * 24 * time.Hour, 0.4},
		{366 * 24 * time.Hour, 0.2},
	}
	for _, c := range cases {
		got := recencyScore(now.Add(-c.age), now)
		if got != c.want {
			t.Errorf("recencyScore(age=%v) = %v, want %v", c.age, got, c.want)
		}
	}
}

func TestRecencyScore_MissingTimestampDefaultsToHalf(t *testing.T) {
	if got := recencyScore(time.Time{}, fixedNow()); got != 0.5 {
		t.Errorf("recencyScore(zero) = %v, want 0.5", got)
	}
}

func TestRank_OrderPreservedUnderNonNegativeScaling(t *testing.T) {
	now := fixedNow()
	r := New(WithNow(func() time.Time { return now }))

	xs := []result.Result{
		{ID: "a", RawScore: 0.9, Source: "chromadb.chunks", Timestamp: now, Entities: []string{"alice"}},
		{ID: "b", RawScore: 0.5, Source: "chromadb.chunks", Timestamp: now.Add(-400 * 24 * time.Hour)},
		{ID: "c", RawScore: 0.1, Source: "chromadb.chunks", Timestamp: now.Add(-200 * 24 * time.Hour)},
	}

	ranked, _ := r.Rank(context.Background(), xs, "alice", PresetEnsemble)
	if !(ranked[0].Score >= ranked[1].Score && ranked[1].Score >= ranked[2].Score) {
		t.Fatalf("expected order a >= b >= c before scaling, got %v", scoresOf(ranked))
	}

	// Scale every RawScore up uniformly (non-negative scaling) and confirm
	// relative order of the unified scores is preserved for the dominant
	// semantic-similarity factor.
	scaled := make([]result.Result, len(xs))
	for i, x := range xs {
		x.RawScore *= 2
		if x.RawScore > 1 {
			x.RawScore = 1
		}
		scaled[i] = x
	}
	rankedScaled, _ := r.Rank(context.Background(), scaled, "alice", PresetEnsemble)

	if !(rankedScaled[0].Score >= rankedScaled[1].Score && rankedScaled[1].Score >= rankedScaled[2].Score) {
		t.Errorf("expected order a >= b >= c preserved after scaling, got %v", scoresOf(rankedScaled))
	}
}

func scoresOf(xs []result.Result) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x.Score
	}
	return out
}

func TestRank_SemanticOnlyPresetBoostsSemanticFactor(t *testing.T) {
	now := fixedNow()
	r := New(WithNow(func() time.Time { return now }))
	xs := []result.Result{{ID: "a", RawScore: 0.8, Source: "chromadb.chunks", Timestamp: now}}

	_, ensembleFactors := r.Rank(context.Background(), xs, "q", PresetEnsemble)
	_, semanticFactors := r.Rank(context.Background(), xs, "q", PresetSemanticOnly)

	if semanticFactors[0].SemanticSimilarity <= ensembleFactors[0].SemanticSimilarity {
		t.Errorf("semantic-only preset should boost semantic similarity: ensemble=%v semantic=%v",
			ensembleFactors[0].SemanticSimilarity, semanticFactors[0].SemanticSimilarity)
	}
}

func TestRank_GraphCentralityFallsBackToEntityCounts(t *testing.T) {
	xs := []result.Result{{ID: "a", Source: "some.other", Entities: []string{"alice", "bob"}, Relationships: []string{"r1"}}}
	got := graphCentrality(xs[0])
	want := cap1(2.0/10 + 1.0/20)
	if got != want {
		t.Errorf("graphCentrality = %v, want %v", got, want)
	}
}

func TestRank_EntityOverlap(t *testing.T) {
	r := result.Result{Entities: []string{"Alice", "Acme"}}
	got := entityOverlap(r, "tell me about alice and acme launch")
	if got <= 0 {
		t.Errorf("expected positive entity overlap, got %v", got)
	}
}

func TestRank_WeightsNormalizeToOne(t *testing.T) {
	w := Weights{SemanticSimilarity: 2, GraphCentrality: 2, Recency: 2, EntityOverlap: 2, ContentQuality: 2}.normalized()
	sum := w.SemanticSimilarity + w.GraphCentrality + w.Recency + w.EntityOverlap + w.ContentQuality
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("normalized weights sum = %v, want ~1.0", sum)
	}
}

func TestRank_ScoreClampedToUnitInterval(t *testing.T) {
	now := fixedNow()
	r := New(WithNow(func() time.Time { return now }), WithWeights(Weights{
		SemanticSimilarity: 1, GraphCentrality: 1, Recency: 1, EntityOverlap: 1, ContentQuality: 1,
	}))
	xs := []result.Result{{ID: "a", RawScore: 1, Source: "chromadb.chunks", Timestamp: now, Entities: []string{"x"}}}
	ranked, _ := r.Rank(context.Background(), xs, "x", PresetEntityFocused)
	if ranked[0].Score > 1 || ranked[0].Score < 0 {
		t.Errorf("score out of [0,1]: %v", ranked[0].Score)
	}
}
