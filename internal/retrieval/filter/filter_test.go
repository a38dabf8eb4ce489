package filter_test

import (
	"testing"

	"github.com/MrWong99/knowledgeengine/internal/retrieval/filter"
)

type fakeResult struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

func TestMatch_Equals(t *testing.T) {
	r := fakeResult{ID: "chunk-1"}
	f := filter.Filter{Field: "id", Op: filter.Equals, Value: "chunk-1"}
	if !filter.Match(f, r) {
		t.Error("expected match")
	}
}

func TestMatch_DotNotationIntoMetadata(t *testing.T) {
	r := fakeResult{Metadata: map[string]any{"user_id": "u-1"}}
	f := filter.Filter{Field: "metadata.user_id", Op: filter.Equals, Value: "u-1"}
	if !filter.Match(f, r) {
		t.Error("expected match on dot-notation metadata field")
	}
	f2 := filter.Filter{Field: "metadata.user_id", Op: filter.Equals, Value: "u-2"}
	if filter.Match(f2, r) {
		t.Error("expected no match for different user id")
	}
}

func TestMatch_Exists(t *testing.T) {
	r := fakeResult{Metadata: map[string]any{"tags": "a"}}
	if !filter.Match(filter.Filter{Field: "metadata.tags", Op: filter.Exists}, r) {
		t.Error("expected tags to exist")
	}
	if filter.Match(filter.Filter{Field: "metadata.missing", Op: filter.Exists}, r) {
		t.Error("expected missing field to not exist")
	}
	if !filter.Match(filter.Filter{Field: "metadata.missing", Op: filter.NotExists}, r) {
		t.Error("expected not_exists to hold for missing field")
	}
}

func TestMatch_Comparisons(t *testing.T) {
	r := fakeResult{Score: 0.75}
	if !filter.Match(filter.Filter{Field: "score", Op: filter.GTE, Value: 0.5}, r) {
		t.Error("expected score >= 0.5")
	}
	if filter.Match(filter.Filter{Field: "score", Op: filter.LT, Value: 0.5}, r) {
		t.Error("expected score not < 0.5")
	}
}

func TestMatch_In(t *testing.T) {
	r := fakeResult{ID: "b"}
	f := filter.Filter{Field: "id", Op: filter.In, Value: []string{"a", "b", "c"}}
	if !filter.Match(f, r) {
		t.Error("expected id to be in list")
	}
}

func TestMatch_UnknownOperatorEvaluatesFalse(t *testing.T) {
	r := fakeResult{ID: "a"}
	f := filter.Filter{Field: "id", Op: "bogus_op", Value: "a"}
	if filter.Match(f, r) {
		t.Error("unknown operator should evaluate to false")
	}
}

func TestMatchAll_LogicalAnd(t *testing.T) {
	r := fakeResult{ID: "a", Score: 0.9}
	filters := []filter.Filter{
		{Field: "id", Op: filter.Equals, Value: "a"},
		{Field: "score", Op: filter.GT, Value: 0.5},
	}
	if !filter.MatchAll(filters, r) {
		t.Error("expected both filters to match")
	}

	filters[1].Value = 0.95
	if filter.MatchAll(filters, r) {
		t.Error("expected AND to fail when one filter fails")
	}
}

func TestPushDown_SplitsByFieldAndOp(t *testing.T) {
	pushable := map[string]struct{}{"metadata.user_id": {}, "metadata.created_at": {}}
	filters := []filter.Filter{
		{Field: "metadata.user_id", Op: filter.Equals, Value: "u1"},
		{Field: "content", Op: filter.Contains, Value: "hello"},
		{Field: "metadata.created_at", Op: filter.GTE, Value: 100},
	}
	pushed, remainder := filter.PushDown(filters, pushable)
	if len(pushed) != 2 {
		t.Errorf("expected 2 pushed filters, got %d", len(pushed))
	}
	if len(remainder) != 1 {
		t.Errorf("expected 1 remainder filter, got %d", len(remainder))
	}
	if remainder[0].Field != "content" {
		t.Errorf("expected remainder to be the contains filter, got %+v", remainder[0])
	}
}
