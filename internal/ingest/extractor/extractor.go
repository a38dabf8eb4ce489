// Package extractor defines the model-backed named-entity extraction
// contract used by the ingestion pipeline.
package extractor

import "context"

// Span is a single named-entity mention detected within a chunk's text.
// Start and End are byte offsets relative to the chunk text; the ingestion
// pipeline re-bases them to absolute transcript positions before writing.
type Span struct {
	Surface    string
	Type       string
	Start      int
	End        int
	Confidence float64
}

// Extractor produces named-entity spans for a chunk of text. Implementations
// may return zero spans; they must never return spans whose Surface does not
// occur at [Start,End) in the input text.
type Extractor interface {
	Extract(ctx context.Context, text, language string) ([]Span, error)
}
