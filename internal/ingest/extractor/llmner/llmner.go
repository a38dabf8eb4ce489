// Package llmner implements [extractor.Extractor] on top of an [llm.Provider].
//
// The model is asked to return a structured JSON list of entity spans for a
// chunk of transcript text. Because models frequently misreport character
// offsets, every claimed span is verified against the actual chunk text
// before being accepted: spans whose surface form does not occur at the
// reported offset are re-located by direct search, and spans that cannot be
// located at all are dropped rather than trusted.
package llmner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/MrWong99/knowledgeengine/internal/entitytype"
	"github.com/MrWong99/knowledgeengine/internal/ingest/extractor"
	llm "github.com/MrWong99/knowledgeengine/pkg/provider/llm"
	"github.com/MrWong99/knowledgeengine/pkg/types"
)

const defaultTemperature = 0.0

const systemPromptTemplate = `You are a named-entity extraction assistant.

Your task: identify named entities in the provided text and return their
surface form, entity type, character offsets, and your confidence.

Entity types (use exactly one of these labels, or "Entity" if none fit):
%s

Rules:
- Only extract entities that are explicitly named in the text.
- start and end are zero-based byte offsets into the EXACT text you were given.
- surface must be the literal substring of the text at [start, end).
- confidence is a float between 0.0 and 1.0.

Respond with ONLY a JSON object in this exact format (no markdown, no prose):
{
  "entities": [
    {"surface": "<text>", "type": "<type>", "start": <int>, "end": <int>, "confidence": <0.0-1.0>}
  ]
}

If no entities are found, return an empty entities array.`

var knownTypeLabels = []string{
	string(entitytype.Person), string(entitytype.Organization), string(entitytype.Location),
	string(entitytype.MonetaryValue), string(entitytype.Date), string(entitytype.Time),
	string(entitytype.Percentage), string(entitytype.Event), string(entitytype.Product),
	string(entitytype.WorkOfArt), string(entitytype.Law), string(entitytype.Language),
}

// entityResponse is the expected JSON structure returned by the model.
type entityResponse struct {
	Entities []struct {
		Surface    string  `json:"surface"`
		Type       string  `json:"type"`
		Start      int     `json:"start"`
		End        int     `json:"end"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
}

// Option is a functional option for configuring an [Extractor].
type Option func(*Extractor)

// WithTemperature sets the LLM sampling temperature. Default: 0.0.
func WithTemperature(temp float64) Option {
	return func(e *Extractor) {
		e.temperature = temp
	}
}

// Extractor extracts named-entity spans using an [llm.Provider]. It is safe
// for concurrent use.
type Extractor struct {
	llm         llm.Provider
	temperature float64
}

// New returns a new [Extractor] backed by the given [llm.Provider].
func New(provider llm.Provider, opts ...Option) *Extractor {
	e := &Extractor{
		llm:         provider,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract implements [extractor.Extractor].
func (e *Extractor) Extract(ctx context.Context, text, language string) ([]extractor.Span, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	req := llm.CompletionRequest{
		SystemPrompt: buildSystemPrompt(),
		Temperature:  e.temperature,
		Messages: []types.Message{
			{Role: "user", Content: text},
		},
	}

	resp, err := e.llm.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("llmner: complete: %w", err)
	}

	claimed, err := parseResponse(resp.Content)
	if err != nil {
		// Unparseable response: degrade gracefully to no entities, mirroring
		// the correction pipeline's tolerance of malformed model output.
		return nil, nil
	}

	return verifySpans(claimed, text), nil
}

func buildSystemPrompt() string {
	var sb strings.Builder
	for _, t := range knownTypeLabels {
		sb.WriteString("- ")
		sb.WriteString(t)
		sb.WriteByte('\n')
	}
	return fmt.Sprintf(systemPromptTemplate, sb.String())
}

func parseResponse(content string) ([]extractor.Span, error) {
	cleaned := stripMarkdown(content)

	var r entityResponse
	if err := json.Unmarshal([]byte(cleaned), &r); err != nil {
		return nil, fmt.Errorf("llmner: parse response: %w", err)
	}

	spans := make([]extractor.Span, 0, len(r.Entities))
	for _, ent := range r.Entities {
		if ent.Surface == "" {
			continue
		}
		spans = append(spans, extractor.Span{
			Surface:    ent.Surface,
			Type:       string(entitytype.Normalize(ent.Type)),
			Start:      ent.Start,
			End:        ent.End,
			Confidence: ent.Confidence,
		})
	}
	return spans, nil
}

// verifySpans cross-references each claimed span against the actual text,
// dropping or re-locating spans whose reported offsets are wrong rather than
// trusting the model's arithmetic.
func verifySpans(claimed []extractor.Span, text string) []extractor.Span {
	verified := make([]extractor.Span, 0, len(claimed))
	for _, s := range claimed {
		if s.Start >= 0 && s.End <= len(text) && s.Start < s.End && text[s.Start:s.End] == s.Surface {
			verified = append(verified, s)
			continue
		}

		idx := strings.Index(text, s.Surface)
		if idx < 0 {
			continue
		}
		s.Start = idx
		s.End = idx + len(s.Surface)
		verified = append(verified, s)
	}
	return verified
}

// stripMarkdown removes optional markdown code fences that some models wrap
// JSON output in.
func stripMarkdown(s string) string {
	s = strings.TrimSpace(s)
	for _, prefix := range []string{"```json", "```"} {
		if after, ok := strings.CutPrefix(s, prefix); ok {
			s = after
			break
		}
	}
	if before, ok := strings.CutSuffix(s, "```"); ok {
		s = before
	}
	return strings.TrimSpace(s)
}
