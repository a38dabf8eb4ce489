package aggregator

import "github.com/MrWong99/knowledgeengine/internal/retrieval/result"

// Dedupe collapses results sharing an id into one, preferring the higher
// score and unioning metadata, entity lists, relationship lists, and source
// tags (joined with a comma). It is idempotent: Dedupe(Dedupe(xs)) == Dedupe(xs).
// Order is preserved: the first occurrence of each id determines its
// position in the output.
func Dedupe(results []result.Result) []result.Result {
	order := make([]string, 0, len(results))
	merged := make(map[string]result.Result, len(results))

	for _, r := range results {
		existing, ok := merged[r.ID]
		if !ok {
			order = append(order, r.ID)
			merged[r.ID] = r
			continue
		}
		merged[r.ID] = mergeResults(existing, r)
	}

	out := make([]result.Result, 0, len(order))
	for _, id := range order {
		out = append(out, merged[id])
	}
	return out
}

func mergeResults(a, b result.Result) result.Result {
	out := a
	if b.Score > out.Score {
		out.Score = b.Score
		out.RawScore = b.RawScore
	}
	out.Metadata = mergeMetadata(a.Metadata, b.Metadata)
	out.Entities = unionStrings(a.Entities, b.Entities)
	out.Relationships = unionStrings(a.Relationships, b.Relationships)
	out.Source = unionSource(a.Source, b.Source)
	if out.Timestamp.IsZero() {
		out.Timestamp = b.Timestamp
	}
	return out
}

func mergeMetadata(a, b map[string]any) map[string]any {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		out[k] = v
	}
	return out
}

func unionStrings(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range append(append([]string{}, a...), b...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func unionSource(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" || a == b {
		return a
	}
	return a + "," + b
}
