// Package prompt assembles a session-aware prompt from retrieval results,
// plugin outputs, and conversation history, following the first-turn vs.
// continuation section rules of a typical retrieval-augmented assistant.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
	"github.com/MrWong99/knowledgeengine/internal/session"
)

const (
	maxAssistantChars  = 200
	maxHistoryTurns    = 3
	confidenceHigh     = 0.8
	confidenceModerate = 0.6
	confidenceLow      = 0.4
)

// Input bundles everything the composer needs for one turn.
type Input struct {
	UserMessage          string
	Context              []result.Result
	PluginOutputs        map[string]string
	Session              *session.Session
	CandidateTranscripts []session.Transcript
}

// Composed is the result of assembling a prompt: the rendered text plus the
// fingerprints of the transcripts it actually included in section (B), which
// the caller commits to the session alongside the new exchange.
type Composed struct {
	Prompt          string
	NewFingerprints []string
}

// Compose assembles the prompt for one turn. If in.Session is nil (no
// session tracking configured for this call) every section behaves as if on
// a first turn and no transcript fingerprint filtering is applied.
func Compose(in Input) Composed {
	firstTurn := in.Session == nil || in.Session.IsFirstTurn()

	fresh := in.CandidateTranscripts
	var newFingerprints []string
	if in.Session != nil {
		fresh, newFingerprints = session.FilterNew(in.Session, in.CandidateTranscripts)
	}

	b := &builder{}

	if firstTurn {
		b.section("System Instructions", systemInstructions())
	}
	b.section("Recent Transcripts", renderTranscripts(fresh))
	b.section("Retrieval Context", renderRetrievalContext(in.Context))
	b.section("Plugin Outputs", renderPluginOutputs(in.PluginOutputs))
	b.section("Conversation History", renderHistory(in.Session))
	if firstTurn {
		b.section("Task", renderTask(in.UserMessage))
	} else {
		b.section("Task", in.UserMessage)
	}
	if firstTurn {
		b.section("Response Framework", responseFramework())
		b.section("Quality Instructions", qualityInstructions())
	}

	return Composed{Prompt: b.String(), NewFingerprints: newFingerprints}
}

// builder accumulates non-empty sections with a uniform "## Header\nbody"
// layout, omitting a section entirely when its body is empty.
type builder struct {
	sb      strings.Builder
	started bool
}

func (b *builder) section(header, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	if b.started {
		b.sb.WriteString("\n\n")
	}
	fmt.Fprintf(&b.sb, "## %s\n%s", header, body)
	b.started = true
}

func (b *builder) String() string { return b.sb.String() }

func systemInstructions() string {
	return "You are a personal knowledge assistant. Answer the user's question " +
		"using the retrieval context and recent transcripts provided below. " +
		"Prefer information from the provided context over general knowledge."
}

func renderTranscripts(transcripts []session.Transcript) string {
	if len(transcripts) == 0 {
		return ""
	}
	lines := make([]string, 0, len(transcripts))
	for _, t := range transcripts {
		lines = append(lines, fmt.Sprintf("- %s", t.Content))
	}
	return strings.Join(lines, "\n")
}

// renderRetrievalContext groups results by source type (the portion of
// Source before the first '.', e.g. "chromadb", "neo4j") and annotates each
// with a confidence badge.
func renderRetrievalContext(results []result.Result) string {
	if len(results) == 0 {
		return ""
	}

	groups := make(map[string][]result.Result)
	var groupOrder []string
	for _, r := range results {
		key := sourceGroup(r.Source)
		if _, ok := groups[key]; !ok {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], r)
	}
	sort.Strings(groupOrder)

	var parts []string
	for _, key := range groupOrder {
		var lines []string
		for _, r := range groups[key] {
			lines = append(lines, fmt.Sprintf("[%s] %s", confidenceBadge(r.Score), contentOf(r)))
		}
		parts = append(parts, fmt.Sprintf("### %s\n%s", key, strings.Join(lines, "\n")))
	}
	return strings.Join(parts, "\n\n")
}

func sourceGroup(source string) string {
	if i := strings.IndexByte(source, '.'); i >= 0 {
		return source[:i]
	}
	if source == "" {
		return "unknown"
	}
	return source
}

func contentOf(r result.Result) string {
	switch r.Kind {
	case result.KindEntity:
		if e, ok := r.AsEntity(); ok {
			return fmt.Sprintf("%s (%s)", e.SurfaceForm, e.Type)
		}
	case result.KindRelationship:
		if rel, ok := r.AsRelationship(); ok {
			return fmt.Sprintf("%s -[%s]-> %s", rel.FromID, rel.Label, rel.ToID)
		}
	}
	return r.Content
}

// confidenceBadge maps a unified score to its display band.
func confidenceBadge(score float64) string {
	switch {
	case score >= confidenceHigh:
		return "HIGH"
	case score >= confidenceModerate:
		return "MODERATE"
	case score >= confidenceLow:
		return "LOW"
	default:
		return "VERY LOW"
	}
}

func renderPluginOutputs(outputs map[string]string) string {
	if len(outputs) == 0 {
		return ""
	}
	names := make([]string, 0, len(outputs))
	for name := range outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		out := strings.TrimSpace(outputs[name])
		if out == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("### %s\n%s", name, out))
	}
	return strings.Join(lines, "\n\n")
}

func renderHistory(sess *session.Session) string {
	if sess == nil || len(sess.History) == 0 {
		return ""
	}
	history := sess.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}

	lines := make([]string, 0, len(history)*2)
	for _, ex := range history {
		lines = append(lines, fmt.Sprintf("User: %s", ex.UserUtterance))
		lines = append(lines, fmt.Sprintf("Assistant: %s", truncate(ex.AssistantUtterance, maxAssistantChars)))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func renderTask(userMessage string) string {
	return fmt.Sprintf(
		"Answer the following user message using the context above. "+
			"Cite sources by their kind and id where relevant.\n\nUser message: %s",
		userMessage,
	)
}

func responseFramework() string {
	return "Structure your answer as: a direct answer first, then supporting " +
		"detail drawn from the retrieval context, citing each claim with its " +
		"source tag (e.g. \"chromadb.chunks\" or \"neo4j.entity_mentions\"). " +
		"If retrieval context conflicts, say so explicitly rather than picking one side."
}

func qualityInstructions() string {
	return "Do not state anything as fact unless it is supported by the " +
		"retrieval context, recent transcripts, or conversation history above. " +
		"If the provided context is insufficient to answer confidently, say so " +
		"instead of guessing."
}
