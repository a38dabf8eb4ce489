package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":        {"openai", "anyllm", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq"},
	"embeddings": {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills in zero-valued retrieval tunables with the documented
// defaults so callers never have to special-case an unset field.
func applyDefaults(cfg *Config) {
	if cfg.Retrieval.SimilarityFloor == 0 {
		cfg.Retrieval.SimilarityFloor = 0.3
	}
	if cfg.Retrieval.MaxTraversalDepth == 0 {
		cfg.Retrieval.MaxTraversalDepth = 3
	}
	if cfg.Retrieval.MaxTraversalDepth > 5 {
		cfg.Retrieval.MaxTraversalDepth = 5
	}
	if cfg.Retrieval.AggregatorTimeoutMs == 0 {
		cfg.Retrieval.AggregatorTimeoutMs = 2000
	}
	if cfg.Retrieval.SessionHistoryLimit == 0 {
		cfg.Retrieval.SessionHistoryLimit = 10
	}

	w := &cfg.Retrieval.RankerWeights
	if w.Semantic == 0 && w.GraphCentrality == 0 && w.Recency == 0 && w.EntityOverlap == 0 && w.ContentQuality == 0 {
		w.Semantic = 0.4
		w.GraphCentrality = 0.3
		w.Recency = 0.2
		w.EntityOverlap = 0.1
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; entity extraction and prompt composition will not be able to call a model")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Stores.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but stores.embedding_dimensions is not set")
	}

	if cfg.Stores.ChromaURL == "" {
		errs = append(errs, errors.New("stores.chroma_url is required"))
	}
	if cfg.Stores.ChromaCollection == "" {
		errs = append(errs, errors.New("stores.chroma_collection is required"))
	}
	if cfg.Stores.Neo4jURI == "" {
		errs = append(errs, errors.New("stores.neo4j_uri is required"))
	}
	if cfg.Stores.BookkeepingDSN == "" {
		slog.Warn("stores.bookkeeping_dsn is empty; recording/session bookkeeping will not be available")
	}

	if cfg.Retrieval.SimilarityFloor < 0 || cfg.Retrieval.SimilarityFloor > 1 {
		errs = append(errs, fmt.Errorf("retrieval.similarity_floor %.2f is out of range [0, 1]", cfg.Retrieval.SimilarityFloor))
	}
	if cfg.Retrieval.MaxTraversalDepth < 0 {
		errs = append(errs, fmt.Errorf("retrieval.max_traversal_depth %d must be non-negative", cfg.Retrieval.MaxTraversalDepth))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
