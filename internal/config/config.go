// Package config provides the configuration schema, loader, and provider
// registry for the knowledge engine.
package config

import "log/slog"

// Config is the root configuration structure for the knowledge engine.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Stores    StoresConfig    `yaml:"stores"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
}

// ServerConfig holds network and logging settings for the API surface.
type ServerConfig struct {
	// ListenAddr is the TCP address the server listens on (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// LogLevel is a validated logging verbosity level.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the known log levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel returns the [slog.Level] l maps to, defaulting to
// [slog.LevelInfo] for an unrecognized value.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ProvidersConfig declares which provider implementation to use for each
// model-backed concern. Each field selects a named provider registered in
// the [Registry].
type ProvidersConfig struct {
	LLM        ProviderEntry `yaml:"llm"`
	Embeddings ProviderEntry `yaml:"embeddings"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "openai", "ollama").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "gpt-4o", "text-embedding-3-small").
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// StoresConfig holds connection settings for the vector store, graph store,
// and relational bookkeeping store.
type StoresConfig struct {
	// ChromaURL is the base URL of the Chroma server backing the vector store.
	ChromaURL string `yaml:"chroma_url"`

	// ChromaCollection is the collection name used for chunk embeddings.
	ChromaCollection string `yaml:"chroma_collection"`

	// Neo4jURI is the bolt connection URI for the graph store.
	Neo4jURI string `yaml:"neo4j_uri"`

	// Neo4jUser and Neo4jPassword authenticate against the graph store.
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password"`

	// BookkeepingDSN is the PostgreSQL connection string for the relational
	// bookkeeping tables (recordings, jobs, sessions, delivered transcripts).
	BookkeepingDSN string `yaml:"bookkeeping_dsn"`

	// EmbeddingDimensions is the vector dimension used by the configured
	// embeddings provider. Must match the Chroma collection's configuration.
	EmbeddingDimensions int `yaml:"embedding_dimensions"`
}

// RetrievalConfig holds tunables for the aggregator and ranker.
type RetrievalConfig struct {
	// SimilarityFloor drops vector-store results below this score (§4.4).
	SimilarityFloor float64 `yaml:"similarity_floor"`

	// MaxTraversalDepth defaults to 3 and is capped at 5 by Load. The graph
	// store does not read it; it applies its own bounds
	// (graphstore.DefaultTraversalDepth, graphstore.MaxTraversalDepth).
	MaxTraversalDepth int `yaml:"max_traversal_depth"`

	// AggregatorTimeoutMs defaults to 2000. The aggregator does not read it:
	// dual retrieval runs under the caller's context with no timeout of its own.
	AggregatorTimeoutMs int `yaml:"aggregator_timeout_ms"`

	// RankerWeights overrides the default factor weights. Zero-value fields
	// fall back to the documented defaults (§4.7).
	RankerWeights RankerWeightsConfig `yaml:"ranker_weights"`

	// SessionHistoryLimit defaults to 10. The session stores do not read it;
	// they keep session.DefaultHistoryLimit (10) exchanges per session.
	SessionHistoryLimit int `yaml:"session_history_limit"`
}

// RankerWeightsConfig mirrors ranker.Weights for YAML configurability.
type RankerWeightsConfig struct {
	Semantic       float64 `yaml:"semantic"`
	GraphCentrality float64 `yaml:"graph_centrality"`
	Recency        float64 `yaml:"recency"`
	EntityOverlap  float64 `yaml:"entity_overlap"`
	ContentQuality float64 `yaml:"content_quality"`
}
