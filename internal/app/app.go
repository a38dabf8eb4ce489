// Package app wires all knowledge-engine subsystems into a running
// application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the HTTP API until the context is cancelled, and
// Shutdown tears everything down in order.
//
// For testing, inject test doubles via functional options (WithVectorStore,
// WithGraphStore, etc.). When an option is not provided, New creates real
// implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/knowledgeengine/internal/api"
	"github.com/MrWong99/knowledgeengine/internal/bookkeeping/postgres"
	"github.com/MrWong99/knowledgeengine/internal/config"
	"github.com/MrWong99/knowledgeengine/internal/health"
	"github.com/MrWong99/knowledgeengine/internal/ingest/chunker"
	"github.com/MrWong99/knowledgeengine/internal/ingest/extractor"
	"github.com/MrWong99/knowledgeengine/internal/ingest/extractor/llmner"
	"github.com/MrWong99/knowledgeengine/internal/ingest/writer"
	"github.com/MrWong99/knowledgeengine/internal/observe"
	"github.com/MrWong99/knowledgeengine/internal/plugin"
	"github.com/MrWong99/knowledgeengine/internal/resilience"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/aggregator"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/analyzer"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/graphstore"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/graphstore/neo4j"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/ranker"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/vectorstore"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/vectorstore/chroma"
	"github.com/MrWong99/knowledgeengine/internal/session"
	"github.com/MrWong99/knowledgeengine/pkg/provider/embeddings"
	"github.com/MrWong99/knowledgeengine/pkg/provider/llm"
)

// Providers holds one interface value per model-backed provider slot.
// Populated by main.go via the config registry.
type Providers struct {
	LLM        llm.Provider
	Embeddings embeddings.Provider
}

// App owns all subsystem lifetimes and serves the retrieval/ingestion API.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	vector       vectorstore.Store // raw store; writer.VectorWriter lives here
	graph        graphstore.Store  // raw store; writer.GraphWriter lives here
	vectorReader vectorstore.Store // circuit-breaker-wrapped, used for reads/health
	graphReader  graphstore.Store  // circuit-breaker-wrapped, used for reads/health
	bookkeeping  *postgres.Store
	sessions     *session.Manager
	writer       *writer.Writer
	aggregator   *aggregator.Aggregator
	ranker       atomic.Pointer[ranker.Ranker]
	plugins      *plugin.Registry
	metrics      *observe.Metrics
	httpServer   *http.Server

	// configPath and logLevel, set via WithConfigWatch, enable polling-based
	// hot-reload of ranker weights and log verbosity. Left unset, no watcher
	// is started.
	configPath    string
	logLevel      *slog.LevelVar
	configWatcher *config.Watcher

	// closers are called in reverse-init order during Shutdown.
	closers []func() error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithVectorStore injects a vector store instead of creating one from config.
func WithVectorStore(s vectorstore.Store) Option {
	return func(a *App) { a.vector = s }
}

// WithGraphStore injects a graph store instead of creating one from config.
func WithGraphStore(s graphstore.Store) Option {
	return func(a *App) { a.graph = s }
}

// WithBookkeeping injects a bookkeeping store instead of creating one from
// config.
func WithBookkeeping(s *postgres.Store) Option {
	return func(a *App) { a.bookkeeping = s }
}

// WithPluginRegistry injects a pre-populated plugin registry.
func WithPluginRegistry(r *plugin.Registry) Option {
	return func(a *App) { a.plugins = r }
}

// WithConfigWatch enables polling-based hot-reload of the log level and
// ranker weights from the file at path. levelVar is the LevelVar backing the
// process's slog handler; Run updates it in place whenever the log level
// changes. Without this option, config changes on disk are never observed.
func WithConfigWatch(path string, levelVar *slog.LevelVar) Option {
	return func(a *App) {
		a.configPath = path
		a.logLevel = levelVar
	}
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. Use Option functions
// to inject test doubles for any subsystem that would otherwise be created
// from cfg.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		metrics:   observe.DefaultMetrics(),
	}
	for _, o := range opts {
		o(a)
	}

	if err := a.initStores(ctx); err != nil {
		return nil, fmt.Errorf("app: init stores: %w", err)
	}
	if err := a.initBookkeeping(ctx); err != nil {
		return nil, fmt.Errorf("app: init bookkeeping: %w", err)
	}
	if err := a.initRetrieval(); err != nil {
		return nil, fmt.Errorf("app: init retrieval: %w", err)
	}
	if a.plugins == nil {
		a.plugins = plugin.NewRegistry()
	}

	return a, nil
}

// initStores connects the vector store (Chroma) and graph store (Neo4j)
// unless both were injected, then wraps each in its own circuit breaker for
// the read/health paths used by retrieval.
func (a *App) initStores(ctx context.Context) error {
	if a.vector == nil {
		if a.providers.Embeddings == nil {
			return errors.New("an embeddings provider is required to create the vector store")
		}
		store, err := chroma.New(ctx, a.cfg.Stores.ChromaURL, a.cfg.Stores.ChromaCollection,
			a.providers.Embeddings, a.cfg.Retrieval.SimilarityFloor)
		if err != nil {
			return fmt.Errorf("connect chroma: %w", err)
		}
		a.vector = store
	}

	if a.graph == nil {
		store, err := neo4j.New(ctx, a.cfg.Stores.Neo4jURI, a.cfg.Stores.Neo4jUser, a.cfg.Stores.Neo4jPassword, "")
		if err != nil {
			return fmt.Errorf("connect neo4j: %w", err)
		}
		a.closers = append(a.closers, func() error { return store.Close(context.Background()) })
		a.graph = store
	}

	a.vectorReader = resilience.NewVectorStoreBreaker(a.vector, "vector_store", resilience.CircuitBreakerConfig{})
	a.graphReader = resilience.NewGraphStoreBreaker(a.graph, "graph_store", resilience.CircuitBreakerConfig{})

	return nil
}

// initBookkeeping connects the relational bookkeeping store (recordings,
// jobs, sessions, delivered transcripts) unless one was injected.
func (a *App) initBookkeeping(ctx context.Context) error {
	if a.bookkeeping == nil {
		store, err := postgres.New(ctx, a.cfg.Stores.BookkeepingDSN)
		if err != nil {
			return fmt.Errorf("connect bookkeeping store: %w", err)
		}
		a.closers = append(a.closers, func() error { store.Close(); return nil })
		a.bookkeeping = store
	}

	a.sessions = session.NewManager(a.bookkeeping)
	return nil
}

// initRetrieval wires the entity extractor, ingestion writer, aggregator,
// and ranker once the stores are in place. The LLM provider is wrapped in a
// circuit breaker too, so entity extraction fails fast instead of piling up
// behind a stalled backend.
func (a *App) initRetrieval() error {
	if a.providers.LLM == nil {
		return errors.New("an LLM provider is required for entity extraction")
	}

	llmProvider := resilience.NewLLMFallback(a.providers.LLM, "primary", resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{Name: "llm"},
	})
	ext := llmner.New(llmProvider)

	graphWriter, ok := a.graph.(writer.GraphWriter)
	if !ok {
		return fmt.Errorf("graph store %T does not implement writer.GraphWriter", a.graph)
	}
	vectorWriter, ok := a.vector.(writer.VectorWriter)
	if !ok {
		return fmt.Errorf("vector store %T does not implement writer.VectorWriter", a.vector)
	}

	var extr extractor.Extractor = ext
	a.writer = writer.New(graphWriter, vectorWriter, a.providers.Embeddings, extr, chunker.DefaultOptions())
	a.aggregator = aggregator.New(a.vectorReader, a.graphReader, analyzer.New(ext))
	a.ranker.Store(ranker.New(ranker.WithWeights(weightsFrom(a.cfg))))

	return nil
}

// weightsFrom builds ranker weights from the configured overrides, falling
// back to ranker.DefaultWeights for any field left at its zero value.
func weightsFrom(cfg *config.Config) ranker.Weights {
	w := ranker.DefaultWeights()
	rw := cfg.Retrieval.RankerWeights
	if rw.Semantic != 0 {
		w.SemanticSimilarity = rw.Semantic
	}
	if rw.GraphCentrality != 0 {
		w.GraphCentrality = rw.GraphCentrality
	}
	if rw.Recency != 0 {
		w.Recency = rw.Recency
	}
	if rw.EntityOverlap != 0 {
		w.EntityOverlap = rw.EntityOverlap
	}
	if rw.ContentQuality != 0 {
		w.ContentQuality = rw.ContentQuality
	}
	return w
}

// onConfigChange applies a hot-reloaded config: log level and ranker weights
// are safe to swap at runtime, everything else (store DSNs, providers)
// requires a restart and is left untouched.
func (a *App) onConfigChange(oldCfg, newCfg *config.Config) {
	diff := config.Diff(oldCfg, newCfg)
	if diff.LogLevelChanged && a.logLevel != nil {
		a.logLevel.Set(diff.NewLogLevel.SlogLevel())
		slog.Info("log level updated from config reload", "level", diff.NewLogLevel)
	}
	if diff.RetrievalChanged {
		a.ranker.Store(ranker.New(ranker.WithWeights(weightsFrom(newCfg))))
		slog.Info("ranker weights updated from config reload")
	}
	a.cfg = newCfg
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Plugins returns the plugin registry so main.go can register plugins before
// Run starts serving requests.
func (a *App) Plugins() *plugin.Registry { return a.plugins }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run builds the HTTP router and serves it on cfg.Server.ListenAddr until ctx
// is cancelled (returning ctx.Err()) or the server fails (returning its
// error). It does not wait for in-flight requests; Shutdown drains the
// server. If WithConfigWatch was supplied, it also starts polling the config
// file for hot-reloadable changes.
func (a *App) Run(ctx context.Context) error {
	if a.configPath != "" {
		watcher, err := config.NewWatcher(a.configPath, a.onConfigChange)
		if err != nil {
			slog.Warn("config watcher not started", "path", a.configPath, "err", err)
		} else {
			a.configWatcher = watcher
		}
	}

	checkers := []health.Checker{
		{Name: "vector_store", Check: a.vectorReader.HealthCheck},
		{Name: "graph_store", Check: a.graphReader.HealthCheck},
	}

	router := api.NewRouter(api.Deps{
		Writer:      a.writer,
		Aggregator:  a.aggregator,
		Ranker:      &a.ranker,
		Sessions:    a.sessions,
		Plugins:     a.plugins,
		Bookkeeping: a.bookkeeping,
		Metrics:     a.metrics,
		Health:      health.New(checkers...),
	})

	a.httpServer = &http.Server{
		Addr:    a.cfg.Server.ListenAddr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", a.cfg.Server.ListenAddr)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown drains the HTTP server and tears down all subsystems in
// reverse-init order. It respects the context deadline: if ctx expires
// before all closers finish, remaining closers are skipped and the context
// error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		if a.configWatcher != nil {
			a.configWatcher.Stop()
		}

		if a.httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
				slog.Warn("http server shutdown error", "err", err)
			}
		}

		slog.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}
		slog.Info("shutdown complete")
	})
	return shutdownErr
}
