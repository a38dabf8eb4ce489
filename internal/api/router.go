// Package api exposes the ingestion and retrieval core over HTTP: ingest a
// transcript, run a retrieval query, and inspect/reset a session.
package api

import (
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/knowledgeengine/internal/bookkeeping/postgres"
	"github.com/MrWong99/knowledgeengine/internal/health"
	"github.com/MrWong99/knowledgeengine/internal/ingest/writer"
	"github.com/MrWong99/knowledgeengine/internal/observe"
	"github.com/MrWong99/knowledgeengine/internal/plugin"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/aggregator"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/ranker"
	"github.com/MrWong99/knowledgeengine/internal/session"
)

// Deps bundles everything a handler needs. All fields are required.
type Deps struct {
	Writer      *writer.Writer
	Aggregator  *aggregator.Aggregator
	Ranker      *atomic.Pointer[ranker.Ranker]
	Sessions    *session.Manager
	Plugins     *plugin.Registry
	Bookkeeping *postgres.Store
	Metrics     *observe.Metrics
	Health      *health.Handler
}

// NewRouter builds the Gin engine and registers every route.
func NewRouter(deps Deps) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(
		gin.Recovery(),
		requestLogger(),
		metricsMiddleware(deps.Metrics),
	)

	h := &handlers{deps: deps}

	v1 := router.Group("/v1")
	{
		v1.POST("/ingest", h.ingest)
		v1.POST("/query", h.query)

		sessions := v1.Group("/sessions")
		{
			sessions.GET("/:id", h.getSession)
			sessions.DELETE("/:id", h.resetSession)
		}
	}

	router.GET("/healthz", gin.WrapF(deps.Health.Healthz))
	router.GET("/readyz", gin.WrapF(deps.Health.Readyz))

	return router
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

func metricsMiddleware(m *observe.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.HTTPRequestDuration.Record(c.Request.Context(), time.Since(start).Seconds(),
			metric.WithAttributes(
				observe.Attr("method", c.Request.Method),
				observe.Attr("path", c.FullPath()),
			),
		)
	}
}
