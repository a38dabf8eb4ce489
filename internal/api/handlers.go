package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/MrWong99/knowledgeengine/internal/bookkeeping/postgres"
	"github.com/MrWong99/knowledgeengine/internal/coreerr"
	"github.com/MrWong99/knowledgeengine/internal/plugin"
	"github.com/MrWong99/knowledgeengine/internal/prompt"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/aggregator"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/ranker"
	"github.com/MrWong99/knowledgeengine/internal/retrieval/result"
	"github.com/MrWong99/knowledgeengine/internal/session"
)

// handlers holds the shared Deps for every route.
type handlers struct {
	deps Deps
}

// ingestRequest is the body of POST /v1/ingest.
type ingestRequest struct {
	RecordingID string `json:"recording_id" binding:"required"`
	UserID      string `json:"user_id" binding:"required"`
	Transcript  string `json:"transcript" binding:"required"`
	Language    string `json:"language"`
}

// ingest splits a transcript into chunks, extracts entities, and writes the
// recording to both the vector store and the entity graph, tracking the
// attempt in the bookkeeping store's recordings/ingestion_jobs tables so a
// failed run can be retried against a durable job record rather than losing
// its history.
func (h *handlers) ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	language := req.Language
	if language == "" {
		language = "en"
	}

	ctx := c.Request.Context()

	if _, err := h.deps.Bookkeeping.CreateRecording(ctx, req.RecordingID, req.UserID); err != nil {
		writeCoreErr(c, err)
		return
	}
	job, err := h.deps.Bookkeeping.CreateJob(ctx, uuid.NewString(), req.RecordingID)
	if err != nil {
		writeCoreErr(c, err)
		return
	}

	if err := h.deps.Bookkeeping.UpdateRecordingStatus(ctx, req.RecordingID, postgres.RecordingIngesting); err != nil {
		writeCoreErr(c, err)
		return
	}
	if err := h.deps.Bookkeeping.UpdateJobStatus(ctx, job.ID, postgres.JobRunning); err != nil {
		writeCoreErr(c, err)
		return
	}

	h.deps.Metrics.QueuedIngestionJobs.Add(ctx, 1)
	defer h.deps.Metrics.QueuedIngestionJobs.Add(ctx, -1)

	start := time.Now()
	ingestErr := h.deps.Writer.Ingest(ctx, req.RecordingID, req.UserID, req.Transcript, language)
	h.deps.Metrics.IngestDuration.Record(ctx, time.Since(start).Seconds())

	if ingestErr != nil {
		_ = h.deps.Bookkeeping.RecordRetry(ctx, job.ID, ingestErr.Error())
		_ = h.deps.Bookkeeping.UpdateJobStatus(ctx, job.ID, postgres.JobFailed)
		_ = h.deps.Bookkeeping.UpdateRecordingStatus(ctx, req.RecordingID, postgres.RecordingFailed)
		writeCoreErr(c, ingestErr)
		return
	}

	if err := h.deps.Bookkeeping.UpdateJobStatus(ctx, job.ID, postgres.JobSucceeded); err != nil {
		writeCoreErr(c, err)
		return
	}
	if err := h.deps.Bookkeeping.UpdateRecordingStatus(ctx, req.RecordingID, postgres.RecordingReady); err != nil {
		writeCoreErr(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"recording_id": req.RecordingID, "job_id": job.ID, "status": "ready"})
}

// queryRequest is the body of POST /v1/query.
type queryRequest struct {
	SessionID  string `json:"session_id" binding:"required"`
	UserID     string `json:"user_id" binding:"required"`
	Message    string `json:"message" binding:"required"`
	MaxResults int    `json:"max_results"`
	Strategy   string `json:"strategy"`
}

// queryResponse is the body returned by POST /v1/query.
type queryResponse struct {
	Prompt   string `json:"prompt"`
	Strategy string `json:"strategy_used"`
	Preset   string `json:"preset"`
}

// query runs the retrieval pipeline for one conversational turn: analyze the
// query, fetch from the vector and/or graph stores, rank, run plugins, and
// compose a session-aware prompt. The assembled prompt is handed back to the
// caller, which is responsible for sending it to an LLM and relaying the
// reply — this core does not call an LLM on the query path itself.
func (h *handlers) query(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()

	cfg := aggregator.DefaultConfig()
	if req.MaxResults > 0 {
		cfg.MaxResults = req.MaxResults
	}
	if req.Strategy != "" {
		cfg.Strategy = aggregator.Strategy(req.Strategy)
	}

	start := time.Now()
	results, preset, metrics, err := h.deps.Aggregator.Retrieve(ctx, req.Message, req.UserID, cfg)
	h.deps.Metrics.RetrievalDuration.Record(ctx, time.Since(start).Seconds())
	if metrics.DuplicatesRemoved > 0 {
		h.deps.Metrics.RecordDeduplicated(ctx, "aggregator")
	}
	if err != nil {
		writeCoreErr(c, err)
		return
	}

	ranked, _ := h.deps.Ranker.Load().Rank(ctx, results, req.Message, ranker.Preset(preset))

	var sess *session.Session
	sess, err = h.deps.Sessions.Load(ctx, req.SessionID, req.UserID)
	if err != nil {
		writeCoreErr(c, err)
		return
	}

	pluginOutputs := h.deps.Plugins.RunAll(ctx, plugin.Context{
		UserMessage: req.Message,
		SessionID:   req.SessionID,
		UserID:      req.UserID,
	})

	composed := prompt.Compose(prompt.Input{
		UserMessage:          req.Message,
		Context:              ranked,
		PluginOutputs:        pluginOutputs,
		Session:              sess,
		CandidateTranscripts: transcriptsFrom(ranked),
	})

	ex := session.Exchange{
		UserUtterance: req.Message,
		Timestamp:     time.Now(),
	}
	if _, err := h.deps.Sessions.Commit(ctx, req.SessionID, ex, composed.NewFingerprints); err != nil {
		writeCoreErr(c, err)
		return
	}

	c.JSON(http.StatusOK, queryResponse{
		Prompt:   composed.Prompt,
		Strategy: string(metrics.StrategyUsed),
		Preset:   string(preset),
	})
}

// sessionResponse is the body returned by GET /v1/sessions/:id.
type sessionResponse struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	History   []session.Exchange `json:"history"`
	Delivered []string           `json:"delivered"`
}

// getSession returns a session's current state, creating it under user_id
// if the session id does not yet exist.
func (h *handlers) getSession(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id query parameter is required"})
		return
	}

	sess, err := h.deps.Sessions.Load(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		writeCoreErr(c, err)
		return
	}

	c.JSON(http.StatusOK, sessionResponse{
		ID:        sess.ID,
		UserID:    sess.UserID,
		History:   sess.History,
		Delivered: sess.Delivered,
	})
}

// resetSession clears a session's history and delivered-transcript list.
func (h *handlers) resetSession(c *gin.Context) {
	if err := h.deps.Sessions.Reset(c.Request.Context(), c.Param("id")); err != nil {
		writeCoreErr(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// transcriptsFrom turns ranked chunk/entity results into the candidate
// transcripts the prompt composer fingerprints against session history, so
// a chunk already delivered in an earlier turn is not repeated verbatim.
func transcriptsFrom(results []result.Result) []session.Transcript {
	transcripts := make([]session.Transcript, 0, len(results))
	for _, r := range results {
		transcripts = append(transcripts, session.Transcript{
			ID:        r.ID,
			Content:   r.Content,
			CreatedAt: r.Timestamp,
		})
	}
	return transcripts
}

// writeCoreErr maps a coreerr.Kind (or session.ErrNotFound) to an HTTP
// status and writes a JSON error body.
func writeCoreErr(c *gin.Context, err error) {
	if errors.Is(err, session.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	status := http.StatusInternalServerError
	if kind, ok := coreerr.KindOf(err); ok {
		switch kind {
		case coreerr.InputInvalid:
			status = http.StatusBadRequest
		case coreerr.NotFound:
			status = http.StatusNotFound
		case coreerr.Timeout:
			status = http.StatusGatewayTimeout
		case coreerr.Upstream, coreerr.Partial, coreerr.Consistency:
			status = http.StatusBadGateway
		}
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
