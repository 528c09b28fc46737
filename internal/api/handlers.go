// Package api exposes the pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"AssessmentPipeline/internal/cache"
	"AssessmentPipeline/internal/domain"
	"AssessmentPipeline/internal/infrastructure/metrics"
	"AssessmentPipeline/internal/infrastructure/storage"
)

// Runner executes one submission end to end.
type Runner interface {
	Run(ctx context.Context, sub domain.Submission) *domain.PipelineRun
}

// CacheAdmin is the slice of the artifact cache the API manages.
type CacheAdmin interface {
	Stats() cache.Stats
	InvalidateByOwner(owner string) int
}

// Purger drops stored phase outputs for a submission.
type Purger interface {
	Purge(ctx context.Context, submissionID string) (int64, error)
}

// PhaseReader reads stored phase outputs back.
type PhaseReader interface {
	ListPhases(ctx context.Context, submissionID string) ([]string, error)
	LoadPhaseOutput(ctx context.Context, submissionID, phase string) ([]byte, error)
}

// MetricsReader exposes per-phase totals.
type MetricsReader interface {
	Totals() map[domain.PhaseName]metrics.PhaseTotals
}

// Pinger reports backing store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the handlers. Everything except Runner is optional.
type Deps struct {
	Runner  Runner
	Cache   CacheAdmin
	Store   Purger
	Phases  PhaseReader
	Metrics MetricsReader
	Health  Pinger
	Logger  *zap.Logger
	Now     func() time.Time
}

// Handler serves the pipeline endpoints.
type Handler struct {
	deps     Deps
	inFlight sync.Map
}

func NewHandler(deps Deps) *Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Handler{deps: deps}
}

// HealthCheck reports liveness and, when configured, store reachability.
func (h *Handler) HealthCheck(c *gin.Context) {
	if h.deps.Health != nil {
		if err := h.deps.Health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "assessment-pipeline"})
}

// CreateRun runs the posted submission and returns the run snapshot. Only one
// run per submission id may be in flight.
func (h *Handler) CreateRun(c *gin.Context) {
	var sub domain.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid submission: " + err.Error()})
		return
	}
	if sub.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "submission id is required"})
		return
	}
	if _, busy := h.inFlight.LoadOrStore(sub.ID, struct{}{}); busy {
		c.JSON(http.StatusConflict, gin.H{"error": "a run for this submission is already in progress"})
		return
	}
	defer h.inFlight.Delete(sub.ID)

	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = h.deps.Now()
	}

	run := h.deps.Runner.Run(c.Request.Context(), sub)
	h.deps.Logger.Info("api: run served",
		zap.String("run_id", run.RunID),
		zap.String("submission_id", sub.ID),
		zap.String("status", string(run.OverallStatus)))

	status := http.StatusOK
	switch run.ErrorKind {
	case domain.ErrorValidation, domain.ErrorConfiguration:
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, run)
}

func (h *Handler) CacheStats(c *gin.Context) {
	if h.deps.Cache == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "cache disabled"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Cache.Stats())
}

// InvalidateOwner drops every cached artifact derived from a submission.
func (h *Handler) InvalidateOwner(c *gin.Context) {
	owner := c.Param("submissionId")
	removed := 0
	if h.deps.Cache != nil {
		removed = h.deps.Cache.InvalidateByOwner(owner)
	}
	c.JSON(http.StatusOK, gin.H{"submissionId": owner, "invalidated": removed})
}

// ResetSubmission clears cached artifacts and stored phase outputs so the
// submission can be run again from scratch.
func (h *Handler) ResetSubmission(c *gin.Context) {
	id := c.Param("submissionId")
	if _, busy := h.inFlight.LoadOrStore(id, struct{}{}); busy {
		c.JSON(http.StatusConflict, gin.H{"error": "a run for this submission is in progress"})
		return
	}
	defer h.inFlight.Delete(id)

	removed := 0
	if h.deps.Cache != nil {
		removed = h.deps.Cache.InvalidateByOwner(id)
	}
	var purged int64
	if h.deps.Store != nil {
		n, err := h.deps.Store.Purge(c.Request.Context(), id)
		if err != nil {
			h.deps.Logger.Warn("api: failed to purge submission", zap.String("submission_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "purge failed"})
			return
		}
		purged = n
	}
	c.JSON(http.StatusOK, gin.H{"submissionId": id, "invalidated": removed, "purged": purged})
}

// ListPhases lists the phase outputs stored for a submission.
func (h *Handler) ListPhases(c *gin.Context) {
	if h.deps.Phases == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "phase store disabled"})
		return
	}
	id := c.Param("submissionId")
	phases, err := h.deps.Phases.ListPhases(c.Request.Context(), id)
	if err != nil {
		h.deps.Logger.Warn("api: failed to list phases", zap.String("submission_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list phases failed"})
		return
	}
	if phases == nil {
		phases = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"submissionId": id, "phases": phases})
}

// PhaseOutput returns one stored phase output as written.
func (h *Handler) PhaseOutput(c *gin.Context) {
	if h.deps.Phases == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "phase store disabled"})
		return
	}
	id, phase := c.Param("submissionId"), c.Param("phase")
	payload, err := h.deps.Phases.LoadPhaseOutput(c.Request.Context(), id, phase)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "no output for phase " + phase})
	case err != nil:
		h.deps.Logger.Warn("api: failed to load phase output",
			zap.String("submission_id", id),
			zap.String("phase", phase),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load phase output failed"})
	default:
		c.Data(http.StatusOK, "application/json", payload)
	}
}

func (h *Handler) PhaseMetrics(c *gin.Context) {
	if h.deps.Metrics == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "metrics disabled"})
		return
	}
	c.JSON(http.StatusOK, h.deps.Metrics.Totals())
}
