package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the gin engine with all routes registered.
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(h.deps.Logger))
	r.Use(cors.Default())

	r.GET("/health", h.HealthCheck)

	v1 := r.Group("/api/v1")
	{
		v1.POST("/runs", h.CreateRun)

		c := v1.Group("/cache")
		{
			c.GET("/stats", h.CacheStats)
			c.DELETE("/owners/:submissionId", h.InvalidateOwner)
		}

		s := v1.Group("/submissions/:submissionId")
		{
			s.DELETE("", h.ResetSubmission)
			s.GET("/phases", h.ListPhases)
			s.GET("/phases/:phase", h.PhaseOutput)
		}

		v1.GET("/metrics", h.PhaseMetrics)
	}
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("api: request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
