// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"packstock/internal/infrastructure/storage/postgres"
)

// DegradedReporter is implemented by read stores that can serve stale data
// when the primary storage is unreachable.
type DegradedReporter interface {
	Degraded() bool
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	pool     *postgres.Pool
	reporter DegradedReporter
}

// NewHealthHandler creates a new health handler. reporter may be nil.
func NewHealthHandler(pool *postgres.Pool, reporter DegradedReporter) *HealthHandler {
	return &HealthHandler{pool: pool, reporter: reporter}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	// Check database connection
	if err := h.pool.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "error",
			"checks": map[string]string{
				"database": "unhealthy: " + err.Error(),
			},
		})
		return
	}

	checks := map[string]string{
		"database": "healthy",
	}
	if h.reporter != nil && h.reporter.Degraded() {
		checks["reads"] = "degraded: serving last known good snapshots"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"checks": checks,
	})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	stat := h.pool.Stat()

	c.JSON(http.StatusOK, gin.H{
		"app":     "packstock",
		"version": "0.1.0",
		"database": map[string]any{
			"total_conns":    stat.TotalConns(),
			"acquired_conns": stat.AcquiredConns(),
			"idle_conns":     stat.IdleConns(),
			"max_conns":      stat.MaxConns(),
		},
	})
}
