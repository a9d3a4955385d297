package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ReadinessChecker reports whether the pipeline finished warmup.
type ReadinessChecker interface {
	Ready() bool
}

// HealthHandler serves liveness and readiness.
type HealthHandler struct {
	checker ReadinessChecker
	started time.Time
	version string
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(checker ReadinessChecker, version string) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		started: time.Now(),
		version: version,
	}
}

// Live handles GET /health. It answers ok as long as the process serves
// HTTP, independent of warmup.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}

// Ready handles GET /v2/health. It reports 503 until warmup completes.
func (h *HealthHandler) Ready(c *gin.Context) {
	if !h.checker.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "warming_up"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"version": h.version,
		"uptime":  time.Since(h.started).Round(time.Second).String(),
	})
}
