package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ddevcap/newsfront/backend"
)

// ReadinessSource reports the content API's health. *backend.HealthChecker
// implements it.
type ReadinessSource interface {
	Status() backend.HealthStatus
}

type SystemHandler struct {
	health ReadinessSource
}

func NewSystemHandler(health ReadinessSource) *SystemHandler {
	return &SystemHandler{health: health}
}

// HealthLive handles GET /health and always returns 200.
// Used as a liveness probe by container orchestrators.
func (h *SystemHandler) HealthLive(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HealthReady handles GET /ready. Returns 503 while the content API is
// considered unreachable so traffic shifts to instances that can still
// fill their caches.
func (h *SystemHandler) HealthReady(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}
	status := h.health.Status()
	if !status.Available {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":      "not ready",
			"error":       "content api unreachable",
			"content_api": status,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "content_api": status})
}
