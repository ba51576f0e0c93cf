package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/themobileprof/textclass/internal/interfaces"
)

// Pinger is a dependency that can report whether it is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	classifier interfaces.Classifier
	store      Pinger
	remote     Pinger
}

// NewHealthHandler creates a new health handler. store and remote may be
// nil when not configured.
func NewHealthHandler(c interfaces.Classifier, store, remote Pinger) *HealthHandler {
	return &HealthHandler{classifier: c, store: store, remote: remote}
}

// HealthStatus represents the health check response
type HealthStatus struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components"`
}

// Health handles GET /health. A failing remote backend reports degraded,
// not unhealthy.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	components := make(map[string]string)
	healthy, degraded := true, false

	if h.classifier != nil {
		components["classifier"] = "ok"
	} else {
		components["classifier"] = "not loaded"
		healthy = false
	}

	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			components["decision_log"] = "error: " + err.Error()
			healthy = false
		} else {
			components["decision_log"] = "ok"
		}
	} else {
		components["decision_log"] = "not configured"
	}

	if h.remote != nil {
		if err := h.remote.Ping(ctx); err != nil {
			components["remote"] = "error: " + err.Error()
			degraded = true
		} else {
			components["remote"] = "ok"
		}
	} else {
		components["remote"] = "not configured"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	switch {
	case !healthy:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	case degraded:
		status = "degraded"
	}

	c.JSON(httpStatus, HealthStatus{
		Status:     status,
		Components: components,
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if h.classifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "classifier not loaded"})
		return
	}
	if h.store != nil {
		if err := h.store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "reason": "decision log unreachable"})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
