package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"trendscope-pipeline/internal/pkg/logger"
)

// HealthChecker is anything that can report whether its backing service
// is reachable.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type JobCounter interface {
	ActiveJobCount() int
}

type HealthHandler struct {
	checks  map[string]HealthChecker
	counter JobCounter
	logger  *logger.Logger
}

func NewHealthHandler(checks map[string]HealthChecker, counter JobCounter, log *logger.Logger) *HealthHandler {
	return &HealthHandler{checks: checks, counter: counter, logger: log}
}

func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	components := make(gin.H, len(h.checks))

	for name, check := range h.checks {
		if err := check.HealthCheck(ctx); err != nil {
			h.logger.WithError(err).WithFields(logger.Fields{"component": name}).Warn("health check failed")
			components[name] = "unhealthy"
			status = http.StatusServiceUnavailable
		} else {
			components[name] = "healthy"
		}
	}

	body := gin.H{
		"status":     "healthy",
		"components": components,
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if h.counter != nil {
		body["active_jobs"] = h.counter.ActiveJobCount()
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}

	c.JSON(status, body)
}
