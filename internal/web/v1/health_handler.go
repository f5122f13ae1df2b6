package v1

import (
	"context"
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/duynhne/learning-platform/middleware"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the probe endpoints.
type HealthHandler struct {
	store    Pinger
	draining *atomic.Bool
}

// NewHealthHandler creates the handler. draining flips /ready to 503 once
// shutdown has started; nil means never draining.
func NewHealthHandler(store Pinger, draining *atomic.Bool) *HealthHandler {
	if draining == nil {
		draining = new(atomic.Bool)
	}
	return &HealthHandler{store: store, draining: draining}
}

// Live handles GET /health
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready handles GET /ready. Returns 503 once shutdown has started, to drain
// traffic before HTTP shutdown.
func (h *HealthHandler) Ready(c *gin.Context) {
	if h.draining.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Database handles GET /api/health/db. An unreachable store is reported in
// the body with status 200.
func (h *HealthHandler) Database(c *gin.Context) {
	ctx, span := startSpan(c)
	defer span.End()

	state := "OK"
	if err := h.store.Ping(ctx); err != nil {
		span.RecordError(err)
		middleware.GetLoggerFromGinContext(c).Warn("Database ping failed", zap.Error(err))
		state = "FAIL"
	}
	c.JSON(http.StatusOK, gin.H{"db": state})
}
