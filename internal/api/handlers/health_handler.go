package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is the minimal dependency HealthHandler needs from the
// repository to report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness and readiness for the process.
type HealthHandler struct {
	pinger Pinger
}

// NewHealthHandler builds a HealthHandler bound to the repository's ping.
func NewHealthHandler(pinger Pinger) *HealthHandler {
	return &HealthHandler{pinger: pinger}
}

// RegisterRoutes mounts /health, /health/live, and /health/ready.
func (h *HealthHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Live)
	router.GET("/health/live", h.Live)
	router.GET("/health/ready", h.Ready)
}

// Live reports the process is up, without checking dependencies.
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports whether the database is reachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := h.pinger.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
