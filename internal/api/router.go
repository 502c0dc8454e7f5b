// Package api wires the pipeline controller (C9) into an HTTP surface.
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"litscout/internal/api/handlers"
	"litscout/internal/api/middleware"
)

// NewRouter builds the complete gin.Engine: global middleware, health
// endpoints, and the session/search/save/similar endpoints backing the
// pipeline controller's five operations (§4.8).
func NewRouter(pipelineHandler *handlers.PipelineHandler, healthHandler *handlers.HealthHandler, logger *slog.Logger) *gin.Engine {
	router := gin.New()

	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CorsMiddleware(middleware.DefaultCorsConfig()))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.StructuredLoggingMiddleware(logger))
	router.Use(gin.Recovery())

	healthHandler.RegisterRoutes(router)

	v1 := router.Group("/v1")
	{
		sessions := v1.Group("/sessions")
		sessions.POST("", pipelineHandler.StartSession)
		sessions.POST("/search", pipelineHandler.InitialSearch)
		sessions.POST("/secondary-search", pipelineHandler.SecondarySearch)
		sessions.POST("/save", pipelineHandler.SavePapers)
		sessions.POST("/similar", pipelineHandler.FindSimilar)
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"service": "litscout",
			"status":  "running",
			"health":  "/health",
		})
	})

	return router
}
