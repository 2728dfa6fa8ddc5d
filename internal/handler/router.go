package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jacoblazdade/rag-template-starter/internal/config"
	"github.com/jacoblazdade/rag-template-starter/internal/queue"
	"github.com/jacoblazdade/rag-template-starter/internal/search"
	"github.com/jacoblazdade/rag-template-starter/internal/service"
)

// Deps are the constructed service handles the router wires into handlers.
// Built once at startup and passed in; no handler reaches for globals.
type Deps struct {
	Ingestion *service.IngestionService
	Query     *service.QueryService
	Index     *search.Index
	Jobs      *queue.RedisQueue // nil when the broker is not configured
}

func SetupRouter(cfg *config.Config, deps *Deps) *gin.Engine {
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// Health check endpoints
	r.GET("/health", healthCheck)
	r.GET("/ready", readinessCheck)
	r.GET("/live", livenessCheck)

	// Root endpoint
	r.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service":      "RAG Service",
			"version":      "1.0.0",
			"status":       "running",
			"health_check": "/health",
		})
	})

	documentHandler := NewDocumentHandler(deps.Ingestion)
	queryHandler := NewQueryHandler(deps.Query)
	adminHandler := NewAdminHandler(deps.Ingestion, deps.Index, deps.Jobs)

	// API v1
	v1 := r.Group("/v1")
	{
		documents := v1.Group("/documents")
		{
			documents.POST("", documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.GET("/:id/status", documentHandler.Status)
			documents.GET("/:id/chunks", adminHandler.ListChunks)
			documents.DELETE("/:id", documentHandler.Delete)
		}

		query := v1.Group("/query")
		{
			query.POST("", queryHandler.Query)
			query.POST("/stream", queryHandler.QueryStream)
		}

		admin := v1.Group("/admin")
		{
			admin.GET("/stats", adminHandler.Stats)
			admin.GET("/jobs/:id", adminHandler.JobStatus)
		}
	}

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "rag",
	})
}

func readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

func livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
