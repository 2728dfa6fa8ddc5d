package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jacoblazdade/rag-template-starter/internal/queue"
	"github.com/jacoblazdade/rag-template-starter/internal/search"
	"github.com/jacoblazdade/rag-template-starter/internal/service"
)

// AdminHandler serves the operational surface: corpus stats, job status, and
// chunk inspection. Jobs may be nil when the broker is not configured.
type AdminHandler struct {
	ingestion *service.IngestionService
	index     *search.Index
	jobs      *queue.RedisQueue
}

func NewAdminHandler(ingestion *service.IngestionService, index *search.Index, jobs *queue.RedisQueue) *AdminHandler {
	return &AdminHandler{ingestion: ingestion, index: index, jobs: jobs}
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.ingestion.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	indexedChunks, err := h.index.CountChunks(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total_documents":    stats.TotalDocuments,
		"total_chunks":       stats.TotalChunks,
		"indexed_documents":  stats.IndexedDocuments,
		"indexed_chunks":     indexedChunks,
		"avg_chunks_per_doc": stats.AvgChunksPerDoc,
	})
}

func (h *AdminHandler) JobStatus(c *gin.Context) {
	if h.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue not configured"})
		return
	}

	status, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	c.JSON(http.StatusOK, status)
}

func (h *AdminHandler) ListChunks(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	chunks, total, err := h.index.ListByDocument(c.Request.Context(), id, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document_id": id,
		"chunks":      chunks,
		"pagination": gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}
