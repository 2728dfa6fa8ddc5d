package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jacoblazdade/rag-template-starter/internal/service"
)

type DocumentHandler struct {
	svc *service.IngestionService
}

func NewDocumentHandler(svc *service.IngestionService) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

// Upload accepts either a multipart file or a JSON body with raw text.
func (h *DocumentHandler) Upload(c *gin.Context) {
	if file, header, err := c.Request.FormFile("file"); err == nil {
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		result, err := h.svc.Upload(c.Request.Context(), header.Filename, contentType, header.Size, file)
		if err != nil {
			status := http.StatusInternalServerError
			if strings.Contains(err.Error(), "unsupported file type") ||
				strings.Contains(err.Error(), "no text") ||
				strings.Contains(err.Error(), "maximum upload size") {
				status = http.StatusBadRequest
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, result)
		return
	}

	var req struct {
		Filename string `json:"filename"`
		Text     string `json:"text" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file or text is required"})
		return
	}
	if req.Filename == "" {
		req.Filename = "document.txt"
	}

	result, err := h.svc.Upload(c.Request.Context(), req.Filename, "text/plain", int64(len(req.Text)), strings.NewReader(req.Text))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	docs, total, err := h.svc.List(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": docs,
		"pagination": gin.H{
			"total":  total,
			"limit":  limit,
			"offset": offset,
		},
	})
}

func (h *DocumentHandler) Status(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	doc, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document_id": doc.ID,
		"status":      doc.Status,
		"chunk_count": doc.ChunkCount,
		"page_count":  doc.PageCount,
		"job_id":      doc.JobID,
		"error":       doc.ErrorMessage,
		"created_at":  doc.CreatedAt,
	})
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
		return
	}

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"document_id": id, "deleted": true})
}
