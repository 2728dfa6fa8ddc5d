package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jacoblazdade/rag-template-starter/internal/service"
)

type QueryHandler struct {
	svc *service.QueryService
}

func NewQueryHandler(svc *service.QueryService) *QueryHandler {
	return &QueryHandler{svc: svc}
}

type QueryRequest struct {
	Query      string `json:"query"`
	DocumentID string `json:"document_id,omitempty"`
	TopK       int    `json:"top_k,omitempty"`
}

func parseQueryRequest(c *gin.Context) (*QueryRequest, *service.QueryOptions, bool) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, nil, false
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return nil, nil, false
	}

	opts := &service.QueryOptions{TopK: req.TopK}
	if req.DocumentID != "" {
		id, err := uuid.Parse(req.DocumentID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document_id"})
			return nil, nil, false
		}
		opts.DocumentID = &id
	}
	return &req, opts, true
}

func (h *QueryHandler) Query(c *gin.Context) {
	req, opts, ok := parseQueryRequest(c)
	if !ok {
		return
	}

	resp, err := h.svc.Query(c.Request.Context(), req.Query, *opts)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// QueryStream serves the answer as server-sent events: one sources event,
// answer fragments as they are generated, then a single done or error event.
func (h *QueryHandler) QueryStream(c *gin.Context) {
	req, opts, ok := parseQueryRequest(c)
	if !ok {
		return
	}

	events, err := h.svc.QueryStream(c.Request.Context(), req.Query, *opts)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(c.Writer, "data: %s\n\n", data)
		c.Writer.Flush()
	}
}
