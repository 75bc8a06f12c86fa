// Package handler provides HTTP handlers for the retrieval service.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/itissonu/genaiquery/internal/rag/biz"
	"github.com/itissonu/genaiquery/internal/rag/metrics"
)

// requestTimeout 单个请求的处理时限。
const requestTimeout = 60 * time.Second

// RAGHandler handles retrieval HTTP requests.
type RAGHandler struct {
	service biz.Service
	metrics *metrics.Metrics
}

// NewRAGHandler creates a new RAGHandler.
func NewRAGHandler(service biz.Service, m *metrics.Metrics) *RAGHandler {
	return &RAGHandler{
		service: service,
		metrics: m,
	}
}

// SuccessResponse is a standard success response.
type SuccessResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// IngestRequest represents an ingest request.
type IngestRequest struct {
	Content string `json:"content" binding:"required"`
}

// Ingest ingests a project document, replacing any previous data.
func (h *RAGHandler) Ingest(c *gin.Context) {
	projectID := c.Param("project")

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result, err := h.service.Ingest(ctx, projectID, req.Content)
	if err != nil {
		if errors.Is(err, biz.ErrNoChunks) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: "document produced no chunks"})
			return
		}
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "project ingested", Data: result})
}

// QueryRequest represents a retrieval query request.
type QueryRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"topK"`
}

// Query retrieves the most relevant chunks for a project-scoped query.
func (h *RAGHandler) Query(c *gin.Context) {
	projectID := c.Param("project")

	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Code: 400, Message: err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), requestTimeout)
	defer cancel()

	result := h.service.Retrieve(ctx, projectID, req.Query, req.TopK)
	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: result})
}

// Stats returns per-project statistics.
func (h *RAGHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context(), c.Param("project"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: stats})
}

// ListProjects lists projects that have ingested data.
func (h *RAGHandler) ListProjects(c *gin.Context) {
	projects, err := h.service.ListProjects(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "success", Data: projects})
}

// DeleteProject removes all data for a project.
func (h *RAGHandler) DeleteProject(c *gin.Context) {
	if err := h.service.DeleteProject(c.Request.Context(), c.Param("project")); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{Code: 500, Message: err.Error()})
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Code: 0, Message: "project deleted"})
}

// Healthz reports component health.
func (h *RAGHandler) Healthz(c *gin.Context) {
	status := h.service.Health(c.Request.Context())
	code := http.StatusOK
	if status["store"] != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// Metrics exposes business metrics in Prometheus text format.
func (h *RAGHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4", []byte(h.metrics.Export("genaiquery", "rag")))
}
