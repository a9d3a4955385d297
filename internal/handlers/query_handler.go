// Package handlers contains the gin HTTP handlers for the Prism API.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/models"
	"github.com/alti-global/prism/internal/pipeline"
)

// QueryService is the pipeline surface the query handler needs.
type QueryService interface {
	Process(ctx context.Context, query models.Query) (models.QueryResponse, error)
}

// QueryRequest is the POST /v2/query body.
type QueryRequest struct {
	Query      string                 `json:"query" binding:"required"`
	Domain     string                 `json:"domain"`
	PromptName string                 `json:"prompt_name"`
	AppContext map[string]interface{} `json:"app_context"`
	ThreadID   string                 `json:"thread_id"`
}

// QueryHandler serves the query endpoints.
type QueryHandler struct {
	service QueryService
	logger  *logrus.Logger
}

// NewQueryHandler creates a query handler.
func NewQueryHandler(service QueryService, logger *logrus.Logger) *QueryHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &QueryHandler{service: service, logger: logger}
}

// Query handles POST /v2/query.
func (h *QueryHandler) Query(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	resp, err := h.service.Process(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// QueryStream handles POST /v2/query/stream, emitting the answer over SSE:
// a metadata event, the answer in chunks, then a done event. Citations,
// quality and intent depend on the finalised survivor list, so they travel
// in the done event after the answer.
func (h *QueryHandler) QueryStream(c *gin.Context) {
	req, ok := h.bindRequest(c)
	if !ok {
		return
	}

	resp, err := h.service.Process(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.SSEvent("metadata", gin.H{
		"id":        resp.ID,
		"thread_id": resp.ThreadID,
	})
	c.Writer.Flush()

	for _, chunk := range chunkAnswer(resp.Answer, 120) {
		c.SSEvent("answer", chunk)
		c.Writer.Flush()
	}

	c.SSEvent("done", gin.H{
		"intent":    resp.Intent,
		"quality":   resp.Quality,
		"citations": resp.Citations,
		"timings":   resp.Timings,
	})
	c.Writer.Flush()
}

func (h *QueryHandler) bindRequest(c *gin.Context) (models.Query, bool) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return models.Query{}, false
	}
	if strings.TrimSpace(req.Query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query must not be empty"})
		return models.Query{}, false
	}
	return models.Query{
		Text:       req.Query,
		Domain:     req.Domain,
		PromptName: req.PromptName,
		AppContext: req.AppContext,
		ThreadID:   req.ThreadID,
	}, true
}

func (h *QueryHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pipeline.ErrOverloaded):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many concurrent requests", "retryable": true})
	case errors.Is(err, pipeline.ErrUnknownDomain):
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown domain"})
	case errors.Is(err, pipeline.ErrNotReady):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "service warming up", "retryable": true})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "query deadline exceeded", "retryable": true})
	default:
		h.logger.WithError(err).Error("query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// chunkAnswer splits text into fixed-size rune chunks for streaming,
// preserving whitespace so formatted answers survive reassembly.
func chunkAnswer(text string, size int) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return []string{""}
	}
	var chunks []string
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
