package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/alti-global/prism/internal/models"
)

// FeedbackSink stores user feedback.
type FeedbackSink interface {
	Add(sub models.FeedbackSubmission) (models.FeedbackRecord, error)
	Stats() models.FeedbackStats
}

// FeedbackHandler serves the feedback endpoints.
type FeedbackHandler struct {
	store  FeedbackSink
	logger *logrus.Logger
}

// NewFeedbackHandler creates a feedback handler.
func NewFeedbackHandler(store FeedbackSink, logger *logrus.Logger) *FeedbackHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &FeedbackHandler{store: store, logger: logger}
}

// Submit handles POST /feedback.
func (h *FeedbackHandler) Submit(c *gin.Context) {
	var sub models.FeedbackSubmission
	if err := c.ShouldBindJSON(&sub); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}

	rec, err := h.store.Add(sub)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"feedback_id": rec.FeedbackID})
}

// Stats handles GET /feedback/stats.
func (h *FeedbackHandler) Stats(c *gin.Context) {
	c.JSON(http.StatusOK, h.store.Stats())
}
