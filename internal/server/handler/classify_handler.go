package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/themobileprof/textclass/internal/classifier"
	"github.com/themobileprof/textclass/internal/interfaces"
	"github.com/themobileprof/textclass/pkg/models"
)

// DefaultMaxBatch caps the number of texts in one batch request.
const DefaultMaxBatch = 64

// ClassifyRequest is the body of POST /api/v1/classify and /api/v1/route.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// BatchRequest is the body of POST /api/v1/classify/batch.
type BatchRequest struct {
	Texts []string `json:"texts" binding:"required"`
}

// ClassifyResponse is a classification result plus its ranked scores.
type ClassifyResponse struct {
	*models.ClassificationResult
	Ranked []models.Score `json:"ranked"`
}

// BatchItem is one index-aligned entry of a batch response.
type BatchItem struct {
	Index  int                          `json:"index"`
	Result *models.ClassificationResult `json:"result,omitempty"`
	Error  *ErrorInfo                   `json:"error,omitempty"`
}

// BatchResponse holds per-item outcomes of a batch request.
type BatchResponse struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// ClassifyHandler handles classification and routing endpoints
type ClassifyHandler struct {
	classifier interfaces.Classifier
	router     interfaces.Router
	maxBatch   int
}

// NewClassifyHandler creates a new classify handler. maxBatch <= 0 selects
// DefaultMaxBatch.
func NewClassifyHandler(c interfaces.Classifier, r interfaces.Router, maxBatch int) *ClassifyHandler {
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatch
	}
	return &ClassifyHandler{classifier: c, router: r, maxBatch: maxBatch}
}

// Classify handles POST /api/v1/classify
func (h *ClassifyHandler) Classify(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleInvalidRequest(c, "invalid request body")
		return
	}

	ctx := classifier.WithRequestID(c.Request.Context(), requestID(c))
	result, err := h.classifier.Classify(ctx, req.Text)
	if err != nil {
		HandleError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, ClassifyResponse{
		ClassificationResult: result,
		Ranked:               result.Ranked(),
	})
}

// ClassifyBatch handles POST /api/v1/classify/batch
func (h *ClassifyHandler) ClassifyBatch(c *gin.Context) {
	var req BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleInvalidRequest(c, "invalid request body")
		return
	}
	if len(req.Texts) == 0 {
		HandleInvalidRequest(c, "texts must not be empty")
		return
	}
	if len(req.Texts) > h.maxBatch {
		HandleInvalidRequest(c, fmt.Sprintf("at most %d texts per batch", h.maxBatch))
		return
	}

	ctx := classifier.WithRequestID(c.Request.Context(), requestID(c))
	results, errs := h.classifier.ClassifyBatch(ctx, req.Texts)

	resp := BatchResponse{Items: make([]BatchItem, len(req.Texts))}
	for i := range req.Texts {
		item := BatchItem{Index: i}
		if errs[i] != nil {
			mapped := MapError(errs[i])
			item.Error = &ErrorInfo{Code: mapped.Code, Message: mapped.Message}
			resp.Failed++
		} else {
			item.Result = results[i]
			resp.Succeeded++
		}
		resp.Items[i] = item
	}

	respondSuccess(c, http.StatusOK, resp)
}

// Route handles POST /api/v1/route
func (h *ClassifyHandler) Route(c *gin.Context) {
	var req ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleInvalidRequest(c, "invalid request body")
		return
	}

	id := requestID(c)
	ctx := classifier.WithRequestID(c.Request.Context(), id)
	route, err := h.router.Route(ctx, id, req.Text)
	if err != nil {
		HandleError(c, err)
		return
	}

	respondSuccess(c, http.StatusOK, route)
}
