package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/themobileprof/textclass/internal/router"
	"github.com/themobileprof/textclass/pkg/models"
)

// ErrorResponse represents a structured error response
type ErrorResponse struct {
	StatusCode int
	Code       string
	Message    string
}

// MapError maps pipeline and routing errors to HTTP error responses.
func MapError(err error) ErrorResponse {
	switch {
	case errors.Is(err, models.ErrEmptyInput):
		return ErrorResponse{
			StatusCode: http.StatusBadRequest,
			Code:       "INVALID_INPUT",
			Message:    "text is empty",
		}
	case models.IsRetryable(err):
		return ErrorResponse{
			StatusCode: http.StatusServiceUnavailable,
			Code:       "INFERENCE_FAILED",
			Message:    "inference failed, retry later",
		}
	case models.IsContractViolation(err):
		return ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Code:       "CONTRACT_VIOLATION",
			Message:    "model output does not match the category registry",
		}
	case models.IsConstructionFailure(err):
		return ErrorResponse{
			StatusCode: http.StatusServiceUnavailable,
			Code:       "MODEL_UNAVAILABLE",
			Message:    "classifier is not available",
		}
	case errors.Is(err, router.ErrRemoteFailed):
		return ErrorResponse{
			StatusCode: http.StatusBadGateway,
			Code:       "REMOTE_FAILED",
			Message:    "remote fallback failed",
		}
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorResponse{
			StatusCode: http.StatusGatewayTimeout,
			Code:       "TIMEOUT",
			Message:    "request timed out",
		}
	case errors.Is(err, context.Canceled):
		return ErrorResponse{
			StatusCode: http.StatusServiceUnavailable,
			Code:       "CANCELLED",
			Message:    "request cancelled",
		}
	default:
		return ErrorResponse{
			StatusCode: http.StatusInternalServerError,
			Code:       "INTERNAL_ERROR",
			Message:    "internal server error",
		}
	}
}

// HandleError sends the mapped error response. Server-side failures are
// attached to the gin context so the access log records the cause.
func HandleError(c *gin.Context, err error) {
	resp := MapError(err)
	if resp.StatusCode >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	respondError(c, resp.StatusCode, resp.Code, resp.Message)
}

// HandleInvalidRequest handles a malformed request body.
func HandleInvalidRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, "INVALID_REQUEST", message)
}
