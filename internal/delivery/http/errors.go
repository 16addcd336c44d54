package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dkedar7/pyshala/internal/domain"
)

// respondBindError answers a request whose body could not be decoded.
func respondBindError(c *gin.Context, err error) {
	var maxBytes *http.MaxBytesError
	if errors.As(err, &maxBytes) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"error": "Invalid request body: " + err.Error(),
	})
}

// respondError maps a usecase error to a status code.
func respondError(c *gin.Context, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptySourceCode),
		errors.Is(err, domain.ErrInvalidDataFile),
		errors.Is(err, domain.ErrDataFileContentMissing),
		errors.Is(err, domain.ErrTooManyTestCases):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPayloadTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSubmissionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Submission not found"})
	case errors.Is(err, domain.ErrPublishFailed), domain.IsInfrastructure(err):
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable"})
	default:
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
