// Package respond maps service errors onto HTTP responses.
package respond

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/liliang-cn/askpdf/internal/domain"
)

// StatusClientClosedRequest is reported when the caller went away before
// the answer was ready.
const StatusClientClosedRequest = 499

// Status returns the HTTP status for err.
func Status(err error) int {
	switch {
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrInvalidRequest), errors.Is(err, domain.ErrIngest):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrEmbedding), errors.Is(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error writes err as {"error": "..."} with the matching status and aborts
// the handler chain.
func Error(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(Status(err), gin.H{"error": err.Error()})
}
