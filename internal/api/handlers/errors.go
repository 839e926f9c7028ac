package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/safecli/safecli/internal/api/middleware"
	"github.com/safecli/safecli/internal/services"
)

// statusFor maps service errors onto HTTP status codes. Unknown errors are internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrMissingFields),
		errors.Is(err, services.ErrInvalidAccount),
		errors.Is(err, services.ErrInvalidOutcome),
		errors.Is(err, services.ErrInvalidProvider),
		errors.Is(err, services.ErrAccountExists):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrAccountLocked),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrInvalidEndpointToken):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAccessDenied):
		return http.StatusForbidden
	case errors.Is(err, services.ErrEndpointNotFound),
		errors.Is(err, services.ErrRequestNotFound),
		errors.Is(err, services.ErrProviderNotFound),
		errors.Is(err, services.ErrEndpointUnavailable):
		return http.StatusNotFound
	case errors.Is(err, services.ErrAlreadyProcessed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Internal failures are logged with
// the request context and their text never reaches the client.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		middleware.GetRequestLogger(c).WithError(err).WithField("path", middleware.SanitizePath(c.Request.URL.Path)).Error("request failed")
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
