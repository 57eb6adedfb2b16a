package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stashpal/stashpal_backend/internal/apperrors"
)

// respondServiceError maps a service error to an HTTP response. Internal
// details are logged, never returned to the client.
func respondServiceError(c *gin.Context, logger *slog.Logger, err error, fallback string) {
	var capErr *apperrors.InsufficientCapacityError
	switch {
	case errors.As(err, &capErr):
		logger.Warn("Insufficient lending capacity", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    err.Error(),
			"required": capErr.Required,
			"allowed":  capErr.Allowed,
		})
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrInsufficientFunds):
		logger.Warn("Request rejected", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrPolicyViolation), errors.Is(err, apperrors.ErrNoAccountsAvailable):
		logger.Warn("Policy check failed", slog.String("error", err.Error()))
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrDuplicate), errors.Is(err, apperrors.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logger.Error("Internal error", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
