package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/stashpal/stashpal_backend/internal/core/ports/services"
	"github.com/stashpal/stashpal_backend/internal/dto"
	"github.com/stashpal/stashpal_backend/internal/middleware"
)

// allocationHandler handles the income allocation endpoint.
type allocationHandler struct {
	allocationService portssvc.AllocationSvcFacade
	dispatcher        portssvc.NotificationDispatcher
}

func newAllocationHandler(as portssvc.AllocationSvcFacade, d portssvc.NotificationDispatcher) *allocationHandler {
	return &allocationHandler{allocationService: as, dispatcher: d}
}

// registerAllocationRoutes registers routes related to income allocation.
func registerAllocationRoutes(rg *gin.RouterGroup, allocationService portssvc.AllocationSvcFacade, dispatcher portssvc.NotificationDispatcher) {
	h := newAllocationHandler(allocationService, dispatcher)
	rg.POST("/income", h.allocateIncome)
}

func (h *allocationHandler) allocateIncome(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.AllocateIncomeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for AllocateIncome", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	result, events, err := h.allocationService.AllocateIncome(c.Request.Context(), userID, req)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to allocate income")
		return
	}

	logger.Info("Income allocated successfully",
		slog.String("transaction_id", result.MainTransaction.TransactionID),
		slog.Int("allocation_count", len(result.Allocations)))
	c.JSON(http.StatusOK, result)

	h.dispatcher.Dispatch(c.Request.Context(), events)
}
