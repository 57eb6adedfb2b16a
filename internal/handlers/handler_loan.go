package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/stashpal/stashpal_backend/internal/core/ports/services"
	"github.com/stashpal/stashpal_backend/internal/dto"
	"github.com/stashpal/stashpal_backend/internal/middleware"
)

// loanHandler handles HTTP requests for the P2P loan lifecycle.
type loanHandler struct {
	loanService portssvc.LoanSvcFacade
	dispatcher  portssvc.NotificationDispatcher
}

func newLoanHandler(ls portssvc.LoanSvcFacade, d portssvc.NotificationDispatcher) *loanHandler {
	return &loanHandler{loanService: ls, dispatcher: d}
}

// registerLoanRoutes registers routes related to loans.
func registerLoanRoutes(rg *gin.RouterGroup, loanService portssvc.LoanSvcFacade, dispatcher portssvc.NotificationDispatcher) {
	h := newLoanHandler(loanService, dispatcher)

	loans := rg.Group("/loans")
	{
		loans.GET("/eligibility", h.computeEligibility)
		loans.POST("", h.requestLoan)
		loans.GET("", h.listLoans)
		loans.GET("/:id", h.getLoan)
		loans.POST("/:id/approve", h.approveLoan)
		loans.POST("/:id/decline", h.declineLoan)
		loans.POST("/:id/repay", h.repayLoan)
		loans.POST("/:id/writeoff", h.writeOffLoan)
	}
}

func (h *loanHandler) computeEligibility(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	lenderID := c.Query("lenderID")
	if lenderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "lenderID query parameter is required"})
		return
	}

	resp, err := h.loanService.ComputeEligibility(c.Request.Context(), userID, lenderID)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to compute eligibility")
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *loanHandler) requestLoan(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.RequestLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for RequestLoan", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	loan, events, err := h.loanService.RequestLoan(c.Request.Context(), userID, req)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to request loan")
		return
	}

	logger.Info("Loan requested successfully", slog.String("loan_id", loan.LoanID))
	c.JSON(http.StatusCreated, dto.ToLoanResponse(loan))

	h.dispatcher.Dispatch(c.Request.Context(), events)
}

func (h *loanHandler) approveLoan(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ApproveLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for ApproveLoan", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	loan, events, err := h.loanService.ApproveLoan(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to approve loan")
		return
	}

	logger.Info("Loan approved and disbursed", slog.String("loan_id", loan.LoanID))
	c.JSON(http.StatusOK, dto.ToLoanResponse(loan))

	h.dispatcher.Dispatch(c.Request.Context(), events)
}

func (h *loanHandler) declineLoan(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	loan, events, err := h.loanService.DeclineLoan(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to decline loan")
		return
	}

	logger.Info("Loan declined", slog.String("loan_id", loan.LoanID))
	c.JSON(http.StatusOK, dto.ToLoanResponse(loan))

	h.dispatcher.Dispatch(c.Request.Context(), events)
}

func (h *loanHandler) repayLoan(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.RepayLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for Repay", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	loan, events, err := h.loanService.Repay(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to process repayment")
		return
	}

	logger.Info("Repayment applied",
		slog.String("loan_id", loan.LoanID),
		slog.String("remaining", loan.RemainingAmount.String()))
	c.JSON(http.StatusOK, dto.ToLoanResponse(loan))

	h.dispatcher.Dispatch(c.Request.Context(), events)
}

func (h *loanHandler) writeOffLoan(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	loan, events, err := h.loanService.WriteOff(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to write off loan")
		return
	}

	logger.Info("Loan written off", slog.String("loan_id", loan.LoanID))
	c.JSON(http.StatusOK, dto.ToLoanResponse(loan))

	h.dispatcher.Dispatch(c.Request.Context(), events)
}

func (h *loanHandler) getLoan(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	loan, err := h.loanService.GetLoanByID(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondServiceError(c, logger, err, "Failed to retrieve loan")
		return
	}
	c.JSON(http.StatusOK, dto.ToLoanResponse(loan))
}

func (h *loanHandler) listLoans(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var params dto.ListLoansParams
	if err := c.ShouldBindQuery(&params); err != nil {
		logger.Warn("Failed to bind query params for ListLoans", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters: " + err.Error()})
		return
	}

	loans, err := h.loanService.ListLoans(c.Request.Context(), userID, params)
	if err != nil {
		respondServiceError(c, logger, err, "Failed to list loans")
		return
	}
	c.JSON(http.StatusOK, gin.H{"loans": loans})
}
