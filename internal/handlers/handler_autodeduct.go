package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/stashpal/stashpal_backend/internal/core/ports/services"
	"github.com/stashpal/stashpal_backend/internal/middleware"
)

// autoDeductHandler exposes a manual trigger for the auto-deduct batch, useful
// for operations and for environments without the background ticker.
type autoDeductHandler struct {
	autoDeductService portssvc.AutoDeductSvcFacade
}

func newAutoDeductHandler(ads portssvc.AutoDeductSvcFacade) *autoDeductHandler {
	return &autoDeductHandler{autoDeductService: ads}
}

func registerAutoDeductRoutes(rg *gin.RouterGroup, autoDeductService portssvc.AutoDeductSvcFacade) {
	h := newAutoDeductHandler(autoDeductService)
	rg.POST("/internal/autodeduct/run", h.runBatch)
}

func (h *autoDeductHandler) runBatch(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	if _, ok := middleware.GetUserIDFromContext(c); !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	summary, err := h.autoDeductService.RunBatch(c.Request.Context())
	if err != nil {
		respondServiceError(c, logger, err, "Failed to run auto-deduct batch")
		return
	}

	logger.Info("Auto-deduct batch triggered",
		slog.Int("scanned", summary.Scanned),
		slog.Int("succeeded", summary.Succeeded),
		slog.Int("failed", summary.Failed),
	)
	c.JSON(http.StatusOK, summary)
}
