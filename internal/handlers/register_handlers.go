package handlers

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ulule/limiter/v3"
	limitermemory "github.com/ulule/limiter/v3/drivers/store/memory"

	portssvc "github.com/stashpal/stashpal_backend/internal/core/ports/services"
	"github.com/stashpal/stashpal_backend/internal/middleware"
	"github.com/stashpal/stashpal_backend/internal/platform/config"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
) {
	registerCustomValidators()

	r.Use(cors.Default())

	// Health check and metrics are public and unthrottled.
	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	rateLimit := buildRateLimit(cfg)

	// Public authentication routes.
	public := r.Group("/api/v1")
	public.Use(rateLimit)
	registerAuthRoutes(public, services.User)

	// Authenticated API v1 routes.
	setupAPIV1Routes(r, cfg, services, rateLimit)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	rateLimit gin.HandlerFunc,
) {
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret), rateLimit)

	registerUserRoutes(v1, services.User)
	registerAccountRoutes(v1, services.Account)
	registerAllocationRoutes(v1, services.Allocation, services.Dispatcher)
	registerLoanRoutes(v1, services.Loan, services.Dispatcher)
	registerAutoDeductRoutes(v1, services.AutoDeduct)
}

func buildRateLimit(cfg *config.Config) gin.HandlerFunc {
	rate, err := limiter.NewRateFromFormatted(cfg.RateLimit)
	if err != nil {
		rate, _ = limiter.NewRateFromFormatted("120-M")
	}
	store := limitermemory.NewStore()
	return middleware.RateLimit(limiter.New(store, rate))
}
