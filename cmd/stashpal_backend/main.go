package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	portssvc "github.com/stashpal/stashpal_backend/internal/core/ports/services"
	"github.com/stashpal/stashpal_backend/internal/core/services"
	"github.com/stashpal/stashpal_backend/internal/handlers"
	"github.com/stashpal/stashpal_backend/internal/middleware"
	"github.com/stashpal/stashpal_backend/internal/platform/config"
	"github.com/stashpal/stashpal_backend/internal/repositories/database/pgsql"
	"github.com/stashpal/stashpal_backend/pkg/database"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("Failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database connection pool (for application use)
	dbPool, err := database.NewPgxPool(ctx, cfg.DatabaseURL, cfg.EnableDBCheck)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer dbPool.Close()
	logger.Info("Database connection pool established.")

	if err := runMigrations(cfg, logger); err != nil {
		logger.Error("Failed to apply migrations", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware (logging, recovery)
	r.Use(middleware.StructuredLoggingMiddleware(logger), gin.Recovery())

	if err := r.SetTrustedProxies(nil); err != nil {
		logger.Error("Failed to set trusted proxies", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repos := pgsql.NewRepositoryProvider(dbPool)
	txManager := pgsql.NewPgxTxManager(dbPool)
	serviceContainer := services.NewServiceContainer(txManager, repos, cfg)

	handlers.RegisterRoutes(r, cfg, serviceContainer)

	// Auto-deduct scheduler trigger. One batch per interval, starting one
	// interval after boot.
	go runAutoDeductLoop(ctx, cfg, serviceContainer.AutoDeduct, logger)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Server starting", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed to run", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("Server exited.")
}

// runMigrations applies all pending up migrations through a temporary
// database/sql connection using the pgx stdlib driver.
func runMigrations(cfg *config.Config, logger *slog.Logger) error {
	logger.Info("Running database migrations...")

	migrationDB, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := migrationDB.Close(); cerr != nil {
			logger.Error("Error closing migration DB connection", slog.String("error", cerr.Error()))
		}
	}()
	if err := migrationDB.Ping(); err != nil {
		return err
	}

	driver, err := postgres.WithInstance(migrationDB, &postgres.Config{})
	if err != nil {
		return err
	}

	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		return err
	}

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		return err
	}

	sourceErr, dbErr := m.Close()
	if sourceErr != nil {
		return sourceErr
	}
	if dbErr != nil {
		return dbErr
	}

	if err == migrate.ErrNoChange {
		logger.Info("No new migrations to apply.")
	} else {
		logger.Info("Database migrations applied successfully.")
	}
	return nil
}

func runAutoDeductLoop(ctx context.Context, cfg *config.Config, svc portssvc.AutoDeductSvcFacade, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.AutoDeductInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Auto-deduct scheduler stopped.")
			return
		case <-ticker.C:
			batchLogger := logger.With(slog.String("component", "autodeduct"))
			batchCtx := middleware.WithLogger(ctx, batchLogger)

			summary, err := svc.RunBatch(batchCtx)
			if err != nil {
				batchLogger.Error("Auto-deduct batch failed", slog.String("error", err.Error()))
				continue
			}
			batchLogger.Info("Auto-deduct batch completed",
				slog.Int("scanned", summary.Scanned),
				slog.Int("attempted", summary.Attempted),
				slog.Int("succeeded", summary.Succeeded),
				slog.Int("insufficient_funds", summary.InsufficientFunds),
				slog.Int("failed", summary.Failed))
		}
	}
}
