package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Berobasket/gdx-pay/internal/application/middleware"
	"github.com/Berobasket/gdx-pay/internal/bootstrap"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/config"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/logging"
	"github.com/Berobasket/gdx-pay/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	if err := logging.Init(&cfg.Sentry); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Sync()

	logging.Logger.Info("Starting billing control API",
		zap.Int("port", cfg.Server.Port),
		zap.String("environment", cfg.Sentry.Environment),
		zap.String("package", cfg.Billing.PackageName),
	)

	// Billing client over the sandbox platform, with Redis when configured
	ctx := context.Background()
	app, err := bootstrap.New(ctx, cfg, logging.WithComponent("billing"))
	if err != nil {
		logging.Logger.Fatal("Failed to start billing client", zap.Error(err))
	}
	defer app.Close()

	app.Service.Connect(nil)

	rateLimiter := middleware.NewRateLimiter(app.Redis, true, logging.WithComponent("rate-limiter")) // fail open

	// Setup Gin router
	if cfg.Sentry.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler := router.New(router.Options{
		Service:            app.Service,
		RateLimiter:        rateLimiter,
		Metrics:            app.Recorder.Handler(),
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		OperationTimeout:   cfg.Server.PurchaseTimeout,
		Logger:             logging.Logger,
	})

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown
	go func() {
		logging.Logger.Info("Server listening",
			zap.String("addr", srv.Addr),
			zap.Bool("rate_limited", rateLimiter.Enabled()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logging.Logger.Info("Server exited")
}
