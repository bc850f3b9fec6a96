// Package bootstrap assembles a billing Service and its platform
// collaborators from configuration.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Berobasket/gdx-pay/internal/billing"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/config"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/external/iap"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/metrics"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/sandbox"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/scheduler"
	"github.com/Berobasket/gdx-pay/internal/worker/tasks"
)

// App is a running billing client over the sandbox platform
type App struct {
	Service  *billing.Service
	Platform *sandbox.Platform
	Recorder *metrics.Recorder
	// Redis is nil when REDIS_URL is not set
	Redis *redis.Client

	closers []func()
}

// New builds the billing client described by cfg
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Recorder: metrics.NewRecorder()}

	if cfg.Redis.URL != "" {
		redisClient, err := NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		app.Redis = redisClient
		app.onClose(func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("Failed to close Redis client", zap.Error(err))
			}
		})
	}

	platform, err := newPlatform(cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Platform = platform

	converter, err := newConverter(ctx, cfg.IAP, platform, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	sched, err := app.newScheduler(cfg.Billing, logger)
	if err != nil {
		app.Close()
		return nil, err
	}

	service, err := billing.NewService(billing.Options{
		PackageName: cfg.Billing.PackageName,
		Descriptor: billing.ServiceDescriptor{
			Action:  cfg.Billing.ServiceAction,
			Package: cfg.Billing.ServicePackage,
		},
		Purchase: billing.PurchaseOptions{
			RequestCode:      cfg.Billing.RequestCode,
			RetryDelay:       cfg.Billing.RetryDelay,
			StaleRetryPolicy: billing.StaleRetryPolicy(cfg.Billing.StaleRetryPolicy),
			DecodeTimeout:    cfg.Billing.DecodeTimeout,
		},
		TestOrderPattern: cfg.Billing.TestOrderPattern,
		MaxPurchasePages: cfg.Billing.MaxPurchasePages,
	}, billing.Dependencies{
		Binder:    platform,
		Launcher:  platform,
		Converter: converter,
		Scheduler: sched,
		Registry:  platform,
		Logger:    logger,
		Recorder:  app.Recorder,
	})
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to create billing service: %w", err)
	}
	app.Service = service
	app.onClose(service.Dispose)

	logger.Info("Billing client ready",
		zap.String("package", cfg.Billing.PackageName),
		zap.String("scheduler", cfg.Billing.Scheduler),
		zap.Bool("online_verification", cfg.IAP.GoogleKeyJSON != ""),
	)
	return app, nil
}

// Close disposes the service and releases every backend in reverse order
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// NewRedisClient connects to Redis and checks the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolTimeout = cfg.PoolTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}
	return client, nil
}

func newPlatform(cfg *config.Config, logger *zap.Logger) (*sandbox.Platform, error) {
	opts := sandbox.Options{
		PackageName: cfg.Billing.PackageName,
		BindDelay:   cfg.Sandbox.BindDelay,
	}
	if cfg.Sandbox.ProductsFile != "" {
		catalog, err := sandbox.LoadCatalog(cfg.Sandbox.ProductsFile)
		if err != nil {
			return nil, err
		}
		opts.Catalog = catalog
	}
	platform, err := sandbox.NewPlatform(opts, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to start billing sandbox: %w", err)
	}
	return platform, nil
}

// newConverter verifies against the configured license key, falling back
// to the sandbox's own signing key.
func newConverter(ctx context.Context, cfg config.IAPConfig, platform *sandbox.Platform, logger *zap.Logger) (*iap.Converter, error) {
	publicKey := cfg.PublicKey
	if publicKey == "" {
		key, err := platform.PublicKeyBase64()
		if err != nil {
			return nil, fmt.Errorf("failed to read sandbox public key: %w", err)
		}
		publicKey = key
	}

	var verifier iap.Verifier
	if cfg.GoogleKeyJSON != "" {
		googleVerifier, err := iap.NewGoogleVerifier(ctx, cfg.GoogleKeyJSON)
		if err != nil {
			return nil, err
		}
		verifier = googleVerifier
	}
	return iap.NewConverter(publicKey, verifier, logger), nil
}

func (a *App) newScheduler(cfg config.BillingConfig, logger *zap.Logger) (billing.Scheduler, error) {
	if cfg.Scheduler != config.SchedulerAsynq {
		timers := scheduler.NewTimerScheduler(logger)
		a.onClose(timers.Stop)
		return timers, nil
	}
	if a.Redis == nil {
		return nil, fmt.Errorf("the asynq scheduler needs Redis")
	}

	client := asynq.NewClientFromRedisClient(a.Redis)
	handlers := tasks.NewTaskHandlers(client, logger)
	mux := asynq.NewServeMux()
	tasks.RegisterHandlers(mux, handlers)

	server := tasks.NewServer(a.Redis, handlers, logger)
	if err := server.Start(mux); err != nil {
		return nil, fmt.Errorf("failed to start asynq server: %w", err)
	}
	a.onClose(func() {
		server.Shutdown()
		if n := handlers.Drain(); n > 0 {
			logger.Info("Ran delayed retries left on shutdown", zap.Int("tasks", n))
		}
		if err := client.Close(); err != nil {
			logger.Warn("Failed to close asynq client", zap.Error(err))
		}
	})
	logger.Info("Delayed retries run through asynq", zap.String("queue", handlers.Queue()))
	return handlers, nil
}
