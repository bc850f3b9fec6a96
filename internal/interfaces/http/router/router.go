package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Berobasket/gdx-pay/internal/application/command"
	"github.com/Berobasket/gdx-pay/internal/application/middleware"
	"github.com/Berobasket/gdx-pay/internal/application/query"
	"github.com/Berobasket/gdx-pay/internal/billing"
	"github.com/Berobasket/gdx-pay/internal/infrastructure/logging"
	"github.com/Berobasket/gdx-pay/internal/interfaces/http/handlers"
)

const defaultRateLimitPerMinute = 60

// Options configures the control API
type Options struct {
	Service     *billing.Service
	RateLimiter *middleware.RateLimiter
	// Metrics serves /metrics when set
	Metrics            http.Handler
	RateLimitPerMinute int
	OperationTimeout   time.Duration
	Logger             *zap.Logger
}

// New builds the gin engine serving the billing control API
func New(opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	rateLimiter := opts.RateLimiter
	if rateLimiter == nil {
		rateLimiter = middleware.NewRateLimiter(nil, true, logger)
	}
	svc := opts.Service

	billingHandler := handlers.NewBillingHandler(handlers.BillingHandlerDeps{
		ConnectCmd:       command.NewConnectCommand(svc, logger),
		DisconnectCmd:    command.NewDisconnectCommand(svc),
		PurchaseCmd:      command.NewPurchaseCommand(svc, logger),
		CancelTestCmd:    command.NewCancelTestPurchasesCommand(svc, logger),
		GetProductsQuery: query.NewGetProductsQuery(svc),
		ListPurchasesQ:   query.NewListPurchasesQuery(svc),
		GetStatusQuery:   query.NewGetStatusQuery(svc),
		OperationTimeout: opts.OperationTimeout,
	})

	router := gin.New()
	router.Use(
		gin.Recovery(),
		logging.RequestMiddleware(logger),
	)

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"billing": svc.State().String(),
		})
	})
	if opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	perMinute := opts.RateLimitPerMinute
	if perMinute <= 0 {
		perMinute = defaultRateLimitPerMinute
	}
	perClient := rateLimiter.Middleware(middleware.ByIP, middleware.PerMinute(perMinute))

	// API v1 routes
	v1 := router.Group("/v1")
	v1.Use(perClient)
	{
		v1.GET("/status", billingHandler.GetStatus)
		v1.POST("/connect", billingHandler.Connect)
		v1.POST("/disconnect", billingHandler.Disconnect)
		v1.GET("/products", billingHandler.GetProducts)

		purchases := v1.Group("/purchases")
		purchases.GET("", billingHandler.ListPurchases)
		purchases.POST("",
			rateLimiter.Middleware(middleware.ByIPAndEndpoint, middleware.PurchaseConfig),
			billingHandler.Purchase,
		)

		v1.POST("/test-purchases/cancel", billingHandler.CancelTestPurchases)
	}

	return router
}
