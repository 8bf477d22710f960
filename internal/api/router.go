package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vitrineshop/marketapi/internal/api/handlers"
	"github.com/vitrineshop/marketapi/internal/api/middleware"
	"github.com/vitrineshop/marketapi/internal/config"
	"github.com/vitrineshop/marketapi/internal/repository"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, repos *repository.Repositories, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	// Non-POST to the webhook path must answer 405, not 404
	router.HandleMethodNotAllowed = true

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))

	// Root: friendly response so GET / returns 200 instead of 404
	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "Marketplace API",
			"endpoints": []string{
				"GET /health",
				"POST /webhooks/payment",
				"GET /v1/cart",
				"POST /v1/shipping/quote",
				"POST /v1/checkout",
				"GET /v1/purchases/:id",
				"GET /v1/affiliation/status",
			},
		})
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Payment processor webhook: recipient/KYC events update affiliation accounts
	router.POST("/webhooks/payment", handlers.HandlePaymentWebhook(cfg, repos, logger))

	// API v1 routes (require authentication)
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(repos, logger))
	{
		v1.GET("/cart", handlers.HandleGetCart(repos, logger))
		v1.POST("/cart/items", handlers.HandleAddCartLine(repos, logger))
		v1.PATCH("/cart/items/:id", handlers.HandleUpdateCartLine(repos, logger))

		v1.GET("/addresses", handlers.HandleListAddresses(repos, logger))
		v1.POST("/addresses", handlers.HandleCreateAddress(repos, logger))

		v1.POST("/shipping/quote", handlers.HandleShippingQuote(cfg, repos, logger))

		checkout := v1.Group("")
		checkout.Use(middleware.IdempotencyMiddleware(repos, logger))
		{
			checkout.POST("/checkout", handlers.HandleCheckout(cfg, repos, logger))
		}
		v1.POST("/checkout/:id/charge", handlers.HandleObtainCharge(cfg, repos, logger))

		v1.GET("/purchases", handlers.HandleListPurchases(repos, logger))
		v1.GET("/purchases/:id", handlers.HandleGetPurchase(repos, logger))
		v1.POST("/purchases/:id/payment-check", handlers.HandleCheckPayment(cfg, repos, logger))
		v1.POST("/purchases/:id/cancel", handlers.HandleCancelPurchase(cfg, repos, logger))

		v1.POST("/affiliation/register", handlers.HandleRegisterSeller(cfg, repos, logger))
		v1.GET("/affiliation/status", handlers.HandleAffiliationStatus(repos, logger))
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal server error",
			"details": fmt.Sprintf("%v", recovered),
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
		)
	}
}
