package routes

import (
	"market-cache-api/internal/auth"
	"market-cache-api/internal/handlers"
	"market-cache-api/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Dependencies are the handlers and services the router wires together.
type Dependencies struct {
	Log     zerolog.Logger
	Auth    *handlers.AuthHandler
	Cache   *handlers.CacheHandler
	Market  *handlers.MarketHandler
	Events  *handlers.EventsHandler
	Metrics prometheus.Gatherer
	// Tokens guards the cache management routes. Nil leaves them open.
	Tokens *auth.TokenManager
}

func SetupRoutes(deps Dependencies) *gin.Engine {
	// Create a new GIN Router
	ginRouter := gin.New()
	ginRouter.Use(gin.Recovery(), middleware.RequestLogger(deps.Log))

	// CORS middleware (for frontend integration)
	ginRouter.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// Health check endpoint
	ginRouter.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "ok",
			"message": "Market cache API is running",
		})
	})

	if deps.Metrics != nil {
		ginRouter.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})))
	}

	// Public routes (no authentication required)
	api := ginRouter.Group("/api")
	{
		api.POST("/login", deps.Auth.Login)

		// Market data, served through the caches
		api.GET("/price", deps.Market.GetPrice)
		api.GET("/timeseries", deps.Market.GetTimeseries)
		api.GET("/pairs", deps.Market.GetPairs)
		api.GET("/holders", deps.Market.GetHolders)
		api.GET("/sentiment", deps.Market.GetSentiment)
	}

	// Cache management, protected when operator auth is on
	management := api.Group("/cache")
	if deps.Tokens != nil {
		management.Use(middleware.JWTAuthMiddleware(deps.Tokens))
	}
	{
		management.GET("", deps.Cache.Get)
		management.DELETE("", deps.Cache.Delete)
		management.GET("/ws", deps.Events.Subscribe)
	}

	return ginRouter
}
