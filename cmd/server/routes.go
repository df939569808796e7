package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"stripe-minter.backend/internal/interfaces/http/handlers"
	"stripe-minter.backend/internal/interfaces/http/middleware"
)

const healthCheckTimeout = 2 * time.Second

type routeDeps struct {
	webhookHandler  *handlers.WebhookHandler
	checkoutHandler *handlers.CheckoutHandler
	opsHandler      *handlers.OpsHandler
	operatorAuth    []gin.HandlerFunc
	metricsHandler  http.Handler
	allowedOrigins  []string
	pingers         map[string]func(ctx context.Context) error
}

func newRouter(d routeDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())

	applyCORSMiddleware(r, d.allowedOrigins)
	registerHealthRoute(r, d.pingers)
	if d.metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(d.metricsHandler))
	}
	registerRoutes(r, d)
	return r
}

func applyCORSMiddleware(r *gin.Engine, origins []string) {
	corsConfig := cors.DefaultConfig()
	if len(origins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.IdempotencyHeader, middleware.RequestIDHeader}
	corsConfig.ExposeHeaders = []string{middleware.RequestIDHeader}
	r.Use(cors.New(corsConfig))
}

func registerHealthRoute(r *gin.Engine, pingers map[string]func(ctx context.Context) error) {
	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		defer cancel()

		checks := gin.H{}
		status := http.StatusOK
		for name, ping := range pingers {
			if err := ping(ctx); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{
			"status":  state,
			"service": "stripe-minter",
			"checks":  checks,
		})
	})
}

func registerRoutes(r *gin.Engine, d routeDeps) {
	r.GET("/", d.checkoutHandler.Index)
	r.POST("/webhook", d.webhookHandler.HandleStripeWebhook)
	r.POST("/create-checkout-session", d.checkoutHandler.CreateCheckoutSession)
	r.POST("/cancel-subscription", middleware.IdempotencyMiddleware(), d.checkoutHandler.CancelSubscription)
	r.GET("/nft-metadata", d.checkoutHandler.GetNFTMetadata)

	ops := r.Group("/ops")
	ops.Use(d.operatorAuth...)
	{
		ops.GET("/failed-jobs", d.opsHandler.ListFailedJobs)
		ops.POST("/failed-jobs/:id/retry", d.opsHandler.RetryFailedJob)
		ops.GET("/queue/stats", d.opsHandler.QueueStats)
	}
}
