package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"poll-service/internal/config"
	"poll-service/internal/poll"
	"poll-service/internal/server/middleware"
	"poll-service/internal/websocket"
)

// SetupRoutes configures all routes. Reads are public; mutations require
// a resolved caller and are rate limited per user, public reads per IP.
func SetupRoutes(router *gin.Engine, cfg *config.Config, pollHandler *poll.Handler, guestHandler *GuestHandler, rateLimiter *middleware.RateLimitMiddleware, hub *websocket.Hub) {
	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check route
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Real-time event channel; anonymous connections may subscribe.
	router.GET("/ws", func(c *gin.Context) {
		userID := ""
		if caller := middleware.CallerFromContext(c.Request.Context()); caller != nil {
			userID = caller.ID
		}
		websocket.ServeWS(hub, c.Writer, c.Request, userID)
	})

	api := router.Group("/api")
	{
		api.POST("/guest", rateLimiter.RateLimitIP(cfg.RateLimit.Requests, cfg.RateLimit.Window), guestHandler.Login)

		polls := api.Group("/polls")
		{
			polls.GET("", rateLimiter.RateLimitIP(cfg.RateLimit.Requests, cfg.RateLimit.Window), pollHandler.List)
			polls.GET("/:id", rateLimiter.RateLimitIP(cfg.RateLimit.Requests, cfg.RateLimit.Window), pollHandler.Get)

			authed := polls.Group("")
			authed.Use(middleware.RequireIdentity())
			authed.Use(rateLimiter.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
			{
				authed.POST("", pollHandler.Create)
				authed.POST("/:id/vote", pollHandler.CastVote)
				authed.POST("/:id/like", pollHandler.ToggleLike)
				authed.POST("/:id/reconcile", pollHandler.Reconcile)
				authed.DELETE("/:id", pollHandler.Delete)
			}
		}
	}
}
