package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"social-agent/infrastructure/configuration"
	"social-agent/infrastructure/realtime"
	httpHandler "social-agent/interfaces/http"
	"social-agent/interfaces/middleware"
)

func InitiateRouter(
	authHandler httpHandler.IAuthHandler,
	publishHandler httpHandler.IPublishHandler,
	publishHub *realtime.Hub,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "https://localhost:3000", "http://localhost:4200"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// published assets are fetched back by Instagram over this path
	router.Static("/uploads", configuration.C.Upload.Dir)

	// OAuth routes stay open: callbacks arrive from the platforms' redirects.
	router.GET("/api/auth/status", authHandler.Status)
	router.POST("/api/auth/:platform", authHandler.GetAuthURL)
	router.GET("/api/auth/:platform/callback", authHandler.Callback)

	api := router.Group("api")
	api.Use(middleware.Auth())
	api.POST("/publish", publishHandler.Publish)
	api.GET("/publish/history", publishHandler.History)
	api.GET("/publish/stream", publishHub.Serve)

	return router
}
