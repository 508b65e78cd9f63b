package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/cacheops/cachectl/controllers"
	"github.com/cacheops/cachectl/lib/kubernetes"
	"github.com/cacheops/cachectl/middleware"
)

// SetupRoutes registers all API routes.
func SetupRoutes(router *gin.Engine, client *kubernetes.Client) {
	// Public routes
	router.GET("/", controllers.HealthCheck)

	// Auth routes
	auth := router.Group("/api/auth")
	{
		auth.POST("/login", controllers.Login)
	}

	// API routes, operator token required
	cacheController := controllers.NewCacheController(client)
	api := router.Group("/api")
	api.Use(middleware.AuthMiddleware())
	{
		cache := api.Group("/cache")
		{
			cache.POST("/rollout", cacheController.Rollout)
			cache.GET("/inspect", cacheController.Inspect)
			cache.GET("/connection", cacheController.Connection)
			cache.DELETE("/", cacheController.Delete)
			cache.GET("/history", cacheController.History)
		}
	}
}
