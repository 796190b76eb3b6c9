package http

import (
	"github.com/gin-gonic/gin"

	"github.com/nutritrack/backend/config"
	"github.com/nutritrack/backend/internal/pkg/logger"
)

// SetupRouter creates and configures the Gin router
func SetupRouter(cfg *config.Config, handler *Handler, log *logger.Logger) *gin.Engine {
	// Set Gin mode based on environment
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Global middleware
	router.Use(RecoveryMiddleware(log))
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.Server.AllowedOrigins))

	// Health check endpoint
	router.GET("/health", handler.HealthCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	v1.Use(RateLimitMiddleware(cfg.RateLimit.PerIP))
	{
		v1.GET("/ingredients/:id/nutrition", handler.IngredientNutrition)
		v1.GET("/recipes/:id/nutrition", handler.RecipeNutrition)
		v1.GET("/meals/:id/nutrition", handler.MealNutrition)

		profiles := v1.Group("/profiles/:id")
		{
			profiles.GET("/summary", handler.ProfileSummary)
			profiles.GET("/malnutrition", handler.Malnutrition)
			profiles.GET("/recommendations", handler.Recommendations)
		}

		v1.POST("/energy", handler.Energy)
	}

	return router
}
