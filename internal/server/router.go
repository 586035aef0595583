package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/wallforge/wallsim-backend/internal/handlers"
)

type RouterConfig struct {
	ProfilesHandler   *handlers.ProfilesHandler
	WallConfigHandler *handlers.WallConfigHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
		},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	router.GET("/healthcheck", handlers.HealthCheck)

	api := router.Group("/api")
	{
		api.GET("/profiles/overview", cfg.ProfilesHandler.Overview)
		api.GET("/profiles/overview/:day", cfg.ProfilesHandler.OverviewDay)
		api.GET("/profiles/:profile_id/overview", cfg.ProfilesHandler.ProfileOverview)
		api.GET("/profiles/:profile_id/overview/:day", cfg.ProfilesHandler.ProfileOverviewDay)
		api.GET("/profiles/:profile_id/days/:day", cfg.ProfilesHandler.ProfileDayIce)

		api.POST("/wallconfig", cfg.WallConfigHandler.Upload)
		api.GET("/wallconfig/:config_id/status", cfg.WallConfigHandler.Status)
		api.DELETE("/wallconfig/:config_id", cfg.WallConfigHandler.Delete)
	}

	return router
}
