package main

import (
	"context"
	"fmt"
	"os"

	"github.com/wallforge/wallsim-backend/internal/cache"
	"github.com/wallforge/wallsim-backend/internal/clients/redis"
	"github.com/wallforge/wallsim-backend/internal/config"
	"github.com/wallforge/wallsim-backend/internal/db"
	"github.com/wallforge/wallsim-backend/internal/handlers"
	"github.com/wallforge/wallsim-backend/internal/locks"
	"github.com/wallforge/wallsim-backend/internal/logger"
	"github.com/wallforge/wallsim-backend/internal/repos"
	"github.com/wallforge/wallsim-backend/internal/server"
	"github.com/wallforge/wallsim-backend/internal/services"
	"github.com/wallforge/wallsim-backend/internal/utils"
	"github.com/wallforge/wallsim-backend/internal/wallsim"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Env
	log.Info("Loading environment variables from main...")
	appCfg := config.Load(log)

	// Wall configuration
	wallCfg, err := wallsim.LoadConfigFile(appCfg.WallConfigPath)
	if err != nil {
		log.Error("Could not load wall config", "path", appCfg.WallConfigPath, "error", err)
		os.Exit(1)
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis
	redisCache, err := redis.NewCache(log)
	if err != nil {
		log.Error("Redis init failed", "error", err)
		os.Exit(1)
	}
	defer redisCache.Close()

	// Repos
	log.Info("Setting up Repos from main...")
	txRunner := repos.NewGormTxRunner(thePG)
	wallConfigRepo := repos.NewWallConfigRepo(thePG, log)
	wallRepo := repos.NewWallRepo(thePG, log)
	wallProfileRepo := repos.NewWallProfileRepo(thePG, log)
	wallProgressRepo := repos.NewWallProgressRepo(thePG, log)
	batchRunRepo := repos.NewBatchRunRepo(thePG, log)

	// Locks and cache tiers
	pgLock := locks.NewAdvisoryLocker(thePG, log)
	redisLock := locks.NewRedisLocker(redisCache.Client(), appCfg.Cache.TransientTTL, log)
	layer := cache.NewLayer(redisCache, log)

	// Services
	log.Info("Setting up Services from main...")
	limits := wallsim.Limits{
		MaxSectionHeight:      appCfg.Simulation.MaxSectionHeight,
		IcePerFoot:            appCfg.Simulation.IcePerFoot,
		IceCostPerCubicYard:   appCfg.Simulation.IceCostPerCubicYard,
		MaxProfileLength:      appCfg.Simulation.MaxProfileLength,
		MaxProfiles:           appCfg.Simulation.MaxProfiles,
		MaxConcurrentCrews:    appCfg.Simulation.MaxConcurrentCrews,
		MaxConcurrentSections: appCfg.Simulation.MaxConcurrentSections,
	}
	sim := wallsim.NewSimulator(limits, log)
	errTracker := services.NewErrorTracker(redisCache.Client(), log)
	wallService, err := services.NewWallService(wallCfg, appCfg, sim, txRunner,
		wallConfigRepo, wallRepo, wallProfileRepo, wallProgressRepo,
		layer, pgLock, redisLock, errTracker, log)
	if err != nil {
		log.Error("Could not init WallService", "error", err)
		os.Exit(1)
	}
	orchService := services.NewOrchestratorService(appCfg, sim, wallService, txRunner,
		wallConfigRepo, batchRunRepo, layer, redisLock, errTracker, log)
	orchService.StartWorker(context.Background())

	// Handlers
	log.Info("Setting up handlers from main...")
	profilesHandler := handlers.NewProfilesHandler(wallService)
	wallConfigHandler := handlers.NewWallConfigHandler(wallService, orchService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		ProfilesHandler:   profilesHandler,
		WallConfigHandler: wallConfigHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Warn("Server failed", "error", err)
	}
}
