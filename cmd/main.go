package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/zvonchat/zvon/config"
	"github.com/zvonchat/zvon/internal/handlers"
	"github.com/zvonchat/zvon/internal/routers"
	"github.com/zvonchat/zvon/internal/services"
	"github.com/zvonchat/zvon/internal/storage"
	"github.com/zvonchat/zvon/internal/store"
	"github.com/zvonchat/zvon/internal/ws"
	"github.com/zvonchat/zvon/pkg/logger"
	"github.com/zvonchat/zvon/pkg/ratelimit"
	"github.com/zvonchat/zvon/pkg/snowflake"
	"github.com/zvonchat/zvon/pkg/utils"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	utils.SetJWTSecret(cfg.JWT.Secret)

	// Redis is optional infrastructure: the presence mirror and rate limiter
	// degrade gracefully without it, all chat state being in process anyway.
	redisClient, err := storage.InitRedis(&cfg.Redis)
	if err != nil {
		appLogger.Warn("redis unavailable, running without presence mirror and rate limiting", zap.Error(err))
		redisClient = nil
	}

	idGen, err := snowflake.NewGenerator(snowflake.Config{})
	if err != nil {
		appLogger.Fatal("failed to initialize id generator", zap.Error(err))
	}

	users := store.NewUserStore()
	blocks := store.NewBlockList()
	convs := store.NewConversationStore(idGen, blocks)

	tracker := storage.NewOnlineTracker(redisClient, 2*time.Minute, appLogger.Logger)
	presence := ws.NewPresence(tracker)

	hub := ws.NewHub(appLogger.Logger, users, convs, blocks, presence)
	go hub.Run()

	authService := services.NewAuthService(users)
	userService := services.NewUserService(users)

	authHandler := handlers.NewAuthHandler(authService, appLogger.Logger)
	userHandler := handlers.NewUserHandler(userService, appLogger.Logger)
	uploadHandler := handlers.NewUploadHandler(&cfg.Upload, appLogger.Logger)

	var limiter ratelimit.Limiter
	if redisClient != nil {
		limiter = ratelimit.NewTokenBucketLimiter(redisClient, appLogger.Logger, true)
	}

	gin.SetMode(cfg.Server.Mode)
	r := gin.Default()

	routers.SetupRoutes(r, cfg, authHandler, userHandler, uploadHandler, hub, limiter)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	appLogger.Info("starting server", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		appLogger.Fatal("server exited", zap.Error(err))
	}
}
