package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/scansync/internal/api"
	"github.com/hugh/scansync/internal/auth"
	"github.com/hugh/scansync/internal/database"
	"github.com/hugh/scansync/internal/integration"
	"github.com/hugh/scansync/internal/integration/filesource"
	"github.com/hugh/scansync/pkg/config"
	"github.com/hugh/scansync/pkg/queue"
	"github.com/hugh/scansync/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Log.Level)
	slog.SetDefault(logger)

	logger.Info("starting scansync server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Production schemas are owned by SQL migrations.
	if cfg.Server.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis, syncs will not be enqueued", "error", err)
		redisClient.Close()
		redisClient = nil
	}

	var (
		asynqClient *asynq.Client
		inspector   *asynq.Inspector
	)
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		inspector = queue.NewInspector(&cfg.Redis)
	}

	// The server only validates integration names; the worker opens sources.
	registry := integration.NewRegistry()
	filesource.Register(registry)

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		JWTService:     auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry()),
		Registry:       registry,
		AsynqClient:    asynqClient,
		Inspector:      inspector,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	if asynqClient != nil {
		asynqClient.Close()
	}
	if inspector != nil {
		inspector.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}
	if err := database.Close(db); err != nil {
		logger.Error("failed to close database", "error", err)
	}

	logger.Info("server stopped")
}
