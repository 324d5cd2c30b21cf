package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/hugh/scansync/internal/api/handlers"
	"github.com/hugh/scansync/internal/api/middleware"
	"github.com/hugh/scansync/internal/auth"
	"github.com/hugh/scansync/internal/integration"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          *redis.Client
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	Registry       *integration.Registry
	AsynqClient    *asynq.Client
	Inspector      *asynq.Inspector
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))

	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Auth-Token"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Typed nils must not reach the handler's interfaces.
	var enqueuer handlers.Enqueuer
	if cfg.AsynqClient != nil {
		enqueuer = cfg.AsynqClient
	}
	var inspector handlers.TaskInspector
	if cfg.Inspector != nil {
		inspector = cfg.Inspector
	}

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	syncHandler := handlers.NewSyncHandler(cfg.DB, enqueuer, inspector, cfg.Registry, cfg.Logger)

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTService))
		if cfg.RateLimitReqs > 0 {
			r.Use(middleware.RateLimitByUser(cfg.RateLimitReqs, cfg.RateLimitSecs))
		}

		r.Get("/integrations", syncHandler.Integrations)

		r.Route("/plans/{planID}/sync", func(r chi.Router) {
			r.Post("/findings", syncHandler.SyncFindings)
			r.Post("/assets", syncHandler.SyncAssets)
		})

		r.Route("/sync-runs", func(r chi.Router) {
			r.Get("/", syncHandler.List)
			r.Get("/{id}", syncHandler.Get)
		})
	})

	return &Router{r}
}
