package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/hugh/scansync/internal/database"
	"github.com/hugh/scansync/internal/integration"
	"github.com/hugh/scansync/internal/integration/filesource"
	"github.com/hugh/scansync/internal/tasks"
	"github.com/hugh/scansync/pkg/config"
	"github.com/hugh/scansync/pkg/queue"
	"github.com/hugh/scansync/pkg/util"
	"github.com/joho/godotenv"
)

const workerConcurrency = 4

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env, cfg.Log.Level)
	slog.SetDefault(logger)

	logger.Info("starting scansync worker")

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	registry := integration.NewRegistry()
	filesource.Register(registry)

	handler := tasks.NewHandler(db, logger, registry, cfg.Sync)
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	srv := queue.NewServer(&cfg.Redis, workerConcurrency)

	var scheduler *asynq.Scheduler
	if cfg.Sync.ScheduleEnabled() {
		scheduler, err = newScheduler(cfg, logger)
		if err != nil {
			logger.Error("failed to set up sync schedule", "error", err)
			os.Exit(1)
		}
	}

	if err := srv.Start(mux); err != nil {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}
	if scheduler != nil {
		if err := scheduler.Start(); err != nil {
			logger.Error("scheduler error", "error", err)
			srv.Shutdown()
			os.Exit(1)
		}
	}

	logger.Info("worker started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	if scheduler != nil {
		scheduler.Shutdown()
	}
	srv.Shutdown()

	if err := database.Close(db); err != nil {
		logger.Error("failed to close database", "error", err)
	}

	logger.Info("worker stopped")
}

// newScheduler registers the periodic assets-then-findings sync.
func newScheduler(cfg *config.Config, logger *slog.Logger) (*asynq.Scheduler, error) {
	if err := util.ValidateCronExpr(cfg.Sync.Schedule); err != nil {
		return nil, err
	}

	task, err := tasks.NewScheduledSyncTask(tasks.SyncPayload{
		PlanID:      cfg.Sync.SchedulePlanID,
		Integration: cfg.Sync.ScheduleIntegration,
		Source:      cfg.Sync.ScheduleSource,
		UserID:      cfg.Sync.DefaultUserID,
	})
	if err != nil {
		return nil, err
	}

	scheduler := queue.NewScheduler(&cfg.Redis)
	entryID, err := scheduler.Register(cfg.Sync.Schedule, task, asynq.Queue(queue.QueueLow))
	if err != nil {
		return nil, err
	}

	next, _ := util.NextCronTime(cfg.Sync.Schedule, time.Now().UTC())
	logger.Info("scheduled sync registered",
		"entry_id", entryID,
		"schedule", cfg.Sync.Schedule,
		"plan_id", cfg.Sync.SchedulePlanID,
		"integration", cfg.Sync.ScheduleIntegration,
		"next_run", next,
	)
	return scheduler, nil
}
