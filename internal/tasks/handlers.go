package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/gateway"
	"github.com/hugh/scansync/internal/integration"
	"github.com/hugh/scansync/internal/reconcile"
	"github.com/hugh/scansync/pkg/config"
	"gorm.io/gorm"
)

type Handler struct {
	db       *gorm.DB
	logger   *slog.Logger
	registry *integration.Registry
	cfg      config.SyncConfig
}

func NewHandler(db *gorm.DB, logger *slog.Logger, registry *integration.Registry, cfg config.SyncConfig) *Handler {
	return &Handler{
		db:       db,
		logger:   logger,
		registry: registry,
		cfg:      cfg,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeSyncFindings, h.HandleSyncFindings)
	mux.HandleFunc(TypeSyncAssets, h.HandleSyncAssets)
	mux.HandleFunc(TypeScheduledSync, h.HandleScheduledSync)
}

func (h *Handler) HandleSyncFindings(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	return h.runSync(ctx, models.SyncKindFindings, payload, t.ResultWriter())
}

func (h *Handler) HandleSyncAssets(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	return h.runSync(ctx, models.SyncKindAssets, payload, t.ResultWriter())
}

// HandleScheduledSync refreshes assets before findings so checklists can
// resolve assets created by the same run.
func (h *Handler) HandleScheduledSync(ctx context.Context, t *asynq.Task) error {
	payload, err := decodePayload(t)
	if err != nil {
		return err
	}
	payload.RunID = uuid.Nil

	if err := h.runSync(ctx, models.SyncKindAssets, payload, nil); err != nil {
		return err
	}
	return h.runSync(ctx, models.SyncKindFindings, payload, nil)
}

func decodePayload(t *asynq.Task) (SyncPayload, error) {
	var payload SyncPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("unmarshal payload: %w: %w", err, asynq.SkipRetry)
	}
	return payload, nil
}

func (h *Handler) runSync(ctx context.Context, kind models.SyncKind, payload SyncPayload, w *asynq.ResultWriter) error {
	run, err := h.loadOrCreateRun(kind, payload)
	if err != nil {
		return err
	}
	logger := h.logger.With("run_id", run.ID, "kind", kind, "plan_id", payload.PlanID)

	logger.Info("starting sync", "integration", payload.Integration, "source", payload.Source)

	if err := h.updateRunStatus(run.ID, models.SyncRunStatusRunning); err != nil {
		return err
	}

	integ, err := h.registry.New(payload.Integration, payload.Source)
	if err != nil {
		h.failRun(logger, run.ID, err)
		if errors.Is(err, integration.ErrUnknownIntegration) {
			return fmt.Errorf("building integration: %w: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("building integration: %w", err)
	}

	if payload.UserID != "" {
		ctx = gateway.WithUserID(ctx, payload.UserID)
	}
	gw := gateway.NewRateLimited(
		gateway.NewStore(h.db, h.cfg.DefaultUserID),
		h.cfg.GatewayRPS,
		h.cfg.GatewayBurst,
	)
	engineCfg := &reconcile.Config{
		FindingWorkers: h.cfg.FindingWorkers,
		AssetWorkers:   h.cfg.AssetWorkers,
		CacheSize:      h.cfg.CacheSize,
		Progress:       reconcile.LogProgress{Logger: logger},
	}

	var report *reconcile.Report
	switch kind {
	case models.SyncKindFindings:
		report, err = reconcile.SyncFindings(ctx, integ, gw, payload.PlanID, payload.Params, logger, engineCfg)
	case models.SyncKindAssets:
		report, err = reconcile.SyncAssets(ctx, integ, gw, payload.PlanID, payload.Params, logger, engineCfg)
	}
	if err != nil {
		h.failRun(logger, run.ID, err)
		return err
	}

	if err := h.completeRun(run, report); err != nil {
		return err
	}
	if w != nil {
		if data, err := json.Marshal(report); err == nil {
			_, _ = w.Write(data)
		}
	}

	logger.Info("completed sync",
		"processed", report.Processed,
		"failed", report.Failed,
		"duration", report.Duration(),
	)
	return nil
}

func (h *Handler) loadOrCreateRun(kind models.SyncKind, payload SyncPayload) (*models.SyncRun, error) {
	if payload.RunID != uuid.Nil {
		var run models.SyncRun
		if err := h.db.First(&run, "id = ?", payload.RunID).Error; err != nil {
			return nil, fmt.Errorf("loading sync run %s: %w: %w", payload.RunID, err, asynq.SkipRetry)
		}
		return &run, nil
	}

	run := &models.SyncRun{
		PlanID:      payload.PlanID,
		Kind:        kind,
		Integration: payload.Integration,
		Source:      payload.Source,
		UserID:      payload.UserID,
		Status:      models.SyncRunStatusPending,
	}
	if err := h.db.Create(run).Error; err != nil {
		return nil, fmt.Errorf("creating sync run: %w", err)
	}
	return run, nil
}

func (h *Handler) updateRunStatus(runID uuid.UUID, status models.SyncRunStatus) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}

	if status == models.SyncRunStatusRunning {
		updates["started_at"] = time.Now().Unix()
	}

	return h.db.Model(&models.SyncRun{}).Where("id = ?", runID).Updates(updates).Error
}

func (h *Handler) failRun(logger *slog.Logger, runID uuid.UUID, cause error) {
	logger.Error("sync failed", "error", cause)

	updates := map[string]interface{}{
		"status":       models.SyncRunStatusFailed,
		"error":        cause.Error(),
		"updated_at":   time.Now(),
		"completed_at": time.Now().Unix(),
	}
	if err := h.db.Model(&models.SyncRun{}).Where("id = ?", runID).Updates(updates).Error; err != nil {
		logger.Error("failed to update sync run", "error", err)
	}
}

func (h *Handler) completeRun(run *models.SyncRun, report *reconcile.Report) error {
	if err := h.db.First(run, "id = ?", run.ID).Error; err != nil {
		return fmt.Errorf("reloading sync run %s: %w", run.ID, err)
	}

	run.Status = models.SyncRunStatusCompleted
	run.CompletedAt = time.Now().Unix()
	run.Processed = report.Processed
	run.Succeeded = report.Succeeded
	run.Failed = report.Failed
	run.Errors = report.Errors

	if err := h.db.Save(run).Error; err != nil {
		return fmt.Errorf("saving sync run %s: %w", run.ID, err)
	}
	return nil
}
