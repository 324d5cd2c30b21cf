package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/scansync/internal/api/dto"
	"github.com/hugh/scansync/internal/api/middleware"
	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/integration"
	"github.com/hugh/scansync/internal/tasks"
	"github.com/hugh/scansync/pkg/queue"
	"gorm.io/gorm"
)

const syncMaxRetry = 3

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskInspector is satisfied by *asynq.Inspector.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

type SyncHandler struct {
	db        *gorm.DB
	enqueuer  Enqueuer
	inspector TaskInspector
	registry  *integration.Registry
	logger    *slog.Logger
}

// NewSyncHandler creates the sync endpoints. With a nil enqueuer runs are
// recorded but stay pending; with a nil inspector responses carry no task
// state.
func NewSyncHandler(db *gorm.DB, enqueuer Enqueuer, inspector TaskInspector, registry *integration.Registry, logger *slog.Logger) *SyncHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SyncHandler{
		db:        db,
		enqueuer:  enqueuer,
		inspector: inspector,
		registry:  registry,
		logger:    logger,
	}
}

func syncRunToResponse(run *models.SyncRun) dto.SyncRunResponse {
	return dto.SyncRunResponse{
		ID:          run.ID.String(),
		PlanID:      run.PlanID,
		Kind:        string(run.Kind),
		Integration: run.Integration,
		Source:      run.Source,
		UserID:      run.UserID,
		Status:      string(run.Status),
		StartedAt:   run.StartedAt,
		CompletedAt: run.CompletedAt,
		Error:       run.Error,
		Processed:   run.Processed,
		Succeeded:   run.Succeeded,
		Failed:      run.Failed,
		Errors:      run.Errors,
		TaskID:      run.TaskID,
		CreatedAt:   run.CreatedAt.Format(time.RFC3339),
	}
}

// SyncFindings handles POST /api/v1/plans/{planID}/sync/findings
func (h *SyncHandler) SyncFindings(w http.ResponseWriter, r *http.Request) {
	h.enqueueSync(w, r, models.SyncKindFindings)
}

// SyncAssets handles POST /api/v1/plans/{planID}/sync/assets
func (h *SyncHandler) SyncAssets(w http.ResponseWriter, r *http.Request) {
	h.enqueueSync(w, r, models.SyncKindAssets)
}

func (h *SyncHandler) enqueueSync(w http.ResponseWriter, r *http.Request, kind models.SyncKind) {
	planID, err := strconv.ParseUint(chi.URLParam(r, "planID"), 10, 64)
	if err != nil || planID == 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid plan ID"})
		return
	}

	var req dto.SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if verrs := req.Validate(); len(verrs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: verrs})
		return
	}
	if !h.registry.Has(req.Integration) {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Details: map[string]string{"integration": "Unknown integration"},
		})
		return
	}

	var plan models.SecurityPlan
	if err := h.db.WithContext(r.Context()).First(&plan, uint(planID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Security plan not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load security plan"})
		return
	}

	run := models.SyncRun{
		PlanID:      plan.ID,
		Kind:        kind,
		Integration: req.Integration,
		Source:      req.Source,
		UserID:      middleware.GetUserID(r.Context()),
		Status:      models.SyncRunStatusPending,
	}
	if err := h.db.WithContext(r.Context()).Create(&run).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create sync run"})
		return
	}

	task, err := tasks.NewSyncTask(kind, tasks.SyncPayload{
		RunID:       run.ID,
		PlanID:      run.PlanID,
		Integration: run.Integration,
		Source:      run.Source,
		UserID:      run.UserID,
		Params:      req.Params,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create sync task"})
		return
	}

	if h.enqueuer != nil {
		info, err := h.enqueuer.EnqueueContext(r.Context(), task,
			asynq.Queue(queue.QueueDefault),
			asynq.TaskID(run.ID.String()),
			asynq.MaxRetry(syncMaxRetry),
		)
		if err != nil {
			h.logger.Error("failed to enqueue sync task", "run_id", run.ID, "error", err)
			if uerr := h.db.Model(&run).Updates(map[string]interface{}{
				"status":       models.SyncRunStatusFailed,
				"error":        "enqueue failed: " + err.Error(),
				"completed_at": time.Now().Unix(),
			}).Error; uerr != nil {
				h.logger.Error("failed to mark sync run failed", "run_id", run.ID, "error", uerr)
			}
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to enqueue sync task"})
			return
		}
		// Already queued. Without task_id the run just reports no live state.
		if err := h.db.Model(&run).Update("task_id", info.ID).Error; err != nil {
			h.logger.Error("failed to record task id", "run_id", run.ID, "task_id", info.ID, "error", err)
		}
		run.TaskID = info.ID
	}

	writeJSON(w, http.StatusAccepted, syncRunToResponse(&run))
}

// List handles GET /api/v1/sync-runs
func (h *SyncHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	pagination := dto.PaginationParams{Page: page, PerPage: perPage}
	pagination.Normalize()

	query := h.db.WithContext(r.Context()).Model(&models.SyncRun{})

	if planID := r.URL.Query().Get("plan_id"); planID != "" {
		id, err := strconv.ParseUint(planID, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid plan ID"})
			return
		}
		query = query.Where("plan_id = ?", uint(id))
	}
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if kind := r.URL.Query().Get("kind"); kind != "" {
		query = query.Where("kind = ?", kind)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count sync runs"})
		return
	}

	var runs []models.SyncRun
	if err := query.
		Order("created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&runs).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list sync runs"})
		return
	}

	response := make([]dto.SyncRunResponse, len(runs))
	for i := range runs {
		response[i] = syncRunToResponse(&runs[i])
	}

	totalPages := int(total) / pagination.PerPage
	if int(total)%pagination.PerPage > 0 {
		totalPages++
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       response,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: totalPages,
	})
}

// Get handles GET /api/v1/sync-runs/{id}
func (h *SyncHandler) Get(w http.ResponseWriter, r *http.Request) {
	runID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid sync run ID"})
		return
	}

	var run models.SyncRun
	if err := h.db.WithContext(r.Context()).Where("id = ?", runID).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Sync run not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get sync run"})
		return
	}

	resp := syncRunToResponse(&run)
	resp.TaskState = h.taskState(&run)
	writeJSON(w, http.StatusOK, resp)
}

// taskState asks the queue about unfinished runs. Finished tasks may already
// be gone from redis, so lookup errors are not reported.
func (h *SyncHandler) taskState(run *models.SyncRun) string {
	if h.inspector == nil || run.TaskID == "" {
		return ""
	}
	if run.Status != models.SyncRunStatusPending && run.Status != models.SyncRunStatusRunning {
		return ""
	}

	info, err := h.inspector.GetTaskInfo(queue.QueueDefault, run.TaskID)
	if err != nil {
		return ""
	}
	return info.State.String()
}

// Integrations handles GET /api/v1/integrations
func (h *SyncHandler) Integrations(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"integrations": h.registry.Names()})
}
