package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/scansync/internal/database/models"
)

// Task type names
const (
	TypeSyncFindings  = "sync:findings"
	TypeSyncAssets    = "sync:assets"
	TypeScheduledSync = "sync:scheduled"
)

// SyncPayload identifies one sync. A nil RunID asks the handler to record a
// new SyncRun itself, as scheduled syncs do.
type SyncPayload struct {
	RunID       uuid.UUID         `json:"run_id"`
	PlanID      uint              `json:"plan_id"`
	Integration string            `json:"integration"`
	Source      string            `json:"source"`
	UserID      string            `json:"user_id,omitempty"`
	Params      map[string]string `json:"params,omitempty"`
}

// NewSyncTask builds the task for one kind of sync.
func NewSyncTask(kind models.SyncKind, payload SyncPayload) (*asynq.Task, error) {
	var typ string
	switch kind {
	case models.SyncKindFindings:
		typ = TypeSyncFindings
	case models.SyncKindAssets:
		typ = TypeSyncAssets
	default:
		return nil, fmt.Errorf("unknown sync kind %q", kind)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(typ, data), nil
}

// NewScheduledSyncTask runs an asset sync followed by a findings sync.
func NewScheduledSyncTask(payload SyncPayload) (*asynq.Task, error) {
	payload.RunID = uuid.Nil
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeScheduledSync, data), nil
}
