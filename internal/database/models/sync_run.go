package models

type SyncRunStatus string

const (
	SyncRunStatusPending   SyncRunStatus = "pending"
	SyncRunStatusRunning   SyncRunStatus = "running"
	SyncRunStatusCompleted SyncRunStatus = "completed"
	SyncRunStatusFailed    SyncRunStatus = "failed"
)

type SyncKind string

const (
	SyncKindFindings SyncKind = "findings"
	SyncKindAssets   SyncKind = "assets"
)

// SyncRun is the persisted report of one sync_findings/sync_assets run.
type SyncRun struct {
	UUIDBase
	PlanID      uint          `gorm:"index;not null" json:"plan_id"`
	Kind        SyncKind      `gorm:"not null" json:"kind"`
	Integration string        `gorm:"not null" json:"integration"`
	Source      string        `json:"source,omitempty"`
	UserID      string        `json:"user_id,omitempty"`
	Status      SyncRunStatus `gorm:"not null;index;default:'pending'" json:"status"`

	// Execution
	StartedAt   int64  `json:"started_at,omitempty"`
	CompletedAt int64  `json:"completed_at,omitempty"`
	Error       string `json:"error,omitempty"`

	// Stats
	Processed int      `gorm:"default:0" json:"processed"`
	Succeeded int      `gorm:"default:0" json:"succeeded"`
	Failed    int      `gorm:"default:0" json:"failed"`
	Errors    []string `gorm:"type:text;serializer:json" json:"errors,omitempty"`

	// Asynq task ID for tracking
	TaskID string `json:"task_id,omitempty"`
}

func (SyncRun) TableName() string {
	return "sync_runs"
}
