package dto

import "github.com/hugh/scansync/internal/api/validation"

// SyncRequest asks for one findings or assets sync against a plan.
type SyncRequest struct {
	Integration string            `json:"integration"`
	Source      string            `json:"source"`
	Params      map[string]string `json:"params,omitempty"`
}

func (r SyncRequest) Validate() map[string]string {
	errors := validation.ValidateParams(r.Params)

	if r.Integration == "" {
		errors["integration"] = "Integration is required"
	} else if !validation.IsValidIntegrationName(r.Integration) {
		errors["integration"] = "Invalid integration name"
	}
	if ok, msg := validation.ValidateSource(r.Source); !ok {
		errors["source"] = msg
	}

	return errors
}

type SyncRunResponse struct {
	ID          string   `json:"id"`
	PlanID      uint     `json:"plan_id"`
	Kind        string   `json:"kind"`
	Integration string   `json:"integration"`
	Source      string   `json:"source,omitempty"`
	UserID      string   `json:"user_id,omitempty"`
	Status      string   `json:"status"`
	StartedAt   int64    `json:"started_at,omitempty"`
	CompletedAt int64    `json:"completed_at,omitempty"`
	Error       string   `json:"error,omitempty"`
	Processed   int      `json:"processed"`
	Succeeded   int      `json:"succeeded"`
	Failed      int      `json:"failed"`
	Errors      []string `json:"errors,omitempty"`
	TaskID      string   `json:"task_id,omitempty"`
	TaskState   string   `json:"task_state,omitempty"`
	CreatedAt   string   `json:"created_at"`
}
