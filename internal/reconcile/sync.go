package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/gateway"
	"github.com/hugh/scansync/internal/integration"
)

// Report summarizes one sync run. Per-unit failures only show up here;
// they are never returned as errors.
type Report struct {
	Kind        models.SyncKind `json:"kind"`
	Integration string          `json:"integration"`
	PlanID      uint            `json:"plan_id"`
	Processed   int             `json:"processed"`
	Succeeded   int             `json:"succeeded"`
	Failed      int             `json:"failed"`
	Errors      []string        `json:"errors,omitempty"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

func (r *Report) OK() bool {
	return len(r.Errors) == 0
}

func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SyncFindings fetches the integration's findings and reconciles them with
// the protocol its type selects. Applied changes are never rolled back.
func SyncFindings(ctx context.Context, integ integration.Integration, gw gateway.Gateway, planID uint, params integration.Params, logger *slog.Logger, cfg *Config) (*Report, error) {
	e, err := New(ctx, integ, gw, planID, logger, cfg)
	if err != nil {
		return nil, err
	}
	started := e.now()

	switch integ.Type() {
	case integration.TypeChecklist:
		e.UpdateChecklists(ctx, integ.FetchFindings(ctx, params))
	case integration.TypeControlTest:
		e.UpdateControlTests(ctx, integ.FetchFindings(ctx, params))
	default:
		return nil, fmt.Errorf("unsupported integration type %q", integ.Type())
	}

	return e.finish(models.SyncKindFindings, started), nil
}

// SyncAssets fetches the integration's assets and reconciles them.
func SyncAssets(ctx context.Context, integ integration.Integration, gw gateway.Gateway, planID uint, params integration.Params, logger *slog.Logger, cfg *Config) (*Report, error) {
	e, err := New(ctx, integ, gw, planID, logger, cfg)
	if err != nil {
		return nil, err
	}
	started := e.now()

	if err := e.UpdateAssets(ctx, integ.FetchAssets(ctx, params)); err != nil {
		return nil, err
	}

	return e.finish(models.SyncKindAssets, started), nil
}

// Report snapshots the counters and errors gathered so far.
func (e *Engine) Report(kind models.SyncKind, started time.Time) *Report {
	e.progressMu.Lock()
	processed, succeeded, failed := e.processed, e.succeeded, e.failed
	e.progressMu.Unlock()

	return &Report{
		Kind:        kind,
		Integration: e.integration.Title(),
		PlanID:      e.planID,
		Processed:   processed,
		Succeeded:   succeeded,
		Failed:      failed,
		Errors:      e.Errors(),
		StartedAt:   started,
		FinishedAt:  e.now(),
	}
}

func (e *Engine) finish(kind models.SyncKind, started time.Time) *Report {
	r := e.Report(kind, started)
	if !r.OK() {
		e.logger.Error("sync finished with errors",
			"kind", kind,
			"processed", r.Processed,
			"failed", r.Failed,
			"errors", len(r.Errors),
		)
		for _, msg := range r.Errors {
			e.logger.Error("sync error", "kind", kind, "error", msg)
		}
		return r
	}

	e.logger.Info("sync completed successfully",
		"kind", kind,
		"processed", r.Processed,
		"duration", r.Duration(),
	)
	return r
}
