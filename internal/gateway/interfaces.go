package gateway

import (
	"context"

	"github.com/hugh/scansync/internal/database/models"
)

// PlanGateway reads plan-level lookups.
type PlanGateway interface {
	// ControlImplementationMap returns control implementation id -> control
	// name (e.g. "AC-2(1)") for every control implementation of the plan.
	ControlImplementationMap(ctx context.Context, planID uint) (map[uint]string, error)
}

// UserResolver returns the id of the user the remote calls run as.
type UserResolver interface {
	CurrentUserID(ctx context.Context) (string, error)
}

// AssetGateway covers assets and their component mappings.
type AssetGateway interface {
	// AssetMap returns the plan's assets keyed by the named identifier field.
	AssetMap(ctx context.Context, planID uint, keyField string) (map[string]*models.Asset, error)
	CreateAsset(ctx context.Context, asset *models.Asset) error
	SaveAsset(ctx context.Context, asset *models.Asset) error
	AssetsByComponent(ctx context.Context, componentID uint) ([]models.Asset, error)
	GetOrCreateAssetMapping(ctx context.Context, assetID, componentID uint) (*models.AssetMapping, error)
}

// ComponentGateway covers components and their plan mappings.
type ComponentGateway interface {
	ComponentsByPlan(ctx context.Context, planID uint) ([]models.Component, error)
	CreateComponent(ctx context.Context, component *models.Component) error
	GetOrCreateComponentMapping(ctx context.Context, componentID, planID uint) (*models.ComponentMapping, error)
}

// ChecklistGateway covers per-asset checklist rows.
type ChecklistGateway interface {
	ChecklistsByAsset(ctx context.Context, assetID uint) ([]models.Checklist, error)
	CreateChecklist(ctx context.Context, checklist *models.Checklist) error
	SaveChecklist(ctx context.Context, checklist *models.Checklist) error
}

// IssueGateway covers issues attached to a polymorphic parent.
type IssueGateway interface {
	IssuesByParent(ctx context.Context, parentID uint, parentModule string) ([]models.Issue, error)
	CreateIssue(ctx context.Context, issue *models.Issue) error
	SaveIssue(ctx context.Context, issue *models.Issue) error
}

// AssessmentGateway covers assessments, control tests and their results.
type AssessmentGateway interface {
	CreateAssessment(ctx context.Context, assessment *models.Assessment) error
	GetOrCreateControlTest(ctx context.Context, test *models.ControlTest) (*models.ControlTest, error)
	CreateControlTestResult(ctx context.Context, result *models.ControlTestResult) error
}

// Gateway is everything the reconciliation engine needs from the
// compliance system.
type Gateway interface {
	PlanGateway
	UserResolver
	AssetGateway
	ComponentGateway
	ChecklistGateway
	IssueGateway
	AssessmentGateway
}

// Compile-time interface satisfaction checks
var (
	_ Gateway = (*Store)(nil)
	_ Gateway = (*RateLimited)(nil)
)
