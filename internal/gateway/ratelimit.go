package gateway

import (
	"context"
	"fmt"

	"github.com/hugh/scansync/internal/database/models"
	"golang.org/x/time/rate"
)

// RateLimited throttles every call to the wrapped gateway. The compliance
// API rejects bursts, so all sync workers share a single limiter.
type RateLimited struct {
	next    Gateway
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a token bucket of rps requests per second.
// A non-positive rps disables throttling.
func NewRateLimited(next Gateway, rps float64, burst int) *RateLimited {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (r *RateLimited) wait(ctx context.Context) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting for rate limiter: %w", err)
	}
	return nil
}

func (r *RateLimited) CurrentUserID(ctx context.Context) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}
	return r.next.CurrentUserID(ctx)
}

func (r *RateLimited) ControlImplementationMap(ctx context.Context, planID uint) (map[uint]string, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.ControlImplementationMap(ctx, planID)
}

func (r *RateLimited) AssetMap(ctx context.Context, planID uint, keyField string) (map[string]*models.Asset, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.AssetMap(ctx, planID, keyField)
}

func (r *RateLimited) CreateAsset(ctx context.Context, asset *models.Asset) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.CreateAsset(ctx, asset)
}

func (r *RateLimited) SaveAsset(ctx context.Context, asset *models.Asset) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.SaveAsset(ctx, asset)
}

func (r *RateLimited) AssetsByComponent(ctx context.Context, componentID uint) ([]models.Asset, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.AssetsByComponent(ctx, componentID)
}

func (r *RateLimited) GetOrCreateAssetMapping(ctx context.Context, assetID, componentID uint) (*models.AssetMapping, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.GetOrCreateAssetMapping(ctx, assetID, componentID)
}

func (r *RateLimited) ComponentsByPlan(ctx context.Context, planID uint) ([]models.Component, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.ComponentsByPlan(ctx, planID)
}

func (r *RateLimited) CreateComponent(ctx context.Context, component *models.Component) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.CreateComponent(ctx, component)
}

func (r *RateLimited) GetOrCreateComponentMapping(ctx context.Context, componentID, planID uint) (*models.ComponentMapping, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.GetOrCreateComponentMapping(ctx, componentID, planID)
}

func (r *RateLimited) ChecklistsByAsset(ctx context.Context, assetID uint) ([]models.Checklist, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.ChecklistsByAsset(ctx, assetID)
}

func (r *RateLimited) CreateChecklist(ctx context.Context, checklist *models.Checklist) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.CreateChecklist(ctx, checklist)
}

func (r *RateLimited) SaveChecklist(ctx context.Context, checklist *models.Checklist) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.SaveChecklist(ctx, checklist)
}

func (r *RateLimited) IssuesByParent(ctx context.Context, parentID uint, parentModule string) ([]models.Issue, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.IssuesByParent(ctx, parentID, parentModule)
}

func (r *RateLimited) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.CreateIssue(ctx, issue)
}

func (r *RateLimited) SaveIssue(ctx context.Context, issue *models.Issue) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.SaveIssue(ctx, issue)
}

func (r *RateLimited) CreateAssessment(ctx context.Context, assessment *models.Assessment) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.CreateAssessment(ctx, assessment)
}

func (r *RateLimited) GetOrCreateControlTest(ctx context.Context, test *models.ControlTest) (*models.ControlTest, error) {
	if err := r.wait(ctx); err != nil {
		return nil, err
	}
	return r.next.GetOrCreateControlTest(ctx, test)
}

func (r *RateLimited) CreateControlTestResult(ctx context.Context, result *models.ControlTestResult) error {
	if err := r.wait(ctx); err != nil {
		return err
	}
	return r.next.CreateControlTestResult(ctx, result)
}
