package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/hugh/scansync/internal/database/models"
	"gorm.io/gorm"
)

// Store is the gorm-backed gateway to the compliance database.
type Store struct {
	db            *gorm.DB
	defaultUserID string
}

// NewStore creates a Store. defaultUserID is reported by CurrentUserID when
// the context carries no user.
func NewStore(db *gorm.DB, defaultUserID string) *Store {
	return &Store{db: db, defaultUserID: defaultUserID}
}

func (s *Store) CurrentUserID(ctx context.Context) (string, error) {
	if id, ok := UserIDFromContext(ctx); ok {
		return id, nil
	}
	if s.defaultUserID != "" {
		return s.defaultUserID, nil
	}
	return "", ErrNoCurrentUser
}

func (s *Store) ControlImplementationMap(ctx context.Context, planID uint) (map[uint]string, error) {
	var impls []models.ControlImplementation
	if err := s.db.WithContext(ctx).
		Where("parent_id = ? AND parent_module = ?", planID, models.ModuleSecurityPlans).
		Find(&impls).Error; err != nil {
		return nil, fmt.Errorf("listing control implementations: %w", err)
	}

	out := make(map[uint]string, len(impls))
	for _, impl := range impls {
		out[impl.ID] = impl.ControlID
	}
	return out, nil
}

// planAssetIDs selects ids of assets reachable from the plan through a
// component mapping.
func (s *Store) planAssetIDs(ctx context.Context, planID uint) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&models.AssetMapping{}).
		Select("asset_mappings.asset_id").
		Joins("JOIN component_mappings ON component_mappings.component_id = asset_mappings.component_id").
		Where("component_mappings.security_plan_id = ?", planID)
}

// AssetMap keys the plan's assets by keyField. An asset belongs to the plan
// when it was created for it, is parented by it, or is mapped to one of its
// components.
func (s *Store) AssetMap(ctx context.Context, planID uint, keyField string) (map[string]*models.Asset, error) {
	if !models.ValidIdentifierField(keyField) {
		return nil, fmt.Errorf("unsupported asset identifier field %q", keyField)
	}

	var assets []models.Asset
	if err := s.db.WithContext(ctx).
		Where("security_plan_id = ? OR (parent_id = ? AND parent_module = ?) OR id IN (?)",
			planID, planID, models.ModuleSecurityPlans, s.planAssetIDs(ctx, planID)).
		Order("id").
		Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}

	out := make(map[string]*models.Asset, len(assets))
	for i := range assets {
		key := assets[i].Identifier(keyField)
		if key == "" {
			continue
		}
		// Oldest asset wins when a plan already holds duplicates.
		if _, exists := out[key]; !exists {
			out[key] = &assets[i]
		}
	}
	return out, nil
}

func (s *Store) CreateAsset(ctx context.Context, asset *models.Asset) error {
	if err := s.db.WithContext(ctx).Create(asset).Error; err != nil {
		return fmt.Errorf("creating asset %q: %w", asset.Name, err)
	}
	return nil
}

func (s *Store) SaveAsset(ctx context.Context, asset *models.Asset) error {
	if err := s.db.WithContext(ctx).Save(asset).Error; err != nil {
		return fmt.Errorf("saving asset %d: %w", asset.ID, err)
	}
	return nil
}

func (s *Store) AssetsByComponent(ctx context.Context, componentID uint) ([]models.Asset, error) {
	var assets []models.Asset
	if err := s.db.WithContext(ctx).
		Joins("JOIN asset_mappings ON asset_mappings.asset_id = assets.id").
		Where("asset_mappings.component_id = ?", componentID).
		Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("listing assets of component %d: %w", componentID, err)
	}
	return assets, nil
}

func (s *Store) GetOrCreateAssetMapping(ctx context.Context, assetID, componentID uint) (*models.AssetMapping, error) {
	mapping := models.AssetMapping{AssetID: assetID, ComponentID: componentID}
	if err := s.firstOrCreate(ctx, &mapping, "asset_id = ? AND component_id = ?", assetID, componentID); err != nil {
		return nil, fmt.Errorf("mapping asset %d to component %d: %w", assetID, componentID, err)
	}
	return &mapping, nil
}

func (s *Store) ComponentsByPlan(ctx context.Context, planID uint) ([]models.Component, error) {
	mapped := s.db.WithContext(ctx).
		Model(&models.ComponentMapping{}).
		Select("component_id").
		Where("security_plan_id = ?", planID)

	var components []models.Component
	if err := s.db.WithContext(ctx).
		Where("security_plan_id = ? OR id IN (?)", planID, mapped).
		Order("id").
		Find(&components).Error; err != nil {
		return nil, fmt.Errorf("listing components: %w", err)
	}
	return components, nil
}

func (s *Store) CreateComponent(ctx context.Context, component *models.Component) error {
	if err := s.db.WithContext(ctx).Create(component).Error; err != nil {
		return fmt.Errorf("creating component %q: %w", component.Title, err)
	}
	return nil
}

func (s *Store) GetOrCreateComponentMapping(ctx context.Context, componentID, planID uint) (*models.ComponentMapping, error) {
	mapping := models.ComponentMapping{ComponentID: componentID, SecurityPlanID: planID}
	if err := s.firstOrCreate(ctx, &mapping, "component_id = ? AND security_plan_id = ?", componentID, planID); err != nil {
		return nil, fmt.Errorf("mapping component %d to plan %d: %w", componentID, planID, err)
	}
	return &mapping, nil
}

func (s *Store) ChecklistsByAsset(ctx context.Context, assetID uint) ([]models.Checklist, error) {
	var checklists []models.Checklist
	if err := s.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("id").
		Find(&checklists).Error; err != nil {
		return nil, fmt.Errorf("listing checklists of asset %d: %w", assetID, err)
	}
	return checklists, nil
}

func (s *Store) CreateChecklist(ctx context.Context, checklist *models.Checklist) error {
	if err := s.db.WithContext(ctx).Create(checklist).Error; err != nil {
		return fmt.Errorf("creating checklist %s: %w", checklist.VulnerabilityID, err)
	}
	return nil
}

func (s *Store) SaveChecklist(ctx context.Context, checklist *models.Checklist) error {
	if err := s.db.WithContext(ctx).Save(checklist).Error; err != nil {
		return fmt.Errorf("saving checklist %d: %w", checklist.ID, err)
	}
	return nil
}

func (s *Store) IssuesByParent(ctx context.Context, parentID uint, parentModule string) ([]models.Issue, error) {
	var issues []models.Issue
	if err := s.db.WithContext(ctx).
		Where("parent_id = ? AND parent_module = ?", parentID, parentModule).
		Order("id").
		Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("listing issues of %s %d: %w", parentModule, parentID, err)
	}
	return issues, nil
}

func (s *Store) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if err := s.db.WithContext(ctx).Create(issue).Error; err != nil {
		return fmt.Errorf("creating issue %q: %w", issue.Title, err)
	}
	return nil
}

func (s *Store) SaveIssue(ctx context.Context, issue *models.Issue) error {
	if err := s.db.WithContext(ctx).Save(issue).Error; err != nil {
		return fmt.Errorf("saving issue %d: %w", issue.ID, err)
	}
	return nil
}

func (s *Store) CreateAssessment(ctx context.Context, assessment *models.Assessment) error {
	if err := s.db.WithContext(ctx).Create(assessment).Error; err != nil {
		return fmt.Errorf("creating assessment for %s %d: %w", assessment.ParentModule, assessment.ParentID, err)
	}
	return nil
}

func (s *Store) GetOrCreateControlTest(ctx context.Context, test *models.ControlTest) (*models.ControlTest, error) {
	out := *test
	if err := s.firstOrCreate(ctx, &out, "uuid = ? AND parent_control_id = ?", test.UUID, test.ParentControlID); err != nil {
		return nil, fmt.Errorf("getting control test %s: %w", test.UUID, err)
	}
	return &out, nil
}

func (s *Store) CreateControlTestResult(ctx context.Context, result *models.ControlTestResult) error {
	if err := s.db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("creating control test result for test %d: %w", result.ParentTestID, err)
	}
	return nil
}

// firstOrCreate loads the row matching the query into dest or inserts dest.
// A lost insert race against a unique index falls back to a second lookup.
func (s *Store) firstOrCreate(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	db := s.db.WithContext(ctx)
	err := db.Where(query, args...).First(dest).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if createErr := db.Create(dest).Error; createErr != nil {
		if err := db.Where(query, args...).First(dest).Error; err != nil {
			return createErr
		}
	}
	return nil
}
