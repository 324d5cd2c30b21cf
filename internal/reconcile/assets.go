package reconcile

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/integration"
)

const (
	defaultComponentType   = "Hardware"
	defaultComponentStatus = "Active"
)

// UpdateAssets reloads the plan's assets and components, then upserts every
// asset and its component mappings. Only a failed reload is returned.
func (e *Engine) UpdateAssets(ctx context.Context, assets iter.Seq2[*integration.IntegrationAsset, error]) error {
	if err := e.loadAssets(ctx); err != nil {
		return fmt.Errorf("loading assets of plan %d: %w", e.planID, err)
	}
	if err := e.loadComponents(ctx); err != nil {
		return fmt.Errorf("loading components of plan %d: %w", e.planID, err)
	}

	runPool(ctx, e, "Processing assets", e.cfg.AssetWorkers, assets, assetLabel, e.processAsset)
	return nil
}

func assetLabel(a *integration.IntegrationAsset) string {
	if a == nil {
		return "asset <nil>"
	}
	return fmt.Sprintf("asset %s (%s)", a.Identifier, a.Name)
}

func (e *Engine) processAsset(ctx context.Context, a *integration.IntegrationAsset) error {
	e.SetAssetDefaults(a)

	if len(a.ComponentNames) == 0 {
		_, err := e.UpdateOrCreateAsset(ctx, a)
		return err
	}

	for _, name := range a.ComponentNames {
		component, err := e.getOrCreateComponent(ctx, name, a.ComponentType)
		if err != nil {
			return err
		}
		if _, err := e.componentAssetsFor(ctx, component.ID); err != nil {
			return fmt.Errorf("loading assets of component %d: %w", component.ID, err)
		}

		asset, err := e.UpdateOrCreateAsset(ctx, a)
		if err != nil {
			return err
		}
		if _, err := e.gw.GetOrCreateAssetMapping(ctx, asset.ID, component.ID); err != nil {
			return err
		}
		e.addComponentAsset(component.ID, asset)
	}
	return nil
}

// SetAssetDefaults falls back to the assessor as owner and to an active
// status.
func (e *Engine) SetAssetDefaults(a *integration.IntegrationAsset) {
	if a.AssetOwnerID == "" {
		a.AssetOwnerID = e.assessorID
	}
	if a.Status == "" {
		a.Status = models.AssetStatusActive
	}
}

// UpdateOrCreateAsset updates the asset with a's identifier or creates it.
// A created asset is visible to later lookups in the same run.
func (e *Engine) UpdateOrCreateAsset(ctx context.Context, a *integration.IntegrationAsset) (*models.Asset, error) {
	if a.Identifier == "" {
		return nil, errors.New("asset has no identifier")
	}

	unlock := e.assetLocks.lock(a.Identifier)
	defer unlock()

	if existing, ok := e.assetByIdentifier(a.Identifier); ok {
		if _, err := e.UpdateAssetIfNeeded(ctx, existing, a); err != nil {
			return nil, err
		}
		return existing, nil
	}

	parentID, parentModule := e.assetParent(a)
	asset := &models.Asset{
		Name:            a.Name,
		IPAddress:       a.IPAddress,
		MACAddress:      a.MACAddress,
		FQDN:            a.FQDN,
		AssetOwnerID:    a.AssetOwnerID,
		ParentID:        parentID,
		ParentModule:    parentModule,
		SecurityPlanID:  e.planID,
		AssetType:       a.AssetType,
		AssetCategory:   a.AssetCategory,
		Status:          a.Status,
		DateLastUpdated: a.DateLastUpdated,
	}
	if asset.DateLastUpdated.IsZero() {
		asset.DateLastUpdated = e.now()
	}
	if err := asset.SetIdentifier(e.integration.AssetIdentifierField(), a.Identifier); err != nil {
		return nil, err
	}

	if err := e.gw.CreateAsset(ctx, asset); err != nil {
		return nil, err
	}
	e.storeAsset(a.Identifier, asset)
	e.logger.Debug("created asset", "asset_id", asset.ID, "identifier", a.Identifier)
	return asset, nil
}

// UpdateAssetIfNeeded compares owner, parent, parent module, type, status
// and category, and saves the whole record when any of them differ. It
// reports whether a write happened.
func (e *Engine) UpdateAssetIfNeeded(ctx context.Context, existing *models.Asset, a *integration.IntegrationAsset) (bool, error) {
	parentID, parentModule := e.assetParent(a)
	owner := a.AssetOwnerID
	if owner == "" {
		owner = existing.AssetOwnerID
	}

	// Changes go to a copy so a failed save leaves the cached asset as stored.
	updated := *existing
	changed := false
	set := func(dst *string, v string) {
		if *dst != v {
			*dst = v
			changed = true
		}
	}
	set(&updated.AssetOwnerID, owner)
	set(&updated.ParentModule, parentModule)
	set(&updated.AssetType, a.AssetType)
	set(&updated.Status, a.Status)
	set(&updated.AssetCategory, a.AssetCategory)
	if updated.ParentID != parentID {
		updated.ParentID = parentID
		changed = true
	}

	if !changed {
		return false, nil
	}

	updated.DateLastUpdated = e.now()
	if err := e.gw.SaveAsset(ctx, &updated); err != nil {
		return false, err
	}
	*existing = updated
	e.logger.Debug("updated asset", "asset_id", existing.ID, "identifier", a.Identifier)
	return true, nil
}

func (e *Engine) assetParent(a *integration.IntegrationAsset) (uint, string) {
	parentID := e.planID
	if a.ParentID != nil {
		parentID = *a.ParentID
	}
	parentModule := a.ParentModule
	if parentModule == "" {
		parentModule = models.ModuleSecurityPlans
	}
	return parentID, parentModule
}

func (e *Engine) loadComponents(ctx context.Context) error {
	components, err := e.gw.ComponentsByPlan(ctx, e.planID)
	if err != nil {
		return err
	}

	e.componentsMu.Lock()
	defer e.componentsMu.Unlock()
	e.components = make(map[string]*models.Component, len(components))
	for i := range components {
		if _, exists := e.components[components[i].Title]; !exists {
			e.components[components[i].Title] = &components[i]
		}
	}
	return nil
}

// getOrCreateComponent finds the plan's component by title or creates it
// together with its plan mapping. The whole sequence runs under one lock.
func (e *Engine) getOrCreateComponent(ctx context.Context, title, componentType string) (*models.Component, error) {
	e.componentsMu.Lock()
	defer e.componentsMu.Unlock()

	if c, ok := e.components[title]; ok {
		return c, nil
	}

	if componentType == "" {
		componentType = defaultComponentType
	}
	c := &models.Component{
		Title:            title,
		Description:      fmt.Sprintf("%s component created by %s", title, e.integration.Title()),
		ComponentType:    componentType,
		ComponentOwnerID: e.assessorID,
		SecurityPlanID:   e.planID,
		Status:           defaultComponentStatus,
	}
	if err := e.gw.CreateComponent(ctx, c); err != nil {
		return nil, err
	}
	if _, err := e.gw.GetOrCreateComponentMapping(ctx, c.ID, e.planID); err != nil {
		return nil, err
	}

	e.components[title] = c
	e.logger.Debug("created component", "component_id", c.ID, "title", title)
	return c, nil
}

func (e *Engine) componentAssetsFor(ctx context.Context, componentID uint) ([]*models.Asset, error) {
	e.componentAssetsMu.Lock()
	defer e.componentAssetsMu.Unlock()

	if assets, ok := e.componentAssets[componentID]; ok {
		return assets, nil
	}

	assets, err := e.gw.AssetsByComponent(ctx, componentID)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Asset, len(assets))
	for i := range assets {
		out[i] = &assets[i]
	}
	e.componentAssets[componentID] = out
	return out, nil
}

func (e *Engine) addComponentAsset(componentID uint, asset *models.Asset) {
	e.componentAssetsMu.Lock()
	defer e.componentAssetsMu.Unlock()

	for _, a := range e.componentAssets[componentID] {
		if a.ID == asset.ID {
			return
		}
	}
	e.componentAssets[componentID] = append(e.componentAssets[componentID], asset)
}

// ComponentAssets returns the assets known to be mapped to a component.
func (e *Engine) ComponentAssets(componentID uint) []*models.Asset {
	e.componentAssetsMu.Lock()
	defer e.componentAssetsMu.Unlock()
	out := make([]*models.Asset, len(e.componentAssets[componentID]))
	copy(out, e.componentAssets[componentID])
	return out
}
