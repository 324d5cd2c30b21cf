package reconcile

import (
	"context"
	"fmt"
	"iter"

	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/integration"
)

// UpdateChecklists runs the checklist protocol: each finding upserts the
// asset's checklist for its vulnerability id, then opens or closes the
// matching issue on the asset.
func (e *Engine) UpdateChecklists(ctx context.Context, findings iter.Seq2[*integration.IntegrationFinding, error]) {
	runPool(ctx, e, "Processing checklists", e.cfg.FindingWorkers, findings, findingLabel, e.processChecklist)
}

func findingLabel(f *integration.IntegrationFinding) string {
	if f == nil {
		return "finding <nil>"
	}
	if f.AssetIdentifier == "" {
		return fmt.Sprintf("finding %s", f.ExternalID)
	}
	return fmt.Sprintf("finding %s on asset %s", f.ExternalID, f.AssetIdentifier)
}

func (e *Engine) processChecklist(ctx context.Context, f *integration.IntegrationFinding) error {
	asset, ok := e.assetByIdentifier(f.AssetIdentifier)
	if !ok {
		return fmt.Errorf("asset %q not found in plan %d", f.AssetIdentifier, e.planID)
	}

	key := parentKey{id: asset.ID, module: models.ModuleAssets}
	unlock := e.parentLocks.lock(key)
	defer unlock()

	if err := e.upsertChecklist(ctx, asset, f); err != nil {
		return err
	}

	issues, err := e.issuesFor(ctx, key)
	if err != nil {
		return fmt.Errorf("loading issues of asset %d: %w", asset.ID, err)
	}
	created, err := e.handleFinding(ctx, issues.items, f, asset.ID, models.ModuleAssets)
	if err != nil {
		return err
	}
	if created != nil {
		issues.items = append(issues.items, created)
	}
	return nil
}

// upsertChecklist finds the asset's STIG checklist for the finding or
// creates it. Callers hold the asset's lock.
func (e *Engine) upsertChecklist(ctx context.Context, asset *models.Asset, f *integration.IntegrationFinding) error {
	set, err := e.checklists.getOrLoad(asset.ID, func() (*checklistSet, error) {
		checklists, err := e.gw.ChecklistsByAsset(ctx, asset.ID)
		if err != nil {
			return nil, err
		}
		items := make([]*models.Checklist, len(checklists))
		for i := range checklists {
			items[i] = &checklists[i]
		}
		return &checklistSet{items: items}, nil
	})
	if err != nil {
		return fmt.Errorf("loading checklists of asset %d: %w", asset.ID, err)
	}

	for _, c := range set.items {
		if c.VulnerabilityID != f.ExternalID || c.Tool != models.ChecklistToolSTIGs {
			continue
		}
		updated := *c
		updated.Status = f.Status.Checklist()
		updated.Results = f.Results
		updated.Comments = f.Comments
		updated.Datetime = e.now()
		if err := e.gw.SaveChecklist(ctx, &updated); err != nil {
			return fmt.Errorf("updating checklist %d: %w", c.ID, err)
		}
		*c = updated
		return nil
	}

	c := &models.Checklist{
		AssetID:         asset.ID,
		Status:          f.Status.Checklist(),
		Tool:            models.ChecklistToolSTIGs,
		BaselineName:    ChecklistBaseline,
		Version:         ChecklistVersion,
		VulnerabilityID: f.ExternalID,
		Results:         f.Results,
		Check:           f.Title,
		CCI:             f.CCIRef,
		RuleID:          f.RuleID,
		Comments:        f.Comments,
		Datetime:        e.now(),
	}
	if err := e.gw.CreateChecklist(ctx, c); err != nil {
		return fmt.Errorf("creating checklist: %w", err)
	}
	set.items = append(set.items, c)
	return nil
}
