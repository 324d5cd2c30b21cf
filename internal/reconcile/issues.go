package reconcile

import (
	"context"
	"fmt"

	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/integration"
)

func issueStatusFor(f *integration.IntegrationFinding) models.IssueStatus {
	if f.Status.IsPass() {
		return models.IssueStatusClosed
	}
	return models.IssueStatusOpen
}

// CreateIssueFromFinding always creates. Callers make sure no matching
// non-closed issue exists.
func (e *Engine) CreateIssueFromFinding(ctx context.Context, title string, parentID uint, parentModule string, f *integration.IntegrationFinding) (*models.Issue, error) {
	now := e.now()
	issue := &models.Issue{
		Title:             title,
		Description:       f.Description,
		Severity:          f.Severity,
		Status:            issueStatusFor(f),
		Identification:    models.IssueIdentificationVulnerabilityAssessment,
		OtherIdentifier:   f.ExternalID,
		SourceReport:      models.IssueSourceSTIG,
		ParentID:          parentID,
		ParentModule:      parentModule,
		IssueOwnerID:      e.assessorID,
		SecurityPlanID:    e.planID,
		DueDate:           now.AddDate(0, 0, issueDueDays),
		DateFirstDetected: f.DateCreated,
		DateLastUpdated:   f.DateLastUpdated,
	}
	if issue.Severity == "" {
		issue.Severity = models.IssueSeverityNotAssigned
	}
	if issue.IsClosed() {
		issue.DateCompleted = &now
	}

	if err := e.gw.CreateIssue(ctx, issue); err != nil {
		return nil, err
	}
	e.logger.Debug("created issue", "issue_id", issue.ID, "external_id", f.ExternalID, "status", issue.Status)
	return issue, nil
}

// UpdateIssuesFromFinding writes issue only when its open/closed state
// differs from the finding's. It reports whether a write happened. issue is
// left untouched when the save fails.
func (e *Engine) UpdateIssuesFromFinding(ctx context.Context, issue *models.Issue, f *integration.IntegrationFinding) (bool, error) {
	target := issueStatusFor(f)
	if issue.Status == target {
		return false, nil
	}

	now := e.now()
	updated := *issue
	updated.Status = target
	updated.Severity = f.Severity
	updated.Description = f.Description
	updated.DateLastUpdated = now
	if target == models.IssueStatusClosed {
		updated.DateCompleted = &now
	} else {
		updated.DateCompleted = nil
	}

	if err := e.gw.SaveIssue(ctx, &updated); err != nil {
		return false, err
	}
	*issue = updated
	e.logger.Debug("updated issue", "issue_id", issue.ID, "external_id", f.ExternalID, "status", issue.Status)
	return true, nil
}

// HandlePassingFinding closes every non-closed issue matching the finding's
// external id. Duplicates are all closed.
func (e *Engine) HandlePassingFinding(ctx context.Context, existing []*models.Issue, f *integration.IntegrationFinding, parentID uint, parentModule string) error {
	for _, issue := range existing {
		if issue.OtherIdentifier != f.ExternalID || issue.IsClosed() {
			continue
		}

		now := e.now()
		closed := *issue
		closed.Status = models.IssueStatusClosed
		closed.DateCompleted = &now
		closed.DateLastUpdated = now
		if err := e.gw.SaveIssue(ctx, &closed); err != nil {
			return fmt.Errorf("closing issue %d for %s %d: %w", issue.ID, parentModule, parentID, err)
		}
		*issue = closed
		e.logger.Debug("closed issue", "issue_id", issue.ID, "external_id", f.ExternalID)
	}
	return nil
}

// HandleFailingFinding updates the first non-closed issue matching the
// finding's external id, or creates one. It returns the created issue, or
// nil when an existing issue was used.
func (e *Engine) HandleFailingFinding(ctx context.Context, issueTitle string, existing []*models.Issue, f *integration.IntegrationFinding, parentID uint, parentModule string) (*models.Issue, error) {
	for _, issue := range existing {
		if issue.OtherIdentifier == f.ExternalID && !issue.IsClosed() {
			if _, err := e.UpdateIssuesFromFinding(ctx, issue, f); err != nil {
				return nil, fmt.Errorf("updating issue %d: %w", issue.ID, err)
			}
			return nil, nil
		}
	}

	issue, err := e.CreateIssueFromFinding(ctx, issueTitle, parentID, parentModule, f)
	if err != nil {
		return nil, fmt.Errorf("creating issue for %s %d: %w", parentModule, parentID, err)
	}
	return issue, nil
}

// handleFinding dispatches on pass/fail and returns any created issue.
func (e *Engine) handleFinding(ctx context.Context, existing []*models.Issue, f *integration.IntegrationFinding, parentID uint, parentModule string) (*models.Issue, error) {
	if f.Status.IsPass() {
		return nil, e.HandlePassingFinding(ctx, existing, f, parentID, parentModule)
	}
	return e.HandleFailingFinding(ctx, f.IssueTitleOrDefault(), existing, f, parentID, parentModule)
}

// issuesFor returns the cached issue set of a parent, fetching on miss.
// Callers hold the parent's lock.
func (e *Engine) issuesFor(ctx context.Context, key parentKey) (*issueSet, error) {
	return e.issues.getOrLoad(key, func() (*issueSet, error) {
		issues, err := e.gw.IssuesByParent(ctx, key.id, key.module)
		if err != nil {
			return nil, err
		}
		return &issueSet{items: issuePointers(issues)}, nil
	})
}

func issuePointers(issues []models.Issue) []*models.Issue {
	out := make([]*models.Issue, len(issues))
	for i := range issues {
		out[i] = &issues[i]
	}
	return out
}
