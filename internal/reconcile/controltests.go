package reconcile

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"

	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/integration"
)

// GetOrCreateAssessment returns the run's assessment for a control
// implementation, creating it on first use. Concurrent callers for the same
// id share one create.
func (e *Engine) GetOrCreateAssessment(ctx context.Context, controlImplementationID uint) (*models.Assessment, error) {
	if a, ok := e.cachedAssessment(controlImplementationID); ok {
		return a, nil
	}

	key := strconv.FormatUint(uint64(controlImplementationID), 10)
	v, err, _ := e.assessmentFlight.Do(key, func() (interface{}, error) {
		if a, ok := e.cachedAssessment(controlImplementationID); ok {
			return a, nil
		}

		name, ok := e.controlNames[controlImplementationID]
		if !ok {
			name = key
		}
		now := e.now()
		a := &models.Assessment{
			Title:            fmt.Sprintf("%s Assessment for %s", e.integration.Title(), name),
			LeadAssessorID:   e.assessorID,
			AssessmentType:   models.AssessmentTypeControl,
			Status:           models.AssessmentStatusComplete,
			AssessmentResult: models.AssessmentResultFail,
			ParentID:         controlImplementationID,
			ParentModule:     models.ModuleControls,
			PlannedStart:     now,
			PlannedFinish:    now,
			ActualFinish:     &now,
		}
		if err := e.gw.CreateAssessment(ctx, a); err != nil {
			return nil, err
		}

		e.assessmentsMu.Lock()
		e.assessments[controlImplementationID] = a
		e.assessmentsMu.Unlock()
		return a, nil
	})
	if err != nil {
		return nil, fmt.Errorf("creating assessment for control implementation %d: %w", controlImplementationID, err)
	}
	return v.(*models.Assessment), nil
}

func (e *Engine) cachedAssessment(id uint) (*models.Assessment, bool) {
	e.assessmentsMu.Lock()
	defer e.assessmentsMu.Unlock()
	a, ok := e.assessments[id]
	return a, ok
}

// UpdateControlTests runs the control test protocol one finding at a time.
// Every (finding, control implementation) pair appends a test result, so
// re-running with the same input adds result rows while issues stay
// deduplicated.
func (e *Engine) UpdateControlTests(ctx context.Context, findings iter.Seq2[*integration.IntegrationFinding, error]) {
	runPool(ctx, e, "Processing control tests", 1, findings, findingLabel, e.processControlTests)
}

func (e *Engine) processControlTests(ctx context.Context, f *integration.IntegrationFinding) error {
	var errs []error
	for _, id := range f.ControlIDs {
		if err := e.processControlTest(ctx, f, id); err != nil {
			errs = append(errs, fmt.Errorf("control implementation %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) processControlTest(ctx context.Context, f *integration.IntegrationFinding, controlImplementationID uint) error {
	if _, ok := e.controlNames[controlImplementationID]; !ok {
		return fmt.Errorf("not part of plan %d", e.planID)
	}

	assessment, err := e.GetOrCreateAssessment(ctx, controlImplementationID)
	if err != nil {
		return err
	}

	test, err := e.gw.GetOrCreateControlTest(ctx, &models.ControlTest{
		UUID:            f.ExternalID,
		ParentControlID: controlImplementationID,
		TestCriteria:    f.Description,
	})
	if err != nil {
		return err
	}

	result := &models.ControlTestResult{
		ParentTestID:       test.ID,
		ParentAssessmentID: assessment.ID,
		Result:             f.Status.ControlTest(),
		Gaps:               f.Gaps,
		Observations:       f.Observations,
		Evidence:           f.Evidence,
		IdentifiedRisk:     f.IdentifiedRisk,
		Impact:             f.Impact,
		Recommendation:     f.Recommendation,
		AssessedByID:       e.assessorID,
		DateAssessed:       e.now(),
	}
	if err := e.gw.CreateControlTestResult(ctx, result); err != nil {
		return err
	}

	issues, err := e.gw.IssuesByParent(ctx, controlImplementationID, models.ModuleControls)
	if err != nil {
		return fmt.Errorf("loading issues: %w", err)
	}
	_, err = e.handleFinding(ctx, issuePointers(issues), f, controlImplementationID, models.ModuleControls)
	return err
}
