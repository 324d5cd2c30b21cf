package reconcile

import (
	"fmt"
	"testing"

	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/integration"
	"github.com/hugh/scansync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestUpdateChecklists_CreatesChecklistsAndIssues(t *testing.T) {
	db := testutil.SetupTestDB(t)
	plan := testutil.CreateTestPlan(t, db)
	asset := testutil.CreateTestAsset(t, db, plan.ID, "asset-1")
	gw := newCountingGateway(db)
	progress := &recordingProgress{}
	e := newTestEngine(t, gw, &sliceIntegration{}, plan.ID, &Config{Progress: progress})

	fail := checklistFinding("V-001", "asset-1", models.ChecklistStatusFail)
	fail.CCIRef = "CCI-000044"
	fail.RuleID = "SV-001r1_rule"
	pass := checklistFinding("V-002", "asset-1", models.ChecklistStatusPass)

	e.UpdateChecklists(testutil.TestContext(t), seqOf([]*integration.IntegrationFinding{fail, pass}, 0))

	assert.Empty(t, e.Errors())

	var checklists []models.Checklist
	require.NoError(t, db.Where("asset_id = ?", asset.ID).Order("vulnerability_id").Find(&checklists).Error)
	require.Len(t, checklists, 2)
	assert.Equal(t, models.ChecklistStatusFail, checklists[0].Status)
	assert.Equal(t, models.ChecklistToolSTIGs, checklists[0].Tool)
	assert.Equal(t, ChecklistBaseline, checklists[0].BaselineName)
	assert.Equal(t, ChecklistVersion, checklists[0].Version)
	assert.Equal(t, "Rule V-001", checklists[0].Check)
	assert.Equal(t, "CCI-000044", checklists[0].CCI)
	assert.Equal(t, "SV-001r1_rule", checklists[0].RuleID)
	assert.Equal(t, models.ChecklistStatusPass, checklists[1].Status)

	// only the failing finding opens an issue; a pass with nothing to close is a no-op
	var issues []models.Issue
	require.NoError(t, db.Where("parent_id = ? AND parent_module = ?", asset.ID, models.ModuleAssets).Find(&issues).Error)
	require.Len(t, issues, 1)
	assert.Equal(t, "V-001", issues[0].OtherIdentifier)
	assert.Equal(t, models.IssueStatusOpen, issues[0].Status)

	assert.Equal(t, 1, gw.count("ChecklistsByAsset"))
	assert.Equal(t, 1, gw.count("IssuesByParent"))

	assert.Equal(t, []string{"Processing checklists"}, progress.tasks)
	assert.Equal(t, 2, progress.total)
	assert.Equal(t, 2, progress.advanced)
}

func TestUpdateChecklists_FindOrCreateSameKey(t *testing.T) {
	db := testutil.SetupTestDB(t)
	plan := testutil.CreateTestPlan(t, db)
	asset := testutil.CreateTestAsset(t, db, plan.ID, "asset-1")
	gw := newCountingGateway(db)
	e := newTestEngine(t, gw, &sliceIntegration{}, plan.ID, nil)

	findings := make([]*integration.IntegrationFinding, 5)
	for i := range findings {
		findings[i] = checklistFinding("V-001", "asset-1", models.ChecklistStatusFail)
	}

	e.UpdateChecklists(testutil.TestContext(t), seqOf(findings, 0))

	assert.Empty(t, e.Errors())
	assert.Equal(t, 1, gw.count("CreateChecklist"))
	assert.Equal(t, 4, gw.count("SaveChecklist"))
	assert.Equal(t, 1, gw.count("CreateIssue"))
	assert.Equal(t, 0, gw.count("SaveIssue"))
	assert.Equal(t, int64(1), testutil.CountRows(t, db, &models.Checklist{}, "asset_id = ?", asset.ID))
	assert.Equal(t, int64(1), testutil.CountRows(t, db, &models.Issue{}, ""))
}

func TestUpdateChecklists_StableRerunWritesNoIssues(t *testing.T) {
	db := testutil.SetupTestDB(t)
	plan := testutil.CreateTestPlan(t, db)
	testutil.CreateTestAsset(t, db, plan.ID, "asset-1")
	findings := []*integration.IntegrationFinding{
		checklistFinding("V-001", "asset-1", models.ChecklistStatusFail),
		checklistFinding("V-002", "asset-1", models.ChecklistStatusPass),
	}

	first := newCountingGateway(db)
	newTestEngine(t, first, &sliceIntegration{}, plan.ID, nil).
		UpdateChecklists(testutil.TestContext(t), seqOf(findings, 0))
	require.Equal(t, 1, first.count("CreateIssue"))

	second := newCountingGateway(db)
	e := newTestEngine(t, second, &sliceIntegration{}, plan.ID, nil)
	e.UpdateChecklists(testutil.TestContext(t), seqOf(findings, 0))

	assert.Empty(t, e.Errors())
	assert.Equal(t, 0, second.count("CreateChecklist"))
	assert.Equal(t, 2, second.count("SaveChecklist"))
	assert.Equal(t, 0, second.count("CreateIssue"))
	assert.Equal(t, 0, second.count("SaveIssue"))
}

func TestUpdateChecklists_PassClosesOpenIssue(t *testing.T) {
	db := testutil.SetupTestDB(t)
	plan := testutil.CreateTestPlan(t, db)
	asset := testutil.CreateTestAsset(t, db, plan.ID, "asset-1")
	testutil.CreateTestIssue(t, db, asset.ID, models.ModuleAssets, "V-001", models.IssueStatusOpen)
	e := newTestEngine(t, newCountingGateway(db), &sliceIntegration{}, plan.ID, nil)

	e.UpdateChecklists(testutil.TestContext(t), seqOf([]*integration.IntegrationFinding{
		checklistFinding("V-001", "asset-1", models.ChecklistStatusPass),
	}, 0))

	var issue models.Issue
	require.NoError(t, db.Where("other_identifier = ?", "V-001").First(&issue).Error)
	assert.Equal(t, models.IssueStatusClosed, issue.Status)
	assert.NotNil(t, issue.DateCompleted)
}

func TestUpdateChecklists_FailuresAreIsolated(t *testing.T) {
	db := testutil.SetupTestDB(t)
	plan := testutil.CreateTestPlan(t, db)
	testutil.CreateTestAsset(t, db, plan.ID, "asset-1")
	gw := newCountingGateway(db)
	gw.panicOn = "V-PANIC"
	e := newTestEngine(t, gw, &sliceIntegration{}, plan.ID, nil)

	findings := []*integration.IntegrationFinding{
		checklistFinding("V-001", "asset-1", models.ChecklistStatusFail),
		checklistFinding("V-002", "unknown-asset", models.ChecklistStatusFail),
		checklistFinding("V-PANIC", "asset-1", models.ChecklistStatusFail),
		checklistFinding("V-003", "asset-1", models.ChecklistStatusFail),
	}
	e.UpdateChecklists(testutil.TestContext(t), seqOf(findings, 1))

	report := e.Report(models.SyncKindFindings, e.now())
	assert.Equal(t, 5, report.Processed)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 3, report.Failed)
	require.Len(t, report.Errors, 3)
	assert.False(t, report.OK())

	joined := fmt.Sprint(report.Errors)
	assert.Contains(t, joined, `asset "unknown-asset" not found`)
	assert.Contains(t, joined, "checklist service exploded")
	assert.Contains(t, joined, "scanner returned garbage")

	assert.Equal(t, int64(2), testutil.CountRows(t, db, &models.Checklist{}, ""))
	assert.Equal(t, int64(2), testutil.CountRows(t, db, &models.Issue{}, ""))
}

// Eviction may only add reads. The records written must match a run whose
// caches never evict.
func TestUpdateChecklists_EvictionOnlyCostsReads(t *testing.T) {
	run := func(t *testing.T, cfg *Config) (*gorm.DB, *countingGateway) {
		db := testutil.SetupTestDB(t)
		plan := testutil.CreateTestPlan(t, db)
		for i := 0; i < 5; i++ {
			asset := testutil.CreateTestAsset(t, db, plan.ID, fmt.Sprintf("asset-%d", i))
			testutil.CreateTestIssue(t, db, asset.ID, models.ModuleAssets, "V-PASS", models.IssueStatusOpen)
		}

		// round robin across assets so a one-entry cache misses every time
		var findings []*integration.IntegrationFinding
		for round := 0; round < 2; round++ {
			for v := 0; v < 3; v++ {
				for i := 0; i < 5; i++ {
					findings = append(findings, checklistFinding(fmt.Sprintf("V-%d", v), fmt.Sprintf("asset-%d", i), models.ChecklistStatusFail))
				}
			}
			for i := 0; i < 5; i++ {
				findings = append(findings, checklistFinding("V-PASS", fmt.Sprintf("asset-%d", i), models.ChecklistStatusPass))
			}
		}

		gw := newCountingGateway(db)
		e := newTestEngine(t, gw, &sliceIntegration{}, plan.ID, cfg)
		e.UpdateChecklists(testutil.TestContext(t), seqOf(findings, 0))
		require.Empty(t, e.Errors())
		return db, gw
	}

	cachedDB, cached := run(t, nil)
	evictedDB, evicted := run(t, &Config{FindingWorkers: 1, CacheSize: 1})

	for _, db := range []*gorm.DB{cachedDB, evictedDB} {
		assert.Equal(t, int64(20), testutil.CountRows(t, db, &models.Checklist{}, ""))
		assert.Equal(t, int64(15), testutil.CountRows(t, db, &models.Issue{}, "status = ?", models.IssueStatusOpen))
		assert.Equal(t, int64(5), testutil.CountRows(t, db, &models.Issue{}, "status = ?", models.IssueStatusClosed))
	}

	assert.Equal(t, cached.count("CreateChecklist"), evicted.count("CreateChecklist"))
	assert.Equal(t, cached.count("CreateIssue"), evicted.count("CreateIssue"))
	assert.Equal(t, cached.count("SaveIssue"), evicted.count("SaveIssue"))

	assert.Equal(t, 5, cached.count("ChecklistsByAsset"))
	assert.Equal(t, 5, cached.count("IssuesByParent"))
	assert.Equal(t, 40, evicted.count("ChecklistsByAsset"))
	assert.Equal(t, 40, evicted.count("IssuesByParent"))
}
