package gateway_test

import (
	"context"
	"testing"

	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/gateway"
	"github.com/hugh/scansync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_CurrentUserID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()

	id, err := gateway.NewStore(db, "default-user").CurrentUserID(gateway.WithUserID(ctx, "api-user"))
	require.NoError(t, err)
	assert.Equal(t, "api-user", id)

	id, err = gateway.NewStore(db, "default-user").CurrentUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "default-user", id)

	_, err = gateway.NewStore(db, "").CurrentUserID(gateway.WithUserID(ctx, ""))
	assert.ErrorIs(t, err, gateway.ErrNoCurrentUser)
}

func TestStore_ControlImplementationMap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	plan := testutil.CreateTestPlan(t, db)
	other := testutil.CreateTestPlan(t, db)

	testutil.CreateTestControlImplementation(t, db, plan.ID, 7, "AC-2(1)")
	testutil.CreateTestControlImplementation(t, db, plan.ID, 8, "CM-6")
	testutil.CreateTestControlImplementation(t, db, other.ID, 9, "SI-2")

	controls, err := gateway.NewStore(db, "").ControlImplementationMap(context.Background(), plan.ID)
	require.NoError(t, err)
	assert.Equal(t, map[uint]string{7: "AC-2(1)", 8: "CM-6"}, controls)
}

func TestStore_AssetMap(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := gateway.NewStore(db, "")

	plan := testutil.CreateTestPlan(t, db)
	other := testutil.CreateTestPlan(t, db)

	direct := testutil.CreateTestAsset(t, db, plan.ID, "web-01")
	duplicate := testutil.CreateTestAsset(t, db, plan.ID, "web-01")
	testutil.CreateTestAsset(t, db, plan.ID, "")
	unrelated := testutil.CreateTestAsset(t, db, other.ID, "db-09")

	// An asset parented elsewhere but reachable through a component mapped
	// into the plan belongs to the plan as well.
	mappedAsset := testutil.CreateTestAsset(t, db, other.ID, "db-01")
	component := &models.Component{Title: "Data Tier", SecurityPlanID: other.ID}
	require.NoError(t, db.Create(component).Error)
	_, err := store.GetOrCreateComponentMapping(ctx, component.ID, plan.ID)
	require.NoError(t, err)
	_, err = store.GetOrCreateAssetMapping(ctx, mappedAsset.ID, component.ID)
	require.NoError(t, err)

	assets, err := store.AssetMap(ctx, plan.ID, models.AssetFieldOtherTrackingNumber)
	require.NoError(t, err)

	require.Len(t, assets, 2)
	assert.Equal(t, direct.ID, assets["web-01"].ID, "oldest duplicate wins")
	assert.NotEqual(t, duplicate.ID, assets["web-01"].ID)
	assert.Equal(t, mappedAsset.ID, assets["db-01"].ID)
	assert.NotContains(t, assets, unrelated.OtherTrackingNumber)

	byName, err := store.AssetMap(ctx, plan.ID, models.AssetFieldName)
	require.NoError(t, err)
	assert.Contains(t, byName, "host-web-01")

	_, err = store.AssetMap(ctx, plan.ID, "serialNumber")
	assert.Error(t, err)
}

func TestStore_AssetMapIncludesAssetsCreatedForPlan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := gateway.NewStore(db, "")

	plan := testutil.CreateTestPlan(t, db)
	other := testutil.CreateTestPlan(t, db)

	parented := testutil.CreateTestAsset(t, db, 999, "host-1")
	require.NoError(t, db.Model(parented).Updates(map[string]interface{}{
		"parent_module":    models.ModuleAssets,
		"security_plan_id": plan.ID,
	}).Error)

	assets, err := store.AssetMap(ctx, plan.ID, models.AssetFieldOtherTrackingNumber)
	require.NoError(t, err)
	require.Contains(t, assets, "host-1")
	assert.Equal(t, parented.ID, assets["host-1"].ID)

	others, err := store.AssetMap(ctx, other.ID, models.AssetFieldOtherTrackingNumber)
	require.NoError(t, err)
	assert.NotContains(t, others, "host-1")
}

func TestStore_GetOrCreateMappingsAreIdempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := gateway.NewStore(db, "")

	plan := testutil.CreateTestPlan(t, db)
	asset := testutil.CreateTestAsset(t, db, plan.ID, "web-01")
	component := &models.Component{Title: "Web Tier", SecurityPlanID: plan.ID}
	require.NoError(t, store.CreateComponent(ctx, component))

	first, err := store.GetOrCreateAssetMapping(ctx, asset.ID, component.ID)
	require.NoError(t, err)
	second, err := store.GetOrCreateAssetMapping(ctx, asset.ID, component.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(1), testutil.CountRows(t, db, &models.AssetMapping{}, ""))

	cm1, err := store.GetOrCreateComponentMapping(ctx, component.ID, plan.ID)
	require.NoError(t, err)
	cm2, err := store.GetOrCreateComponentMapping(ctx, component.ID, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, cm1.ID, cm2.ID)

	assets, err := store.AssetsByComponent(ctx, component.ID)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, asset.ID, assets[0].ID)
}

func TestStore_ComponentsByPlan(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := gateway.NewStore(db, "")

	plan := testutil.CreateTestPlan(t, db)
	other := testutil.CreateTestPlan(t, db)

	owned := &models.Component{Title: "Web Tier", SecurityPlanID: plan.ID}
	shared := &models.Component{Title: "Shared Services", SecurityPlanID: other.ID}
	foreign := &models.Component{Title: "Foreign", SecurityPlanID: other.ID}
	for _, c := range []*models.Component{owned, shared, foreign} {
		require.NoError(t, store.CreateComponent(ctx, c))
	}
	_, err := store.GetOrCreateComponentMapping(ctx, shared.ID, plan.ID)
	require.NoError(t, err)

	components, err := store.ComponentsByPlan(ctx, plan.ID)
	require.NoError(t, err)

	titles := make([]string, len(components))
	for i, c := range components {
		titles[i] = c.Title
	}
	assert.Equal(t, []string{"Web Tier", "Shared Services"}, titles)
}

func TestStore_GetOrCreateControlTest(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := gateway.NewStore(db, "")

	plan := testutil.CreateTestPlan(t, db)
	impl := testutil.CreateTestControlImplementation(t, db, plan.ID, 7, "AC-2(1)")

	first, err := store.GetOrCreateControlTest(ctx, &models.ControlTest{UUID: "V-001", ParentControlID: impl.ID, TestCriteria: "first"})
	require.NoError(t, err)
	second, err := store.GetOrCreateControlTest(ctx, &models.ControlTest{UUID: "V-001", ParentControlID: impl.ID, TestCriteria: "second"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "first", second.TestCriteria)
	assert.Equal(t, int64(1), testutil.CountRows(t, db, &models.ControlTest{}, ""))
}

func TestStore_IssuesByParent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	store := gateway.NewStore(db, "")

	plan := testutil.CreateTestPlan(t, db)
	asset := testutil.CreateTestAsset(t, db, plan.ID, "web-01")

	testutil.CreateTestIssue(t, db, asset.ID, models.ModuleAssets, "V-1", models.IssueStatusOpen)
	testutil.CreateTestIssue(t, db, asset.ID, models.ModuleAssets, "V-2", models.IssueStatusClosed)
	testutil.CreateTestIssue(t, db, asset.ID, models.ModuleControls, "V-3", models.IssueStatusOpen)

	issues, err := store.IssuesByParent(ctx, asset.ID, models.ModuleAssets)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, "V-1", issues[0].OtherIdentifier)
	assert.Equal(t, "V-2", issues[1].OtherIdentifier)
}
