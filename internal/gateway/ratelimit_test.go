package gateway_test

import (
	"context"
	"testing"
	"time"

	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/gateway"
	"github.com/hugh/scansync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimited_HonorsCancellation(t *testing.T) {
	// next is never reached once the context is done
	gw := gateway.NewRateLimited(nil, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.IssuesByParent(ctx, 1, models.ModuleAssets)
	assert.ErrorIs(t, err, context.Canceled)

	err = gw.CreateChecklist(ctx, &models.Checklist{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRateLimited_Throttles(t *testing.T) {
	db := testutil.SetupTestDB(t)
	plan := testutil.CreateTestPlan(t, db)

	gw := gateway.NewRateLimited(gateway.NewStore(db, ""), 50, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 4; i++ {
		_, err := gw.ControlImplementationMap(ctx, plan.ID)
		require.NoError(t, err)
	}
	// One call rides the burst, three wait 20ms each.
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRateLimited_Unlimited(t *testing.T) {
	db := testutil.SetupTestDB(t)
	plan := testutil.CreateTestPlan(t, db)

	gw := gateway.NewRateLimited(gateway.NewStore(db, "default-user"), 0, 0)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		_, err := gw.ControlImplementationMap(ctx, plan.ID)
		require.NoError(t, err)
	}

	id, err := gw.CurrentUserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "default-user", id)
}
