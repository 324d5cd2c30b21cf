package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hugh/scansync/internal/api/handlers"
	"github.com/hugh/scansync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h := handlers.NewHealthHandler(db, nil)

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var resp handlers.HealthResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, map[string]string{"database": "healthy"}, resp.Services)

	rr = httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestHealthHandler_DatabaseDown(t *testing.T) {
	db := testutil.SetupTestDB(t)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	h := handlers.NewHealthHandler(db, nil)

	rr := httptest.NewRecorder()
	h.Health(rr, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	rr = httptest.NewRecorder()
	h.Ready(rr, httptest.NewRequest("GET", "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
