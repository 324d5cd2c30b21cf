package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/scansync/internal/auth"
	"github.com/hugh/scansync/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates a private in-memory SQLite database for one test.
// A single connection serializes concurrent sync workers instead of letting
// them trip over SQLite's writer lock.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	t.Cleanup(func() { CleanupTestDB(t, db) })
	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// CreateTestPlan creates a security plan
func CreateTestPlan(t *testing.T, db *gorm.DB) *models.SecurityPlan {
	t.Helper()

	plan := &models.SecurityPlan{
		Title:  "Test Plan " + uuid.NewString()[:8],
		Status: "Operational",
	}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("failed to create test plan: %v", err)
	}
	return plan
}

// CreateTestControlImplementation attaches a control to the plan. A
// non-zero id forces the primary key.
func CreateTestControlImplementation(t *testing.T, db *gorm.DB, planID, id uint, controlID string) *models.ControlImplementation {
	t.Helper()

	impl := &models.ControlImplementation{
		Base:         models.Base{ID: id},
		ParentID:     planID,
		ParentModule: models.ModuleSecurityPlans,
		ControlID:    controlID,
		Status:       "Implemented",
	}
	if err := db.Create(impl).Error; err != nil {
		t.Fatalf("failed to create control implementation: %v", err)
	}
	return impl
}

// CreateTestAsset creates an asset parented to the plan and keyed by
// identifier in otherTrackingNumber.
func CreateTestAsset(t *testing.T, db *gorm.DB, planID uint, identifier string) *models.Asset {
	t.Helper()

	asset := &models.Asset{
		Name:                "host-" + identifier,
		OtherTrackingNumber: identifier,
		AssetOwnerID:        "owner-1",
		ParentID:            planID,
		ParentModule:        models.ModuleSecurityPlans,
		AssetType:           "Virtual Machine (VM)",
		AssetCategory:       "Hardware",
		Status:              models.AssetStatusActive,
		DateLastUpdated:     time.Now(),
	}
	if err := db.Create(asset).Error; err != nil {
		t.Fatalf("failed to create test asset: %v", err)
	}
	return asset
}

// CreateTestIssue creates an issue for the given parent.
func CreateTestIssue(t *testing.T, db *gorm.DB, parentID uint, parentModule, externalID string, status models.IssueStatus) *models.Issue {
	t.Helper()

	now := time.Now()
	issue := &models.Issue{
		Title:             "Issue " + externalID,
		Severity:          models.IssueSeverityModerate,
		Status:            status,
		Identification:    models.IssueIdentificationVulnerabilityAssessment,
		OtherIdentifier:   externalID,
		SourceReport:      models.IssueSourceSTIG,
		ParentID:          parentID,
		ParentModule:      parentModule,
		DueDate:           now.AddDate(0, 0, 30),
		DateFirstDetected: now,
		DateLastUpdated:   now,
	}
	if err := db.Create(issue).Error; err != nil {
		t.Fatalf("failed to create test issue: %v", err)
	}
	return issue
}

// CountRows counts rows of model matching an optional where clause.
func CountRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()

	var count int64
	q := db.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	return count
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken issues a service token for the given user id
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, userID string) string {
	t.Helper()

	token, err := jwtService.GenerateToken(userID, userID+"@example.com")
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}
	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Plan       *models.SecurityPlan
	UserID     string
	Token      string
}

// NewTestContext creates a complete test setup with DB, plan, user and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	plan := CreateTestPlan(t, db)
	userID := "user-" + uuid.NewString()[:8]

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Plan:       plan,
		UserID:     userID,
		Token:      GenerateTestToken(t, jwtService, userID),
	}
}
