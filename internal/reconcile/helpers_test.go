package reconcile

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sync"
	"testing"

	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/gateway"
	"github.com/hugh/scansync/internal/integration"
	"github.com/hugh/scansync/internal/testutil"
	"github.com/hugh/scansync/pkg/util"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testAssessor = "assessor-1"

// countingGateway records how often each remote call is made.
type countingGateway struct {
	gateway.Gateway

	mu    sync.Mutex
	calls map[string]int

	failControlMap bool
	panicOn        string
	// saveErr, when set, fails every SaveAsset, SaveChecklist and SaveIssue.
	saveErr error
}

func newCountingGateway(db *gorm.DB) *countingGateway {
	return &countingGateway{
		Gateway: gateway.NewStore(db, testAssessor),
		calls:   make(map[string]int),
	}
}

func (c *countingGateway) inc(name string) {
	c.mu.Lock()
	c.calls[name]++
	c.mu.Unlock()
}

func (c *countingGateway) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *countingGateway) reset() {
	c.mu.Lock()
	c.calls = make(map[string]int)
	c.mu.Unlock()
}

func (c *countingGateway) ControlImplementationMap(ctx context.Context, planID uint) (map[uint]string, error) {
	c.inc("ControlImplementationMap")
	if c.failControlMap {
		return nil, errors.New("connection refused")
	}
	return c.Gateway.ControlImplementationMap(ctx, planID)
}

func (c *countingGateway) CreateAsset(ctx context.Context, a *models.Asset) error {
	c.inc("CreateAsset")
	return c.Gateway.CreateAsset(ctx, a)
}

func (c *countingGateway) SaveAsset(ctx context.Context, a *models.Asset) error {
	c.inc("SaveAsset")
	if c.saveErr != nil {
		return c.saveErr
	}
	return c.Gateway.SaveAsset(ctx, a)
}

func (c *countingGateway) CreateComponent(ctx context.Context, comp *models.Component) error {
	c.inc("CreateComponent")
	return c.Gateway.CreateComponent(ctx, comp)
}

func (c *countingGateway) AssetsByComponent(ctx context.Context, componentID uint) ([]models.Asset, error) {
	c.inc("AssetsByComponent")
	return c.Gateway.AssetsByComponent(ctx, componentID)
}

func (c *countingGateway) ChecklistsByAsset(ctx context.Context, assetID uint) ([]models.Checklist, error) {
	c.inc("ChecklistsByAsset")
	return c.Gateway.ChecklistsByAsset(ctx, assetID)
}

func (c *countingGateway) CreateChecklist(ctx context.Context, cl *models.Checklist) error {
	c.inc("CreateChecklist")
	if c.panicOn != "" && cl.VulnerabilityID == c.panicOn {
		panic("checklist service exploded")
	}
	return c.Gateway.CreateChecklist(ctx, cl)
}

func (c *countingGateway) SaveChecklist(ctx context.Context, cl *models.Checklist) error {
	c.inc("SaveChecklist")
	if c.saveErr != nil {
		return c.saveErr
	}
	return c.Gateway.SaveChecklist(ctx, cl)
}

func (c *countingGateway) IssuesByParent(ctx context.Context, parentID uint, parentModule string) ([]models.Issue, error) {
	c.inc("IssuesByParent")
	return c.Gateway.IssuesByParent(ctx, parentID, parentModule)
}

func (c *countingGateway) CreateIssue(ctx context.Context, issue *models.Issue) error {
	c.inc("CreateIssue")
	return c.Gateway.CreateIssue(ctx, issue)
}

func (c *countingGateway) SaveIssue(ctx context.Context, issue *models.Issue) error {
	c.inc("SaveIssue")
	if c.saveErr != nil {
		return c.saveErr
	}
	return c.Gateway.SaveIssue(ctx, issue)
}

func (c *countingGateway) CreateAssessment(ctx context.Context, a *models.Assessment) error {
	c.inc("CreateAssessment")
	return c.Gateway.CreateAssessment(ctx, a)
}

// sliceIntegration yields fixed findings and assets, then fetchErrs errors.
type sliceIntegration struct {
	typ       integration.Type
	findings  []*integration.IntegrationFinding
	assets    []*integration.IntegrationAsset
	fetchErrs int
}

func (s *sliceIntegration) Type() integration.Type {
	if s.typ == "" {
		return integration.TypeChecklist
	}
	return s.typ
}

func (s *sliceIntegration) Title() string                { return "Test Scanner" }
func (s *sliceIntegration) AssetIdentifierField() string { return models.AssetFieldOtherTrackingNumber }

func (s *sliceIntegration) FetchFindings(context.Context, integration.Params) iter.Seq2[*integration.IntegrationFinding, error] {
	return seqOf(s.findings, s.fetchErrs)
}

func (s *sliceIntegration) FetchAssets(context.Context, integration.Params) iter.Seq2[*integration.IntegrationAsset, error] {
	return seqOf(s.assets, s.fetchErrs)
}

func seqOf[T any](items []T, errs int) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, item := range items {
			if !yield(item, nil) {
				return
			}
		}
		var zero T
		for i := 0; i < errs; i++ {
			if !yield(zero, errors.New("scanner returned garbage")) {
				return
			}
		}
	}
}

func testLogger() *slog.Logger {
	return util.DiscardLogger()
}

func newTestEngine(t *testing.T, gw gateway.Gateway, integ integration.Integration, planID uint, cfg *Config) *Engine {
	t.Helper()
	e, err := New(testutil.TestContext(t), integ, gw, planID, testLogger(), cfg)
	require.NoError(t, err)
	return e
}

func checklistFinding(externalID, assetIdentifier string, status models.ChecklistStatus) *integration.IntegrationFinding {
	f := integration.NewIntegrationFinding(externalID, "Rule "+externalID, integration.ChecklistResult(status))
	f.AssetIdentifier = assetIdentifier
	f.Severity = models.IssueSeverityModerate
	f.Description = "Check " + externalID
	return f
}

func controlFinding(externalID string, status models.ControlTestResultStatus, controlIDs ...uint) *integration.IntegrationFinding {
	f := integration.NewIntegrationFinding(externalID, "Control check "+externalID, integration.ControlTestOutcome(status))
	f.ControlIDs = controlIDs
	f.Severity = models.IssueSeverityHigh
	f.Description = "Verify " + externalID
	return f
}

type recordingProgress struct {
	mu       sync.Mutex
	tasks    []string
	total    int
	advanced int
}

func (p *recordingProgress) AddTask(description string, total int) ProgressTask {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, description)
	return &recordingTask{p: p}
}

type recordingTask struct {
	p *recordingProgress
}

func (t *recordingTask) SetTotal(total int) {
	t.p.mu.Lock()
	t.p.total = total
	t.p.mu.Unlock()
}

func (t *recordingTask) Advance(n int) {
	t.p.mu.Lock()
	t.p.advanced += n
	t.p.mu.Unlock()
}
