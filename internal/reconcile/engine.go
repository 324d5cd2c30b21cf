package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/gateway"
	"github.com/hugh/scansync/internal/integration"
	"golang.org/x/sync/singleflight"
)

// ErrControlMap is returned by New when the plan's control implementations
// cannot be loaded.
var ErrControlMap = errors.New("loading control implementation map")

const (
	DefaultFindingWorkers = 3
	DefaultAssetWorkers   = 10
	DefaultCacheSize      = 30

	// Placeholders written to new checklists; scanners do not report them.
	ChecklistBaseline = "Baseline"
	ChecklistVersion  = "1.0"

	issueDueDays = 30
)

// Config tunes an Engine. Zero values fall back to the defaults.
type Config struct {
	FindingWorkers int
	AssetWorkers   int
	CacheSize      int
	Progress       Progress
	Now            func() time.Time
}

func DefaultConfig() *Config {
	return &Config{
		FindingWorkers: DefaultFindingWorkers,
		AssetWorkers:   DefaultAssetWorkers,
		CacheSize:      DefaultCacheSize,
		Progress:       NopProgress{},
		Now:            time.Now,
	}
}

func (c *Config) withDefaults() *Config {
	out := DefaultConfig()
	if c == nil {
		return out
	}
	if c.FindingWorkers > 0 {
		out.FindingWorkers = c.FindingWorkers
	}
	if c.AssetWorkers > 0 {
		out.AssetWorkers = c.AssetWorkers
	}
	if c.CacheSize > 0 {
		out.CacheSize = c.CacheSize
	}
	if c.Progress != nil {
		out.Progress = c.Progress
	}
	if c.Now != nil {
		out.Now = c.Now
	}
	return out
}

// Engine reconciles one integration's findings and assets against one plan.
// All state is per instance and lives for a single sync run.
type Engine struct {
	integration integration.Integration
	gw          gateway.Gateway
	planID      uint
	assessorID  string
	logger      *slog.Logger
	cfg         *Config

	controlNames map[uint]string
	controlIDs   map[string]uint

	assessmentsMu    sync.Mutex
	assessments      map[uint]*models.Assessment
	assessmentFlight singleflight.Group

	assetsMu   sync.RWMutex
	assets     map[string]*models.Asset
	assetLocks *keyedMutex[string]

	componentsMu sync.Mutex
	components   map[string]*models.Component

	componentAssetsMu sync.Mutex
	componentAssets   map[uint][]*models.Asset

	parentLocks *keyedMutex[parentKey]
	checklists  *boundedCache[uint, *checklistSet]
	issues      *boundedCache[parentKey, *issueSet]

	progressMu sync.Mutex
	processed  int
	succeeded  int
	failed     int

	errorsMu sync.Mutex
	errors   []string
}

type parentKey struct {
	id     uint
	module string
}

// checklistSet and issueSet are mutated in place while the owning parent's
// lock is held, so a cached set never misses a record this run created.
type checklistSet struct {
	items []*models.Checklist
}

type issueSet struct {
	items []*models.Issue
}

// New builds an engine for planID. Only a failure to load the control
// implementation map is fatal; the assessor id and asset map fall back to
// empty values.
func New(ctx context.Context, integ integration.Integration, gw gateway.Gateway, planID uint, logger *slog.Logger, cfg *Config) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()

	e := &Engine{
		integration:     integ,
		gw:              gw,
		planID:          planID,
		logger:          logger.With("integration", integ.Title(), "plan_id", planID),
		cfg:             cfg,
		controlIDs:      make(map[string]uint),
		assessments:     make(map[uint]*models.Assessment),
		assets:          make(map[string]*models.Asset),
		assetLocks:      newKeyedMutex[string](),
		components:      make(map[string]*models.Component),
		componentAssets: make(map[uint][]*models.Asset),
		parentLocks:     newKeyedMutex[parentKey](),
		checklists:      newBoundedCache[uint, *checklistSet](cfg.CacheSize),
		issues:          newBoundedCache[parentKey, *issueSet](cfg.CacheSize),
	}

	controls, err := gw.ControlImplementationMap(ctx, planID)
	if err != nil {
		return nil, fmt.Errorf("%w for plan %d: %v", ErrControlMap, planID, err)
	}
	e.controlNames = controls
	for id, name := range controls {
		e.controlIDs[name] = id
	}

	if e.assessorID, err = gw.CurrentUserID(ctx); err != nil {
		e.logger.Warn("failed to resolve assessor", "error", err)
	}

	if err := e.loadAssets(ctx); err != nil {
		e.logger.Warn("failed to load assets", "error", err)
	}

	return e, nil
}

func (e *Engine) PlanID() uint {
	return e.planID
}

func (e *Engine) AssessorID() string {
	return e.assessorID
}

// ControlImplementationID resolves a control name such as "AC-2(1)".
func (e *Engine) ControlImplementationID(name string) (uint, bool) {
	id, ok := e.controlIDs[name]
	return id, ok
}

// ControlName returns the control name of a control implementation id.
func (e *Engine) ControlName(id uint) (string, bool) {
	name, ok := e.controlNames[id]
	return name, ok
}

// LogError records a per-unit failure and logs it.
func (e *Engine) LogError(msg string) {
	e.errorsMu.Lock()
	e.errors = append(e.errors, msg)
	e.errorsMu.Unlock()

	e.logger.Error(msg)
}

// Errors returns a copy of every error logged so far.
func (e *Engine) Errors() []string {
	e.errorsMu.Lock()
	defer e.errorsMu.Unlock()
	out := make([]string, len(e.errors))
	copy(out, e.errors)
	return out
}

func (e *Engine) now() time.Time {
	return e.cfg.Now()
}

func (e *Engine) loadAssets(ctx context.Context) error {
	assets, err := e.gw.AssetMap(ctx, e.planID, e.integration.AssetIdentifierField())
	if err != nil {
		return err
	}

	e.assetsMu.Lock()
	e.assets = assets
	e.assetsMu.Unlock()
	return nil
}

func (e *Engine) assetByIdentifier(identifier string) (*models.Asset, bool) {
	e.assetsMu.RLock()
	defer e.assetsMu.RUnlock()
	a, ok := e.assets[identifier]
	return a, ok
}

func (e *Engine) storeAsset(identifier string, a *models.Asset) {
	e.assetsMu.Lock()
	e.assets[identifier] = a
	e.assetsMu.Unlock()
}
