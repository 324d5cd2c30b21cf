package integration

import (
	"time"

	"github.com/hugh/scansync/internal/database/models"
)

// IntegrationAsset is one asset as observed by the external source.
// Identifier is the join key against the plan's assets and must be stable
// across syncs.
type IntegrationAsset struct {
	Name          string
	Identifier    string
	AssetType     string
	AssetCategory string
	ComponentType string

	// Parent defaults to the plan being synced.
	ParentID     *uint
	ParentModule string

	Status          string
	DateLastUpdated time.Time
	AssetOwnerID    string
	MACAddress      string
	FQDN            string
	IPAddress       string

	// Components are created on demand when the plan lacks them.
	ComponentNames []string
}

// NewIntegrationAsset returns an asset with defaults applied.
func NewIntegrationAsset(name, identifier, assetType, assetCategory string) *IntegrationAsset {
	a := &IntegrationAsset{
		Name:          name,
		Identifier:    identifier,
		AssetType:     assetType,
		AssetCategory: assetCategory,
	}
	a.ApplyDefaults(time.Now())
	return a
}

// ApplyDefaults fills the status and timestamp when they are unset.
func (a *IntegrationAsset) ApplyDefaults(now time.Time) {
	if a.Status == "" {
		a.Status = models.AssetStatusActive
	}
	if a.DateLastUpdated.IsZero() {
		a.DateLastUpdated = now
	}
}

const DefaultPriority = "Medium"

// IntegrationFinding is one check result from the external source.
// ExternalID deduplicates both checklists (vulnerability id) and issues.
type IntegrationFinding struct {
	// Control implementation ids, used by the control test protocol only.
	ControlIDs []uint

	Title       string
	Category    string
	Severity    models.IssueSeverity
	Description string
	Status      FindingStatus
	Priority    string
	IssueTitle  string
	IssueType   string

	DateCreated     time.Time
	DateLastUpdated time.Time

	ExternalID     string
	Gaps           string
	Observations   string
	Evidence       string
	IdentifiedRisk string
	Impact         string
	Recommendation string

	AssetIdentifier string
	CCIRef          string
	RuleID          string
	Results         string
	Comments        string
}

// NewIntegrationFinding returns a finding with defaults applied.
func NewIntegrationFinding(externalID, title string, status FindingStatus) *IntegrationFinding {
	f := &IntegrationFinding{
		ExternalID: externalID,
		Title:      title,
		Status:     status,
	}
	f.ApplyDefaults(time.Now())
	return f
}

// ApplyDefaults fills priority, severity, status and timestamps when unset.
func (f *IntegrationFinding) ApplyDefaults(now time.Time) {
	if f.Priority == "" {
		f.Priority = DefaultPriority
	}
	if f.Severity == "" {
		f.Severity = models.IssueSeverityNotAssigned
	}
	if f.Status.IsZero() {
		f.Status = ChecklistResult(models.ChecklistStatusNotReviewed)
	}
	if f.DateCreated.IsZero() {
		f.DateCreated = now
	}
	if f.DateLastUpdated.IsZero() {
		f.DateLastUpdated = now
	}
}

// IssueTitleOrDefault is the title an issue for this finding gets.
func (f *IntegrationFinding) IssueTitleOrDefault() string {
	if f.IssueTitle != "" {
		return f.IssueTitle
	}
	return f.Title
}
