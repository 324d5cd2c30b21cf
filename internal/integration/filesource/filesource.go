// Package filesource reads findings and assets from a YAML export file.
package filesource

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"os"
	"time"

	"github.com/hugh/scansync/internal/database/models"
	"github.com/hugh/scansync/internal/integration"
	"gopkg.in/yaml.v3"
)

// Name is the registry name of the file integration.
const Name = "file"

// ParamAsset restricts FetchFindings to one asset identifier.
const ParamAsset = "asset"

const defaultTitle = "File Import"

// Export is the on-disk document.
type Export struct {
	Title                string                            `yaml:"title"`
	Type                 integration.Type                  `yaml:"type"`
	AssetIdentifierField string                            `yaml:"asset_identifier_field"`
	StatusMap            map[string]models.ChecklistStatus `yaml:"status_map"`
	SeverityMap          map[string]models.IssueSeverity   `yaml:"severity_map"`
	Assets               []AssetRecord                     `yaml:"assets"`
	Findings             []FindingRecord                   `yaml:"findings"`
}

type AssetRecord struct {
	Name          string    `yaml:"name"`
	Identifier    string    `yaml:"identifier"`
	AssetType     string    `yaml:"asset_type"`
	AssetCategory string    `yaml:"asset_category"`
	ComponentType string    `yaml:"component_type"`
	ParentID      *uint     `yaml:"parent_id"`
	ParentModule  string    `yaml:"parent_module"`
	Status        string    `yaml:"status"`
	OwnerID       string    `yaml:"owner_id"`
	MACAddress    string    `yaml:"mac_address"`
	FQDN          string    `yaml:"fqdn"`
	IPAddress     string    `yaml:"ip_address"`
	Components    []string  `yaml:"components"`
	LastUpdated   time.Time `yaml:"last_updated"`
}

// FindingRecord carries raw status and severity strings; they are
// normalized through the export's maps layered over the defaults.
type FindingRecord struct {
	ExternalID      string    `yaml:"external_id"`
	Title           string    `yaml:"title"`
	Category        string    `yaml:"category"`
	Severity        string    `yaml:"severity"`
	Status          string    `yaml:"status"`
	Description     string    `yaml:"description"`
	Priority        string    `yaml:"priority"`
	IssueTitle      string    `yaml:"issue_title"`
	IssueType       string    `yaml:"issue_type"`
	ControlIDs      []uint    `yaml:"control_ids"`
	AssetIdentifier string    `yaml:"asset_identifier"`
	CCIRef          string    `yaml:"cci_ref"`
	RuleID          string    `yaml:"rule_id"`
	Results         string    `yaml:"results"`
	Comments        string    `yaml:"comments"`
	Gaps            string    `yaml:"gaps"`
	Observations    string    `yaml:"observations"`
	Evidence        string    `yaml:"evidence"`
	IdentifiedRisk  string    `yaml:"identified_risk"`
	Impact          string    `yaml:"impact"`
	Recommendation  string    `yaml:"recommendation"`
	Created         time.Time `yaml:"created"`
	LastUpdated     time.Time `yaml:"last_updated"`
}

// Source is an integration backed by one parsed export.
type Source struct {
	export   Export
	mappings integration.Mappings
	now      func() time.Time
}

var _ integration.Integration = (*Source)(nil)

// Open reads and parses an export file.
func Open(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading export: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing export %s: %w", path, err)
	}
	return s, nil
}

// Parse builds a Source from export bytes.
func Parse(data []byte) (*Source, error) {
	var export Export
	if err := yaml.Unmarshal(data, &export); err != nil {
		return nil, err
	}

	if export.Title == "" {
		export.Title = defaultTitle
	}
	switch export.Type {
	case "":
		export.Type = integration.TypeChecklist
	case integration.TypeChecklist, integration.TypeControlTest:
	default:
		return nil, fmt.Errorf("unsupported integration type %q", export.Type)
	}
	if export.AssetIdentifierField == "" {
		export.AssetIdentifierField = models.AssetFieldOtherTrackingNumber
	}
	if !models.ValidIdentifierField(export.AssetIdentifierField) {
		return nil, fmt.Errorf("unsupported asset identifier field %q", export.AssetIdentifierField)
	}

	mappings := integration.DefaultMappings().Merge(integration.Mappings{
		Status:   export.StatusMap,
		Severity: export.SeverityMap,
	})

	return &Source{export: export, mappings: mappings, now: time.Now}, nil
}

// Register adds the file integration to r. The source is the export path.
func Register(r *integration.Registry) {
	r.Register(Name, func(source string) (integration.Integration, error) {
		return Open(source)
	})
}

func (s *Source) Type() integration.Type {
	return s.export.Type
}

func (s *Source) Title() string {
	return s.export.Title
}

func (s *Source) AssetIdentifierField() string {
	return s.export.AssetIdentifierField
}

func (s *Source) FetchFindings(ctx context.Context, params integration.Params) iter.Seq2[*integration.IntegrationFinding, error] {
	onlyAsset := params[ParamAsset]
	return func(yield func(*integration.IntegrationFinding, error) bool) {
		for i, rec := range s.export.Findings {
			if ctx.Err() != nil {
				return
			}
			if onlyAsset != "" && rec.AssetIdentifier != onlyAsset {
				continue
			}
			f, err := s.finding(rec)
			if err != nil {
				err = fmt.Errorf("finding %d: %w", i, err)
			}
			if !yield(f, err) {
				return
			}
		}
	}
}

func (s *Source) FetchAssets(ctx context.Context, _ integration.Params) iter.Seq2[*integration.IntegrationAsset, error] {
	return func(yield func(*integration.IntegrationAsset, error) bool) {
		for i, rec := range s.export.Assets {
			if ctx.Err() != nil {
				return
			}
			a, err := s.asset(rec)
			if err != nil {
				err = fmt.Errorf("asset %d: %w", i, err)
			}
			if !yield(a, err) {
				return
			}
		}
	}
}

func (s *Source) finding(rec FindingRecord) (*integration.IntegrationFinding, error) {
	if rec.ExternalID == "" {
		return nil, errors.New("missing external_id")
	}
	if s.export.Type == integration.TypeChecklist && rec.AssetIdentifier == "" {
		return nil, fmt.Errorf("finding %s: missing asset_identifier", rec.ExternalID)
	}

	status := integration.ChecklistResult(s.mappings.FindingStatus(rec.Status))
	if s.export.Type == integration.TypeControlTest {
		status = integration.ControlTestOutcome(status.ControlTest())
	}

	f := &integration.IntegrationFinding{
		ControlIDs:      rec.ControlIDs,
		Title:           rec.Title,
		Category:        rec.Category,
		Severity:        s.mappings.FindingSeverity(rec.Severity),
		Description:     rec.Description,
		Status:          status,
		Priority:        rec.Priority,
		IssueTitle:      rec.IssueTitle,
		IssueType:       rec.IssueType,
		DateCreated:     rec.Created,
		DateLastUpdated: rec.LastUpdated,
		ExternalID:      rec.ExternalID,
		Gaps:            rec.Gaps,
		Observations:    rec.Observations,
		Evidence:        rec.Evidence,
		IdentifiedRisk:  rec.IdentifiedRisk,
		Impact:          rec.Impact,
		Recommendation:  rec.Recommendation,
		AssetIdentifier: rec.AssetIdentifier,
		CCIRef:          rec.CCIRef,
		RuleID:          rec.RuleID,
		Results:         rec.Results,
		Comments:        rec.Comments,
	}
	f.ApplyDefaults(s.now())
	return f, nil
}

func (s *Source) asset(rec AssetRecord) (*integration.IntegrationAsset, error) {
	if rec.Identifier == "" {
		return nil, fmt.Errorf("asset %q: missing identifier", rec.Name)
	}
	name := rec.Name
	if name == "" {
		name = rec.Identifier
	}

	a := &integration.IntegrationAsset{
		Name:            name,
		Identifier:      rec.Identifier,
		AssetType:       rec.AssetType,
		AssetCategory:   rec.AssetCategory,
		ComponentType:   rec.ComponentType,
		ParentID:        rec.ParentID,
		ParentModule:    rec.ParentModule,
		Status:          rec.Status,
		DateLastUpdated: rec.LastUpdated,
		AssetOwnerID:    rec.OwnerID,
		MACAddress:      rec.MACAddress,
		FQDN:            rec.FQDN,
		IPAddress:       rec.IPAddress,
		ComponentNames:  rec.Components,
	}
	a.ApplyDefaults(s.now())
	return a, nil
}
