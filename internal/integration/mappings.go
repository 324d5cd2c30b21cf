package integration

import (
	"fmt"
	"os"
	"strings"

	"github.com/hugh/scansync/internal/database/models"
	"gopkg.in/yaml.v3"
)

// Mappings normalize a scanner's raw status and severity strings.
type Mappings struct {
	Status   map[string]models.ChecklistStatus `yaml:"status"`
	Severity map[string]models.IssueSeverity   `yaml:"severity"`
}

// DefaultMappings covers the vocabulary of common STIG/XCCDF exports.
func DefaultMappings() Mappings {
	return Mappings{
		Status: map[string]models.ChecklistStatus{
			"pass":           models.ChecklistStatusPass,
			"notafinding":    models.ChecklistStatusPass,
			"not_a_finding":  models.ChecklistStatusPass,
			"fail":           models.ChecklistStatusFail,
			"open":           models.ChecklistStatusFail,
			"not_applicable": models.ChecklistStatusNotApplicable,
			"notapplicable":  models.ChecklistStatusNotApplicable,
			"not_reviewed":   models.ChecklistStatusNotReviewed,
			"notreviewed":    models.ChecklistStatusNotReviewed,
		},
		Severity: map[string]models.IssueSeverity{
			"high":     models.IssueSeverityHigh,
			"cat i":    models.IssueSeverityHigh,
			"medium":   models.IssueSeverityModerate,
			"cat ii":   models.IssueSeverityModerate,
			"low":      models.IssueSeverityLow,
			"cat iii":  models.IssueSeverityLow,
			"info":     models.IssueSeverityNotAssigned,
			"unknown":  models.IssueSeverityNotAssigned,
			"critical": models.IssueSeverityHigh,
		},
	}
}

// FindingStatus normalizes a raw status. Unknown values are not reviewed.
func (m Mappings) FindingStatus(raw string) models.ChecklistStatus {
	if s, ok := lookup(m.Status, raw); ok {
		return s
	}
	return models.ChecklistStatusNotReviewed
}

// FindingSeverity normalizes a raw severity. Unknown values are not assigned.
func (m Mappings) FindingSeverity(raw string) models.IssueSeverity {
	if s, ok := lookup(m.Severity, raw); ok {
		return s
	}
	return models.IssueSeverityNotAssigned
}

// Merge returns m with every entry of other layered on top.
func (m Mappings) Merge(other Mappings) Mappings {
	out := Mappings{
		Status:   make(map[string]models.ChecklistStatus, len(m.Status)+len(other.Status)),
		Severity: make(map[string]models.IssueSeverity, len(m.Severity)+len(other.Severity)),
	}
	for k, v := range m.Status {
		out.Status[normalizeKey(k)] = v
	}
	for k, v := range other.Status {
		out.Status[normalizeKey(k)] = v
	}
	for k, v := range m.Severity {
		out.Severity[normalizeKey(k)] = v
	}
	for k, v := range other.Severity {
		out.Severity[normalizeKey(k)] = v
	}
	return out
}

// LoadMappings reads a YAML mappings file and layers it over the defaults.
func LoadMappings(path string) (Mappings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Mappings{}, fmt.Errorf("reading mappings: %w", err)
	}

	var m Mappings
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Mappings{}, fmt.Errorf("parsing mappings %s: %w", path, err)
	}
	return DefaultMappings().Merge(m), nil
}

func lookup[V any](m map[string]V, raw string) (V, bool) {
	if v, ok := m[raw]; ok {
		return v, true
	}
	v, ok := m[normalizeKey(raw)]
	return v, ok
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
