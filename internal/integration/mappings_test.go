package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hugh/scansync/internal/database/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMappings_Defaults(t *testing.T) {
	m := DefaultMappings()

	assert.Equal(t, models.ChecklistStatusPass, m.FindingStatus("NotAFinding"))
	assert.Equal(t, models.ChecklistStatusFail, m.FindingStatus(" Open "))
	assert.Equal(t, models.ChecklistStatusNotReviewed, m.FindingStatus("something-new"))
	assert.Equal(t, models.ChecklistStatusNotReviewed, m.FindingStatus(""))

	assert.Equal(t, models.IssueSeverityHigh, m.FindingSeverity("CAT I"))
	assert.Equal(t, models.IssueSeverityLow, m.FindingSeverity("low"))
	assert.Equal(t, models.IssueSeverityNotAssigned, m.FindingSeverity("bogus"))
}

func TestMappings_Merge(t *testing.T) {
	m := DefaultMappings().Merge(Mappings{
		Status:   map[string]models.ChecklistStatus{"Failed": models.ChecklistStatusFail, "open": models.ChecklistStatusNotReviewed},
		Severity: map[string]models.IssueSeverity{"SEV1": models.IssueSeverityHigh},
	})

	assert.Equal(t, models.ChecklistStatusFail, m.FindingStatus("failed"))
	assert.Equal(t, models.ChecklistStatusNotReviewed, m.FindingStatus("open"))
	assert.Equal(t, models.ChecklistStatusPass, m.FindingStatus("pass"))
	assert.Equal(t, models.IssueSeverityHigh, m.FindingSeverity("sev1"))
}

func TestLoadMappings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mappings.yaml")
	content := `status:
  passed: Pass
  error: Fail
severity:
  urgent: "I - High - Significant Deficiency"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	m, err := LoadMappings(path)
	require.NoError(t, err)

	assert.Equal(t, models.ChecklistStatusPass, m.FindingStatus("Passed"))
	assert.Equal(t, models.ChecklistStatusFail, m.FindingStatus("error"))
	assert.Equal(t, models.IssueSeverityHigh, m.FindingSeverity("urgent"))
	// defaults survive
	assert.Equal(t, models.IssueSeverityModerate, m.FindingSeverity("medium"))
}

func TestLoadMappings_Errors(t *testing.T) {
	_, err := LoadMappings(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("status: [unclosed"), 0o600))
	_, err = LoadMappings(path)
	assert.Error(t, err)
}
