package integration

import "github.com/hugh/scansync/internal/database/models"

type statusKind uint8

const (
	statusUnset statusKind = iota
	statusChecklist
	statusControlTest
)

// FindingStatus is either a checklist status or a control test result.
// Both protocols read it through IsPass, Checklist and ControlTest, so
// neither needs to know which variant a scanner produced.
type FindingStatus struct {
	kind        statusKind
	checklist   models.ChecklistStatus
	controlTest models.ControlTestResultStatus
}

// ChecklistResult wraps a checklist status.
func ChecklistResult(s models.ChecklistStatus) FindingStatus {
	return FindingStatus{kind: statusChecklist, checklist: s}
}

// ControlTestOutcome wraps a control test result.
func ControlTestOutcome(s models.ControlTestResultStatus) FindingStatus {
	return FindingStatus{kind: statusControlTest, controlTest: s}
}

func (s FindingStatus) IsZero() bool {
	return s.kind == statusUnset
}

// IsControlTest reports whether the scanner produced a control test result.
func (s FindingStatus) IsControlTest() bool {
	return s.kind == statusControlTest
}

func (s FindingStatus) IsPass() bool {
	switch s.kind {
	case statusChecklist:
		return s.checklist == models.ChecklistStatusPass
	case statusControlTest:
		return s.controlTest == models.ControlTestResultPass
	}
	return false
}

// Checklist returns the status as a checklist status. An unset status reads
// as not reviewed.
func (s FindingStatus) Checklist() models.ChecklistStatus {
	switch s.kind {
	case statusChecklist:
		return s.checklist
	case statusControlTest:
		switch s.controlTest {
		case models.ControlTestResultPass:
			return models.ChecklistStatusPass
		case models.ControlTestResultNotApplicable:
			return models.ChecklistStatusNotApplicable
		default:
			return models.ChecklistStatusFail
		}
	}
	return models.ChecklistStatusNotReviewed
}

// ControlTest returns the status as a control test result. Anything that is
// not a pass or not-applicable reads as a failure.
func (s FindingStatus) ControlTest() models.ControlTestResultStatus {
	switch s.kind {
	case statusControlTest:
		return s.controlTest
	case statusChecklist:
		switch s.checklist {
		case models.ChecklistStatusPass:
			return models.ControlTestResultPass
		case models.ChecklistStatusNotApplicable:
			return models.ControlTestResultNotApplicable
		}
	}
	return models.ControlTestResultFail
}

func (s FindingStatus) String() string {
	switch s.kind {
	case statusChecklist:
		return string(s.checklist)
	case statusControlTest:
		return string(s.controlTest)
	}
	return ""
}
