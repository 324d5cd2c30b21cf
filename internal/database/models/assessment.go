package models

import "time"

const (
	AssessmentStatusComplete = "Complete"
	AssessmentResultFail     = "Fail"
	AssessmentResultPass     = "Pass"
	AssessmentTypeControl    = "Control Testing"
)

// Assessment groups one evaluation pass over a control implementation.
type Assessment struct {
	Base
	Title            string     `gorm:"not null" json:"title"`
	LeadAssessorID   string     `json:"lead_assessor_id"`
	AssessmentType   string     `json:"assessment_type"`
	Status           string     `gorm:"not null" json:"status"`
	AssessmentResult string     `json:"assessment_result"`
	ParentID         uint       `gorm:"index;not null" json:"parent_id"`
	ParentModule     string     `gorm:"not null" json:"parent_module"`
	PlannedStart     time.Time  `json:"planned_start"`
	PlannedFinish    time.Time  `json:"planned_finish"`
	ActualFinish     *time.Time `json:"actual_finish,omitempty"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// ControlTest is a reusable test definition keyed by (UUID, parent control).
type ControlTest struct {
	Base
	UUID            string `gorm:"uniqueIndex:idx_control_tests_uuid_control;not null" json:"uuid"`
	ParentControlID uint   `gorm:"uniqueIndex:idx_control_tests_uuid_control;not null" json:"parent_control_id"`
	TestCriteria    string `gorm:"type:text" json:"test_criteria"`
}

func (ControlTest) TableName() string {
	return "control_tests"
}

type ControlTestResultStatus string

const (
	ControlTestResultPass          ControlTestResultStatus = "Pass"
	ControlTestResultFail          ControlTestResultStatus = "Fail"
	ControlTestResultNotApplicable ControlTestResultStatus = "Not Applicable"
)

// ControlTestResult is append-only: every control-test sync adds one row per
// (finding, control implementation).
type ControlTestResult struct {
	Base
	ParentTestID       uint                    `gorm:"index;not null" json:"parent_test_id"`
	ParentAssessmentID uint                    `gorm:"index;not null" json:"parent_assessment_id"`
	Result             ControlTestResultStatus `gorm:"not null" json:"result"`
	Gaps               string                  `gorm:"type:text" json:"gaps,omitempty"`
	Observations       string                  `gorm:"type:text" json:"observations,omitempty"`
	Evidence           string                  `gorm:"type:text" json:"evidence,omitempty"`
	IdentifiedRisk     string                  `gorm:"type:text" json:"identified_risk,omitempty"`
	Impact             string                  `gorm:"type:text" json:"impact,omitempty"`
	Recommendation     string                  `gorm:"type:text" json:"recommendation,omitempty"`
	AssessedByID       string                  `json:"assessed_by_id"`
	DateAssessed       time.Time               `json:"date_assessed"`
}

func (ControlTestResult) TableName() string {
	return "control_test_results"
}
