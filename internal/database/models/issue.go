package models

import "time"

type IssueStatus string

const (
	IssueStatusOpen   IssueStatus = "Open"
	IssueStatusClosed IssueStatus = "Closed"
)

type IssueSeverity string

const (
	IssueSeverityHigh        IssueSeverity = "I - High - Significant Deficiency"
	IssueSeverityModerate    IssueSeverity = "II - Moderate - Reportable Condition"
	IssueSeverityLow         IssueSeverity = "III - Low - Other Weakness"
	IssueSeverityNotAssigned IssueSeverity = "IV - Not Assigned"
)

const (
	IssueIdentificationVulnerabilityAssessment = "Vulnerability Assessment"
	IssueSourceSTIG                            = "STIG"
)

// Issue tracks remediation of a failing finding. OtherIdentifier carries the
// finding's external id and is the dedup key among non-closed issues of a
// parent.
type Issue struct {
	Base
	Title             string        `gorm:"not null" json:"title"`
	Description       string        `gorm:"type:text" json:"description,omitempty"`
	Severity          IssueSeverity `gorm:"not null" json:"severity"`
	Status            IssueStatus   `gorm:"not null;index" json:"status"`
	Identification    string        `json:"identification"`
	OtherIdentifier   string        `gorm:"index" json:"other_identifier"`
	SourceReport      string        `json:"source_report"`
	ParentID          uint          `gorm:"index;not null" json:"parent_id"`
	ParentModule      string        `gorm:"index;not null" json:"parent_module"`
	IssueOwnerID      string        `json:"issue_owner_id"`
	SecurityPlanID    uint          `gorm:"index" json:"security_plan_id"`
	DueDate           time.Time     `json:"due_date"`
	DateFirstDetected time.Time     `json:"date_first_detected"`
	DateLastUpdated   time.Time     `json:"date_last_updated"`
	DateCompleted     *time.Time    `json:"date_completed,omitempty"`
}

func (Issue) TableName() string {
	return "issues"
}

func (i *Issue) IsClosed() bool {
	return i.Status == IssueStatusClosed
}
