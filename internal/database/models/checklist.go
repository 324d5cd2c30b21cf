package models

import "time"

type ChecklistStatus string

const (
	ChecklistStatusPass          ChecklistStatus = "Pass"
	ChecklistStatusFail          ChecklistStatus = "Fail"
	ChecklistStatusNotApplicable ChecklistStatus = "Not Applicable"
	ChecklistStatusNotReviewed   ChecklistStatus = "Not Reviewed"
)

type ChecklistTool string

const (
	ChecklistToolSTIGs ChecklistTool = "STIGs"
	ChecklistToolCIS   ChecklistTool = "CIS Benchmarks"
)

// Checklist records one scanner rule outcome for one asset, deduplicated by
// (asset, vulnerability id, tool).
type Checklist struct {
	Base
	AssetID         uint            `gorm:"index;not null" json:"asset_id"`
	Status          ChecklistStatus `gorm:"not null" json:"status"`
	Tool            ChecklistTool   `gorm:"not null" json:"tool"`
	BaselineName    string          `json:"baseline"`
	Version         string          `json:"version"`
	VulnerabilityID string          `gorm:"index" json:"vulnerability_id"`
	Results         string          `gorm:"type:text" json:"results,omitempty"`
	Check           string          `json:"check"`
	CCI             string          `json:"cci,omitempty"`
	RuleID          string          `json:"rule_id,omitempty"`
	Comments        string          `gorm:"type:text" json:"comments,omitempty"`
	Datetime        time.Time       `json:"datetime"`
}

func (Checklist) TableName() string {
	return "checklists"
}
