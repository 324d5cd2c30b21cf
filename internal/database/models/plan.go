package models

// SecurityPlan is the compliance target findings and assets are reconciled against.
type SecurityPlan struct {
	Base
	Title           string `gorm:"not null" json:"title"`
	SystemOwnerID   string `json:"system_owner_id,omitempty"`
	Status          string `json:"status,omitempty"`
	ControlsEnabled bool   `gorm:"default:true" json:"controls_enabled"`
}

func (SecurityPlan) TableName() string {
	return "security_plans"
}

func (SecurityPlan) ModuleString() string {
	return ModuleSecurityPlans
}

// ControlImplementation is a control instantiated for one plan.
type ControlImplementation struct {
	Base
	ParentID     uint   `gorm:"index;not null" json:"parent_id"`
	ParentModule string `gorm:"not null;default:'securityplans'" json:"parent_module"`
	ControlID    string `gorm:"not null" json:"control_id"` // e.g. "AC-2(1)"
	Status       string `json:"status,omitempty"`
	OwnerID      string `json:"owner_id,omitempty"`
}

func (ControlImplementation) TableName() string {
	return "control_implementations"
}

func (ControlImplementation) ModuleString() string {
	return ModuleControls
}
