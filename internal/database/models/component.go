package models

type Component struct {
	Base
	Title            string `gorm:"not null;index" json:"title"`
	Description      string `json:"description,omitempty"`
	ComponentType    string `json:"component_type"`
	ComponentOwnerID string `json:"component_owner_id"`
	SecurityPlanID   uint   `gorm:"index" json:"security_plan_id"`
	Status           string `gorm:"default:'Active'" json:"status"`
}

func (Component) TableName() string {
	return "components"
}

func (Component) ModuleString() string {
	return ModuleComponents
}

// ComponentMapping links a component to a plan.
type ComponentMapping struct {
	Base
	ComponentID    uint `gorm:"uniqueIndex:idx_component_mappings_component_plan;not null" json:"component_id"`
	SecurityPlanID uint `gorm:"uniqueIndex:idx_component_mappings_component_plan;not null" json:"security_plan_id"`
}

func (ComponentMapping) TableName() string {
	return "component_mappings"
}
