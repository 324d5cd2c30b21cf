package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base is embedded by every compliance-system entity. Ids are integers, as
// the compliance system hands them out.
type Base struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UUIDBase is used by records this service owns itself.
type UUIDBase struct {
	ID        uuid.UUID `gorm:"type:uuid;primary_key" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b *UUIDBase) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Module strings tag the entity type a polymorphic parent id refers to.
const (
	ModuleSecurityPlans = "securityplans"
	ModuleControls      = "controls"
	ModuleAssets        = "assets"
	ModuleComponents    = "components"
)

// All lists every table for AutoMigrate.
func All() []interface{} {
	return []interface{}{
		&SecurityPlan{},
		&ControlImplementation{},
		&Asset{},
		&AssetMapping{},
		&Component{},
		&ComponentMapping{},
		&Checklist{},
		&Issue{},
		&Assessment{},
		&ControlTest{},
		&ControlTestResult{},
		&SyncRun{},
	}
}
