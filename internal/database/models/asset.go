package models

import (
	"fmt"
	"time"
)

const AssetStatusActive = "Active (On Network)"

// Fields an integration may use as its asset join key.
const (
	AssetFieldOtherTrackingNumber = "otherTrackingNumber"
	AssetFieldIPAddress           = "ipAddress"
	AssetFieldFQDN                = "fqdn"
	AssetFieldMACAddress          = "macAddress"
	AssetFieldName                = "name"
)

type Asset struct {
	Base
	Name                string    `gorm:"not null" json:"name"`
	OtherTrackingNumber string    `gorm:"index" json:"other_tracking_number,omitempty"`
	IPAddress           string    `gorm:"index" json:"ip_address,omitempty"`
	MACAddress          string    `json:"mac_address,omitempty"`
	FQDN                string    `json:"fqdn,omitempty"`
	AssetOwnerID        string    `json:"asset_owner_id"`
	ParentID            uint      `gorm:"index;not null" json:"parent_id"`
	ParentModule        string    `gorm:"not null" json:"parent_module"`
	SecurityPlanID      uint      `gorm:"index" json:"security_plan_id,omitempty"`
	AssetType           string    `json:"asset_type"`
	AssetCategory       string    `json:"asset_category"`
	Status              string    `gorm:"not null" json:"status"`
	DateLastUpdated     time.Time `json:"date_last_updated"`
}

func (Asset) TableName() string {
	return "assets"
}

func (Asset) ModuleString() string {
	return ModuleAssets
}

// Identifier returns the value of the named join-key field.
func (a *Asset) Identifier(field string) string {
	switch field {
	case AssetFieldOtherTrackingNumber:
		return a.OtherTrackingNumber
	case AssetFieldIPAddress:
		return a.IPAddress
	case AssetFieldFQDN:
		return a.FQDN
	case AssetFieldMACAddress:
		return a.MACAddress
	case AssetFieldName:
		return a.Name
	}
	return ""
}

// SetIdentifier writes value into the named join-key field.
func (a *Asset) SetIdentifier(field, value string) error {
	switch field {
	case AssetFieldOtherTrackingNumber:
		a.OtherTrackingNumber = value
	case AssetFieldIPAddress:
		a.IPAddress = value
	case AssetFieldFQDN:
		a.FQDN = value
	case AssetFieldMACAddress:
		a.MACAddress = value
	case AssetFieldName:
		a.Name = value
	default:
		return fmt.Errorf("unsupported asset identifier field %q", field)
	}
	return nil
}

// ValidIdentifierField reports whether field can be used as a join key.
func ValidIdentifierField(field string) bool {
	return (&Asset{}).SetIdentifier(field, "") == nil
}

// AssetMapping links an asset to a component.
type AssetMapping struct {
	Base
	AssetID     uint `gorm:"uniqueIndex:idx_asset_mappings_asset_component;not null" json:"asset_id"`
	ComponentID uint `gorm:"uniqueIndex:idx_asset_mappings_asset_component;not null" json:"component_id"`
}

func (AssetMapping) TableName() string {
	return "asset_mappings"
}
