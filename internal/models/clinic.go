package models

import (
	"gorm.io/datatypes"
)

// Clinic is the tenant root.
type Clinic struct {
	BaseModel
	Name     string            `gorm:"size:200;not null" json:"name"`
	Email    string            `gorm:"size:255" json:"email"`
	Phone    string            `gorm:"size:50" json:"phone"`
	Address  string            `gorm:"size:255" json:"address"`
	IsActive bool              `gorm:"not null" json:"isActive"`
	Settings datatypes.JSONMap `json:"settings,omitempty"`
}

// ClinicBranch is a physical location of a clinic. Every clinic has exactly
// one main branch, created during onboarding.
type ClinicBranch struct {
	TenantModel
	Name    string `gorm:"size:200;not null" json:"name"`
	Address string `gorm:"size:255" json:"address"`
	Phone   string `gorm:"size:50" json:"phone"`
	IsMain  bool   `gorm:"not null" json:"isMain"`
}
