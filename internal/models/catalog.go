package models

import (
	"github.com/shopspring/decimal"
)

// AppointmentType prices and sizes an appointment.
type AppointmentType struct {
	TenantModel
	Name            string          `gorm:"size:150;not null" json:"name"`
	DurationMinutes int             `gorm:"not null" json:"durationMinutes"`
	Price           decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	IsActive        bool            `gorm:"not null" json:"isActive"`
}

// MedicalService is a billable procedure or consultation.
type MedicalService struct {
	TenantModel
	Code     string          `gorm:"size:50" json:"code,omitempty"`
	Name     string          `gorm:"size:150;not null" json:"name"`
	Price    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	IsActive bool            `gorm:"not null" json:"isActive"`
}

// MedicalSupply is a consumable billed per unit.
type MedicalSupply struct {
	TenantModel
	Name     string          `gorm:"size:150;not null" json:"name"`
	Unit     string          `gorm:"size:30" json:"unit,omitempty"`
	Price    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Quantity int             `gorm:"not null" json:"quantity"`
}
