package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Medicine is a stocked drug.
type Medicine struct {
	TenantModel
	Name         string          `gorm:"size:200;not null;index" json:"name"`
	GenericName  string          `gorm:"size:200" json:"genericName,omitempty"`
	Form         string          `gorm:"size:50" json:"form,omitempty"`
	Strength     string          `gorm:"size:50" json:"strength,omitempty"`
	Manufacturer string          `gorm:"size:200" json:"manufacturer,omitempty"`
	Price        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	ReorderLevel int             `gorm:"not null" json:"reorderLevel"`
	ExpiryDate   *time.Time      `json:"expiryDate,omitempty"`
	DeletedAt    gorm.DeletedAt  `gorm:"index" json:"deletedAt,omitempty"`
}

// IsLowStock reports whether the quantity is at or below the reorder level.
func (m *Medicine) IsLowStock() bool {
	return m.Quantity <= m.ReorderLevel
}
