package models

import (
	"time"

	"clinic-management-server/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Invoice is the stored header of domain.Invoice. Totals are not columns; they
// are recomputed from Items and Payments.
type Invoice struct {
	TenantModel
	PatientID      uuid.UUID            `gorm:"type:char(36);not null;index"`
	AppointmentID  *uuid.UUID           `gorm:"type:char(36);index"`
	MedicalVisitID *uuid.UUID           `gorm:"type:char(36);index"`
	InvoiceNumber  string               `gorm:"size:32;not null;uniqueIndex"`
	IssuedAt       time.Time            `gorm:"not null"`
	DueDate        *time.Time           `gorm:"index"`
	Discount       decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	TaxAmount      decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	Status         domain.InvoiceStatus `gorm:"size:20;not null;index"`
	Notes          string               `gorm:"type:text"`
	CreatedBy      uuid.UUID            `gorm:"type:char(36)"`
	Items          []InvoiceItem        `gorm:"foreignKey:InvoiceID"`
	Payments       []Payment            `gorm:"foreignKey:InvoiceID"`
}

// InvoiceItem is owned by its invoice and never addressed on its own.
type InvoiceItem struct {
	BaseModel
	InvoiceID        uuid.UUID       `gorm:"type:char(36);not null;index"`
	MedicalServiceID *uuid.UUID      `gorm:"type:char(36)"`
	MedicineID       *uuid.UUID      `gorm:"type:char(36)"`
	MedicalSupplyID  *uuid.UUID      `gorm:"type:char(36)"`
	Description      string          `gorm:"size:255"`
	Quantity         int             `gorm:"not null"`
	UnitPrice        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

// Payment is owned by its invoice.
type Payment struct {
	BaseModel
	InvoiceID uuid.UUID            `gorm:"type:char(36);not null;index"`
	Amount    decimal.Decimal      `gorm:"type:decimal(12,2);not null"`
	Method    domain.PaymentMethod `gorm:"size:20;not null"`
	Status    domain.PaymentStatus `gorm:"size:20;not null"`
	Reference string               `gorm:"size:100"`
	PaidAt    time.Time            `gorm:"not null"`
}

func (inv *Invoice) ToDomain() *domain.Invoice {
	items := make([]domain.InvoiceItem, len(inv.Items))
	for i, it := range inv.Items {
		items[i] = domain.InvoiceItem{
			ID:               it.ID,
			MedicalServiceID: it.MedicalServiceID,
			MedicineID:       it.MedicineID,
			MedicalSupplyID:  it.MedicalSupplyID,
			Description:      it.Description,
			Quantity:         it.Quantity,
			UnitPrice:        it.UnitPrice,
		}
	}
	payments := make([]domain.Payment, len(inv.Payments))
	for i, p := range inv.Payments {
		payments[i] = domain.Payment{
			ID:        p.ID,
			Amount:    p.Amount,
			Method:    p.Method,
			Status:    p.Status,
			Reference: p.Reference,
			PaidAt:    p.PaidAt,
		}
	}
	return domain.RebuildInvoice(domain.InvoiceSnapshot{
		ID:             inv.ID,
		ClinicID:       inv.ClinicID,
		PatientID:      inv.PatientID,
		AppointmentID:  inv.AppointmentID,
		MedicalVisitID: inv.MedicalVisitID,
		Number:         inv.InvoiceNumber,
		IssuedAt:       inv.IssuedAt,
		DueDate:        inv.DueDate,
		Discount:       inv.Discount,
		TaxAmount:      inv.TaxAmount,
		Status:         inv.Status,
		Notes:          inv.Notes,
		CreatedBy:      inv.CreatedBy,
		Items:          items,
		Payments:       payments,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	})
}

func InvoiceFromDomain(d *domain.Invoice) *Invoice {
	s := d.Snapshot()
	inv := &Invoice{
		TenantModel: TenantModel{
			BaseModel: BaseModel{ID: s.ID, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt},
			ClinicID:  s.ClinicID,
		},
		PatientID:      s.PatientID,
		AppointmentID:  s.AppointmentID,
		MedicalVisitID: s.MedicalVisitID,
		InvoiceNumber:  s.Number,
		IssuedAt:       s.IssuedAt,
		DueDate:        s.DueDate,
		Discount:       s.Discount,
		TaxAmount:      s.TaxAmount,
		Status:         s.Status,
		Notes:          s.Notes,
		CreatedBy:      s.CreatedBy,
	}
	for _, it := range s.Items {
		inv.Items = append(inv.Items, InvoiceItem{
			BaseModel:        BaseModel{ID: it.ID},
			InvoiceID:        s.ID,
			MedicalServiceID: it.MedicalServiceID,
			MedicineID:       it.MedicineID,
			MedicalSupplyID:  it.MedicalSupplyID,
			Description:      it.Description,
			Quantity:         it.Quantity,
			UnitPrice:        it.UnitPrice,
		})
	}
	for _, p := range s.Payments {
		inv.Payments = append(inv.Payments, PaymentFromDomain(s.ID, p))
	}
	return inv
}

func PaymentFromDomain(invoiceID uuid.UUID, p domain.Payment) Payment {
	return Payment{
		BaseModel: BaseModel{ID: p.ID},
		InvoiceID: invoiceID,
		Amount:    p.Amount,
		Method:    p.Method,
		Status:    p.Status,
		Reference: p.Reference,
		PaidAt:    p.PaidAt,
	}
}
