package models

import (
	"time"

	"clinic-management-server/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Appointment is the stored form of domain.Appointment. Status and amounts
// change only through the aggregate; handlers never write them directly.
type Appointment struct {
	TenantModel
	BranchID          uuid.UUID                `gorm:"type:char(36);not null;index" json:"branchId"`
	PatientID         uuid.UUID                `gorm:"type:char(36);not null;index" json:"patientId"`
	DoctorID          uuid.UUID                `gorm:"type:char(36);not null;index" json:"doctorId"`
	AppointmentTypeID uuid.UUID                `gorm:"type:char(36);not null" json:"appointmentTypeId"`
	ScheduledAt       time.Time                `gorm:"not null;index" json:"scheduledAt"`
	DurationMinutes   int                      `gorm:"not null" json:"durationMinutes"`
	Status            domain.AppointmentStatus `gorm:"size:20;not null;index" json:"status"`
	Notes             string                   `gorm:"type:text" json:"notes"`
	FinalPrice        decimal.Decimal          `gorm:"type:decimal(12,2);not null" json:"finalPrice"`
	DiscountAmount    decimal.Decimal          `gorm:"type:decimal(12,2);not null" json:"discountAmount"`
	PaidAmount        decimal.Decimal          `gorm:"type:decimal(12,2);not null" json:"paidAmount"`
}

func (a *Appointment) ToDomain() *domain.Appointment {
	return domain.RebuildAppointment(domain.AppointmentSnapshot{
		ID:                a.ID,
		ClinicID:          a.ClinicID,
		BranchID:          a.BranchID,
		PatientID:         a.PatientID,
		DoctorID:          a.DoctorID,
		AppointmentTypeID: a.AppointmentTypeID,
		ScheduledAt:       a.ScheduledAt,
		DurationMinutes:   a.DurationMinutes,
		Notes:             a.Notes,
		Status:            a.Status,
		FinalPrice:        a.FinalPrice,
		DiscountAmount:    a.DiscountAmount,
		PaidAmount:        a.PaidAmount,
		CreatedAt:         a.CreatedAt,
		UpdatedAt:         a.UpdatedAt,
	})
}

func AppointmentFromDomain(a *domain.Appointment) *Appointment {
	s := a.Snapshot()
	return &Appointment{
		TenantModel: TenantModel{
			BaseModel: BaseModel{ID: s.ID, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt},
			ClinicID:  s.ClinicID,
		},
		BranchID:          s.BranchID,
		PatientID:         s.PatientID,
		DoctorID:          s.DoctorID,
		AppointmentTypeID: s.AppointmentTypeID,
		ScheduledAt:       s.ScheduledAt,
		DurationMinutes:   s.DurationMinutes,
		Status:            s.Status,
		Notes:             s.Notes,
		FinalPrice:        s.FinalPrice,
		DiscountAmount:    s.DiscountAmount,
		PaidAmount:        s.PaidAmount,
	}
}
