package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AppointmentStatus is the lifecycle state of an appointment.
//
//	pending → confirmed → completed
//	pending | confirmed → cancelled
type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

func (s AppointmentStatus) IsValid() bool {
	switch s {
	case AppointmentPending, AppointmentConfirmed, AppointmentCompleted, AppointmentCancelled:
		return true
	}
	return false
}

// Appointment is the appointment aggregate. State changes only through its
// guarded methods.
type Appointment struct {
	id                uuid.UUID
	clinicID          uuid.UUID
	branchID          uuid.UUID
	patientID         uuid.UUID
	doctorID          uuid.UUID
	appointmentTypeID uuid.UUID
	scheduledAt       time.Time
	durationMinutes   int
	notes             string
	status            AppointmentStatus
	finalPrice        decimal.Decimal
	discountAmount    decimal.Decimal
	paidAmount        decimal.Decimal
	createdAt         time.Time
	updatedAt         time.Time
}

// NewAppointmentParams carries what is needed to book an appointment.
type NewAppointmentParams struct {
	ClinicID          uuid.UUID
	BranchID          uuid.UUID
	PatientID         uuid.UUID
	DoctorID          uuid.UUID
	AppointmentTypeID uuid.UUID
	ScheduledAt       time.Time
	DurationMinutes   int
	FinalPrice        decimal.Decimal
	Notes             string
}

// NewAppointment creates a pending appointment.
func NewAppointment(p NewAppointmentParams) (*Appointment, error) {
	if p.ClinicID == uuid.Nil || p.BranchID == uuid.Nil || p.PatientID == uuid.Nil ||
		p.DoctorID == uuid.Nil || p.AppointmentTypeID == uuid.Nil {
		return nil, errors.New("appointment requires clinic, branch, patient, doctor and type")
	}
	if p.ScheduledAt.IsZero() {
		return nil, errors.New("appointment requires a scheduled time")
	}
	if p.FinalPrice.IsNegative() {
		return nil, errors.New("appointment price must not be negative")
	}
	now := time.Now().UTC()
	return &Appointment{
		id:                uuid.New(),
		clinicID:          p.ClinicID,
		branchID:          p.BranchID,
		patientID:         p.PatientID,
		doctorID:          p.DoctorID,
		appointmentTypeID: p.AppointmentTypeID,
		scheduledAt:       p.ScheduledAt,
		durationMinutes:   p.DurationMinutes,
		notes:             p.Notes,
		status:            AppointmentPending,
		finalPrice:        RoundMoney(p.FinalPrice),
		discountAmount:    decimal.Zero,
		paidAmount:        decimal.Zero,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

// AppointmentSnapshot is the persisted form of an Appointment.
type AppointmentSnapshot struct {
	ID                uuid.UUID
	ClinicID          uuid.UUID
	BranchID          uuid.UUID
	PatientID         uuid.UUID
	DoctorID          uuid.UUID
	AppointmentTypeID uuid.UUID
	ScheduledAt       time.Time
	DurationMinutes   int
	Notes             string
	Status            AppointmentStatus
	FinalPrice        decimal.Decimal
	DiscountAmount    decimal.Decimal
	PaidAmount        decimal.Decimal
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RebuildAppointment restores an aggregate loaded from storage.
func RebuildAppointment(s AppointmentSnapshot) *Appointment {
	return &Appointment{
		id:                s.ID,
		clinicID:          s.ClinicID,
		branchID:          s.BranchID,
		patientID:         s.PatientID,
		doctorID:          s.DoctorID,
		appointmentTypeID: s.AppointmentTypeID,
		scheduledAt:       s.ScheduledAt,
		durationMinutes:   s.DurationMinutes,
		notes:             s.Notes,
		status:            s.Status,
		finalPrice:        s.FinalPrice,
		discountAmount:    s.DiscountAmount,
		paidAmount:        s.PaidAmount,
		createdAt:         s.CreatedAt,
		updatedAt:         s.UpdatedAt,
	}
}

// Snapshot returns the aggregate's state for persistence.
func (a *Appointment) Snapshot() AppointmentSnapshot {
	return AppointmentSnapshot{
		ID:                a.id,
		ClinicID:          a.clinicID,
		BranchID:          a.branchID,
		PatientID:         a.patientID,
		DoctorID:          a.doctorID,
		AppointmentTypeID: a.appointmentTypeID,
		ScheduledAt:       a.scheduledAt,
		DurationMinutes:   a.durationMinutes,
		Notes:             a.notes,
		Status:            a.status,
		FinalPrice:        a.finalPrice,
		DiscountAmount:    a.discountAmount,
		PaidAmount:        a.paidAmount,
		CreatedAt:         a.createdAt,
		UpdatedAt:         a.updatedAt,
	}
}

func (a *Appointment) ID() uuid.UUID                   { return a.id }
func (a *Appointment) ClinicID() uuid.UUID             { return a.clinicID }
func (a *Appointment) PatientID() uuid.UUID            { return a.patientID }
func (a *Appointment) DoctorID() uuid.UUID             { return a.doctorID }
func (a *Appointment) Status() AppointmentStatus       { return a.status }
func (a *Appointment) FinalPrice() decimal.Decimal     { return a.finalPrice }
func (a *Appointment) DiscountAmount() decimal.Decimal { return a.discountAmount }
func (a *Appointment) PaidAmount() decimal.Decimal     { return a.paidAmount }

// RemainingAmount is FinalPrice - DiscountAmount - PaidAmount.
func (a *Appointment) RemainingAmount() decimal.Decimal {
	return a.finalPrice.Sub(a.discountAmount).Sub(a.paidAmount)
}

func (a *Appointment) IsFullyPaid() bool {
	return !a.RemainingAmount().IsPositive()
}

func (a *Appointment) Confirm() error {
	if a.status != AppointmentPending {
		return InvalidAppointmentState("confirm", a.status)
	}
	a.transition(AppointmentConfirmed)
	return nil
}

func (a *Appointment) Complete() error {
	if a.status != AppointmentConfirmed {
		return InvalidAppointmentState("complete", a.status)
	}
	a.transition(AppointmentCompleted)
	return nil
}

// Cancel is a no-op on an already cancelled appointment.
func (a *Appointment) Cancel() error {
	switch a.status {
	case AppointmentCompleted:
		return AppointmentAlreadyCompleted()
	case AppointmentCancelled:
		return nil
	}
	a.transition(AppointmentCancelled)
	return nil
}

// ApplyDiscount replaces the current discount.
func (a *Appointment) ApplyDiscount(amount decimal.Decimal) error {
	amount = RoundMoney(amount)
	if amount.IsNegative() || amount.GreaterThan(a.finalPrice) {
		return ErrInvalidDiscount
	}
	if a.status == AppointmentCompleted || a.status == AppointmentCancelled {
		return InvalidAppointmentState("apply discount", a.status)
	}
	a.discountAmount = amount
	a.touch()
	return nil
}

// RecordPayment adds amount to the paid total.
func (a *Appointment) RecordPayment(amount decimal.Decimal) error {
	amount = RoundMoney(amount)
	if !amount.IsPositive() {
		return ErrInvalidPaymentAmount
	}
	if amount.GreaterThan(a.RemainingAmount()) {
		return ErrPaymentExceedsRemaining
	}
	if a.status == AppointmentCancelled {
		return InvalidAppointmentState("record payment", a.status)
	}
	a.paidAmount = a.paidAmount.Add(amount)
	a.touch()
	return nil
}

func (a *Appointment) transition(to AppointmentStatus) {
	a.status = to
	a.touch()
}

func (a *Appointment) touch() {
	a.updatedAt = time.Now().UTC()
}
