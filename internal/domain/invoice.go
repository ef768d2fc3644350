package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceStatus is derived from payments and the due date; it is never set
// directly.
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceFullyPaid     InvoiceStatus = "fully_paid"
	InvoiceOverdue       InvoiceStatus = "overdue"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceDraft, InvoicePartiallyPaid, InvoiceFullyPaid, InvoiceOverdue:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentCard         PaymentMethod = "card"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
	PaymentInsurance    PaymentMethod = "insurance"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentBankTransfer, PaymentInsurance:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// InvoiceItem is a line of an invoice. It references exactly one billable.
type InvoiceItem struct {
	ID               uuid.UUID
	MedicalServiceID *uuid.UUID
	MedicineID       *uuid.UUID
	MedicalSupplyID  *uuid.UUID
	Description      string
	Quantity         int
	UnitPrice        decimal.Decimal
}

// LineTotal is Quantity × UnitPrice.
func (i InvoiceItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i InvoiceItem) references() int {
	n := 0
	for _, ref := range []*uuid.UUID{i.MedicalServiceID, i.MedicineID, i.MedicalSupplyID} {
		if ref != nil && *ref != uuid.Nil {
			n++
		}
	}
	return n
}

// Payment is a payment recorded against an invoice.
type Payment struct {
	ID        uuid.UUID
	Amount    decimal.Decimal
	Method    PaymentMethod
	Status    PaymentStatus
	Reference string
	PaidAt    time.Time
}

// Invoice is the invoice aggregate. Totals are computed from its items and
// payments on every read.
type Invoice struct {
	id             uuid.UUID
	clinicID       uuid.UUID
	patientID      uuid.UUID
	appointmentID  *uuid.UUID
	medicalVisitID *uuid.UUID
	number         string
	issuedAt       time.Time
	dueDate        *time.Time
	discount       decimal.Decimal
	taxAmount      decimal.Decimal
	status         InvoiceStatus
	notes          string
	createdBy      uuid.UUID
	items          []InvoiceItem
	payments       []Payment
	createdAt      time.Time
	updatedAt      time.Time
}

// NewInvoiceParams carries the header fields of a new invoice.
type NewInvoiceParams struct {
	ClinicID       uuid.UUID
	PatientID      uuid.UUID
	AppointmentID  *uuid.UUID
	MedicalVisitID *uuid.UUID
	Number         string
	IssuedAt       time.Time
	DueDate        *time.Time
	Discount       decimal.Decimal
	TaxAmount      decimal.Decimal
	Notes          string
	CreatedBy      uuid.UUID
}

// NewInvoice creates an empty draft invoice. Add items, then call Validate.
func NewInvoice(p NewInvoiceParams) (*Invoice, error) {
	if p.ClinicID == uuid.Nil || p.PatientID == uuid.Nil {
		return nil, errors.New("invoice requires clinic and patient")
	}
	if p.AppointmentID != nil && p.MedicalVisitID != nil {
		return nil, errors.New("invoice links to an appointment or a medical visit, not both")
	}
	if p.Discount.IsNegative() {
		return nil, ErrInvalidDiscount
	}
	if p.TaxAmount.IsNegative() {
		return nil, errors.New("tax amount must not be negative")
	}
	issued := p.IssuedAt
	if issued.IsZero() {
		issued = time.Now().UTC()
	}
	now := time.Now().UTC()
	return &Invoice{
		id:             uuid.New(),
		clinicID:       p.ClinicID,
		patientID:      p.PatientID,
		appointmentID:  p.AppointmentID,
		medicalVisitID: p.MedicalVisitID,
		number:         p.Number,
		issuedAt:       issued,
		dueDate:        p.DueDate,
		discount:       RoundMoney(p.Discount),
		taxAmount:      RoundMoney(p.TaxAmount),
		status:         InvoiceDraft,
		notes:          p.Notes,
		createdBy:      p.CreatedBy,
		createdAt:      now,
		updatedAt:      now,
	}, nil
}

// InvoiceSnapshot is the persisted form of an Invoice.
type InvoiceSnapshot struct {
	ID             uuid.UUID
	ClinicID       uuid.UUID
	PatientID      uuid.UUID
	AppointmentID  *uuid.UUID
	MedicalVisitID *uuid.UUID
	Number         string
	IssuedAt       time.Time
	DueDate        *time.Time
	Discount       decimal.Decimal
	TaxAmount      decimal.Decimal
	Status         InvoiceStatus
	Notes          string
	CreatedBy      uuid.UUID
	Items          []InvoiceItem
	Payments       []Payment
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// RebuildInvoice restores an aggregate loaded from storage.
func RebuildInvoice(s InvoiceSnapshot) *Invoice {
	return &Invoice{
		id:             s.ID,
		clinicID:       s.ClinicID,
		patientID:      s.PatientID,
		appointmentID:  s.AppointmentID,
		medicalVisitID: s.MedicalVisitID,
		number:         s.Number,
		issuedAt:       s.IssuedAt,
		dueDate:        s.DueDate,
		discount:       s.Discount,
		taxAmount:      s.TaxAmount,
		status:         s.Status,
		notes:          s.Notes,
		createdBy:      s.CreatedBy,
		items:          append([]InvoiceItem(nil), s.Items...),
		payments:       append([]Payment(nil), s.Payments...),
		createdAt:      s.CreatedAt,
		updatedAt:      s.UpdatedAt,
	}
}

// Snapshot returns the aggregate's state for persistence.
func (inv *Invoice) Snapshot() InvoiceSnapshot {
	return InvoiceSnapshot{
		ID:             inv.id,
		ClinicID:       inv.clinicID,
		PatientID:      inv.patientID,
		AppointmentID:  inv.appointmentID,
		MedicalVisitID: inv.medicalVisitID,
		Number:         inv.number,
		IssuedAt:       inv.issuedAt,
		DueDate:        inv.dueDate,
		Discount:       inv.discount,
		TaxAmount:      inv.taxAmount,
		Status:         inv.status,
		Notes:          inv.notes,
		CreatedBy:      inv.createdBy,
		Items:          inv.Items(),
		Payments:       inv.Payments(),
		CreatedAt:      inv.createdAt,
		UpdatedAt:      inv.updatedAt,
	}
}

func (inv *Invoice) ID() uuid.UUID              { return inv.id }
func (inv *Invoice) ClinicID() uuid.UUID        { return inv.clinicID }
func (inv *Invoice) PatientID() uuid.UUID       { return inv.patientID }
func (inv *Invoice) Number() string             { return inv.number }
func (inv *Invoice) Status() InvoiceStatus      { return inv.status }
func (inv *Invoice) Discount() decimal.Decimal  { return inv.discount }
func (inv *Invoice) TaxAmount() decimal.Decimal { return inv.taxAmount }
func (inv *Invoice) DueDate() *time.Time        { return inv.dueDate }

// Items returns a copy of the invoice lines.
func (inv *Invoice) Items() []InvoiceItem {
	return append([]InvoiceItem(nil), inv.items...)
}

// Payments returns a copy of the recorded payments.
func (inv *Invoice) Payments() []Payment {
	return append([]Payment(nil), inv.payments...)
}

// AddItem appends a line after checking its composition.
func (inv *Invoice) AddItem(item InvoiceItem) error {
	item.UnitPrice = RoundMoney(item.UnitPrice)
	if item.references() != 1 || item.Quantity <= 0 || !item.UnitPrice.IsPositive() {
		return ErrInvalidInvoiceItem
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	inv.items = append(inv.items, item)
	return nil
}

// Validate checks the invariants that hold once all items are added.
func (inv *Invoice) Validate() error {
	if len(inv.items) == 0 {
		return ErrEmptyItems
	}
	if inv.discount.GreaterThan(inv.SubtotalAmount()) {
		return ErrInvalidDiscount
	}
	return nil
}

func (inv *Invoice) SubtotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, it := range inv.items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// FinalAmount is Subtotal - Discount + TaxAmount.
func (inv *Invoice) FinalAmount() decimal.Decimal {
	return inv.SubtotalAmount().Sub(inv.discount).Add(inv.taxAmount)
}

// TotalPaid sums payments whose status is paid.
func (inv *Invoice) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range inv.payments {
		if p.Status == PaymentPaid {
			total = total.Add(p.Amount)
		}
	}
	return total
}

func (inv *Invoice) RemainingAmount() decimal.Decimal {
	return inv.FinalAmount().Sub(inv.TotalPaid())
}

func (inv *Invoice) IsFullyPaid() bool {
	return !inv.RemainingAmount().IsPositive()
}

// PaymentParams describes a payment to record.
type PaymentParams struct {
	Amount    decimal.Decimal
	Method    PaymentMethod
	Reference string
	PaidAt    time.Time
}

// RecordPayment appends a paid payment and recomputes the status.
func (inv *Invoice) RecordPayment(p PaymentParams) (Payment, error) {
	amount := RoundMoney(p.Amount)
	if !amount.IsPositive() {
		return Payment{}, ErrInvalidPaymentAmount
	}
	if !p.Method.IsValid() {
		return Payment{}, ErrInvalidPaymentMethod
	}
	if amount.GreaterThan(inv.RemainingAmount()) {
		return Payment{}, ErrPaymentExceedsRemaining
	}
	paidAt := p.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now().UTC()
	}
	payment := Payment{
		ID:        uuid.New(),
		Amount:    amount,
		Method:    p.Method,
		Status:    PaymentPaid,
		Reference: p.Reference,
		PaidAt:    paidAt,
	}
	inv.payments = append(inv.payments, payment)
	inv.recomputeStatus()
	inv.updatedAt = time.Now().UTC()
	return payment, nil
}

// MarkOverdue flags an unpaid invoice whose due date has passed. It reports
// whether the status changed.
func (inv *Invoice) MarkOverdue(now time.Time) bool {
	if inv.dueDate == nil || !now.After(*inv.dueDate) {
		return false
	}
	if inv.IsFullyPaid() || inv.status == InvoiceOverdue || inv.status == InvoiceFullyPaid {
		return false
	}
	inv.status = InvoiceOverdue
	inv.updatedAt = now
	return true
}

func (inv *Invoice) recomputeStatus() {
	paid := inv.TotalPaid()
	switch {
	case paid.GreaterThanOrEqual(inv.FinalAmount()):
		inv.status = InvoiceFullyPaid
	case paid.IsPositive():
		inv.status = InvoicePartiallyPaid
	}
}
