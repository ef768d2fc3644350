package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"
	"clinic-management-server/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const invoiceNumberAttempts = 3

// InvoiceService creates invoices, records payments and marks overdue
// invoices.
type InvoiceService struct {
	db  *store.DB
	log *zap.Logger
	now func() time.Time
}

func NewInvoiceService(db *store.DB, log *zap.Logger) *InvoiceService {
	return &InvoiceService{db: db, log: log.Named("invoices"), now: func() time.Time { return time.Now().UTC() }}
}

// InvoiceItemInput is one requested line. UnitPrice overrides the catalogue
// price when set.
type InvoiceItemInput struct {
	MedicalServiceID *uuid.UUID
	MedicineID       *uuid.UUID
	MedicalSupplyID  *uuid.UUID
	Quantity         int
	UnitPrice        *decimal.Decimal
	Description      string
}

type InvoiceInput struct {
	PatientID      uuid.UUID
	AppointmentID  *uuid.UUID
	MedicalVisitID *uuid.UUID
	DueDate        *time.Time
	Discount       decimal.Decimal
	TaxAmount      decimal.Decimal
	Notes          string
	Items          []InvoiceItemInput
}

// InvoiceItemView is an invoice line as returned to clients.
type InvoiceItemView struct {
	ID               uuid.UUID       `json:"id"`
	MedicalServiceID *uuid.UUID      `json:"medicalServiceId,omitempty"`
	MedicineID       *uuid.UUID      `json:"medicineId,omitempty"`
	MedicalSupplyID  *uuid.UUID      `json:"medicalSupplyId,omitempty"`
	Description      string          `json:"description"`
	Quantity         int             `json:"quantity"`
	UnitPrice        decimal.Decimal `json:"unitPrice"`
	LineTotal        decimal.Decimal `json:"lineTotal"`
}

type PaymentView struct {
	ID        uuid.UUID            `json:"id"`
	Amount    decimal.Decimal      `json:"amount"`
	Method    domain.PaymentMethod `json:"method"`
	Status    domain.PaymentStatus `json:"status"`
	Reference string               `json:"reference,omitempty"`
	PaidAt    time.Time            `json:"paidAt"`
}

// InvoiceView is an invoice with its computed totals.
type InvoiceView struct {
	ID              uuid.UUID            `json:"id"`
	ClinicID        uuid.UUID            `json:"clinicId"`
	PatientID       uuid.UUID            `json:"patientId"`
	AppointmentID   *uuid.UUID           `json:"appointmentId,omitempty"`
	MedicalVisitID  *uuid.UUID           `json:"medicalVisitId,omitempty"`
	Number          string               `json:"invoiceNumber"`
	Status          domain.InvoiceStatus `json:"status"`
	IssuedAt        time.Time            `json:"issuedAt"`
	DueDate         *time.Time           `json:"dueDate,omitempty"`
	Subtotal        decimal.Decimal      `json:"subtotalAmount"`
	Discount        decimal.Decimal      `json:"discount"`
	TaxAmount       decimal.Decimal      `json:"taxAmount"`
	FinalAmount     decimal.Decimal      `json:"finalAmount"`
	TotalPaid       decimal.Decimal      `json:"totalPaid"`
	RemainingAmount decimal.Decimal      `json:"remainingAmount"`
	IsFullyPaid     bool                 `json:"isFullyPaid"`
	Notes           string               `json:"notes,omitempty"`
	Items           []InvoiceItemView    `json:"items"`
	Payments        []PaymentView        `json:"payments"`
}

func newInvoiceView(inv *domain.Invoice) InvoiceView {
	s := inv.Snapshot()
	v := InvoiceView{
		ID:              s.ID,
		ClinicID:        s.ClinicID,
		PatientID:       s.PatientID,
		AppointmentID:   s.AppointmentID,
		MedicalVisitID:  s.MedicalVisitID,
		Number:          s.Number,
		Status:          s.Status,
		IssuedAt:        s.IssuedAt,
		DueDate:         s.DueDate,
		Subtotal:        inv.SubtotalAmount(),
		Discount:        s.Discount,
		TaxAmount:       s.TaxAmount,
		FinalAmount:     inv.FinalAmount(),
		TotalPaid:       inv.TotalPaid(),
		RemainingAmount: inv.RemainingAmount(),
		IsFullyPaid:     inv.IsFullyPaid(),
		Notes:           s.Notes,
		Items:           make([]InvoiceItemView, len(s.Items)),
		Payments:        make([]PaymentView, len(s.Payments)),
	}
	for i, it := range s.Items {
		v.Items[i] = InvoiceItemView{
			ID:               it.ID,
			MedicalServiceID: it.MedicalServiceID,
			MedicineID:       it.MedicineID,
			MedicalSupplyID:  it.MedicalSupplyID,
			Description:      it.Description,
			Quantity:         it.Quantity,
			UnitPrice:        it.UnitPrice,
			LineTotal:        it.LineTotal(),
		}
	}
	for i, p := range s.Payments {
		v.Payments[i] = PaymentView{ID: p.ID, Amount: p.Amount, Method: p.Method, Status: p.Status, Reference: p.Reference, PaidAt: p.PaidAt}
	}
	return v
}

// nextInvoiceNumber scans every clinic's invoices, since numbers are unique
// across the table.
func (s *InvoiceService) nextInvoiceNumber(ctx context.Context, now time.Time) (string, error) {
	prefix := "INV-" + now.Format("20060102") + "-"
	var numbers []string
	err := s.db.System(ctx).Model(&models.Invoice{}).
		Where("invoice_number LIKE ?", prefix+"%").
		Order("invoice_number desc").Limit(1).
		Pluck("invoice_number", &numbers).Error
	if err != nil {
		return "", err
	}
	seq := 0
	if len(numbers) > 0 {
		seq, err = strconv.Atoi(strings.TrimPrefix(numbers[0], prefix))
		if err != nil {
			return "", fmt.Errorf("parse invoice number %q: %w", numbers[0], err)
		}
	}
	return fmt.Sprintf("%s%06d", prefix, seq+1), nil
}

func countRefs(in InvoiceItemInput) int {
	n := 0
	for _, ref := range []*uuid.UUID{in.MedicalServiceID, in.MedicineID, in.MedicalSupplyID} {
		if ref != nil && *ref != uuid.Nil {
			n++
		}
	}
	return n
}

// resolveItem prices a line from the catalogue and deducts medicine stock.
func resolveItem(tx *gorm.DB, in InvoiceItemInput) (domain.InvoiceItem, error) {
	item := domain.InvoiceItem{
		MedicalServiceID: in.MedicalServiceID,
		MedicineID:       in.MedicineID,
		MedicalSupplyID:  in.MedicalSupplyID,
		Quantity:         in.Quantity,
		Description:      in.Description,
	}
	if countRefs(in) != 1 || in.Quantity <= 0 {
		return item, domain.ErrInvalidInvoiceItem
	}
	var name string
	switch {
	case in.MedicalServiceID != nil:
		var svc models.MedicalService
		if err := tx.Where("is_active = ?", true).First(&svc, "id = ?", *in.MedicalServiceID).Error; err != nil {
			return item, store.NotFound(err, "medical service")
		}
		name, item.UnitPrice = svc.Name, svc.Price
	case in.MedicineID != nil:
		var m models.Medicine
		if err := findInTenant(tx, &m, *in.MedicineID, "medicine"); err != nil {
			return item, err
		}
		if err := deductStock(tx, m.ID, in.Quantity); err != nil {
			return item, err
		}
		name, item.UnitPrice = m.Name, m.Price
	default:
		var sup models.MedicalSupply
		if err := findInTenant(tx, &sup, *in.MedicalSupplyID, "medical supply"); err != nil {
			return item, err
		}
		name, item.UnitPrice = sup.Name, sup.Price
	}
	if in.UnitPrice != nil {
		item.UnitPrice = domain.RoundMoney(*in.UnitPrice)
	}
	if item.Description == "" {
		item.Description = name
	}
	return item, nil
}

func (s *InvoiceService) checkLinks(tx *gorm.DB, in InvoiceInput) error {
	if err := findInTenant(tx, &models.Patient{}, in.PatientID, "patient"); err != nil {
		return err
	}
	if in.AppointmentID != nil && in.MedicalVisitID != nil {
		return apperr.Validation(apperr.CodeValidation, "an invoice links to an appointment or a medical visit, not both")
	}
	if in.AppointmentID != nil {
		var appt models.Appointment
		if err := findInTenant(tx, &appt, *in.AppointmentID, "appointment"); err != nil {
			return err
		}
		if appt.PatientID != in.PatientID {
			return apperr.Validation(apperr.CodeValidation, "appointment belongs to another patient")
		}
	}
	if in.MedicalVisitID != nil {
		var visit models.MedicalVisit
		if err := findInTenant(tx, &visit, *in.MedicalVisitID, "medical visit"); err != nil {
			return err
		}
		if visit.PatientID != in.PatientID {
			return apperr.Validation(apperr.CodeValidation, "medical visit belongs to another patient")
		}
	}
	return nil
}

// Create builds the invoice, prices its lines, deducts medicine stock and
// stores everything in one transaction.
func (s *InvoiceService) Create(ctx context.Context, in InvoiceInput) (*InvoiceView, error) {
	p, err := clinicPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, domain.ErrEmptyItems
	}
	if in.DueDate != nil {
		due := in.DueDate.UTC()
		in.DueDate = &due
	}

	var inv *domain.Invoice
	for attempt := 1; ; attempt++ {
		now := s.now()
		var number string
		number, err = s.nextInvoiceNumber(ctx, now)
		if err != nil {
			return nil, store.Internal(err)
		}
		err = s.db.Tenant(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.checkLinks(tx, in); err != nil {
				return err
			}
			var err error
			inv, err = domain.NewInvoice(domain.NewInvoiceParams{
				ClinicID:       p.ClinicID,
				PatientID:      in.PatientID,
				AppointmentID:  in.AppointmentID,
				MedicalVisitID: in.MedicalVisitID,
				Number:         number,
				IssuedAt:       now,
				DueDate:        in.DueDate,
				Discount:       in.Discount,
				TaxAmount:      in.TaxAmount,
				Notes:          in.Notes,
				CreatedBy:      p.UserID,
			})
			if err != nil {
				return validationFrom(err)
			}
			for i, line := range in.Items {
				item, err := resolveItem(tx, line)
				if err != nil {
					return itemError(err, i)
				}
				if err := inv.AddItem(item); err != nil {
					return itemError(err, i)
				}
			}
			if err := inv.Validate(); err != nil {
				return err
			}
			return tx.Create(models.InvoiceFromDomain(inv)).Error
		})
		if err == nil || !store.IsDuplicate(err) || attempt == invoiceNumberAttempts {
			break
		}
		s.log.Warn("invoice number taken, retrying", zap.String("number", number), zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, store.Internal(err)
	}
	view := newInvoiceView(inv)
	s.log.Info("invoice created",
		zap.String("invoiceId", view.ID.String()),
		zap.String("number", view.Number),
		zap.String("finalAmount", view.FinalAmount.StringFixed(domain.MoneyScale)),
		zap.Int("items", len(view.Items)))
	return &view, nil
}

// itemError tags a typed error with the index of the offending line.
func itemError(err error, index int) error {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.WithDetail("itemIndex", index)
	}
	return err
}

func (s *InvoiceService) load(tx *gorm.DB, id uuid.UUID) (*models.Invoice, error) {
	var rec models.Invoice
	err := tx.Preload("Items").Preload("Payments", func(db *gorm.DB) *gorm.DB {
		return db.Order("paid_at")
	}).First(&rec, "id = ?", id).Error
	if err != nil {
		return nil, store.NotFound(err, "invoice")
	}
	return &rec, nil
}

func (s *InvoiceService) Get(ctx context.Context, id uuid.UUID) (*InvoiceView, error) {
	rec, err := s.load(s.db.Tenant(ctx).DB(), id)
	if err != nil {
		return nil, err
	}
	view := newInvoiceView(rec.ToDomain())
	return &view, nil
}

// InvoiceFilter narrows List.
type InvoiceFilter struct {
	Status    domain.InvoiceStatus
	PatientID uuid.UUID
}

func (s *InvoiceService) List(ctx context.Context, f InvoiceFilter, pageNum, size int) ([]InvoiceView, int64, error) {
	return s.list(s.db.Tenant(ctx).DB(), f, pageNum, size)
}

// ListAllTenants lists invoices of every clinic. Super admins only.
func (s *InvoiceService) ListAllTenants(ctx context.Context, f InvoiceFilter, pageNum, size int) ([]InvoiceView, int64, error) {
	q, err := s.db.Tenant(ctx).IncludeAllTenants()
	if err != nil {
		return nil, 0, err
	}
	return s.list(q.DB(), f, pageNum, size)
}

func (s *InvoiceService) list(db *gorm.DB, f InvoiceFilter, pageNum, size int) ([]InvoiceView, int64, error) {
	q := db.Model(&models.Invoice{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PatientID != uuid.Nil {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, store.Internal(err)
	}
	var recs []models.Invoice
	if err := page(q, pageNum, size).Preload("Items").Preload("Payments").Order("issued_at desc").Find(&recs).Error; err != nil {
		return nil, 0, store.Internal(err)
	}
	views := make([]InvoiceView, len(recs))
	for i := range recs {
		views[i] = newInvoiceView(recs[i].ToDomain())
	}
	return views, total, nil
}

// RecordPayment adds a payment and stores the recomputed status.
func (s *InvoiceService) RecordPayment(ctx context.Context, id uuid.UUID, params domain.PaymentParams) (*InvoiceView, error) {
	var view InvoiceView
	var payment domain.Payment
	err := s.db.Tenant(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.load(tx, id)
		if err != nil {
			return err
		}
		inv := rec.ToDomain()
		if params.PaidAt.IsZero() {
			params.PaidAt = s.now()
		}
		payment, err = inv.RecordPayment(params)
		if err != nil {
			return err
		}
		row := models.PaymentFromDomain(id, payment)
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Invoice{}).Where("id = ?", id).Update("status", inv.Status())
		if res.Error != nil {
			return res.Error
		}
		view = newInvoiceView(inv)
		return nil
	})
	if err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("invoice payment recorded",
		zap.String("invoiceId", id.String()),
		zap.String("paymentId", payment.ID.String()),
		zap.String("amount", payment.Amount.StringFixed(domain.MoneyScale)),
		zap.String("status", string(view.Status)))
	return &view, nil
}

// MarkOverdue flags unpaid invoices of every clinic whose due date has
// passed. It returns how many changed.
func (s *InvoiceService) MarkOverdue(ctx context.Context) (int, error) {
	now := s.now()
	var recs []models.Invoice
	err := s.db.System(ctx).Preload("Items").Preload("Payments").
		Where("due_date < ? AND status IN ?", now, []domain.InvoiceStatus{domain.InvoiceDraft, domain.InvoicePartiallyPaid}).
		Find(&recs).Error
	if err != nil {
		return 0, err
	}
	changed := 0
	for i := range recs {
		inv := recs[i].ToDomain()
		if !inv.MarkOverdue(now) {
			continue
		}
		err := s.db.System(ctx).Model(&models.Invoice{}).
			Where("id = ? AND status = ?", inv.ID(), recs[i].Status).
			Update("status", inv.Status()).Error
		if err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}
