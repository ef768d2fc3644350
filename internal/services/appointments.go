package services

import (
	"context"
	"errors"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"
	"clinic-management-server/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppointmentService books appointments and drives their state machine.
type AppointmentService struct {
	db  *store.DB
	log *zap.Logger
}

func NewAppointmentService(db *store.DB, log *zap.Logger) *AppointmentService {
	return &AppointmentService{db: db, log: log.Named("appointments")}
}

type AppointmentInput struct {
	BranchID          uuid.UUID
	PatientID         uuid.UUID
	DoctorID          uuid.UUID
	AppointmentTypeID uuid.UUID
	ScheduledAt       time.Time
	Notes             string
}

// activeDoctor checks that doctorID is an active doctor of clinicID.
func activeDoctor(tx *gorm.DB, clinicID, doctorID uuid.UUID) error {
	var count int64
	err := tx.Model(&models.User{}).
		Where("id = ? AND clinic_id = ? AND role = ? AND is_active = ?", doctorID, clinicID, domain.RoleDoctor, true).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return apperr.NotFound("doctor")
	}
	return nil
}

// Create books a pending appointment priced from its appointment type.
func (s *AppointmentService) Create(ctx context.Context, in AppointmentInput) (*models.Appointment, error) {
	p, err := clinicPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	var rec *models.Appointment
	err = s.db.Tenant(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findInTenant(tx, &models.ClinicBranch{}, in.BranchID, "branch"); err != nil {
			return err
		}
		if err := findInTenant(tx, &models.Patient{}, in.PatientID, "patient"); err != nil {
			return err
		}
		var apptType models.AppointmentType
		if err := tx.Where("is_active = ?", true).First(&apptType, "id = ?", in.AppointmentTypeID).Error; err != nil {
			return store.NotFound(err, "appointment type")
		}
		if err := activeDoctor(tx, p.ClinicID, in.DoctorID); err != nil {
			return err
		}
		appt, err := domain.NewAppointment(domain.NewAppointmentParams{
			ClinicID:          p.ClinicID,
			BranchID:          in.BranchID,
			PatientID:         in.PatientID,
			DoctorID:          in.DoctorID,
			AppointmentTypeID: apptType.ID,
			ScheduledAt:       in.ScheduledAt.UTC(),
			DurationMinutes:   apptType.DurationMinutes,
			FinalPrice:        apptType.Price,
			Notes:             in.Notes,
		})
		if err != nil {
			return validationFrom(err)
		}
		rec = models.AppointmentFromDomain(appt)
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("appointment created",
		zap.String("appointmentId", rec.ID.String()),
		zap.String("patientId", rec.PatientID.String()),
		zap.String("doctorId", rec.DoctorID.String()))
	return rec, nil
}

func (s *AppointmentService) Get(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	var rec models.Appointment
	if err := findInTenant(s.db.Tenant(ctx).DB(), &rec, id, "appointment"); err != nil {
		return nil, err
	}
	return &rec, nil
}

// AppointmentFilter narrows List. Zero fields are ignored.
type AppointmentFilter struct {
	Status    domain.AppointmentStatus
	DoctorID  uuid.UUID
	PatientID uuid.UUID
	From      time.Time
	To        time.Time
}

func (s *AppointmentService) List(ctx context.Context, f AppointmentFilter, pageNum, size int) ([]models.Appointment, int64, error) {
	q := s.db.Tenant(ctx).DB().Model(&models.Appointment{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.DoctorID != uuid.Nil {
		q = q.Where("doctor_id = ?", f.DoctorID)
	}
	if f.PatientID != uuid.Nil {
		q = q.Where("patient_id = ?", f.PatientID)
	}
	if !f.From.IsZero() {
		q = q.Where("scheduled_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		q = q.Where("scheduled_at < ?", f.To)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, store.Internal(err)
	}
	var list []models.Appointment
	if err := page(q, pageNum, size).Order("scheduled_at").Find(&list).Error; err != nil {
		return nil, 0, store.Internal(err)
	}
	return list, total, nil
}

// appointmentUpdateAttempts bounds how often mutate reloads after losing a
// race with another writer.
const appointmentUpdateAttempts = 3

var errAppointmentChanged = apperr.Conflict(apperr.CodeConcurrentUpdate,
	"appointment was changed by another request, retry")

// mutate loads the appointment, applies fn to the aggregate and stores the
// result in one transaction. The write only lands if status and amounts are
// still the ones fn saw; otherwise the whole step is replayed on fresh data.
func (s *AppointmentService) mutate(ctx context.Context, id uuid.UUID, op string, fn func(*domain.Appointment) error) (*models.Appointment, error) {
	var out *models.Appointment
	var err error
	for attempt := 1; ; attempt++ {
		err = s.db.Tenant(ctx).Transaction(func(tx *gorm.DB) error {
			var rec models.Appointment
			if err := findInTenant(tx, &rec, id, "appointment"); err != nil {
				return err
			}
			appt := rec.ToDomain()
			if err := fn(appt); err != nil {
				return err
			}
			out = models.AppointmentFromDomain(appt)
			res := tx.Model(out).
				Where("status = ? AND paid_amount = ? AND discount_amount = ?", rec.Status, rec.PaidAmount, rec.DiscountAmount).
				Select("*").Omit(clause.Associations).
				Updates(out)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errAppointmentChanged
			}
			return nil
		})
		if err == nil || !errors.Is(err, errAppointmentChanged) || attempt == appointmentUpdateAttempts {
			break
		}
		s.log.Warn("appointment changed concurrently, retrying",
			zap.String("appointmentId", id.String()),
			zap.String("operation", op),
			zap.Int("attempt", attempt))
	}
	if err != nil {
		s.log.Info("appointment update rejected",
			zap.String("appointmentId", id.String()),
			zap.String("operation", op),
			zap.Error(err))
		return nil, store.Internal(err)
	}
	s.log.Info("appointment updated",
		zap.String("appointmentId", id.String()),
		zap.String("operation", op),
		zap.String("status", string(out.Status)),
		zap.String("remaining", out.FinalPrice.Sub(out.DiscountAmount).Sub(out.PaidAmount).StringFixed(domain.MoneyScale)))
	return out, nil
}

func (s *AppointmentService) Confirm(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	return s.mutate(ctx, id, "confirm", (*domain.Appointment).Confirm)
}

func (s *AppointmentService) Complete(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	return s.mutate(ctx, id, "complete", (*domain.Appointment).Complete)
}

func (s *AppointmentService) Cancel(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	return s.mutate(ctx, id, "cancel", (*domain.Appointment).Cancel)
}

func (s *AppointmentService) ApplyDiscount(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*models.Appointment, error) {
	return s.mutate(ctx, id, "discount", func(a *domain.Appointment) error {
		return a.ApplyDiscount(amount)
	})
}

func (s *AppointmentService) RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) (*models.Appointment, error) {
	return s.mutate(ctx, id, "payment", func(a *domain.Appointment) error {
		return a.RecordPayment(amount)
	})
}
