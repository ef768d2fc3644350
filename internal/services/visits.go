package services

import (
	"context"
	"errors"
	"os"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/models"
	"clinic-management-server/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// VisitService records medical visits and their attachments.
type VisitService struct {
	db      *store.DB
	storage FileStorage
	log     *zap.Logger
}

func NewVisitService(db *store.DB, storage FileStorage, log *zap.Logger) *VisitService {
	return &VisitService{db: db, storage: storage, log: log.Named("visits")}
}

type VisitInput struct {
	PatientID      uuid.UUID
	AppointmentID  *uuid.UUID
	VisitDate      time.Time
	ChiefComplaint string
	Diagnosis      string
	Notes          string
}

// Create records a visit by the calling doctor.
func (s *VisitService) Create(ctx context.Context, in VisitInput) (*models.MedicalVisit, error) {
	p, err := clinicPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	visit := models.MedicalVisit{
		PatientID:      in.PatientID,
		DoctorID:       p.UserID,
		AppointmentID:  in.AppointmentID,
		VisitDate:      in.VisitDate.UTC(),
		ChiefComplaint: in.ChiefComplaint,
		Diagnosis:      in.Diagnosis,
		Notes:          in.Notes,
	}
	if visit.VisitDate.IsZero() {
		visit.VisitDate = time.Now().UTC()
	}
	err = s.db.Tenant(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findInTenant(tx, &models.Patient{}, in.PatientID, "patient"); err != nil {
			return err
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
		return tx.Create(&visit).Error
	})
	if err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("medical visit recorded",
		zap.String("visitId", visit.ID.String()),
		zap.String("patientId", visit.PatientID.String()),
		zap.String("doctorId", visit.DoctorID.String()))
	return &visit, nil
}

func (s *VisitService) Get(ctx context.Context, id uuid.UUID) (*models.MedicalVisit, error) {
	var visit models.MedicalVisit
	if err := findInTenant(s.db.Tenant(ctx).DB().Preload("Attachments"), &visit, id, "medical visit"); err != nil {
		return nil, err
	}
	return &visit, nil
}

// ListForPatient returns a patient's visits, newest first.
func (s *VisitService) ListForPatient(ctx context.Context, patientID uuid.UUID) ([]models.MedicalVisit, error) {
	var visits []models.MedicalVisit
	err := s.db.Tenant(ctx).DB().Preload("Attachments").
		Where("patient_id = ?", patientID).
		Order("visit_date desc").
		Find(&visits).Error
	if err != nil {
		return nil, store.Internal(err)
	}
	return visits, nil
}

// AddAttachment validates and stores file, then links it to the visit.
func (s *VisitService) AddAttachment(ctx context.Context, visitID uuid.UUID, file Upload) (*models.MedicalVisitAttachment, error) {
	if _, err := s.Get(ctx, visitID); err != nil {
		return nil, err
	}
	stored, err := s.storage.UploadWithValidation(ctx, file, CategoryVisitAttachment)
	if err != nil {
		return nil, err
	}
	att := models.MedicalVisitAttachment{
		MedicalVisitID: visitID,
		FileName:       file.Name,
		FileType:       stored.MIMEType,
		FilePath:       stored.Path,
		SizeBytes:      stored.Size,
	}
	if err := s.db.Shared(ctx).Create(&att).Error; err != nil {
		if _, derr := s.storage.Delete(stored.Path); derr != nil {
			s.log.Warn("remove orphaned attachment", zap.String("path", stored.Path), zap.Error(derr))
		}
		return nil, store.Internal(err)
	}
	s.log.Info("attachment added", zap.String("visitId", visitID.String()), zap.String("attachmentId", att.ID.String()))
	return &att, nil
}

// Attachment returns one attachment of a visit in the caller's clinic.
func (s *VisitService) Attachment(ctx context.Context, visitID, attachmentID uuid.UUID) (*models.MedicalVisitAttachment, error) {
	if _, err := s.Get(ctx, visitID); err != nil {
		return nil, err
	}
	var att models.MedicalVisitAttachment
	err := s.db.Shared(ctx).Where("medical_visit_id = ?", visitID).First(&att, "id = ?", attachmentID).Error
	if err != nil {
		return nil, store.NotFound(err, "attachment")
	}
	return &att, nil
}

// OpenAttachment returns the attachment and its content. The caller closes
// the file.
func (s *VisitService) OpenAttachment(ctx context.Context, visitID, attachmentID uuid.UUID) (*models.MedicalVisitAttachment, *os.File, error) {
	att, err := s.Attachment(ctx, visitID, attachmentID)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.storage.Open(att.FilePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, apperr.NotFound("attachment file")
		}
		return nil, nil, apperr.Internal(err, "open attachment")
	}
	return att, f, nil
}

// DeleteAttachment removes the attachment row and its file.
func (s *VisitService) DeleteAttachment(ctx context.Context, visitID, attachmentID uuid.UUID) error {
	att, err := s.Attachment(ctx, visitID, attachmentID)
	if err != nil {
		return err
	}
	if err := s.db.Shared(ctx).Delete(att).Error; err != nil {
		return store.Internal(err)
	}
	if ok, err := s.storage.Delete(att.FilePath); err != nil || !ok {
		s.log.Warn("attachment file not removed", zap.String("path", att.FilePath), zap.Bool("existed", ok), zap.Error(err))
	}
	s.log.Info("attachment deleted", zap.String("visitId", visitID.String()), zap.String("attachmentId", attachmentID.String()))
	return nil
}
