package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/models"
	"clinic-management-server/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const patientCodeAttempts = 3

// PatientService manages the clinic's patients.
type PatientService struct {
	db      *store.DB
	storage FileStorage
	log     *zap.Logger
}

func NewPatientService(db *store.DB, storage FileStorage, log *zap.Logger) *PatientService {
	return &PatientService{db: db, storage: storage, log: log.Named("patients")}
}

type PhoneInput struct {
	Number    string
	Label     string
	IsPrimary bool
}

// PatientInput is used for create and full update.
type PatientInput struct {
	FirstName         string
	LastName          string
	DateOfBirth       *time.Time
	Gender            string
	Email             string
	Address           string
	Notes             string
	Phones            []PhoneInput
	ChronicDiseaseIDs []uuid.UUID
}

// normalizePhones ensures exactly one primary phone when any phone is given.
func normalizePhones(in []PhoneInput) ([]models.PatientPhone, error) {
	phones := make([]models.PatientPhone, 0, len(in))
	primary := 0
	for _, ph := range in {
		number := strings.TrimSpace(ph.Number)
		if number == "" {
			return nil, apperr.Validation(apperr.CodeValidation, "phone number must not be empty")
		}
		if ph.IsPrimary {
			primary++
		}
		phones = append(phones, models.PatientPhone{Number: number, Label: ph.Label, IsPrimary: ph.IsPrimary})
	}
	switch {
	case primary > 1:
		return nil, apperr.Validation(apperr.CodeValidation, "only one phone can be primary")
	case primary == 0 && len(phones) > 0:
		phones[0].IsPrimary = true
	}
	return phones, nil
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func (s *PatientService) diseaseLinks(ctx context.Context, ids []uuid.UUID) ([]models.PatientChronicDisease, error) {
	ids = dedupeIDs(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	var count int64
	if err := s.db.Shared(ctx).Model(&models.ChronicDisease{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return nil, store.Internal(err)
	}
	if int(count) != len(ids) {
		return nil, apperr.NotFound("chronic disease")
	}
	links := make([]models.PatientChronicDisease, len(ids))
	for i, id := range ids {
		links[i] = models.PatientChronicDisease{ChronicDiseaseID: id}
	}
	return links, nil
}

// nextPatientCode returns the code after the highest one in the clinic,
// soft-deleted patients included.
func nextPatientCode(tx *gorm.DB) (string, error) {
	var codes []string
	err := tx.Unscoped().Model(&models.Patient{}).
		Order("patient_code desc").Limit(1).
		Pluck("patient_code", &codes).Error
	if err != nil {
		return "", err
	}
	n := 0
	if len(codes) > 0 {
		last := codes[0]
		n, err = strconv.Atoi(strings.TrimPrefix(last, "P-"))
		if err != nil {
			return "", fmt.Errorf("parse patient code %q: %w", last, err)
		}
	}
	return fmt.Sprintf("P-%06d", n+1), nil
}

// Create registers a patient with a generated per-clinic code.
func (s *PatientService) Create(ctx context.Context, in PatientInput) (*models.Patient, error) {
	if _, err := clinicPrincipal(ctx); err != nil {
		return nil, err
	}
	phones, err := normalizePhones(in.Phones)
	if err != nil {
		return nil, err
	}
	links, err := s.diseaseLinks(ctx, in.ChronicDiseaseIDs)
	if err != nil {
		return nil, err
	}

	var patient models.Patient
	for attempt := 1; ; attempt++ {
		patient = models.Patient{
			FirstName:       in.FirstName,
			LastName:        in.LastName,
			DateOfBirth:     in.DateOfBirth,
			Gender:          in.Gender,
			Email:           in.Email,
			Address:         in.Address,
			Notes:           in.Notes,
			Phones:          append([]models.PatientPhone(nil), phones...),
			ChronicDiseases: append([]models.PatientChronicDisease(nil), links...),
		}
		err = s.db.Tenant(ctx).Transaction(func(tx *gorm.DB) error {
			code, err := nextPatientCode(tx)
			if err != nil {
				return err
			}
			patient.PatientCode = code
			return tx.Create(&patient).Error
		})
		if err == nil || !store.IsDuplicate(err) || attempt == patientCodeAttempts {
			break
		}
		s.log.Warn("patient code taken, retrying", zap.Int("attempt", attempt))
	}
	if err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("patient created", zap.String("patientId", patient.ID.String()), zap.String("code", patient.PatientCode))
	return &patient, nil
}

func (s *PatientService) Get(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	var patient models.Patient
	err := s.db.Tenant(ctx).DB().Preload("Phones").Preload("ChronicDiseases").First(&patient, "id = ?", id).Error
	if err != nil {
		return nil, store.NotFound(err, "patient")
	}
	return &patient, nil
}

// List searches patients by name, code or email.
func (s *PatientService) List(ctx context.Context, search string, pageNum, size int) ([]models.Patient, int64, error) {
	q := s.db.Tenant(ctx).DB().Model(&models.Patient{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(patient_code) LIKE ? OR LOWER(email) LIKE ?",
			like, like, like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, store.Internal(err)
	}
	var patients []models.Patient
	if err := page(q, pageNum, size).Preload("Phones").Order("patient_code").Find(&patients).Error; err != nil {
		return nil, 0, store.Internal(err)
	}
	return patients, total, nil
}

// Update replaces the patient's fields, phones and chronic diseases.
func (s *PatientService) Update(ctx context.Context, id uuid.UUID, in PatientInput) (*models.Patient, error) {
	phones, err := normalizePhones(in.Phones)
	if err != nil {
		return nil, err
	}
	links, err := s.diseaseLinks(ctx, in.ChronicDiseaseIDs)
	if err != nil {
		return nil, err
	}
	err = s.db.Tenant(ctx).Transaction(func(tx *gorm.DB) error {
		var patient models.Patient
		if err := findInTenant(tx, &patient, id, "patient"); err != nil {
			return err
		}
		patient.FirstName = in.FirstName
		patient.LastName = in.LastName
		patient.DateOfBirth = in.DateOfBirth
		patient.Gender = in.Gender
		patient.Email = in.Email
		patient.Address = in.Address
		patient.Notes = in.Notes
		if err := saveRecord(tx, &patient, "patient"); err != nil {
			return err
		}
		if err := tx.Where("patient_id = ?", id).Delete(&models.PatientPhone{}).Error; err != nil {
			return err
		}
		if err := tx.Where("patient_id = ?", id).Delete(&models.PatientChronicDisease{}).Error; err != nil {
			return err
		}
		for i := range phones {
			phones[i].PatientID = id
		}
		for i := range links {
			links[i].PatientID = id
		}
		if len(phones) > 0 {
			if err := tx.Create(&phones).Error; err != nil {
				return err
			}
		}
		if len(links) > 0 {
			return tx.Create(&links).Error
		}
		return nil
	})
	if err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("patient updated", zap.String("patientId", id.String()))
	return s.Get(ctx, id)
}

// Delete soft-deletes a patient.
func (s *PatientService) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.Tenant(ctx).DB().Delete(&models.Patient{}, "id = ?", id)
	if res.Error != nil {
		return store.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("patient")
	}
	s.log.Info("patient deleted", zap.String("patientId", id.String()))
	return nil
}

// Restore brings back a soft-deleted patient. Clinic owners only.
func (s *PatientService) Restore(ctx context.Context, id uuid.UUID) (*models.Patient, error) {
	q, err := s.db.Tenant(ctx).IncludeDeleted()
	if err != nil {
		return nil, err
	}
	res := q.DB().Model(&models.Patient{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Update("deleted_at", nil)
	if res.Error != nil {
		return nil, store.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, apperr.NotFound("deleted patient")
	}
	s.log.Info("patient restored", zap.String("patientId", id.String()))
	return s.Get(ctx, id)
}

// Trash lists soft-deleted patients. Clinic owners only.
func (s *PatientService) Trash(ctx context.Context) ([]models.Patient, error) {
	q, err := s.db.Tenant(ctx).IncludeDeleted()
	if err != nil {
		return nil, err
	}
	var patients []models.Patient
	if err := q.DB().Where("deleted_at IS NOT NULL").Order("deleted_at desc").Find(&patients).Error; err != nil {
		return nil, store.Internal(err)
	}
	return patients, nil
}

// UploadPhoto stores a new photo and removes the previous one.
func (s *PatientService) UploadPhoto(ctx context.Context, id uuid.UUID, file Upload) (*models.Patient, error) {
	patient, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	stored, err := s.storage.UploadWithValidation(ctx, file, CategoryPatientPhoto)
	if err != nil {
		return nil, err
	}
	res := s.db.Tenant(ctx).DB().Model(&models.Patient{}).Where("id = ?", id).Update("photo_path", stored.Path)
	if res.Error != nil || res.RowsAffected == 0 {
		if _, derr := s.storage.Delete(stored.Path); derr != nil {
			s.log.Warn("remove orphaned photo", zap.String("path", stored.Path), zap.Error(derr))
		}
		if res.Error != nil {
			return nil, store.Internal(res.Error)
		}
		return nil, apperr.NotFound("patient")
	}
	if old := patient.PhotoPath; old != "" {
		if _, err := s.storage.Delete(old); err != nil {
			s.log.Warn("remove previous photo", zap.String("path", old), zap.Error(err))
		}
	}
	patient.PhotoPath = stored.Path
	s.log.Info("patient photo uploaded", zap.String("patientId", id.String()), zap.String("mime", stored.MIMEType))
	return patient, nil
}
