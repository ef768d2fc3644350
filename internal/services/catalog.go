package services

import (
	"context"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"
	"clinic-management-server/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CatalogService manages what a clinic can book and bill: appointment types,
// medical services and supplies. Chronic diseases are a global catalogue.
type CatalogService struct {
	db  *store.DB
	log *zap.Logger
}

func NewCatalogService(db *store.DB, log *zap.Logger) *CatalogService {
	return &CatalogService{db: db, log: log.Named("catalog")}
}

func checkPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return apperr.Validation(apperr.CodeValidation, "price must not be negative")
	}
	return nil
}

type AppointmentTypeInput struct {
	Name            string
	DurationMinutes int
	Price           decimal.Decimal
}

func (s *CatalogService) CreateAppointmentType(ctx context.Context, in AppointmentTypeInput) (*models.AppointmentType, error) {
	if err := checkPrice(in.Price); err != nil {
		return nil, err
	}
	t := models.AppointmentType{
		Name:            in.Name,
		DurationMinutes: in.DurationMinutes,
		Price:           domain.RoundMoney(in.Price),
		IsActive:        true,
	}
	if err := s.db.Tenant(ctx).DB().Create(&t).Error; err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("appointment type created", zap.String("appointmentTypeId", t.ID.String()))
	return &t, nil
}

func (s *CatalogService) ListAppointmentTypes(ctx context.Context) ([]models.AppointmentType, error) {
	var list []models.AppointmentType
	if err := s.db.Tenant(ctx).DB().Where("is_active = ?", true).Order("name").Find(&list).Error; err != nil {
		return nil, store.Internal(err)
	}
	return list, nil
}

type MedicalServiceInput struct {
	Code  string
	Name  string
	Price decimal.Decimal
}

func (s *CatalogService) CreateMedicalService(ctx context.Context, in MedicalServiceInput) (*models.MedicalService, error) {
	if err := checkPrice(in.Price); err != nil {
		return nil, err
	}
	svc := models.MedicalService{Code: in.Code, Name: in.Name, Price: domain.RoundMoney(in.Price), IsActive: true}
	if err := s.db.Tenant(ctx).DB().Create(&svc).Error; err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("medical service created", zap.String("medicalServiceId", svc.ID.String()))
	return &svc, nil
}

func (s *CatalogService) ListMedicalServices(ctx context.Context) ([]models.MedicalService, error) {
	var list []models.MedicalService
	if err := s.db.Tenant(ctx).DB().Where("is_active = ?", true).Order("name").Find(&list).Error; err != nil {
		return nil, store.Internal(err)
	}
	return list, nil
}

type SupplyInput struct {
	Name     string
	Unit     string
	Price    decimal.Decimal
	Quantity int
}

func (s *CatalogService) CreateSupply(ctx context.Context, in SupplyInput) (*models.MedicalSupply, error) {
	if err := checkPrice(in.Price); err != nil {
		return nil, err
	}
	if in.Quantity < 0 {
		return nil, apperr.Validation(apperr.CodeValidation, "quantity must not be negative")
	}
	sup := models.MedicalSupply{Name: in.Name, Unit: in.Unit, Price: domain.RoundMoney(in.Price), Quantity: in.Quantity}
	if err := s.db.Tenant(ctx).DB().Create(&sup).Error; err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("medical supply created", zap.String("medicalSupplyId", sup.ID.String()))
	return &sup, nil
}

func (s *CatalogService) ListSupplies(ctx context.Context) ([]models.MedicalSupply, error) {
	var list []models.MedicalSupply
	if err := s.db.Tenant(ctx).DB().Order("name").Find(&list).Error; err != nil {
		return nil, store.Internal(err)
	}
	return list, nil
}

func (s *CatalogService) ListChronicDiseases(ctx context.Context) ([]models.ChronicDisease, error) {
	var list []models.ChronicDisease
	if err := s.db.Shared(ctx).Order("name").Find(&list).Error; err != nil {
		return nil, store.Internal(err)
	}
	return list, nil
}

func (s *CatalogService) CreateChronicDisease(ctx context.Context, name, description string) (*models.ChronicDisease, error) {
	d := models.ChronicDisease{Name: name, Description: description}
	if err := s.db.Shared(ctx).Create(&d).Error; err != nil {
		if store.IsDuplicate(err) {
			return nil, apperr.Conflict(apperr.CodeValidation, "chronic disease already exists")
		}
		return nil, store.Internal(err)
	}
	s.log.Info("chronic disease created", zap.String("chronicDiseaseId", d.ID.String()))
	return &d, nil
}
