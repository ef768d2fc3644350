package services

import (
	"context"
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

// MedicineService manages the clinic's medicine inventory.
type MedicineService struct {
	db  *store.DB
	log *zap.Logger
}

func NewMedicineService(db *store.DB, log *zap.Logger) *MedicineService {
	return &MedicineService{db: db, log: log.Named("medicines")}
}

type MedicineInput struct {
	Name         string
	GenericName  string
	Form         string
	Strength     string
	Manufacturer string
	Price        decimal.Decimal
	Quantity     int
	ReorderLevel int
	ExpiryDate   *time.Time
}

func (in MedicineInput) validate() error {
	if err := checkPrice(in.Price); err != nil {
		return err
	}
	if in.Quantity < 0 || in.ReorderLevel < 0 {
		return apperr.Validation(apperr.CodeValidation, "quantity and reorder level must not be negative")
	}
	return nil
}

func (s *MedicineService) Create(ctx context.Context, in MedicineInput) (*models.Medicine, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	m := models.Medicine{
		Name:         in.Name,
		GenericName:  in.GenericName,
		Form:         in.Form,
		Strength:     in.Strength,
		Manufacturer: in.Manufacturer,
		Price:        domain.RoundMoney(in.Price),
		Quantity:     in.Quantity,
		ReorderLevel: in.ReorderLevel,
		ExpiryDate:   in.ExpiryDate,
	}
	if err := s.db.Tenant(ctx).DB().Create(&m).Error; err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("medicine created", zap.String("medicineId", m.ID.String()))
	return &m, nil
}

func (s *MedicineService) Get(ctx context.Context, id uuid.UUID) (*models.Medicine, error) {
	var m models.Medicine
	if err := findInTenant(s.db.Tenant(ctx).DB(), &m, id, "medicine"); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MedicineService) List(ctx context.Context, search string, pageNum, size int) ([]models.Medicine, int64, error) {
	q := s.db.Tenant(ctx).DB().Model(&models.Medicine{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(generic_name) LIKE ?", like, like)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, store.Internal(err)
	}
	var list []models.Medicine
	if err := page(q, pageNum, size).Order("name").Find(&list).Error; err != nil {
		return nil, 0, store.Internal(err)
	}
	return list, total, nil
}

// Update replaces the descriptive fields. Quantity only changes through
// AddStock and invoicing.
func (s *MedicineService) Update(ctx context.Context, id uuid.UUID, in MedicineInput) (*models.Medicine, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var m models.Medicine
	err := s.db.Tenant(ctx).Transaction(func(tx *gorm.DB) error {
		if err := findInTenant(tx, &m, id, "medicine"); err != nil {
			return err
		}
		m.Name = in.Name
		m.GenericName = in.GenericName
		m.Form = in.Form
		m.Strength = in.Strength
		m.Manufacturer = in.Manufacturer
		m.Price = domain.RoundMoney(in.Price)
		m.ReorderLevel = in.ReorderLevel
		m.ExpiryDate = in.ExpiryDate
		return saveRecord(tx, &m, "medicine", "quantity")
	})
	if err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("medicine updated", zap.String("medicineId", id.String()))
	return &m, nil
}

func (s *MedicineService) Delete(ctx context.Context, id uuid.UUID) error {
	res := s.db.Tenant(ctx).DB().Delete(&models.Medicine{}, "id = ?", id)
	if res.Error != nil {
		return store.Internal(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("medicine")
	}
	s.log.Info("medicine deleted", zap.String("medicineId", id.String()))
	return nil
}

// AddStock increases the quantity on hand by quantity, which must be
// positive.
func (s *MedicineService) AddStock(ctx context.Context, id uuid.UUID, quantity int) (*models.Medicine, error) {
	if quantity <= 0 {
		return nil, apperr.Validation(apperr.CodeValidation, "quantity must be greater than zero").
			WithDetail("quantity", quantity)
	}
	var m models.Medicine
	err := s.db.Tenant(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Medicine{}).Where("id = ?", id).
			Update("quantity", gorm.Expr("quantity + ?", quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound("medicine")
		}
		return findInTenant(tx, &m, id, "medicine")
	})
	if err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("medicine stock added",
		zap.String("medicineId", id.String()),
		zap.Int("added", quantity),
		zap.Int("quantity", m.Quantity))
	return &m, nil
}

// LowStock lists medicines at or below their reorder level.
func (s *MedicineService) LowStock(ctx context.Context) ([]models.Medicine, error) {
	var list []models.Medicine
	err := s.db.Tenant(ctx).DB().Where("quantity <= reorder_level").Order("quantity").Find(&list).Error
	if err != nil {
		return nil, store.Internal(err)
	}
	return list, nil
}

// deductStock removes quantity from a medicine inside tx, failing when the
// stock is short.
func deductStock(tx *gorm.DB, medicineID uuid.UUID, quantity int) error {
	res := tx.Model(&models.Medicine{}).
		Where("id = ? AND quantity >= ?", medicineID, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 1 {
		return nil
	}
	var m models.Medicine
	if err := findInTenant(tx, &m, medicineID, "medicine"); err != nil {
		return err
	}
	return apperr.Validation(apperr.CodeInsufficientStock, "insufficient stock for "+m.Name).
		WithDetail("medicineId", medicineID.String()).
		WithDetail("available", m.Quantity).
		WithDetail("requested", quantity)
}
