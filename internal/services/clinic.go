package services

import (
	"context"

	"clinic-management-server/internal/models"
	"clinic-management-server/internal/store"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ClinicService manages the caller's clinic and its branches.
type ClinicService struct {
	db  *store.DB
	log *zap.Logger
}

func NewClinicService(db *store.DB, log *zap.Logger) *ClinicService {
	return &ClinicService{db: db, log: log.Named("clinic")}
}

func (s *ClinicService) Get(ctx context.Context) (*models.Clinic, error) {
	p, err := clinicPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	var clinic models.Clinic
	if err := s.db.Shared(ctx).First(&clinic, "id = ?", p.ClinicID).Error; err != nil {
		return nil, store.NotFound(err, "clinic")
	}
	return &clinic, nil
}

// ClinicUpdate holds editable clinic fields. Empty strings leave a field
// unchanged; Settings keys are merged into the stored settings.
type ClinicUpdate struct {
	Name     string
	Email    string
	Phone    string
	Address  string
	Settings map[string]interface{}
}

func (s *ClinicService) Update(ctx context.Context, in ClinicUpdate) (*models.Clinic, error) {
	clinic, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		clinic.Name = in.Name
	}
	if in.Email != "" {
		clinic.Email = in.Email
	}
	if in.Phone != "" {
		clinic.Phone = in.Phone
	}
	if in.Address != "" {
		clinic.Address = in.Address
	}
	if len(in.Settings) > 0 {
		merged := datatypes.JSONMap{}
		for k, v := range clinic.Settings {
			merged[k] = v
		}
		for k, v := range in.Settings {
			merged[k] = v
		}
		clinic.Settings = merged
	}
	if err := saveRecord(s.db.Shared(ctx), clinic, "clinic"); err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("clinic updated", zap.String("clinicId", clinic.ID.String()))
	return clinic, nil
}

// BranchInput describes a new branch.
type BranchInput struct {
	Name    string
	Address string
	Phone   string
}

func (s *ClinicService) CreateBranch(ctx context.Context, in BranchInput) (*models.ClinicBranch, error) {
	if _, err := clinicPrincipal(ctx); err != nil {
		return nil, err
	}
	branch := models.ClinicBranch{Name: in.Name, Address: in.Address, Phone: in.Phone}
	if err := s.db.Tenant(ctx).DB().Create(&branch).Error; err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("branch created", zap.String("branchId", branch.ID.String()))
	return &branch, nil
}

func (s *ClinicService) ListBranches(ctx context.Context) ([]models.ClinicBranch, error) {
	var branches []models.ClinicBranch
	if err := s.db.Tenant(ctx).DB().Order("is_main desc, name").Find(&branches).Error; err != nil {
		return nil, store.Internal(err)
	}
	return branches, nil
}

// findInTenant loads a clinic-owned row by id.
func findInTenant(tx *gorm.DB, dest interface{}, id interface{}, resource string) error {
	return store.NotFound(tx.First(dest, "id = ?", id).Error, resource)
}
