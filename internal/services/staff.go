package services

import (
	"context"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"
	"clinic-management-server/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StaffService lists and deactivates the users of a clinic. Users are not a
// clinic-owned table, so every query filters clinic_id itself.
type StaffService struct {
	db  *store.DB
	log *zap.Logger
}

func NewStaffService(db *store.DB, log *zap.Logger) *StaffService {
	return &StaffService{db: db, log: log.Named("staff")}
}

// List returns the clinic's users, optionally limited to role.
func (s *StaffService) List(ctx context.Context, role domain.Role) ([]models.UserSanitized, error) {
	p, err := clinicPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	q := s.db.Shared(ctx).Where("clinic_id = ?", p.ClinicID).Order("last_name, first_name")
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var users []models.User
	if err := q.Find(&users).Error; err != nil {
		return nil, store.Internal(err)
	}
	out := make([]models.UserSanitized, len(users))
	for i := range users {
		out[i] = users[i].Sanitize()
	}
	return out, nil
}

// Deactivate disables a staff account and revokes its sessions. Owners cannot
// deactivate themselves or another owner.
func (s *StaffService) Deactivate(ctx context.Context, userID uuid.UUID) error {
	p, err := clinicPrincipal(ctx)
	if err != nil {
		return err
	}
	if userID == p.UserID {
		return apperr.Validation(apperr.CodeValidation, "you cannot deactivate your own account")
	}
	err = s.db.Shared(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Where("clinic_id = ?", p.ClinicID).First(&user, "id = ?", userID).Error; err != nil {
			return store.NotFound(err, "user")
		}
		if !user.Role.IsStaff() {
			return apperr.Forbidden("only staff accounts can be deactivated")
		}
		if err := tx.Model(&user).Update("is_active", false).Error; err != nil {
			return err
		}
		return revokeRefreshTokens(tx, user.ID, time.Now().UTC())
	})
	if err != nil {
		return store.Internal(err)
	}
	s.log.Info("staff deactivated", zap.String("userId", userID.String()), zap.String("by", p.UserID.String()))
	return nil
}
