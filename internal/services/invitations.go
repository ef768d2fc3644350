package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/config"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"
	"clinic-management-server/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errInvitationNotFound = apperr.Validation(apperr.CodeInvitationInvalid, "invitation is invalid or expired")

// InvitationService manages staff invitations and their acceptance.
type InvitationService struct {
	db       *store.DB
	cfg      *config.Config
	identity *Identity
	mailer   Mailer
	log      *zap.Logger
	now      func() time.Time
}

func NewInvitationService(db *store.DB, cfg *config.Config, identity *Identity, mailer Mailer, log *zap.Logger) *InvitationService {
	return &InvitationService{
		db:       db,
		cfg:      cfg,
		identity: identity,
		mailer:   mailer,
		log:      log.Named("invitations"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create invites email to the caller's clinic with role. Only one valid
// invitation per email and clinic may exist.
func (s *InvitationService) Create(ctx context.Context, email string, role domain.Role) (*models.StaffInvitation, error) {
	p, err := clinicPrincipal(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	ttl := time.Duration(s.cfg.InvitationExpiryDays) * 24 * time.Hour
	inv, err := domain.NewStaffInvitation(p.ClinicID, email, role, p.UserID, ttl, now)
	if err != nil {
		return nil, validationFrom(err)
	}

	var users int64
	if err := s.db.Shared(ctx).Unscoped().Model(&models.User{}).Where("email = ?", inv.Email()).Count(&users).Error; err != nil {
		return nil, store.Internal(err)
	}
	if users > 0 {
		return nil, apperr.Conflict(apperr.CodeEmailTaken, "a user with this email already exists")
	}

	rec := models.InvitationFromDomain(inv)
	err = s.db.Tenant(ctx).Transaction(func(tx *gorm.DB) error {
		var pending int64
		err := tx.Model(&models.StaffInvitation{}).
			Where("email = ? AND is_accepted = ? AND is_canceled = ? AND expires_at > ?", inv.Email(), false, false, now).
			Count(&pending).Error
		if err != nil {
			return err
		}
		if pending > 0 {
			return apperr.Conflict(apperr.CodeDuplicateInvitation, "a valid invitation for this email already exists")
		}
		return tx.Create(rec).Error
	})
	if err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("invitation created",
		zap.String("invitationId", rec.ID.String()),
		zap.String("clinicId", p.ClinicID.String()),
		zap.String("role", string(role)))

	link := strings.TrimRight(s.cfg.AppURL, "/") + "/accept-invitation?token=" + inv.Token()
	body := fmt.Sprintf(`<p>You have been invited to join the clinic as %s.</p><p><a href="%s">Accept the invitation</a></p>`, role, link)
	if err := s.mailer.SendEmail(ctx, inv.Email(), "You have been invited", body); err != nil {
		s.log.Error("send invitation email", zap.String("invitationId", rec.ID.String()), zap.Error(err))
	}
	return rec, nil
}

// List returns the clinic's invitations, newest first. Unless all is set only
// pending ones are returned.
func (s *InvitationService) List(ctx context.Context, all bool) ([]models.StaffInvitation, error) {
	if _, err := clinicPrincipal(ctx); err != nil {
		return nil, err
	}
	q := s.db.Tenant(ctx).DB().Order("created_at desc")
	if !all {
		q = q.Where("is_accepted = ? AND is_canceled = ? AND expires_at > ?", false, false, s.now())
	}
	var list []models.StaffInvitation
	if err := q.Find(&list).Error; err != nil {
		return nil, store.Internal(err)
	}
	return list, nil
}

// Cancel withdraws a pending invitation.
func (s *InvitationService) Cancel(ctx context.Context, id uuid.UUID) error {
	if _, err := clinicPrincipal(ctx); err != nil {
		return err
	}
	err := s.db.Tenant(ctx).Transaction(func(tx *gorm.DB) error {
		var rec models.StaffInvitation
		if err := tx.First(&rec, "id = ?", id).Error; err != nil {
			return store.NotFound(err, "invitation")
		}
		inv := rec.ToDomain()
		if err := inv.Cancel(s.now()); err != nil {
			return err
		}
		return saveRecord(tx, models.InvitationFromDomain(inv), "invitation")
	})
	if err != nil {
		return store.Internal(err)
	}
	s.log.Info("invitation canceled", zap.String("invitationId", id.String()))
	return nil
}

// AcceptInput is the public acceptance form.
type AcceptInput struct {
	Token       string
	FirstName   string
	LastName    string
	Password    string
	PhoneNumber string
}

// Accept creates the invited user and marks the invitation accepted in one
// transaction.
func (s *InvitationService) Accept(ctx context.Context, in AcceptInput) (*models.User, error) {
	// The clinic is unknown until the token is resolved.
	var rec models.StaffInvitation
	if err := s.db.System(ctx).First(&rec, "token = ?", in.Token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvitationNotFound
		}
		return nil, store.Internal(err)
	}
	now := s.now()
	inv := rec.ToDomain()
	if !inv.IsValid(now) {
		return nil, apperr.InvalidState(apperr.CodeInvitationInvalid, "accept invitation", inv.State(now))
	}

	hash, err := s.identity.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(err, "hash password")
	}
	clinicID := inv.ClinicID()
	user := models.User{
		ClinicID:       &clinicID,
		Email:          inv.Email(),
		PasswordHash:   hash,
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		PhoneNumber:    in.PhoneNumber,
		Role:           inv.Role(),
		IsActive:       true,
		EmailConfirmed: true,
	}

	err = s.db.ForClinic(ctx, clinicID).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			if store.IsDuplicate(err) {
				return apperr.Conflict(apperr.CodeEmailTaken, "a user with this email already exists")
			}
			return err
		}
		if err := inv.Accept(user.ID, now); err != nil {
			return err
		}
		snap := inv.Snapshot()
		res := tx.Model(&models.StaffInvitation{}).
			Where("id = ? AND is_accepted = ? AND is_canceled = ?", snap.ID, false, false).
			Updates(map[string]interface{}{
				"is_accepted":      true,
				"accepted_at":      snap.AcceptedAt,
				"accepted_user_id": snap.AcceptedUserID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return errInvitationNotFound
		}
		return nil
	})
	if err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("invitation accepted",
		zap.String("invitationId", rec.ID.String()),
		zap.String("userId", user.ID.String()),
		zap.String("clinicId", clinicID.String()))
	return &user, nil
}

// CleanupExpired deletes unaccepted invitations that have expired.
func (s *InvitationService) CleanupExpired(ctx context.Context) (int64, error) {
	res := s.db.System(ctx).
		Where("is_accepted = ? AND expires_at < ?", false, s.now()).
		Delete(&models.StaffInvitation{})
	return res.RowsAffected, res.Error
}
