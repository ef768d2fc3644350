package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/config"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"
	"clinic-management-server/internal/store"
	"clinic-management-server/internal/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	errTokenInvalid       = apperr.Unauthorized(apperr.CodeTokenInvalid, "refresh token is invalid, expired or revoked")
	errInvalidCredentials = apperr.Unauthorized(apperr.CodeInvalidCredentials, "invalid email or password")
	errUserTokenInvalid   = apperr.Validation(apperr.CodeTokenInvalid, "token is invalid or expired")
)

// AuthResult is returned by login and refresh.
type AuthResult struct {
	AccessToken      string               `json:"accessToken"`
	AccessExpiresAt  time.Time            `json:"accessExpiresAt"`
	RefreshToken     string               `json:"refreshToken"`
	RefreshExpiresAt time.Time            `json:"refreshExpiresAt"`
	User             models.UserSanitized `json:"user"`
}

// AuthService implements registration, login and refresh-token rotation.
type AuthService struct {
	db       *store.DB
	cfg      *config.Config
	identity *Identity
	mailer   Mailer
	locks    *KeyedMutex
	log      *zap.Logger
	now      func() time.Time
}

func NewAuthService(db *store.DB, cfg *config.Config, identity *Identity, mailer Mailer, log *zap.Logger) *AuthService {
	return &AuthService{
		db:       db,
		cfg:      cfg,
		identity: identity,
		mailer:   mailer,
		locks:    NewKeyedMutex(),
		log:      log.Named("auth"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RegisterClinicInput holds the onboarding form.
type RegisterClinicInput struct {
	ClinicName    string
	ClinicEmail   string
	ClinicPhone   string
	ClinicAddress string
	FirstName     string
	LastName      string
	Email         string
	Password      string
}

// RegisterClinic creates a clinic, its main branch and its owner in one
// transaction, then sends the owner a verification email.
func (s *AuthService) RegisterClinic(ctx context.Context, in RegisterClinicInput) (*models.User, error) {
	email := normalizeEmail(in.Email)
	if err := s.ensureEmailFree(ctx, s.db.Shared(ctx), email); err != nil {
		return nil, err
	}
	hash, err := s.identity.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal(err, "hash password")
	}

	clinicID := uuid.New()
	owner := models.User{
		ClinicID:     &clinicID,
		Email:        email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Role:         domain.RoleClinicOwner,
		IsActive:     true,
	}
	err = s.db.ForClinic(ctx, clinicID).Transaction(func(tx *gorm.DB) error {
		clinic := models.Clinic{
			BaseModel: models.BaseModel{ID: clinicID},
			Name:      in.ClinicName,
			Email:     in.ClinicEmail,
			Phone:     in.ClinicPhone,
			Address:   in.ClinicAddress,
			IsActive:  true,
		}
		if err := tx.Create(&clinic).Error; err != nil {
			return err
		}
		branch := models.ClinicBranch{Name: "Main branch", Address: in.ClinicAddress, Phone: in.ClinicPhone, IsMain: true}
		if err := tx.Create(&branch).Error; err != nil {
			return err
		}
		return tx.Create(&owner).Error
	})
	if err != nil {
		if store.IsDuplicate(err) {
			return nil, apperr.Conflict(apperr.CodeEmailTaken, "email is already registered")
		}
		return nil, store.Internal(err)
	}
	s.log.Info("clinic registered", zap.String("clinicId", clinicID.String()), zap.String("ownerId", owner.ID.String()))

	s.sendVerification(ctx, &owner)
	return &owner, nil
}

func (s *AuthService) ensureEmailFree(ctx context.Context, db *gorm.DB, email string) error {
	var count int64
	if err := db.Unscoped().Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return store.Internal(err)
	}
	if count > 0 {
		return apperr.Conflict(apperr.CodeEmailTaken, "email is already registered")
	}
	return nil
}

// Login checks credentials and issues a token pair.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*AuthResult, error) {
	var user models.User
	err := s.db.Shared(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, store.Internal(err)
	}
	if !s.identity.VerifyPassword(password, user.PasswordHash) {
		s.log.Info("login failed", zap.String("userId", user.ID.String()))
		return nil, errInvalidCredentials
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("account is deactivated")
	}
	if !user.EmailConfirmed {
		return nil, apperr.Unauthorized(apperr.CodeEmailNotConfirmed, "email address is not confirmed")
	}

	var result *AuthResult
	err = s.db.Shared(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		res, err := s.issue(tx, &user, ip, now)
		if err != nil {
			return err
		}
		result = res
		return tx.Model(&user).Update("last_login_at", now).Error
	})
	if err != nil {
		return nil, store.Internal(err)
	}
	s.log.Info("user logged in", zap.String("userId", user.ID.String()))
	return result, nil
}

// issue signs a token pair for user and stores the refresh token.
func (s *AuthService) issue(tx *gorm.DB, user *models.User, ip string, now time.Time) (*AuthResult, error) {
	pair, err := utils.GenerateTokens(user.Principal(), s.cfg, now)
	if err != nil {
		return nil, err
	}
	rt := models.RefreshToken{
		UserID:      user.ID,
		TokenHash:   hashToken(pair.RefreshToken),
		ExpiresAt:   pair.RefreshExpiresAt,
		CreatedByIP: ip,
	}
	if err := tx.Create(&rt).Error; err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &AuthResult{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt,
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt,
		User:             user.Sanitize(),
	}, nil
}

// Refresh rotates a refresh token. Calls for the same user are serialized,
// and the revocation of the old token is a conditional update, so of two
// concurrent calls with the same token exactly one succeeds.
func (s *AuthService) Refresh(ctx context.Context, token, ip string) (*AuthResult, error) {
	if _, err := utils.ValidateToken(token, s.cfg.JWTRefreshSecret); err != nil {
		return nil, errTokenInvalid
	}
	hash := hashToken(token)
	stored, err := s.findRefreshToken(ctx, hash)
	if err != nil {
		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, stored.UserID.String())
	if err != nil {
		return nil, err
	}
	defer unlock()

	// Another call may have rotated the token while this one waited.
	stored, err = s.findRefreshToken(ctx, hash)
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := s.db.Shared(ctx).First(&user, "id = ?", stored.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Unauthorized(apperr.CodeUserNotFound, "user no longer exists")
		}
		return nil, store.Internal(err)
	}
	if !user.IsActive {
		return nil, apperr.Forbidden("account is deactivated")
	}

	var result *AuthResult
	err = s.db.Shared(ctx).Transaction(func(tx *gorm.DB) error {
		now := s.now()
		res, err := s.issue(tx, &user, ip, now)
		if err != nil {
			return err
		}
		newHash := hashToken(res.RefreshToken)
		upd := tx.Model(&models.RefreshToken{}).
			Where("id = ? AND is_revoked = ?", stored.ID, false).
			Updates(map[string]interface{}{
				"is_revoked":        true,
				"revoked_at":        now,
				"replaced_by_token": newHash,
			})
		if upd.Error != nil {
			return upd.Error
		}
		if upd.RowsAffected != 1 {
			return errTokenInvalid
		}
		result = res
		return nil
	})
	if err != nil {
		if apperr.HasCode(err, apperr.CodeTokenInvalid) {
			s.log.Warn("refresh token rotated concurrently", zap.String("userId", user.ID.String()))
			return nil, errTokenInvalid
		}
		return nil, store.Internal(err)
	}
	s.log.Info("refresh token rotated", zap.String("userId", user.ID.String()), zap.String("tokenId", stored.ID.String()))
	return result, nil
}

func (s *AuthService) findRefreshToken(ctx context.Context, hash string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := s.db.Shared(ctx).Where("token_hash = ?", hash).First(&rt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errTokenInvalid
	}
	if err != nil {
		return nil, store.Internal(err)
	}
	if !rt.IsActive(s.now()) {
		return nil, errTokenInvalid
	}
	return &rt, nil
}

// Logout revokes a refresh token. Unknown or already revoked tokens are not an
// error.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	res := s.db.Shared(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ? AND is_revoked = ?", hashToken(token), false).
		Updates(map[string]interface{}{"is_revoked": true, "revoked_at": s.now()})
	if res.Error != nil {
		return store.Internal(res.Error)
	}
	s.log.Info("logout", zap.Int64("revoked", res.RowsAffected))
	return nil
}

func (s *AuthService) userByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.Shared(ctx).Where("email = ?", normalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ConfirmEmail marks the user's email as confirmed.
func (s *AuthService) ConfirmEmail(ctx context.Context, email, token string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errUserTokenInvalid
		}
		return store.Internal(err)
	}
	if err := s.identity.ValidateUserToken(user, PurposeEmailConfirmation, token); err != nil {
		return errUserTokenInvalid
	}
	if err := s.db.Shared(ctx).Model(user).Update("email_confirmed", true).Error; err != nil {
		return store.Internal(err)
	}
	s.log.Info("email confirmed", zap.String("userId", user.ID.String()))
	return nil
}

// ResendVerification always succeeds; the outcome is only logged.
func (s *AuthService) ResendVerification(ctx context.Context, email string) {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		s.log.Info("verification resend skipped", zap.Error(err))
		return
	}
	if user.EmailConfirmed {
		s.log.Info("verification resend skipped, already confirmed", zap.String("userId", user.ID.String()))
		return
	}
	s.sendVerification(ctx, user)
}

func (s *AuthService) sendVerification(ctx context.Context, user *models.User) {
	ttl := time.Duration(s.cfg.VerificationTokenExpiry) * time.Hour
	token, err := s.identity.GenerateUserToken(user, PurposeEmailConfirmation, ttl)
	if err != nil {
		s.log.Error("generate verification token", zap.String("userId", user.ID.String()), zap.Error(err))
		return
	}
	link := s.link("/confirm-email", user.Email, token)
	body := fmt.Sprintf(`<p>Hello %s,</p><p>Please confirm your email address: <a href="%s">confirm</a>.</p>`, user.FirstName, link)
	if err := s.mailer.SendEmail(ctx, user.Email, "Confirm your email", body); err != nil {
		s.log.Error("send verification email", zap.String("userId", user.ID.String()), zap.Error(err))
	}
}

func (s *AuthService) link(path, email, token string) string {
	q := url.Values{}
	q.Set("email", email)
	q.Set("token", token)
	return strings.TrimRight(s.cfg.AppURL, "/") + path + "?" + q.Encode()
}

// ForgotPassword always succeeds; the outcome is only logged.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		s.log.Info("password reset skipped", zap.Error(err))
		return
	}
	ttl := time.Duration(s.cfg.PasswordResetTokenExpiry) * time.Minute
	token, err := s.identity.GenerateUserToken(user, PurposePasswordReset, ttl)
	if err != nil {
		s.log.Error("generate reset token", zap.String("userId", user.ID.String()), zap.Error(err))
		return
	}
	body := fmt.Sprintf(`<p>Hello %s,</p><p>Reset your password: <a href="%s">reset</a>.</p>`,
		user.FirstName, s.link("/reset-password", user.Email, token))
	if err := s.mailer.SendEmail(ctx, user.Email, "Reset your password", body); err != nil {
		s.log.Error("send reset email", zap.String("userId", user.ID.String()), zap.Error(err))
		return
	}
	s.log.Info("password reset email sent", zap.String("userId", user.ID.String()))
}

// ResetPassword sets a new password using a reset token and revokes every
// refresh token of the user.
func (s *AuthService) ResetPassword(ctx context.Context, email, token, newPassword string) error {
	user, err := s.userByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errUserTokenInvalid
		}
		return store.Internal(err)
	}
	if err := s.identity.ValidateUserToken(user, PurposePasswordReset, token); err != nil {
		return errUserTokenInvalid
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}
	s.log.Info("password reset", zap.String("userId", user.ID.String()))
	return nil
}

// ChangePassword replaces the caller's password after checking the current
// one.
func (s *AuthService) ChangePassword(ctx context.Context, p domain.Principal, current, newPassword string) error {
	user, err := s.Profile(ctx, p)
	if err != nil {
		return err
	}
	if !s.identity.VerifyPassword(current, user.PasswordHash) {
		return apperr.Validation(apperr.CodeInvalidCredentials, "current password is incorrect")
	}
	if err := s.setPassword(ctx, user, newPassword); err != nil {
		return err
	}
	s.log.Info("password changed", zap.String("userId", user.ID.String()))
	return nil
}

func (s *AuthService) setPassword(ctx context.Context, user *models.User, plain string) error {
	hash, err := s.identity.HashPassword(plain)
	if err != nil {
		return apperr.Internal(err, "hash password")
	}
	err = s.db.Shared(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(user).Update("password_hash", hash).Error; err != nil {
			return err
		}
		return revokeRefreshTokens(tx, user.ID, s.now())
	})
	return store.Internal(err)
}

// Profile returns the caller's user record.
func (s *AuthService) Profile(ctx context.Context, p domain.Principal) (*models.User, error) {
	var user models.User
	if err := s.db.Shared(ctx).First(&user, "id = ?", p.UserID).Error; err != nil {
		return nil, store.NotFound(err, "user")
	}
	return &user, nil
}

// ProfileUpdate holds the editable profile fields. Empty fields are left
// unchanged.
type ProfileUpdate struct {
	FirstName   string
	LastName    string
	PhoneNumber string
}

func (s *AuthService) UpdateProfile(ctx context.Context, p domain.Principal, in ProfileUpdate) (*models.User, error) {
	user, err := s.Profile(ctx, p)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.FirstName != "" {
		updates["first_name"] = in.FirstName
	}
	if in.LastName != "" {
		updates["last_name"] = in.LastName
	}
	if in.PhoneNumber != "" {
		updates["phone_number"] = in.PhoneNumber
	}
	if len(updates) > 0 {
		if err := s.db.Shared(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, store.Internal(err)
		}
		s.log.Info("profile updated", zap.String("userId", user.ID.String()))
	}
	return s.Profile(ctx, p)
}

// SweepExpiredTokens deletes refresh tokens that expired before now.
func (s *AuthService) SweepExpiredTokens(ctx context.Context) (int64, error) {
	res := s.db.Shared(ctx).Where("expires_at < ?", s.now()).Delete(&models.RefreshToken{})
	return res.RowsAffected, res.Error
}
