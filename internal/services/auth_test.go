package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"
)

func TestRegisterClinicCreatesOwnerAndMainBranch(t *testing.T) {
	e := newTestEnv(t)
	owner, err := e.auth.RegisterClinic(context.Background(), RegisterClinicInput{
		ClinicName: "Sunrise",
		FirstName:  "Ana",
		LastName:   "Diaz",
		Email:      " Ana@Example.com ",
		Password:   "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("RegisterClinic: %v", err)
	}
	if owner.Email != "ana@example.com" || owner.Role != domain.RoleClinicOwner || owner.ClinicID == nil {
		t.Fatalf("owner = %+v", owner)
	}
	if e.mailer.count() != 1 || e.mailer.sent[0].to != "ana@example.com" {
		t.Fatalf("verification mail not sent: %+v", e.mailer.sent)
	}

	branches, err := NewClinicService(e.db, e.log).ListBranches(as(owner))
	if err != nil {
		t.Fatal(err)
	}
	if len(branches) != 1 || !branches[0].IsMain || branches[0].ClinicID != *owner.ClinicID {
		t.Fatalf("branches = %+v", branches)
	}

	_, err = e.auth.RegisterClinic(context.Background(), RegisterClinicInput{
		ClinicName: "Other", Email: "ana@example.com", Password: "another-pass",
	})
	if !apperr.HasCode(err, apperr.CodeEmailTaken) {
		t.Fatalf("duplicate registration error = %v", err)
	}
}

func TestLoginRequiresConfirmedEmail(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner, err := e.auth.RegisterClinic(ctx, RegisterClinicInput{ClinicName: "C", Email: "o@example.com", Password: "pw-123456"})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := e.auth.Login(ctx, "o@example.com", "pw-123456", "127.0.0.1"); !apperr.HasCode(err, apperr.CodeEmailNotConfirmed) {
		t.Fatalf("login before confirmation: %v", err)
	}

	token, err := e.identity.GenerateUserToken(owner, PurposeEmailConfirmation, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.auth.ConfirmEmail(ctx, "o@example.com", "garbage"); !apperr.HasCode(err, apperr.CodeTokenInvalid) {
		t.Fatalf("confirm with bad token: %v", err)
	}
	if err := e.auth.ConfirmEmail(ctx, "O@example.com", token); err != nil {
		t.Fatalf("ConfirmEmail: %v", err)
	}

	if _, err := e.auth.Login(ctx, "o@example.com", "wrong", ""); !apperr.HasCode(err, apperr.CodeInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := e.auth.Login(ctx, "nobody@example.com", "pw-123456", ""); !apperr.HasCode(err, apperr.CodeInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}
	res, err := e.auth.Login(ctx, "o@example.com", "pw-123456", "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" || res.User.ID != owner.ID {
		t.Fatalf("result = %+v", res)
	}
}

func TestRefreshRotatesToken(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedClinic(t, "owner@example.com")
	first, err := e.auth.Login(ctx, "owner@example.com", "owner-password", "")
	if err != nil {
		t.Fatal(err)
	}

	second, err := e.auth.Refresh(ctx, first.RefreshToken, "")
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}

	var old models.RefreshToken
	if err := e.db.Shared(ctx).First(&old, "token_hash = ?", hashToken(first.RefreshToken)).Error; err != nil {
		t.Fatal(err)
	}
	if !old.IsRevoked || old.RevokedAt == nil || old.ReplacedByToken == nil || *old.ReplacedByToken != hashToken(second.RefreshToken) {
		t.Fatalf("old token = %+v", old)
	}

	if _, err := e.auth.Refresh(ctx, first.RefreshToken, ""); !apperr.HasCode(err, apperr.CodeTokenInvalid) {
		t.Fatalf("reusing rotated token: %v", err)
	}
	if _, err := e.auth.Refresh(ctx, "not-a-jwt", ""); !apperr.HasCode(err, apperr.CodeTokenInvalid) {
		t.Fatalf("garbage token: %v", err)
	}
	if _, err := e.auth.Refresh(ctx, second.RefreshToken, ""); err != nil {
		t.Fatalf("refresh with rotated token: %v", err)
	}
}

func TestConcurrentRefreshHasSingleWinner(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedClinic(t, "owner@example.com")

	for round := 0; round < 5; round++ {
		login, err := e.auth.Login(ctx, "owner@example.com", "owner-password", "")
		if err != nil {
			t.Fatal(err)
		}

		const callers = 2
		var wg sync.WaitGroup
		start := make(chan struct{})
		errs := make([]error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				_, errs[i] = e.auth.Refresh(ctx, login.RefreshToken, "")
			}(i)
		}
		close(start)
		wg.Wait()

		succeeded := 0
		for _, err := range errs {
			switch {
			case err == nil:
				succeeded++
			case !apperr.HasCode(err, apperr.CodeTokenInvalid):
				t.Fatalf("round %d: unexpected error %v", round, err)
			}
		}
		if succeeded != 1 {
			t.Fatalf("round %d: %d refreshes succeeded, want 1", round, succeeded)
		}

		var children int64
		e.db.Shared(ctx).Model(&models.RefreshToken{}).
			Where("replaced_by_token IS NOT NULL AND token_hash = ?", hashToken(login.RefreshToken)).
			Count(&children)
		if children != 1 {
			t.Fatalf("round %d: parent rotated %d times", round, children)
		}
	}
	if n := e.auth.locks.Len(); n != 0 {
		t.Fatalf("lock table holds %d entries after all refreshes", n)
	}
}

func TestRefreshForDeletedUser(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner, _ := e.seedClinic(t, "owner@example.com")
	login, err := e.auth.Login(ctx, "owner@example.com", "owner-password", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.db.Shared(ctx).Delete(&models.User{}, "id = ?", owner.ID).Error; err != nil {
		t.Fatal(err)
	}
	if _, err := e.auth.Refresh(ctx, login.RefreshToken, ""); !apperr.HasCode(err, apperr.CodeUserNotFound) {
		t.Fatalf("error = %v, want %s", err, apperr.CodeUserNotFound)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	e.seedClinic(t, "owner@example.com")
	login, err := e.auth.Login(ctx, "owner@example.com", "owner-password", "")
	if err != nil {
		t.Fatal(err)
	}
	if err := e.auth.Logout(ctx, login.RefreshToken); err != nil {
		t.Fatal(err)
	}
	if err := e.auth.Logout(ctx, login.RefreshToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}
	if _, err := e.auth.Refresh(ctx, login.RefreshToken, ""); !apperr.HasCode(err, apperr.CodeTokenInvalid) {
		t.Fatalf("refresh after logout: %v", err)
	}
}

func TestChangePasswordRevokesSessions(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	_, ownerCtx := e.seedClinic(t, "owner@example.com")
	login, err := e.auth.Login(ctx, "owner@example.com", "owner-password", "")
	if err != nil {
		t.Fatal(err)
	}

	p, _ := domain.PrincipalFrom(ownerCtx)
	if err := e.auth.ChangePassword(ownerCtx, p, "not-it", "new-password"); !apperr.HasCode(err, apperr.CodeInvalidCredentials) {
		t.Fatalf("wrong current password: %v", err)
	}
	if err := e.auth.ChangePassword(ownerCtx, p, "owner-password", "new-password"); err != nil {
		t.Fatalf("ChangePassword: %v", err)
	}
	if _, err := e.auth.Refresh(ctx, login.RefreshToken, ""); !apperr.HasCode(err, apperr.CodeTokenInvalid) {
		t.Fatalf("refresh after password change: %v", err)
	}
	if _, err := e.auth.Login(ctx, "owner@example.com", "new-password", ""); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner, _ := e.seedClinic(t, "owner@example.com")
	sent := e.mailer.count()

	e.auth.ForgotPassword(ctx, "ghost@example.com")
	if e.mailer.count() != sent {
		t.Fatal("mail sent for unknown address")
	}
	e.auth.ForgotPassword(ctx, "owner@example.com")
	if e.mailer.count() != sent+1 {
		t.Fatal("reset mail not sent")
	}

	var current models.User
	if err := e.db.Shared(ctx).First(&current, "id = ?", owner.ID).Error; err != nil {
		t.Fatal(err)
	}
	token, err := e.identity.GenerateUserToken(&current, PurposePasswordReset, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.auth.ResetPassword(ctx, "owner@example.com", token, "brand-new-pass"); err != nil {
		t.Fatalf("ResetPassword: %v", err)
	}
	if err := e.auth.ResetPassword(ctx, "owner@example.com", token, "again-new-pass"); !apperr.HasCode(err, apperr.CodeTokenInvalid) {
		t.Fatalf("reusing reset token: %v", err)
	}
	if _, err := e.auth.Login(ctx, "owner@example.com", "brand-new-pass", ""); err != nil {
		t.Fatalf("login after reset: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	e := newTestEnv(t)
	_, ownerCtx := e.seedClinic(t, "owner@example.com")
	p, _ := domain.PrincipalFrom(ownerCtx)
	u, err := e.auth.UpdateProfile(ownerCtx, p, ProfileUpdate{FirstName: "Olivia", PhoneNumber: "+100"})
	if err != nil {
		t.Fatal(err)
	}
	if u.FirstName != "Olivia" || u.LastName != "Owner" || u.PhoneNumber != "+100" {
		t.Fatalf("profile = %+v", u)
	}
}

func TestSweepExpiredTokens(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	owner, _ := e.seedClinic(t, "owner@example.com")
	expired := models.RefreshToken{UserID: owner.ID, TokenHash: hashToken("old"), ExpiresAt: time.Now().Add(-time.Hour)}
	live := models.RefreshToken{UserID: owner.ID, TokenHash: hashToken("new"), ExpiresAt: time.Now().Add(time.Hour)}
	if err := e.db.Shared(ctx).Create(&[]models.RefreshToken{expired, live}).Error; err != nil {
		t.Fatal(err)
	}
	n, err := e.auth.SweepExpiredTokens(ctx)
	if err != nil || n != 1 {
		t.Fatalf("sweep = %d, %v", n, err)
	}
}

func TestRefreshGivesUpWhenUserLockIsHeld(t *testing.T) {
	e := newTestEnv(t)
	owner, _ := e.seedClinic(t, "owner@example.com")
	login, err := e.auth.Login(context.Background(), "owner@example.com", "owner-password", "")
	if err != nil {
		t.Fatal(err)
	}

	unlock, err := e.auth.locks.Lock(context.Background(), owner.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = e.auth.Refresh(ctx, login.RefreshToken, "")
	unlock()

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("error = %v, want deadline exceeded", err)
	}
	if ae := apperr.As(err); ae.Kind == apperr.KindInternal || ae.Status() != http.StatusServiceUnavailable {
		t.Fatalf("kind = %v status = %d, want unavailable", ae.Kind, ae.Status())
	}
	if _, err := e.auth.Refresh(context.Background(), login.RefreshToken, ""); err != nil {
		t.Fatalf("token should still rotate after the abandoned wait: %v", err)
	}
}
