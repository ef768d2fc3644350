package services

import (
	"context"
	"sync"
	"testing"

	"clinic-management-server/internal/config"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"
	"clinic-management-server/internal/store"
	"clinic-management-server/internal/store/storetest"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sentMail struct {
	to, subject, body string
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *recordingMailer) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to, subject, body})
	return nil
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:                 "access-secret",
		JWTRefreshSecret:          "refresh-secret",
		IdentityTokenSecret:       "identity-secret",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
		PasswordResetTokenExpiry:  60,
		VerificationTokenExpiry:   24,
		InvitationExpiryDays:      7,
		AppURL:                    "http://app.test",
	}
}

type testEnv struct {
	db       *store.DB
	cfg      *config.Config
	identity *Identity
	mailer   *recordingMailer
	log      *zap.Logger
	auth     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		db:       storetest.New(t),
		cfg:      testConfig(),
		identity: testIdentity(),
		mailer:   &recordingMailer{},
		log:      zap.NewNop(),
	}
	e.auth = NewAuthService(e.db, e.cfg, e.identity, e.mailer, e.log)
	return e
}

// seedClinic registers a clinic and returns its confirmed owner and a context
// acting as that owner.
func (e *testEnv) seedClinic(t *testing.T, ownerEmail string) (*models.User, context.Context) {
	t.Helper()
	owner, err := e.auth.RegisterClinic(context.Background(), RegisterClinicInput{
		ClinicName: "Clinic " + ownerEmail,
		FirstName:  "Olga",
		LastName:   "Owner",
		Email:      ownerEmail,
		Password:   "owner-password",
	})
	if err != nil {
		t.Fatalf("register clinic: %v", err)
	}
	e.confirm(t, owner)
	return owner, as(owner)
}

// seedUser inserts an active, confirmed user directly.
func (e *testEnv) seedUser(t *testing.T, clinicID uuid.UUID, role domain.Role, email string) *models.User {
	t.Helper()
	hash, err := e.identity.HashPassword("password")
	if err != nil {
		t.Fatal(err)
	}
	u := models.User{
		ClinicID:       &clinicID,
		Email:          email,
		PasswordHash:   hash,
		FirstName:      "Test",
		LastName:       string(role),
		Role:           role,
		IsActive:       true,
		EmailConfirmed: true,
	}
	if err := e.db.Shared(context.Background()).Create(&u).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &u
}

func (e *testEnv) confirm(t *testing.T, u *models.User) {
	t.Helper()
	if err := e.db.Shared(context.Background()).Model(u).Update("email_confirmed", true).Error; err != nil {
		t.Fatal(err)
	}
}

func as(u *models.User) context.Context {
	return domain.WithPrincipal(context.Background(), u.Principal())
}

func superAdminCtx() context.Context {
	return domain.WithPrincipal(context.Background(), domain.Principal{UserID: uuid.New(), Role: domain.RoleSuperAdmin})
}
