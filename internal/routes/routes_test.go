package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/config"
	"clinic-management-server/internal/handlers"
	"clinic-management-server/internal/middleware"
	"clinic-management-server/internal/models"
	"clinic-management-server/internal/services"
	"clinic-management-server/internal/store"
	"clinic-management-server/internal/store/storetest"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type nopMailer struct{}

func (nopMailer) SendEmail(context.Context, string, string, string) error { return nil }

type api struct {
	t      *testing.T
	db     *store.DB
	router *gin.Engine
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := storetest.New(t)
	log := zap.NewNop()
	cfg := &config.Config{
		JWTSecret:                 "access",
		JWTRefreshSecret:          "refresh",
		IdentityTokenSecret:       "identity",
		JWTExpirationMinutes:      15,
		JWTRefreshExpirationHours: 24,
		PasswordResetTokenExpiry:  60,
		VerificationTokenExpiry:   24,
		InvitationExpiryDays:      7,
		AppURL:                    "http://app.test",
		RateLimit:                 config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		Storage:                   config.StorageConfig{Root: t.TempDir(), MaxUploadBytes: 1 << 20},
	}
	identity := services.NewIdentity(cfg.IdentityTokenSecret)
	storage := services.NewLocalStorage(cfg.Storage)
	h := Handlers{
		Auth:         handlers.NewAuthHandler(services.NewAuthService(db, cfg, identity, nopMailer{}, log)),
		Staff:        handlers.NewStaffHandler(services.NewStaffService(db, log)),
		Invitations:  handlers.NewInvitationHandler(services.NewInvitationService(db, cfg, identity, nopMailer{}, log)),
		Clinic:       handlers.NewClinicHandler(services.NewClinicService(db, log), services.NewCatalogService(db, log)),
		Patients:     handlers.NewPatientHandler(services.NewPatientService(db, storage, log)),
		Medicines:    handlers.NewMedicineHandler(services.NewMedicineService(db, log)),
		Appointments: handlers.NewAppointmentHandler(services.NewAppointmentService(db, log)),
		Visits:       handlers.NewVisitHandler(services.NewVisitService(db, storage, log)),
		Invoices:     handlers.NewInvoiceHandler(services.NewInvoiceService(db, log)),
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(log, 0), middleware.ErrorHandler(log), middleware.Recovery())
	SetupRoutes(r, h, cfg, middleware.NewIPRateLimiter(cfg.RateLimit))
	return &api{t: t, db: db, router: r}
}

type envelope struct {
	Status  int             `json:"status"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details map[string]any  `json:"details"`
}

func (a *api) do(method, path, token string, body any) (int, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
		}
	}
	return w.Code, env
}

func (a *api) data(env envelope, dest any) {
	a.t.Helper()
	if err := json.Unmarshal(env.Data, dest); err != nil {
		a.t.Fatalf("decode data %s: %v", env.Data, err)
	}
}

type tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// onboard registers a clinic, confirms its owner and logs in.
func (a *api) onboard(email string) tokens {
	a.t.Helper()
	status, env := a.do(http.MethodPost, "/api/v1/auth/register-clinic", "", gin.H{
		"clinicName": "Clinic " + email,
		"firstName":  "Olga",
		"lastName":   "Owner",
		"email":      email,
		"password":   "owner-password",
	})
	if status != http.StatusCreated {
		a.t.Fatalf("register = %d %+v", status, env)
	}
	if status, env := a.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": "owner-password"}); status != http.StatusUnauthorized || env.Code != apperr.CodeEmailNotConfirmed {
		a.t.Fatalf("login before confirmation = %d %s", status, env.Code)
	}
	err := a.db.Shared(context.Background()).Model(&models.User{}).Where("email = ?", email).Update("email_confirmed", true).Error
	if err != nil {
		a.t.Fatal(err)
	}
	status, env = a.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": "owner-password"})
	if status != http.StatusOK {
		a.t.Fatalf("login = %d %+v", status, env)
	}
	var tk tokens
	a.data(env, &tk)
	return tk
}

func TestClinicFlow(t *testing.T) {
	a := newAPI(t)
	owner := a.onboard("owner@example.com")
	other := a.onboard("other@example.com")

	status, env := a.do(http.MethodPost, "/api/v1/patients", owner.AccessToken, gin.H{
		"firstName": "Ana",
		"lastName":  "Lopez",
		"phones":    []gin.H{{"number": "555-0100"}},
	})
	if status != http.StatusCreated {
		t.Fatalf("create patient = %d %+v", status, env)
	}
	var patient struct {
		ID          string `json:"id"`
		PatientCode string `json:"patientCode"`
	}
	a.data(env, &patient)
	if patient.PatientCode != "P-000001" {
		t.Fatalf("patient code = %q", patient.PatientCode)
	}

	status, env = a.do(http.MethodGet, "/api/v1/patients/"+patient.ID, other.AccessToken, nil)
	if status != http.StatusNotFound || env.Code != apperr.CodeNotFound {
		t.Fatalf("cross-clinic read = %d %s", status, env.Code)
	}

	status, env = a.do(http.MethodGet, "/api/v1/patients?search=lopez", owner.AccessToken, nil)
	var page struct {
		Meta struct {
			Total int `json:"total"`
		} `json:"meta"`
	}
	a.data(env, &page)
	if status != http.StatusOK || page.Meta.Total != 1 {
		t.Fatalf("list = %d total %d", status, page.Meta.Total)
	}

	status, env = a.do(http.MethodPost, "/api/v1/patients", owner.AccessToken, gin.H{"firstName": "No last name"})
	if status != http.StatusBadRequest || env.Code != apperr.CodeValidation || env.Details["fields"] == nil {
		t.Fatalf("invalid patient = %d %+v", status, env)
	}

	status, env = a.do(http.MethodGet, "/api/v1/admin/invoices", owner.AccessToken, nil)
	if status != http.StatusForbidden || env.Code != apperr.CodeInsufficientPermissions {
		t.Fatalf("admin route as owner = %d %s", status, env.Code)
	}
	if status, _ := a.do(http.MethodGet, "/api/v1/patients", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("anonymous list = %d", status)
	}
}

func TestRefreshRotationOverHTTP(t *testing.T) {
	a := newAPI(t)
	first := a.onboard("owner@example.com")

	status, env := a.do(http.MethodPost, "/api/v1/auth/refresh-token", "", gin.H{"refreshToken": first.RefreshToken})
	if status != http.StatusOK {
		t.Fatalf("refresh = %d %+v", status, env)
	}
	var second tokens
	a.data(env, &second)
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token not rotated")
	}

	status, env = a.do(http.MethodPost, "/api/v1/auth/refresh-token", "", gin.H{"refreshToken": first.RefreshToken})
	if status != http.StatusUnauthorized || env.Code != apperr.CodeTokenInvalid {
		t.Fatalf("reuse of rotated token = %d %s", status, env.Code)
	}

	if status, _ := a.do(http.MethodPost, "/api/v1/auth/logout", second.AccessToken, gin.H{"refreshToken": second.RefreshToken}); status != http.StatusOK {
		t.Fatalf("logout = %d", status)
	}
	if status, _ := a.do(http.MethodPost, "/api/v1/auth/refresh-token", "", gin.H{"refreshToken": second.RefreshToken}); status != http.StatusUnauthorized {
		t.Fatalf("refresh after logout = %d", status)
	}

	status, env = a.do(http.MethodPost, "/api/v1/auth/forgot-password", "", gin.H{"email": "nobody@example.com"})
	if status != http.StatusOK {
		t.Fatalf("forgot password for unknown email = %d %+v", status, env)
	}
}
