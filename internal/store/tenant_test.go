package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"
	"clinic-management-server/internal/store"
	"clinic-management-server/internal/store/storetest"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type fixture struct {
	db       *store.DB
	clinicA  uuid.UUID
	clinicB  uuid.UUID
	ctxA     context.Context
	ctxB     context.Context
	patientB models.Patient
}

func setup(t *testing.T) fixture {
	t.Helper()
	f := fixture{db: storetest.New(t), clinicA: uuid.New(), clinicB: uuid.New()}
	f.ctxA = domain.WithPrincipal(context.Background(), domain.Principal{UserID: uuid.New(), ClinicID: f.clinicA, Role: domain.RoleReceptionist})
	f.ctxB = domain.WithPrincipal(context.Background(), domain.Principal{UserID: uuid.New(), ClinicID: f.clinicB, Role: domain.RoleClinicOwner})

	for _, ctx := range []context.Context{f.ctxA, f.ctxB} {
		p := models.Patient{PatientCode: "P-000001", FirstName: "Ann", LastName: "Lee"}
		if err := f.db.Tenant(ctx).DB().Create(&p).Error; err != nil {
			t.Fatalf("create patient: %v", err)
		}
		m := models.Medicine{Name: "Amoxicillin", Quantity: 10, ReorderLevel: 2}
		if err := f.db.Tenant(ctx).DB().Create(&m).Error; err != nil {
			t.Fatalf("create medicine: %v", err)
		}
		if ctx == f.ctxB {
			f.patientB = p
		}
	}
	return f
}

func TestCreateStampsClinic(t *testing.T) {
	f := setup(t)
	if f.patientB.ClinicID != f.clinicB {
		t.Fatalf("clinic = %s, want %s", f.patientB.ClinicID, f.clinicB)
	}
}

func TestCreateRejectsForeignClinic(t *testing.T) {
	f := setup(t)
	m := models.Medicine{TenantModel: models.TenantModel{ClinicID: f.clinicB}, Name: "Ibuprofen"}
	err := f.db.Tenant(f.ctxA).DB().Create(&m).Error
	if !apperr.HasCode(err, apperr.CodeInsufficientPermissions) {
		t.Fatalf("error = %v, want forbidden", err)
	}
}

func TestTenantIsolationByID(t *testing.T) {
	f := setup(t)

	var p models.Patient
	err := f.db.Tenant(f.ctxA).DB().First(&p, "id = ?", f.patientB.ID).Error
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("clinic A read clinic B's patient: err = %v, row = %+v", err, p)
	}

	var patients []models.Patient
	if err := f.db.Tenant(f.ctxA).DB().Find(&patients).Error; err != nil {
		t.Fatal(err)
	}
	if len(patients) != 1 || patients[0].ClinicID != f.clinicA {
		t.Fatalf("patients = %+v", patients)
	}

	var medicines []models.Medicine
	if err := f.db.Tenant(f.ctxB).DB().Where("name = ?", "Amoxicillin").Find(&medicines).Error; err != nil {
		t.Fatal(err)
	}
	if len(medicines) != 1 || medicines[0].ClinicID != f.clinicB {
		t.Fatalf("medicines = %+v", medicines)
	}
}

func TestTenantIsolationOnWrite(t *testing.T) {
	f := setup(t)

	res := f.db.Tenant(f.ctxA).DB().Model(&models.Patient{}).Where("id = ?", f.patientB.ID).Update("first_name", "Mallory")
	if res.Error != nil || res.RowsAffected != 0 {
		t.Fatalf("update across clinics: rows = %d, err = %v", res.RowsAffected, res.Error)
	}
	res = f.db.Tenant(f.ctxA).DB().Delete(&models.Patient{}, "id = ?", f.patientB.ID)
	if res.Error != nil || res.RowsAffected != 0 {
		t.Fatalf("delete across clinics: rows = %d, err = %v", res.RowsAffected, res.Error)
	}

	var p models.Patient
	if err := f.db.Tenant(f.ctxB).DB().First(&p, "id = ?", f.patientB.ID).Error; err != nil {
		t.Fatal(err)
	}
	if p.FirstName != "Ann" {
		t.Fatalf("first name = %q", p.FirstName)
	}
}

func TestAppointmentIsolation(t *testing.T) {
	f := setup(t)
	a, err := domain.NewAppointment(domain.NewAppointmentParams{
		ClinicID:          f.clinicB,
		BranchID:          uuid.New(),
		PatientID:         f.patientB.ID,
		DoctorID:          uuid.New(),
		AppointmentTypeID: uuid.New(),
		ScheduledAt:       time.Now().Add(time.Hour),
		FinalPrice:        domain.MustMoney("50"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := f.db.Tenant(f.ctxB).DB().Create(models.AppointmentFromDomain(a)).Error; err != nil {
		t.Fatal(err)
	}

	var count int64
	if err := f.db.Tenant(f.ctxA).DB().Model(&models.Appointment{}).Where("id = ?", a.ID()).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("clinic A sees %d of clinic B's appointments", count)
	}
}

func TestUnscopedQueryFails(t *testing.T) {
	f := setup(t)

	var patients []models.Patient
	err := f.db.Shared(context.Background()).Find(&patients).Error
	if !errors.Is(err, store.ErrUnscopedTenantQuery) {
		t.Fatalf("error = %v, want unscoped tenant query", err)
	}

	superCtx := domain.WithPrincipal(context.Background(), domain.Principal{UserID: uuid.New(), Role: domain.RoleSuperAdmin})
	err = f.db.Tenant(superCtx).DB().Find(&patients).Error
	if !errors.Is(err, store.ErrUnscopedTenantQuery) {
		t.Fatalf("super admin without bypass: error = %v", err)
	}

	var clinics []models.Clinic
	if err := f.db.Shared(context.Background()).Find(&clinics).Error; err != nil {
		t.Fatalf("shared table: %v", err)
	}
}

func TestIncludeAllTenantsRequiresSuperAdmin(t *testing.T) {
	f := setup(t)

	if _, err := f.db.Tenant(f.ctxB).IncludeAllTenants(); !apperr.HasCode(err, apperr.CodeInsufficientPermissions) {
		t.Fatalf("owner: error = %v", err)
	}

	superCtx := domain.WithPrincipal(context.Background(), domain.Principal{UserID: uuid.New(), Role: domain.RoleSuperAdmin})
	q, err := f.db.Tenant(superCtx).IncludeAllTenants()
	if err != nil {
		t.Fatal(err)
	}
	var patients []models.Patient
	if err := q.DB().Find(&patients).Error; err != nil {
		t.Fatal(err)
	}
	if len(patients) != 2 {
		t.Fatalf("patients = %d, want 2", len(patients))
	}
}

func TestIncludeDeleted(t *testing.T) {
	f := setup(t)
	if err := f.db.Tenant(f.ctxB).DB().Delete(&f.patientB).Error; err != nil {
		t.Fatal(err)
	}

	var p models.Patient
	if err := f.db.Tenant(f.ctxB).DB().First(&p, "id = ?", f.patientB.ID).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("deleted patient visible: %v", err)
	}

	if _, err := f.db.Tenant(f.ctxA).IncludeDeleted(); err == nil {
		t.Fatal("receptionist allowed to include deleted")
	}

	q, err := f.db.Tenant(f.ctxB).IncludeDeleted()
	if err != nil {
		t.Fatal(err)
	}
	if err := q.DB().First(&p, "id = ?", f.patientB.ID).Error; err != nil {
		t.Fatalf("include deleted: %v", err)
	}
	if !p.DeletedAt.Valid {
		t.Fatal("expected deleted_at to be set")
	}

	// The tenant filter still applies.
	var others []models.Patient
	if err := q.DB().Find(&others).Error; err != nil {
		t.Fatal(err)
	}
	for _, o := range others {
		if o.ClinicID != f.clinicB {
			t.Fatalf("include deleted leaked clinic %s", o.ClinicID)
		}
	}
}

func TestSystemSeesAllRows(t *testing.T) {
	f := setup(t)
	var count int64
	if err := f.db.System(context.Background()).Model(&models.Medicine{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("count = %d, want 2", count)
	}
}

func TestForClinic(t *testing.T) {
	f := setup(t)
	var medicines []models.Medicine
	if err := f.db.ForClinic(context.Background(), f.clinicA).Find(&medicines).Error; err != nil {
		t.Fatal(err)
	}
	if len(medicines) != 1 || medicines[0].ClinicID != f.clinicA {
		t.Fatalf("medicines = %+v", medicines)
	}
}
