package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"

	"github.com/shopspring/decimal"
)

type bookingFixture struct {
	env     *testEnv
	ctx     context.Context
	branch  *models.ClinicBranch
	patient *models.Patient
	doctor  *models.User
	apptTyp *models.AppointmentType
	svc     *AppointmentService
}

func newBookingFixture(t *testing.T) *bookingFixture {
	t.Helper()
	e := newTestEnv(t)
	owner, ctx := e.seedClinic(t, "owner@example.com")
	branches, err := NewClinicService(e.db, e.log).ListBranches(ctx)
	if err != nil || len(branches) != 1 {
		t.Fatalf("branches = %+v, %v", branches, err)
	}
	patient, err := NewPatientService(e.db, newTestStorage(t, 1024), e.log).Create(ctx, PatientInput{FirstName: "Pat", LastName: "Doe"})
	if err != nil {
		t.Fatal(err)
	}
	typ, err := NewCatalogService(e.db, e.log).CreateAppointmentType(ctx, AppointmentTypeInput{
		Name: "Consultation", DurationMinutes: 30, Price: domain.MustMoney("100"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return &bookingFixture{
		env:     e,
		ctx:     ctx,
		branch:  &branches[0],
		patient: patient,
		doctor:  e.seedUser(t, *owner.ClinicID, domain.RoleDoctor, "doc@example.com"),
		apptTyp: typ,
		svc:     NewAppointmentService(e.db, e.log),
	}
}

func (f *bookingFixture) input() AppointmentInput {
	return AppointmentInput{
		BranchID:          f.branch.ID,
		PatientID:         f.patient.ID,
		DoctorID:          f.doctor.ID,
		AppointmentTypeID: f.apptTyp.ID,
		ScheduledAt:       time.Now().Add(48 * time.Hour),
	}
}

func TestAppointmentCreatePricedFromType(t *testing.T) {
	f := newBookingFixture(t)
	appt, err := f.svc.Create(f.ctx, f.input())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if appt.Status != domain.AppointmentPending || !appt.FinalPrice.Equal(domain.MustMoney("100")) || appt.DurationMinutes != 30 {
		t.Fatalf("appointment = %+v", appt)
	}
}

func TestAppointmentCreateValidatesReferences(t *testing.T) {
	f := newBookingFixture(t)
	owner := f.doctor.ClinicID
	reception := f.env.seedUser(t, *owner, domain.RoleReceptionist, "r@example.com")
	other, _ := f.env.seedClinic(t, "other@example.com")
	foreignDoctor := f.env.seedUser(t, *other.ClinicID, domain.RoleDoctor, "doc2@example.com")

	tests := []struct {
		name   string
		mutate func(*AppointmentInput)
	}{
		{"receptionist as doctor", func(in *AppointmentInput) { in.DoctorID = reception.ID }},
		{"doctor of another clinic", func(in *AppointmentInput) { in.DoctorID = foreignDoctor.ID }},
		{"unknown patient", func(in *AppointmentInput) { in.PatientID = foreignDoctor.ID }},
		{"unknown branch", func(in *AppointmentInput) { in.BranchID = f.patient.ID }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := f.input()
			tt.mutate(&in)
			if _, err := f.svc.Create(f.ctx, in); !apperr.HasCode(err, apperr.CodeNotFound) {
				t.Fatalf("error = %v", err)
			}
		})
	}
}

func TestAppointmentLifecyclePersists(t *testing.T) {
	f := newBookingFixture(t)
	appt, err := f.svc.Create(f.ctx, f.input())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Complete(f.ctx, appt.ID); !apperr.HasCode(err, apperr.CodeInvalidAppointmentState) {
		t.Fatalf("complete pending: %v", err)
	}
	if _, err := f.svc.ApplyDiscount(f.ctx, appt.ID, domain.MustMoney("20")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.RecordPayment(f.ctx, appt.ID, domain.MustMoney("50")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Confirm(f.ctx, appt.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Confirm(f.ctx, appt.ID); !apperr.HasCode(err, apperr.CodeInvalidAppointmentState) {
		t.Fatalf("confirm twice: %v", err)
	}
	if _, err := f.svc.RecordPayment(f.ctx, appt.ID, domain.MustMoney("30.01")); !apperr.HasCode(err, apperr.CodePaymentExceeds) {
		t.Fatalf("overpay: %v", err)
	}
	done, err := f.svc.Complete(f.ctx, appt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if done.Status != domain.AppointmentCompleted {
		t.Fatalf("status = %s", done.Status)
	}
	if _, err := f.svc.Cancel(f.ctx, appt.ID); !apperr.HasCode(err, apperr.CodeAppointmentCompleted) {
		t.Fatalf("cancel completed: %v", err)
	}
	if _, err := f.svc.RecordPayment(f.ctx, appt.ID, domain.MustMoney("30")); err != nil {
		t.Fatalf("pay after completion: %v", err)
	}

	got, err := f.svc.Get(f.ctx, appt.ID)
	if err != nil {
		t.Fatal(err)
	}
	d := got.ToDomain()
	if got.Status != domain.AppointmentCompleted || !got.DiscountAmount.Equal(domain.MustMoney("20")) ||
		!got.PaidAmount.Equal(domain.MustMoney("80")) || !d.IsFullyPaid() {
		t.Fatalf("stored = %+v", got)
	}
}

func TestAppointmentCancelAndIsolation(t *testing.T) {
	f := newBookingFixture(t)
	_, otherCtx := f.env.seedClinic(t, "other@example.com")
	appt, err := f.svc.Create(f.ctx, f.input())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.Cancel(otherCtx, appt.ID); !apperr.HasCode(err, apperr.CodeNotFound) {
		t.Fatalf("cancel from other clinic: %v", err)
	}
	for i := 0; i < 2; i++ {
		got, err := f.svc.Cancel(f.ctx, appt.ID)
		if err != nil || got.Status != domain.AppointmentCancelled {
			t.Fatalf("cancel #%d = %+v, %v", i+1, got, err)
		}
	}
	if _, err := f.svc.RecordPayment(f.ctx, appt.ID, domain.MustMoney("1")); !apperr.HasCode(err, apperr.CodeInvalidAppointmentState) {
		t.Fatalf("pay cancelled: %v", err)
	}

	list, total, err := f.svc.List(f.ctx, AppointmentFilter{Status: domain.AppointmentCancelled, DoctorID: f.doctor.ID}, 1, 20)
	if err != nil || total != 1 || len(list) != 1 {
		t.Fatalf("list = %d, %v", total, err)
	}
	if _, total, _ := f.svc.List(otherCtx, AppointmentFilter{}, 1, 20); total != 0 {
		t.Fatalf("other clinic sees %d appointments", total)
	}
}

func TestAppointmentConcurrentPaymentsAllLand(t *testing.T) {
	f := newBookingFixture(t)
	appt, err := f.svc.Create(f.ctx, f.input())
	if err != nil {
		t.Fatal(err)
	}

	const payers = 8
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, payers)
	for i := 0; i < payers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.RecordPayment(f.ctx, appt.ID, domain.MustMoney("10"))
		}(i)
	}
	close(start)
	wg.Wait()

	landed := 0
	for _, err := range errs {
		switch {
		case err == nil:
			landed++
		case !apperr.HasCode(err, apperr.CodeConcurrentUpdate):
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if landed != payers {
		t.Fatalf("%d of %d payments landed", landed, payers)
	}
	got, err := f.svc.Get(f.ctx, appt.ID)
	if err != nil {
		t.Fatal(err)
	}
	want := domain.MustMoney("10").Mul(decimal.NewFromInt(int64(landed)))
	if !got.PaidAmount.Equal(want) {
		t.Fatalf("paid = %s after %d accepted payments, want %s", got.PaidAmount, landed, want)
	}
}
