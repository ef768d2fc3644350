package domain

import (
	"errors"
	"testing"
	"time"

	"clinic-management-server/internal/apperr"

	"github.com/google/uuid"
)

func newTestAppointment(t *testing.T, price string) *Appointment {
	t.Helper()
	a, err := NewAppointment(NewAppointmentParams{
		ClinicID:          uuid.New(),
		BranchID:          uuid.New(),
		PatientID:         uuid.New(),
		DoctorID:          uuid.New(),
		AppointmentTypeID: uuid.New(),
		ScheduledAt:       time.Now().Add(24 * time.Hour),
		DurationMinutes:   30,
		FinalPrice:        MustMoney(price),
	})
	if err != nil {
		t.Fatalf("NewAppointment: %v", err)
	}
	return a
}

func TestAppointmentStartsPending(t *testing.T) {
	a := newTestAppointment(t, "100")
	if a.Status() != AppointmentPending {
		t.Fatalf("status = %s, want pending", a.Status())
	}
	if !a.RemainingAmount().Equal(MustMoney("100")) {
		t.Fatalf("remaining = %s, want 100", a.RemainingAmount())
	}
}

func TestAppointmentCancelIsIdempotent(t *testing.T) {
	a := newTestAppointment(t, "100")
	if err := a.Cancel(); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if err := a.Cancel(); err != nil {
		t.Fatalf("second cancel: %v", err)
	}
	if a.Status() != AppointmentCancelled {
		t.Fatalf("status = %s, want cancelled", a.Status())
	}
}

func TestAppointmentConfirmTwiceFails(t *testing.T) {
	a := newTestAppointment(t, "100")
	if err := a.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	err := a.Confirm()
	if !apperr.HasCode(err, apperr.CodeInvalidAppointmentState) {
		t.Fatalf("second confirm error = %v, want %s", err, apperr.CodeInvalidAppointmentState)
	}
	e := apperr.As(err)
	if e.Details["operation"] != "confirm" || e.Details["currentState"] != string(AppointmentConfirmed) {
		t.Fatalf("details = %v", e.Details)
	}
}

func TestAppointmentTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*Appointment)
		op    func(*Appointment) error
		want  string
	}{
		{"complete pending", func(*Appointment) {}, (*Appointment).Complete, apperr.CodeInvalidAppointmentState},
		{"complete confirmed", func(a *Appointment) { _ = a.Confirm() }, (*Appointment).Complete, ""},
		{"confirm cancelled", func(a *Appointment) { _ = a.Cancel() }, (*Appointment).Confirm, apperr.CodeInvalidAppointmentState},
		{"cancel confirmed", func(a *Appointment) { _ = a.Confirm() }, (*Appointment).Cancel, ""},
		{"cancel completed", func(a *Appointment) { _ = a.Confirm(); _ = a.Complete() }, (*Appointment).Cancel, apperr.CodeAppointmentCompleted},
		{"confirm completed", func(a *Appointment) { _ = a.Confirm(); _ = a.Complete() }, (*Appointment).Confirm, apperr.CodeInvalidAppointmentState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAppointment(t, "50")
			tt.setup(a)
			before := a.Status()
			err := tt.op(a)
			if tt.want == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !apperr.HasCode(err, tt.want) {
				t.Fatalf("error = %v, want %s", err, tt.want)
			}
			if a.Status() != before {
				t.Fatalf("status changed on failure: %s -> %s", before, a.Status())
			}
		})
	}
}

func TestAppointmentPaymentScenario(t *testing.T) {
	a := newTestAppointment(t, "100")

	if err := a.RecordPayment(MustMoney("60")); err != nil {
		t.Fatalf("pay 60: %v", err)
	}
	if !a.RemainingAmount().Equal(MustMoney("40")) || a.IsFullyPaid() {
		t.Fatalf("after 60: remaining = %s, fully paid = %v", a.RemainingAmount(), a.IsFullyPaid())
	}

	if err := a.RecordPayment(MustMoney("40")); err != nil {
		t.Fatalf("pay 40: %v", err)
	}
	if !a.RemainingAmount().IsZero() || !a.IsFullyPaid() {
		t.Fatalf("after 40: remaining = %s, fully paid = %v", a.RemainingAmount(), a.IsFullyPaid())
	}

	err := a.RecordPayment(MustMoney("1"))
	if !errors.Is(err, ErrPaymentExceedsRemaining) {
		t.Fatalf("pay 1: error = %v, want payment exceeds remaining", err)
	}
	if !a.PaidAmount().Equal(MustMoney("100")) {
		t.Fatalf("paid = %s, want 100", a.PaidAmount())
	}
}

func TestAppointmentPaymentRejectsNonPositive(t *testing.T) {
	a := newTestAppointment(t, "100")
	for _, amount := range []string{"0", "-5"} {
		if err := a.RecordPayment(MustMoney(amount)); !errors.Is(err, ErrInvalidPaymentAmount) {
			t.Errorf("pay %s: error = %v", amount, err)
		}
	}
}

func TestAppointmentPaymentBlockedWhenCancelled(t *testing.T) {
	a := newTestAppointment(t, "100")
	_ = a.Cancel()
	if err := a.RecordPayment(MustMoney("10")); !apperr.HasCode(err, apperr.CodeInvalidAppointmentState) {
		t.Fatalf("error = %v", err)
	}
}

func TestAppointmentPaymentAllowedWhenCompleted(t *testing.T) {
	a := newTestAppointment(t, "100")
	_ = a.Confirm()
	_ = a.Complete()
	if err := a.RecordPayment(MustMoney("100")); err != nil {
		t.Fatalf("pay after completion: %v", err)
	}
}

func TestAppointmentApplyDiscount(t *testing.T) {
	a := newTestAppointment(t, "100")

	if err := a.ApplyDiscount(MustMoney("100.01")); !errors.Is(err, ErrInvalidDiscount) {
		t.Fatalf("discount above price: error = %v", err)
	}
	if err := a.ApplyDiscount(MustMoney("30")); err != nil {
		t.Fatalf("discount 30: %v", err)
	}
	if err := a.ApplyDiscount(MustMoney("20")); err != nil {
		t.Fatalf("discount 20: %v", err)
	}
	if !a.DiscountAmount().Equal(MustMoney("20")) {
		t.Fatalf("discount = %s, want 20 (replaced)", a.DiscountAmount())
	}
	if !a.RemainingAmount().Equal(MustMoney("80")) {
		t.Fatalf("remaining = %s, want 80", a.RemainingAmount())
	}

	_ = a.Confirm()
	_ = a.Complete()
	if err := a.ApplyDiscount(MustMoney("5")); !apperr.HasCode(err, apperr.CodeInvalidAppointmentState) {
		t.Fatalf("discount after completion: error = %v", err)
	}
}

func TestAppointmentDiscountLimitsPayment(t *testing.T) {
	a := newTestAppointment(t, "100")
	_ = a.ApplyDiscount(MustMoney("25"))
	if err := a.RecordPayment(MustMoney("75.01")); !errors.Is(err, ErrPaymentExceedsRemaining) {
		t.Fatalf("error = %v", err)
	}
	if err := a.RecordPayment(MustMoney("75")); err != nil {
		t.Fatalf("pay 75: %v", err)
	}
	if !a.IsFullyPaid() {
		t.Fatal("expected fully paid")
	}
}

func TestRebuildAppointmentRoundTrip(t *testing.T) {
	a := newTestAppointment(t, "80")
	_ = a.Confirm()
	_ = a.RecordPayment(MustMoney("30"))

	b := RebuildAppointment(a.Snapshot())
	if b.Status() != AppointmentConfirmed || !b.PaidAmount().Equal(MustMoney("30")) || b.ID() != a.ID() {
		t.Fatalf("rebuilt = %+v", b.Snapshot())
	}
	if err := b.Complete(); err != nil {
		t.Fatalf("complete rebuilt: %v", err)
	}
}
