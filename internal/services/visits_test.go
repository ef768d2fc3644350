package services

import (
	"bytes"
	"io"
	"testing"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
)

func TestVisitAttachments(t *testing.T) {
	f := newBookingFixture(t)
	storage := newTestStorage(t, 4096)
	svc := NewVisitService(f.env.db, storage, f.env.log)
	doctorCtx := as(f.doctor)

	appt, err := f.svc.Create(f.ctx, f.input())
	if err != nil {
		t.Fatal(err)
	}
	visit, err := svc.Create(doctorCtx, VisitInput{PatientID: f.patient.ID, AppointmentID: &appt.ID, ChiefComplaint: "cough", Diagnosis: "bronchitis"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if visit.DoctorID != f.doctor.ID || visit.VisitDate.IsZero() {
		t.Fatalf("visit = %+v", visit)
	}

	content := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{1}, 64)...)
	att, err := svc.AddAttachment(doctorCtx, visit.ID, Upload{Name: "xray.png", Size: int64(len(content)), Content: bytes.NewReader(content)})
	if err != nil {
		t.Fatalf("AddAttachment: %v", err)
	}
	if att.FileType != "image/png" {
		t.Fatalf("attachment = %+v", att)
	}
	if _, err := svc.AddAttachment(doctorCtx, visit.ID, Upload{Name: "notes.txt", Size: 5, Content: bytes.NewReader([]byte("hello"))}); !apperr.HasCode(err, apperr.CodeFileRejected) {
		t.Fatalf("text upload: %v", err)
	}

	got, err := svc.Get(f.ctx, visit.ID)
	if err != nil || len(got.Attachments) != 1 {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	_, file, err := svc.OpenAttachment(f.ctx, visit.ID, att.ID)
	if err != nil {
		t.Fatal(err)
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil || !bytes.Equal(data, content) {
		t.Fatalf("attachment content differs: %v", err)
	}

	_, otherCtx := f.env.seedClinic(t, "other@example.com")
	if _, _, err := svc.OpenAttachment(otherCtx, visit.ID, att.ID); !apperr.HasCode(err, apperr.CodeNotFound) {
		t.Fatalf("cross-clinic open: %v", err)
	}

	if err := svc.DeleteAttachment(doctorCtx, visit.ID, att.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Attachment(f.ctx, visit.ID, att.ID); !apperr.HasCode(err, apperr.CodeNotFound) {
		t.Fatalf("deleted attachment: %v", err)
	}
	if ok, _ := storage.Delete(att.FilePath); ok {
		t.Fatal("attachment file still on disk")
	}
}

func TestVisitRejectsForeignAppointment(t *testing.T) {
	f := newBookingFixture(t)
	svc := NewVisitService(f.env.db, newTestStorage(t, 1024), f.env.log)
	other, err := NewPatientService(f.env.db, newTestStorage(t, 1024), f.env.log).Create(f.ctx, PatientInput{FirstName: "Second", LastName: "Patient"})
	if err != nil {
		t.Fatal(err)
	}
	appt, err := f.svc.Create(f.ctx, f.input())
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.Create(as(f.doctor), VisitInput{PatientID: other.ID, AppointmentID: &appt.ID})
	if !apperr.HasCode(err, apperr.CodeValidation) {
		t.Fatalf("error = %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := svc.Create(as(f.doctor), VisitInput{PatientID: other.ID, Diagnosis: "check-up"}); err != nil {
			t.Fatal(err)
		}
	}
	list, err := svc.ListForPatient(f.ctx, other.ID)
	if err != nil || len(list) != 2 {
		t.Fatalf("visits = %d, %v", len(list), err)
	}
	if list, _ := svc.ListForPatient(f.ctx, f.patient.ID); len(list) != 0 {
		t.Fatalf("first patient has %d visits", len(list))
	}
}

func TestClinicSettingsAndBranches(t *testing.T) {
	e := newTestEnv(t)
	_, ctx := e.seedClinic(t, "owner@example.com")
	_, otherCtx := e.seedClinic(t, "other@example.com")
	svc := NewClinicService(e.db, e.log)

	name := "Renamed Clinic"
	if _, err := svc.Update(ctx, ClinicUpdate{Name: name, Settings: map[string]interface{}{"currency": "EUR"}}); err != nil {
		t.Fatal(err)
	}
	got, err := svc.Update(ctx, ClinicUpdate{Settings: map[string]interface{}{"timezone": "Europe/Berlin"}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != name || got.Settings["currency"] != "EUR" || got.Settings["timezone"] != "Europe/Berlin" {
		t.Fatalf("clinic = %+v", got)
	}

	if _, err := svc.CreateBranch(ctx, BranchInput{Name: "North"}); err != nil {
		t.Fatal(err)
	}
	if list, _ := svc.ListBranches(ctx); len(list) != 2 {
		t.Fatalf("branches = %d, want 2", len(list))
	}
	if list, _ := svc.ListBranches(otherCtx); len(list) != 1 {
		t.Fatalf("other clinic branches = %d, want 1", len(list))
	}

	catalog := NewCatalogService(e.db, e.log)
	if _, err := catalog.CreateAppointmentType(ctx, AppointmentTypeInput{Name: "Bad", DurationMinutes: 15, Price: domain.MustMoney("-1")}); !apperr.HasCode(err, apperr.CodeValidation) {
		t.Fatalf("negative price: %v", err)
	}
	if _, err := catalog.CreateChronicDisease(ctx, "Asthma", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := catalog.CreateChronicDisease(otherCtx, "Asthma", ""); err == nil || apperr.As(err).Kind != apperr.KindConflict {
		t.Fatalf("duplicate disease: %v", err)
	}
}
