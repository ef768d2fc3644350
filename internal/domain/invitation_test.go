package domain

import (
	"testing"
	"time"

	"clinic-management-server/internal/apperr"

	"github.com/google/uuid"
)

func TestInvitationLifecycle(t *testing.T) {
	now := time.Now().UTC()
	inv, err := NewStaffInvitation(uuid.New(), "Doc@Example.com", RoleDoctor, uuid.New(), 7*24*time.Hour, now)
	if err != nil {
		t.Fatalf("NewStaffInvitation: %v", err)
	}
	if inv.Email() != "doc@example.com" {
		t.Errorf("email = %q, want lower-cased", inv.Email())
	}
	if len(inv.Token()) < 40 {
		t.Errorf("token too short: %q", inv.Token())
	}
	if !inv.IsValid(now) {
		t.Fatal("fresh invitation should be valid")
	}

	if err := inv.Cancel(now); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !inv.IsCanceled() {
		t.Fatal("IsCanceled = false")
	}
	if err := inv.Accept(uuid.New(), now); !apperr.HasCode(err, apperr.CodeInvitationInvalid) {
		t.Fatalf("Accept after cancel: error = %v", err)
	}
	if inv.IsAccepted() {
		t.Fatal("canceled invitation was accepted")
	}
}

func TestInvitationAcceptIsTerminal(t *testing.T) {
	now := time.Now().UTC()
	inv, err := NewStaffInvitation(uuid.New(), "nurse@example.com", RoleReceptionist, uuid.New(), time.Hour, now)
	if err != nil {
		t.Fatal(err)
	}
	userID := uuid.New()
	if err := inv.Accept(userID, now); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	snap := inv.Snapshot()
	if snap.AcceptedUserID == nil || *snap.AcceptedUserID != userID || snap.AcceptedAt == nil {
		t.Fatalf("snapshot = %+v", snap)
	}
	if err := inv.Accept(uuid.New(), now); err == nil {
		t.Fatal("second accept succeeded")
	}
	if err := inv.Cancel(now); err == nil {
		t.Fatal("cancel after accept succeeded")
	}
}

func TestInvitationExpiry(t *testing.T) {
	now := time.Now().UTC()
	inv, err := NewStaffInvitation(uuid.New(), "p@example.com", RolePharmacist, uuid.New(), time.Hour, now)
	if err != nil {
		t.Fatal(err)
	}
	later := now.Add(time.Hour)
	if inv.IsValid(later) || !inv.IsExpired(later) {
		t.Fatal("invitation should be expired at ExpiresAt")
	}
	err = inv.Accept(uuid.New(), later)
	if e := apperr.As(err); e.Code != apperr.CodeInvitationInvalid || e.Details["currentState"] != "expired" {
		t.Fatalf("error = %v", err)
	}
}

func TestInvitationRejectsNonStaffRole(t *testing.T) {
	for _, role := range []Role{RoleClinicOwner, RoleSuperAdmin, Role("janitor")} {
		if _, err := NewStaffInvitation(uuid.New(), "x@example.com", role, uuid.New(), time.Hour, time.Now()); err == nil {
			t.Errorf("role %s accepted", role)
		}
	}
}

func TestInvitationTokensAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		inv, err := NewStaffInvitation(uuid.New(), "x@example.com", RoleDoctor, uuid.New(), time.Hour, time.Now())
		if err != nil {
			t.Fatal(err)
		}
		if seen[inv.Token()] {
			t.Fatalf("duplicate token %q", inv.Token())
		}
		seen[inv.Token()] = true
	}
}
