package domain

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/mail"
	"strings"
	"time"

	"clinic-management-server/internal/apperr"

	"github.com/google/uuid"
)

// StaffInvitation invites an email address to join a clinic with a staff role.
// Once accepted or canceled it is terminal.
type StaffInvitation struct {
	id             uuid.UUID
	clinicID       uuid.UUID
	email          string
	role           Role
	token          string
	expiresAt      time.Time
	isAccepted     bool
	isCanceled     bool
	acceptedAt     *time.Time
	acceptedUserID *uuid.UUID
	invitedBy      uuid.UUID
	createdAt      time.Time
}

// NewStaffInvitation creates an invitation valid for ttl from now.
func NewStaffInvitation(clinicID uuid.UUID, email string, role Role, invitedBy uuid.UUID, ttl time.Duration, now time.Time) (*StaffInvitation, error) {
	if clinicID == uuid.Nil {
		return nil, errors.New("invitation requires a clinic")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.Validation(apperr.CodeValidation, "invalid email address").WithDetail("email", email)
	}
	if !role.IsStaff() {
		return nil, apperr.Validation(apperr.CodeValidation, "role cannot be granted by invitation").WithDetail("role", string(role))
	}
	if ttl <= 0 {
		return nil, errors.New("invitation lifetime must be positive")
	}
	token, err := newInvitationToken()
	if err != nil {
		return nil, err
	}
	return &StaffInvitation{
		id:        uuid.New(),
		clinicID:  clinicID,
		email:     email,
		role:      role,
		token:     token,
		expiresAt: now.Add(ttl),
		invitedBy: invitedBy,
		createdAt: now,
	}, nil
}

func newInvitationToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// InvitationSnapshot is the persisted form of a StaffInvitation.
type InvitationSnapshot struct {
	ID             uuid.UUID
	ClinicID       uuid.UUID
	Email          string
	Role           Role
	Token          string
	ExpiresAt      time.Time
	IsAccepted     bool
	IsCanceled     bool
	AcceptedAt     *time.Time
	AcceptedUserID *uuid.UUID
	InvitedBy      uuid.UUID
	CreatedAt      time.Time
}

func RebuildStaffInvitation(s InvitationSnapshot) *StaffInvitation {
	return &StaffInvitation{
		id:             s.ID,
		clinicID:       s.ClinicID,
		email:          s.Email,
		role:           s.Role,
		token:          s.Token,
		expiresAt:      s.ExpiresAt,
		isAccepted:     s.IsAccepted,
		isCanceled:     s.IsCanceled,
		acceptedAt:     s.AcceptedAt,
		acceptedUserID: s.AcceptedUserID,
		invitedBy:      s.InvitedBy,
		createdAt:      s.CreatedAt,
	}
}

func (i *StaffInvitation) Snapshot() InvitationSnapshot {
	return InvitationSnapshot{
		ID:             i.id,
		ClinicID:       i.clinicID,
		Email:          i.email,
		Role:           i.role,
		Token:          i.token,
		ExpiresAt:      i.expiresAt,
		IsAccepted:     i.isAccepted,
		IsCanceled:     i.isCanceled,
		AcceptedAt:     i.acceptedAt,
		AcceptedUserID: i.acceptedUserID,
		InvitedBy:      i.invitedBy,
		CreatedAt:      i.createdAt,
	}
}

func (i *StaffInvitation) ID() uuid.UUID       { return i.id }
func (i *StaffInvitation) ClinicID() uuid.UUID { return i.clinicID }
func (i *StaffInvitation) Email() string       { return i.email }
func (i *StaffInvitation) Role() Role          { return i.role }
func (i *StaffInvitation) Token() string       { return i.token }
func (i *StaffInvitation) IsAccepted() bool    { return i.isAccepted }
func (i *StaffInvitation) IsCanceled() bool    { return i.isCanceled }

func (i *StaffInvitation) IsExpired(now time.Time) bool {
	return !now.Before(i.expiresAt)
}

// IsValid reports whether the invitation can still be accepted.
func (i *StaffInvitation) IsValid(now time.Time) bool {
	return !i.isAccepted && !i.isCanceled && !i.IsExpired(now)
}

// State names the invitation's lifecycle state for error messages.
func (i *StaffInvitation) State(now time.Time) string {
	switch {
	case i.isAccepted:
		return "accepted"
	case i.isCanceled:
		return "canceled"
	case i.IsExpired(now):
		return "expired"
	}
	return "pending"
}

// Accept marks the invitation as used by userID.
func (i *StaffInvitation) Accept(userID uuid.UUID, now time.Time) error {
	if !i.IsValid(now) {
		return apperr.InvalidState(apperr.CodeInvitationInvalid, "accept invitation", i.State(now))
	}
	i.isAccepted = true
	i.acceptedAt = &now
	i.acceptedUserID = &userID
	return nil
}

// Cancel withdraws a pending invitation.
func (i *StaffInvitation) Cancel(now time.Time) error {
	if i.isAccepted || i.isCanceled {
		return apperr.InvalidState(apperr.CodeInvitationInvalid, "cancel invitation", i.State(now))
	}
	i.isCanceled = true
	return nil
}
