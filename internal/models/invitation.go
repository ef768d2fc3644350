package models

import (
	"time"

	"clinic-management-server/internal/domain"

	"github.com/google/uuid"
)

// StaffInvitation is the stored form of domain.StaffInvitation.
type StaffInvitation struct {
	TenantModel
	Email          string      `gorm:"size:255;not null;index" json:"email"`
	Role           domain.Role `gorm:"size:20;not null" json:"role"`
	Token          string      `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt      time.Time   `gorm:"not null;index" json:"expiresAt"`
	IsAccepted     bool        `gorm:"not null" json:"isAccepted"`
	IsCanceled     bool        `gorm:"not null" json:"isCanceled"`
	AcceptedAt     *time.Time  `json:"acceptedAt,omitempty"`
	AcceptedUserID *uuid.UUID  `gorm:"type:char(36)" json:"acceptedUserId,omitempty"`
	InvitedBy      uuid.UUID   `gorm:"type:char(36);not null" json:"invitedBy"`
}

func (i *StaffInvitation) ToDomain() *domain.StaffInvitation {
	return domain.RebuildStaffInvitation(domain.InvitationSnapshot{
		ID:             i.ID,
		ClinicID:       i.ClinicID,
		Email:          i.Email,
		Role:           i.Role,
		Token:          i.Token,
		ExpiresAt:      i.ExpiresAt,
		IsAccepted:     i.IsAccepted,
		IsCanceled:     i.IsCanceled,
		AcceptedAt:     i.AcceptedAt,
		AcceptedUserID: i.AcceptedUserID,
		InvitedBy:      i.InvitedBy,
		CreatedAt:      i.CreatedAt,
	})
}

func InvitationFromDomain(d *domain.StaffInvitation) *StaffInvitation {
	s := d.Snapshot()
	return &StaffInvitation{
		TenantModel: TenantModel{
			BaseModel: BaseModel{ID: s.ID, CreatedAt: s.CreatedAt},
			ClinicID:  s.ClinicID,
		},
		Email:          s.Email,
		Role:           s.Role,
		Token:          s.Token,
		ExpiresAt:      s.ExpiresAt,
		IsAccepted:     s.IsAccepted,
		IsCanceled:     s.IsCanceled,
		AcceptedAt:     s.AcceptedAt,
		AcceptedUserID: s.AcceptedUserID,
		InvitedBy:      s.InvitedBy,
	}
}
