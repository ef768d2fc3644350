package models

import (
	"time"

	"clinic-management-server/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a user in the system. Every role except super_admin belongs
// to exactly one clinic.
type User struct {
	BaseModel
	ClinicID       *uuid.UUID     `gorm:"type:char(36);index" json:"clinicId,omitempty"`
	Email          string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash   string         `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	FirstName      string         `gorm:"size:100" json:"firstName"`
	LastName       string         `gorm:"size:100" json:"lastName"`
	Role           domain.Role    `gorm:"size:20;not null" json:"role"`
	PhoneNumber    string         `gorm:"size:50" json:"phoneNumber,omitempty"`
	IsActive       bool           `gorm:"not null" json:"isActive"`
	EmailConfirmed bool           `gorm:"not null" json:"emailConfirmed"`
	LastLoginAt    *time.Time     `json:"lastLoginAt,omitempty"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// UserSanitized represents the user data that is safe to send in API responses.
type UserSanitized struct {
	ID             uuid.UUID   `json:"id"`
	ClinicID       *uuid.UUID  `json:"clinicId,omitempty"`
	Email          string      `json:"email"`
	FirstName      string      `json:"firstName"`
	LastName       string      `json:"lastName"`
	Role           domain.Role `json:"role"`
	PhoneNumber    string      `json:"phoneNumber,omitempty"`
	IsActive       bool        `json:"isActive"`
	EmailConfirmed bool        `json:"emailConfirmed"`
	LastLoginAt    *time.Time  `json:"lastLoginAt,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Sanitize creates a UserSanitized struct from a User model, excluding sensitive data.
func (u *User) Sanitize() UserSanitized {
	return UserSanitized{
		ID:             u.ID,
		ClinicID:       u.ClinicID,
		Email:          u.Email,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		Role:           u.Role,
		PhoneNumber:    u.PhoneNumber,
		IsActive:       u.IsActive,
		EmailConfirmed: u.EmailConfirmed,
		LastLoginAt:    u.LastLoginAt,
		CreatedAt:      u.CreatedAt,
		UpdatedAt:      u.UpdatedAt,
	}
}

// Principal returns the identity carried in tokens and request contexts.
func (u *User) Principal() domain.Principal {
	p := domain.Principal{UserID: u.ID, Role: u.Role}
	if u.ClinicID != nil {
		p.ClinicID = *u.ClinicID
	}
	return p
}
