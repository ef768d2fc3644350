package models

import (
	"time"

	"github.com/google/uuid"
)

// RefreshToken represents a JWT refresh token in the database. Only the
// SHA-256 of the token is stored.
type RefreshToken struct {
	BaseModel
	UserID          uuid.UUID  `gorm:"type:char(36);not null;index" json:"userId"`
	TokenHash       string     `gorm:"size:64;not null;uniqueIndex" json:"-"`
	ExpiresAt       time.Time  `gorm:"not null;index" json:"expiresAt"`
	IsRevoked       bool       `gorm:"not null" json:"isRevoked"`
	RevokedAt       *time.Time `json:"revokedAt,omitempty"`
	ReplacedByToken *string    `gorm:"size:64" json:"-"`
	CreatedByIP     string     `gorm:"size:64" json:"-"`
}

// IsActive reports whether the token is neither revoked nor expired.
func (t *RefreshToken) IsActive(now time.Time) bool {
	return !t.IsRevoked && now.Before(t.ExpiresAt)
}
