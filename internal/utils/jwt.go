package utils

import (
	"fmt"
	"time"

	"clinic-management-server/internal/config"
	"clinic-management-server/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the JWT claims.
type Claims struct {
	UserID   string      `json:"user_id"`
	ClinicID string      `json:"clinic_id,omitempty"`
	Role     domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// Principal converts the claims into the request principal.
func (c *Claims) Principal() (domain.Principal, error) {
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("invalid user id claim: %w", err)
	}
	p := domain.Principal{UserID: userID, Role: c.Role}
	if c.ClinicID != "" {
		if p.ClinicID, err = uuid.Parse(c.ClinicID); err != nil {
			return domain.Principal{}, fmt.Errorf("invalid clinic id claim: %w", err)
		}
	}
	return p, nil
}

// TokenPair is an access token and a refresh token issued together.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// GenerateTokens generates both access and refresh tokens for a principal.
// Every token carries a fresh jti, so two pairs issued in the same second
// differ.
func GenerateTokens(p domain.Principal, cfg *config.Config, now time.Time) (TokenPair, error) {
	var pair TokenPair
	var err error

	pair.AccessExpiresAt = now.Add(time.Duration(cfg.JWTExpirationMinutes) * time.Minute)
	pair.AccessToken, err = signToken(p, pair.AccessExpiresAt, now, cfg.JWTSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to sign access token: %w", err)
	}

	pair.RefreshExpiresAt = now.Add(time.Duration(cfg.JWTRefreshExpirationHours) * time.Hour)
	pair.RefreshToken, err = signToken(p, pair.RefreshExpiresAt, now, cfg.JWTRefreshSecret)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to sign refresh token: %w", err)
	}
	return pair, nil
}

func signToken(p domain.Principal, expires, now time.Time, secret string) (string, error) {
	claims := &Claims{
		UserID: p.UserID.String(),
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Subject:   p.UserID.String(),
		},
	}
	if p.HasClinic() {
		claims.ClinicID = p.ClinicID.String()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateToken validates a JWT token.
func ValidateToken(tokenString string, secretKey string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	return claims, nil
}
