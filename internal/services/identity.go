package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"clinic-management-server/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenPurpose separates email-confirmation tokens from password-reset tokens.
type TokenPurpose string

const (
	PurposeEmailConfirmation TokenPurpose = "email_confirmation"
	PurposePasswordReset     TokenPurpose = "password_reset"
)

var ErrInvalidUserToken = errors.New("invalid or expired token")

type userTokenClaims struct {
	Email   string       `json:"email"`
	Purpose TokenPurpose `json:"purpose"`
	jwt.RegisteredClaims
}

// Identity hashes passwords and issues single-purpose tokens bound to a user.
type Identity struct {
	secret []byte
	cost   int
}

func NewIdentity(secret string) *Identity {
	return &Identity{secret: []byte(secret), cost: bcrypt.DefaultCost}
}

func (i *Identity) HashPassword(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), i.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (i *Identity) VerifyPassword(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// signingKey mixes the user's password hash into the key, so a password
// change invalidates every outstanding token.
func (i *Identity) signingKey(u *models.User) []byte {
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(u.ID.String()))
	mac.Write([]byte{0})
	mac.Write([]byte(u.PasswordHash))
	return mac.Sum(nil)
}

// GenerateUserToken issues a token for purpose that expires after ttl.
func (i *Identity) GenerateUserToken(u *models.User, purpose TokenPurpose, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := userTokenClaims{
		Email:   u.Email,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey(u))
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", purpose, err)
	}
	return token, nil
}

// ValidateUserToken checks that token was issued to u for purpose, that u's
// email and password have not changed since, and that it has not expired.
func (i *Identity) ValidateUserToken(u *models.User, purpose TokenPurpose, token string) error {
	claims := &userTokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.signingKey(u), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return ErrInvalidUserToken
	}
	if claims.Subject != u.ID.String() || claims.Email != u.Email || claims.Purpose != purpose {
		return ErrInvalidUserToken
	}
	return nil
}
