package handlers

import (
	"clinic-management-server/internal/middleware"
	"clinic-management-server/internal/services"
	"clinic-management-server/internal/utils"

	"github.com/gin-gonic/gin"
)

// AuthHandler handles authentication-related requests.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterClinicRequest represents the request body for clinic onboarding.
type RegisterClinicRequest struct {
	ClinicName    string `json:"clinicName" binding:"required,max=200"`
	ClinicEmail   string `json:"clinicEmail" binding:"omitempty,email"`
	ClinicPhone   string `json:"clinicPhone" binding:"max=50"`
	ClinicAddress string `json:"clinicAddress"`
	FirstName     string `json:"firstName" binding:"required,max=100"`
	LastName      string `json:"lastName" binding:"required,max=100"`
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=8"`
}

// RegisterClinic creates a clinic with its main branch and owner.
func (h *AuthHandler) RegisterClinic(c *gin.Context) {
	var req RegisterClinicRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	owner, err := h.auth.RegisterClinic(c.Request.Context(), services.RegisterClinicInput{
		ClinicName:    req.ClinicName,
		ClinicEmail:   req.ClinicEmail,
		ClinicPhone:   req.ClinicPhone,
		ClinicAddress: req.ClinicAddress,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Email:         req.Email,
		Password:      req.Password,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Clinic registered, check your email to confirm the account", owner.Sanitize())
}

// LoginRequest represents the request body for user login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles user login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Login successful", res)
}

// RefreshTokenRequest carries a refresh token for rotation or logout.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// RefreshToken rotates a refresh token into a new token pair.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	res, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, c.ClientIP())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Token refreshed successfully", res)
}

// Logout revokes the given refresh token.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if err := h.auth.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Logout successful", nil)
}

// EmailTokenRequest carries an emailed identity token.
type EmailTokenRequest struct {
	Email string `json:"email" binding:"required,email"`
	Token string `json:"token" binding:"required"`
}

func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	var req EmailTokenRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if err := h.auth.ConfirmEmail(c.Request.Context(), req.Email, req.Token); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Email confirmed", nil)
}

// EmailRequest carries only an email address.
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// ResendVerification always reports success.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req EmailRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	h.auth.ResendVerification(c.Request.Context(), req.Email)
	utils.Success(c, "If the account exists and is unconfirmed, a verification email has been sent", nil)
}

// ForgotPassword always reports success.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req EmailRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	h.auth.ForgotPassword(c.Request.Context(), req.Email)
	utils.Success(c, "If the account exists, a password reset email has been sent", nil)
}

type ResetPasswordRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"newPassword" binding:"required,min=8"`
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	if err := h.auth.ResetPassword(c.Request.Context(), req.Email, req.Token, req.NewPassword); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Password has been reset", nil)
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=8"`
}

// ChangePassword changes the caller's password and signs out all sessions.
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	p, _ := middleware.Principal(c)
	if err := h.auth.ChangePassword(c.Request.Context(), p, req.CurrentPassword, req.NewPassword); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Password changed, please sign in again", nil)
}

// GetProfile retrieves the profile of the currently authenticated user.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	p, _ := middleware.Principal(c)
	user, err := h.auth.Profile(c.Request.Context(), p)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Profile retrieved successfully", user.Sanitize())
}

// UpdateProfileRequest represents the request body for updating user profile.
type UpdateProfileRequest struct {
	FirstName   string `json:"firstName" binding:"omitempty,max=100"`
	LastName    string `json:"lastName" binding:"omitempty,max=100"`
	PhoneNumber string `json:"phoneNumber" binding:"omitempty,max=50"`
}

// UpdateProfile updates the profile of the currently authenticated user.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	p, _ := middleware.Principal(c)
	user, err := h.auth.UpdateProfile(c.Request.Context(), p, services.ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Profile updated successfully", user.Sanitize())
}
