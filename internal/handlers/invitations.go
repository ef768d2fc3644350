package handlers

import (
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/services"
	"clinic-management-server/internal/utils"

	"github.com/gin-gonic/gin"
)

type InvitationHandler struct {
	invitations *services.InvitationService
}

func NewInvitationHandler(invitations *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

type CreateInvitationRequest struct {
	Email string `json:"email" binding:"required,email"`
	Role  string `json:"role" binding:"required,oneof=doctor receptionist pharmacist"`
}

func (h *InvitationHandler) CreateInvitation(c *gin.Context) {
	var req CreateInvitationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	inv, err := h.invitations.Create(c.Request.Context(), req.Email, domain.Role(req.Role))
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Invitation sent", inv)
}

// GetInvitations lists pending invitations, or all with ?all=true.
func (h *InvitationHandler) GetInvitations(c *gin.Context) {
	list, err := h.invitations.List(c.Request.Context(), c.Query("all") == "true")
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Invitations retrieved successfully", list)
}

func (h *InvitationHandler) CancelInvitation(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.invitations.Cancel(c.Request.Context(), id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Invitation canceled", nil)
}

type AcceptInvitationRequest struct {
	Token       string `json:"token" binding:"required"`
	FirstName   string `json:"firstName" binding:"required,max=100"`
	LastName    string `json:"lastName" binding:"required,max=100"`
	Password    string `json:"password" binding:"required,min=8"`
	PhoneNumber string `json:"phoneNumber" binding:"omitempty,max=50"`
}

// AcceptInvitation is public: the token identifies the clinic.
func (h *InvitationHandler) AcceptInvitation(c *gin.Context) {
	var req AcceptInvitationRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	user, err := h.invitations.Accept(c.Request.Context(), services.AcceptInput{
		Token:       req.Token,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Password:    req.Password,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Invitation accepted, you can now sign in", user.Sanitize())
}
