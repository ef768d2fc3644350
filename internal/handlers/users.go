package handlers

import (
	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/services"
	"clinic-management-server/internal/utils"

	"github.com/gin-gonic/gin"
)

// StaffHandler handles the clinic's user accounts.
type StaffHandler struct {
	staff *services.StaffService
}

func NewStaffHandler(staff *services.StaffService) *StaffHandler {
	return &StaffHandler{staff: staff}
}

// GetStaff lists the clinic's users, optionally filtered by ?role=.
func (h *StaffHandler) GetStaff(c *gin.Context) {
	role := domain.Role(c.Query("role"))
	if role != "" && !role.IsValid() {
		utils.Fail(c, apperr.Validation(apperr.CodeValidation, "unknown role").WithDetail("role", string(role)))
		return
	}
	users, err := h.staff.List(c.Request.Context(), role)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Staff retrieved successfully", users)
}

// GetDoctors lists the clinic's doctors. Available to every staff role for
// booking.
func (h *StaffHandler) GetDoctors(c *gin.Context) {
	users, err := h.staff.List(c.Request.Context(), domain.RoleDoctor)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Doctors retrieved successfully", users)
}

// DeactivateUser disables a staff account.
func (h *StaffHandler) DeactivateUser(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.staff.Deactivate(c.Request.Context(), id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "User deactivated successfully", nil)
}
