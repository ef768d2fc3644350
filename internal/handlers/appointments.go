package handlers

import (
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/models"
	"clinic-management-server/internal/services"
	"clinic-management-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	appointments *services.AppointmentService
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(appointments *services.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appointments: appointments}
}

// AppointmentResponse adds the derived amounts to a stored appointment.
type AppointmentResponse struct {
	*models.Appointment
	RemainingAmount decimal.Decimal `json:"remainingAmount"`
	IsFullyPaid     bool            `json:"isFullyPaid"`
}

func appointmentResponse(a *models.Appointment) AppointmentResponse {
	d := a.ToDomain()
	return AppointmentResponse{Appointment: a, RemainingAmount: d.RemainingAmount(), IsFullyPaid: d.IsFullyPaid()}
}

// CreateAppointmentRequest represents the request body for creating an appointment.
type CreateAppointmentRequest struct {
	BranchID          uuid.UUID `json:"branchId" binding:"required"`
	PatientID         uuid.UUID `json:"patientId" binding:"required"`
	DoctorID          uuid.UUID `json:"doctorId" binding:"required"`
	AppointmentTypeID uuid.UUID `json:"appointmentTypeId" binding:"required"`
	ScheduledAt       time.Time `json:"scheduledAt" binding:"required"`
	Notes             string    `json:"notes"`
}

// CreateAppointment books a pending appointment.
func (h *AppointmentHandler) CreateAppointment(c *gin.Context) {
	var req CreateAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	appt, err := h.appointments.Create(c.Request.Context(), services.AppointmentInput{
		BranchID:          req.BranchID,
		PatientID:         req.PatientID,
		DoctorID:          req.DoctorID,
		AppointmentTypeID: req.AppointmentTypeID,
		ScheduledAt:       req.ScheduledAt,
		Notes:             req.Notes,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Appointment created successfully", appointmentResponse(appt))
}

// GetAppointments lists appointments filtered by status, doctorId, patientId,
// from and to (RFC 3339).
func (h *AppointmentHandler) GetAppointments(c *gin.Context) {
	var f services.AppointmentFilter
	f.Status = domain.AppointmentStatus(c.Query("status"))
	if f.Status != "" && !f.Status.IsValid() {
		utils.Fail(c, apperr.Validation(apperr.CodeValidation, "unknown appointment status"))
		return
	}
	var ok bool
	if f.DoctorID, ok = queryUUID(c, "doctorId"); !ok {
		return
	}
	if f.PatientID, ok = queryUUID(c, "patientId"); !ok {
		return
	}
	if f.From, ok = queryTime(c, "from"); !ok {
		return
	}
	if f.To, ok = queryTime(c, "to"); !ok {
		return
	}

	page, size := utils.Pagination(c)
	list, total, err := h.appointments.List(c.Request.Context(), f, page, size)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	items := make([]AppointmentResponse, len(list))
	for i := range list {
		items[i] = appointmentResponse(&list[i])
	}
	utils.Success(c, "Appointments retrieved successfully", utils.PagedData{
		Items: items,
		Meta:  utils.PageMeta{Page: page, PageSize: size, Total: total},
	})
}

// GetAppointmentByID retrieves a specific appointment by its ID.
func (h *AppointmentHandler) GetAppointmentByID(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	appt, err := h.appointments.Get(c.Request.Context(), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Appointment retrieved successfully", appointmentResponse(appt))
}

func (h *AppointmentHandler) transition(c *gin.Context, message string, fn func(*gin.Context, uuid.UUID) (*models.Appointment, error)) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	appt, err := fn(c, id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, message, appointmentResponse(appt))
}

func (h *AppointmentHandler) ConfirmAppointment(c *gin.Context) {
	h.transition(c, "Appointment confirmed", func(c *gin.Context, id uuid.UUID) (*models.Appointment, error) {
		return h.appointments.Confirm(c.Request.Context(), id)
	})
}

func (h *AppointmentHandler) CompleteAppointment(c *gin.Context) {
	h.transition(c, "Appointment completed", func(c *gin.Context, id uuid.UUID) (*models.Appointment, error) {
		return h.appointments.Complete(c.Request.Context(), id)
	})
}

func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	h.transition(c, "Appointment cancelled", func(c *gin.Context, id uuid.UUID) (*models.Appointment, error) {
		return h.appointments.Cancel(c.Request.Context(), id)
	})
}

// AmountRequest carries a money amount for discounts and payments.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *AppointmentHandler) ApplyDiscount(c *gin.Context) {
	var req AmountRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	h.transition(c, "Discount applied", func(c *gin.Context, id uuid.UUID) (*models.Appointment, error) {
		return h.appointments.ApplyDiscount(c.Request.Context(), id, req.Amount)
	})
}

func (h *AppointmentHandler) RecordPayment(c *gin.Context) {
	var req AmountRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	h.transition(c, "Payment recorded", func(c *gin.Context, id uuid.UUID) (*models.Appointment, error) {
		return h.appointments.RecordPayment(c.Request.Context(), id, req.Amount)
	})
}

func queryUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return uuid.Nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		utils.Fail(c, apperr.Validation(apperr.CodeValidation, "invalid "+name).WithDetail("param", name))
		return uuid.Nil, false
	}
	return id, true
}

func queryTime(c *gin.Context, name string) (time.Time, bool) {
	raw := c.Query(name)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		utils.Fail(c, apperr.Validation(apperr.CodeValidation, "invalid "+name+", expected RFC 3339").WithDetail("param", name))
		return time.Time{}, false
	}
	return t, true
}
