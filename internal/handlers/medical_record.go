package handlers

import (
	"net/http"
	"strconv"
	"time"

	"clinic-management-server/internal/services"
	"clinic-management-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// VisitHandler handles medical visits and their attachments.
type VisitHandler struct {
	visits *services.VisitService
}

func NewVisitHandler(visits *services.VisitService) *VisitHandler {
	return &VisitHandler{visits: visits}
}

type CreateVisitRequest struct {
	PatientID      uuid.UUID  `json:"patientId" binding:"required"`
	AppointmentID  *uuid.UUID `json:"appointmentId"`
	VisitDate      time.Time  `json:"visitDate"`
	ChiefComplaint string     `json:"chiefComplaint"`
	Diagnosis      string     `json:"diagnosis"`
	Notes          string     `json:"notes"`
}

// CreateVisit records a visit by the calling doctor.
func (h *VisitHandler) CreateVisit(c *gin.Context) {
	var req CreateVisitRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	visit, err := h.visits.Create(c.Request.Context(), services.VisitInput{
		PatientID:      req.PatientID,
		AppointmentID:  req.AppointmentID,
		VisitDate:      req.VisitDate,
		ChiefComplaint: req.ChiefComplaint,
		Diagnosis:      req.Diagnosis,
		Notes:          req.Notes,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Medical visit recorded successfully", visit)
}

func (h *VisitHandler) GetVisitByID(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	visit, err := h.visits.Get(c.Request.Context(), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Medical visit retrieved successfully", visit)
}

func (h *VisitHandler) GetVisitsForPatient(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "patientId")
	if !ok {
		return
	}
	list, err := h.visits.ListForPatient(c.Request.Context(), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Medical visits retrieved successfully", list)
}

// UploadAttachment stores the multipart "file" field on the visit.
func (h *VisitHandler) UploadAttachment(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	upload, closeFn, ok := formUpload(c)
	if !ok {
		return
	}
	defer closeFn()
	att, err := h.visits.AddAttachment(c.Request.Context(), id, upload)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "File uploaded and linked to medical visit successfully", att)
}

// GetAttachment streams the attachment content.
func (h *VisitHandler) GetAttachment(c *gin.Context) {
	visitID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	attID, ok := utils.ParamUUID(c, "attachmentId")
	if !ok {
		return
	}
	att, f, err := h.visits.OpenAttachment(c.Request.Context(), visitID, attID)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Disposition", "inline; filename="+strconv.Quote(att.FileName))
	c.DataFromReader(http.StatusOK, att.SizeBytes, att.FileType, f, nil)
}

func (h *VisitHandler) DeleteAttachment(c *gin.Context) {
	visitID, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	attID, ok := utils.ParamUUID(c, "attachmentId")
	if !ok {
		return
	}
	if err := h.visits.DeleteAttachment(c.Request.Context(), visitID, attID); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Attachment deleted successfully", nil)
}
