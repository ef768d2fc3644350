package handlers

import (
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/services"
	"clinic-management-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PatientHandler struct {
	patients *services.PatientService
}

func NewPatientHandler(patients *services.PatientService) *PatientHandler {
	return &PatientHandler{patients: patients}
}

type PhoneRequest struct {
	Number    string `json:"number" binding:"required,max=50"`
	Label     string `json:"label" binding:"max=30"`
	IsPrimary bool   `json:"isPrimary"`
}

// PatientRequest is used for create and full update.
type PatientRequest struct {
	FirstName         string         `json:"firstName" binding:"required,max=100"`
	LastName          string         `json:"lastName" binding:"required,max=100"`
	DateOfBirth       *time.Time     `json:"dateOfBirth"`
	Gender            string         `json:"gender" binding:"omitempty,oneof=male female other"`
	Email             string         `json:"email" binding:"omitempty,email"`
	Address           string         `json:"address"`
	Notes             string         `json:"notes"`
	Phones            []PhoneRequest `json:"phones" binding:"dive"`
	ChronicDiseaseIDs []uuid.UUID    `json:"chronicDiseaseIds"`
}

func (r PatientRequest) input() services.PatientInput {
	in := services.PatientInput{
		FirstName:         r.FirstName,
		LastName:          r.LastName,
		DateOfBirth:       r.DateOfBirth,
		Gender:            r.Gender,
		Email:             r.Email,
		Address:           r.Address,
		Notes:             r.Notes,
		ChronicDiseaseIDs: r.ChronicDiseaseIDs,
	}
	for _, p := range r.Phones {
		in.Phones = append(in.Phones, services.PhoneInput{Number: p.Number, Label: p.Label, IsPrimary: p.IsPrimary})
	}
	return in
}

func (h *PatientHandler) CreatePatient(c *gin.Context) {
	var req PatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	patient, err := h.patients.Create(c.Request.Context(), req.input())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Patient created successfully", patient)
}

// GetPatients lists patients, searching name, code and email with ?search=.
func (h *PatientHandler) GetPatients(c *gin.Context) {
	page, size := utils.Pagination(c)
	list, total, err := h.patients.List(c.Request.Context(), c.Query("search"), page, size)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Patients retrieved successfully", utils.PagedData{
		Items: list,
		Meta:  utils.PageMeta{Page: page, PageSize: size, Total: total},
	})
}

func (h *PatientHandler) GetPatientByID(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	patient, err := h.patients.Get(c.Request.Context(), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Patient retrieved successfully", patient)
}

func (h *PatientHandler) UpdatePatient(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req PatientRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	patient, err := h.patients.Update(c.Request.Context(), id, req.input())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Patient updated successfully", patient)
}

func (h *PatientHandler) DeletePatient(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.patients.Delete(c.Request.Context(), id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Patient deleted successfully", nil)
}

func (h *PatientHandler) RestorePatient(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	patient, err := h.patients.Restore(c.Request.Context(), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Patient restored successfully", patient)
}

// GetDeletedPatients lists soft-deleted patients.
func (h *PatientHandler) GetDeletedPatients(c *gin.Context) {
	list, err := h.patients.Trash(c.Request.Context())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Deleted patients retrieved successfully", list)
}

// UploadPhoto replaces the patient's photo with the multipart "file" field.
func (h *PatientHandler) UploadPhoto(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	upload, closeFn, ok := formUpload(c)
	if !ok {
		return
	}
	defer closeFn()
	patient, err := h.patients.UploadPhoto(c.Request.Context(), id, upload)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Photo uploaded successfully", patient)
}

// formUpload opens the multipart "file" field.
func formUpload(c *gin.Context) (services.Upload, func(), bool) {
	header, err := c.FormFile("file")
	if err != nil {
		utils.Fail(c, apperr.Validation(apperr.CodeValidation, "multipart field \"file\" is required"))
		return services.Upload{}, nil, false
	}
	f, err := header.Open()
	if err != nil {
		utils.Fail(c, apperr.Internal(err, "open uploaded file"))
		return services.Upload{}, nil, false
	}
	return services.Upload{Name: header.Filename, Size: header.Size, Content: f}, func() { f.Close() }, true
}
