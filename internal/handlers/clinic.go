package handlers

import (
	"clinic-management-server/internal/services"
	"clinic-management-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ClinicHandler serves the caller's clinic, its branches and its catalogue.
type ClinicHandler struct {
	clinics *services.ClinicService
	catalog *services.CatalogService
}

func NewClinicHandler(clinics *services.ClinicService, catalog *services.CatalogService) *ClinicHandler {
	return &ClinicHandler{clinics: clinics, catalog: catalog}
}

func (h *ClinicHandler) GetClinic(c *gin.Context) {
	clinic, err := h.clinics.Get(c.Request.Context())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Clinic retrieved successfully", clinic)
}

// UpdateClinicRequest leaves empty fields unchanged. Settings keys are merged.
type UpdateClinicRequest struct {
	Name     string                 `json:"name" binding:"max=200"`
	Email    string                 `json:"email" binding:"omitempty,email"`
	Phone    string                 `json:"phone" binding:"max=50"`
	Address  string                 `json:"address"`
	Settings map[string]interface{} `json:"settings"`
}

func (h *ClinicHandler) UpdateClinic(c *gin.Context) {
	var req UpdateClinicRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	clinic, err := h.clinics.Update(c.Request.Context(), services.ClinicUpdate{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Address:  req.Address,
		Settings: req.Settings,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Clinic updated successfully", clinic)
}

type CreateBranchRequest struct {
	Name    string `json:"name" binding:"required,max=200"`
	Address string `json:"address"`
	Phone   string `json:"phone" binding:"max=50"`
}

func (h *ClinicHandler) CreateBranch(c *gin.Context) {
	var req CreateBranchRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	branch, err := h.clinics.CreateBranch(c.Request.Context(), services.BranchInput{Name: req.Name, Address: req.Address, Phone: req.Phone})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Branch created successfully", branch)
}

func (h *ClinicHandler) GetBranches(c *gin.Context) {
	branches, err := h.clinics.ListBranches(c.Request.Context())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Branches retrieved successfully", branches)
}

type CreateAppointmentTypeRequest struct {
	Name            string          `json:"name" binding:"required,max=150"`
	DurationMinutes int             `json:"durationMinutes" binding:"required,min=5,max=480"`
	Price           decimal.Decimal `json:"price"`
}

func (h *ClinicHandler) CreateAppointmentType(c *gin.Context) {
	var req CreateAppointmentTypeRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	t, err := h.catalog.CreateAppointmentType(c.Request.Context(), services.AppointmentTypeInput{
		Name: req.Name, DurationMinutes: req.DurationMinutes, Price: req.Price,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Appointment type created successfully", t)
}

func (h *ClinicHandler) GetAppointmentTypes(c *gin.Context) {
	list, err := h.catalog.ListAppointmentTypes(c.Request.Context())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Appointment types retrieved successfully", list)
}

type CreateMedicalServiceRequest struct {
	Code  string          `json:"code" binding:"max=50"`
	Name  string          `json:"name" binding:"required,max=150"`
	Price decimal.Decimal `json:"price"`
}

func (h *ClinicHandler) CreateMedicalService(c *gin.Context) {
	var req CreateMedicalServiceRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	svc, err := h.catalog.CreateMedicalService(c.Request.Context(), services.MedicalServiceInput{Code: req.Code, Name: req.Name, Price: req.Price})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Medical service created successfully", svc)
}

func (h *ClinicHandler) GetMedicalServices(c *gin.Context) {
	list, err := h.catalog.ListMedicalServices(c.Request.Context())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Medical services retrieved successfully", list)
}

type CreateSupplyRequest struct {
	Name     string          `json:"name" binding:"required,max=150"`
	Unit     string          `json:"unit" binding:"max=30"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity" binding:"min=0"`
}

func (h *ClinicHandler) CreateSupply(c *gin.Context) {
	var req CreateSupplyRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	sup, err := h.catalog.CreateSupply(c.Request.Context(), services.SupplyInput{
		Name: req.Name, Unit: req.Unit, Price: req.Price, Quantity: req.Quantity,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Medical supply created successfully", sup)
}

func (h *ClinicHandler) GetSupplies(c *gin.Context) {
	list, err := h.catalog.ListSupplies(c.Request.Context())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Medical supplies retrieved successfully", list)
}

type CreateChronicDiseaseRequest struct {
	Name        string `json:"name" binding:"required,max=150"`
	Description string `json:"description"`
}

func (h *ClinicHandler) CreateChronicDisease(c *gin.Context) {
	var req CreateChronicDiseaseRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	d, err := h.catalog.CreateChronicDisease(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Chronic disease created successfully", d)
}

func (h *ClinicHandler) GetChronicDiseases(c *gin.Context) {
	list, err := h.catalog.ListChronicDiseases(c.Request.Context())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Chronic diseases retrieved successfully", list)
}
