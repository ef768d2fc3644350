package handlers

import (
	"time"

	"clinic-management-server/internal/services"
	"clinic-management-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type MedicineHandler struct {
	medicines *services.MedicineService
}

func NewMedicineHandler(medicines *services.MedicineService) *MedicineHandler {
	return &MedicineHandler{medicines: medicines}
}

// MedicineRequest is used for create and update. Quantity is ignored on
// update; stock changes go through AddStock.
type MedicineRequest struct {
	Name         string          `json:"name" binding:"required,max=200"`
	GenericName  string          `json:"genericName" binding:"max=200"`
	Form         string          `json:"form" binding:"max=50"`
	Strength     string          `json:"strength" binding:"max=50"`
	Manufacturer string          `json:"manufacturer" binding:"max=200"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity" binding:"min=0"`
	ReorderLevel int             `json:"reorderLevel" binding:"min=0"`
	ExpiryDate   *time.Time      `json:"expiryDate"`
}

func (r MedicineRequest) input() services.MedicineInput {
	return services.MedicineInput{
		Name:         r.Name,
		GenericName:  r.GenericName,
		Form:         r.Form,
		Strength:     r.Strength,
		Manufacturer: r.Manufacturer,
		Price:        r.Price,
		Quantity:     r.Quantity,
		ReorderLevel: r.ReorderLevel,
		ExpiryDate:   r.ExpiryDate,
	}
}

func (h *MedicineHandler) CreateMedicine(c *gin.Context) {
	var req MedicineRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	m, err := h.medicines.Create(c.Request.Context(), req.input())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Medicine created successfully", m)
}

func (h *MedicineHandler) GetMedicines(c *gin.Context) {
	page, size := utils.Pagination(c)
	list, total, err := h.medicines.List(c.Request.Context(), c.Query("search"), page, size)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Medicines retrieved successfully", utils.PagedData{
		Items: list,
		Meta:  utils.PageMeta{Page: page, PageSize: size, Total: total},
	})
}

func (h *MedicineHandler) GetLowStock(c *gin.Context) {
	list, err := h.medicines.LowStock(c.Request.Context())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Low stock medicines retrieved successfully", list)
}

func (h *MedicineHandler) GetMedicineByID(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	m, err := h.medicines.Get(c.Request.Context(), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Medicine retrieved successfully", m)
}

func (h *MedicineHandler) UpdateMedicine(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req MedicineRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	m, err := h.medicines.Update(c.Request.Context(), id, req.input())
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Medicine updated successfully", m)
}

func (h *MedicineHandler) DeleteMedicine(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	if err := h.medicines.Delete(c.Request.Context(), id); err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Medicine deleted successfully", nil)
}

type AddStockRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

func (h *MedicineHandler) AddStock(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req AddStockRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	m, err := h.medicines.AddStock(c.Request.Context(), id, req.Quantity)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Stock added successfully", m)
}
