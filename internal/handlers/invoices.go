package handlers

import (
	"context"
	"time"

	"clinic-management-server/internal/apperr"
	"clinic-management-server/internal/domain"
	"clinic-management-server/internal/services"
	"clinic-management-server/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceHandler struct {
	invoices *services.InvoiceService
}

func NewInvoiceHandler(invoices *services.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// InvoiceItemRequest references exactly one of medical service, medicine or
// medical supply. UnitPrice overrides the catalogue price when set.
type InvoiceItemRequest struct {
	MedicalServiceID *uuid.UUID       `json:"medicalServiceId"`
	MedicineID       *uuid.UUID       `json:"medicineId"`
	MedicalSupplyID  *uuid.UUID       `json:"medicalSupplyId"`
	Quantity         int              `json:"quantity" binding:"required,min=1"`
	UnitPrice        *decimal.Decimal `json:"unitPrice"`
	Description      string           `json:"description" binding:"max=255"`
}

type CreateInvoiceRequest struct {
	PatientID      uuid.UUID            `json:"patientId" binding:"required"`
	AppointmentID  *uuid.UUID           `json:"appointmentId"`
	MedicalVisitID *uuid.UUID           `json:"medicalVisitId"`
	DueDate        *time.Time           `json:"dueDate"`
	Discount       decimal.Decimal      `json:"discount"`
	TaxAmount      decimal.Decimal      `json:"taxAmount"`
	Notes          string               `json:"notes"`
	Items          []InvoiceItemRequest `json:"items" binding:"dive"`
}

func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	var req CreateInvoiceRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	in := services.InvoiceInput{
		PatientID:      req.PatientID,
		AppointmentID:  req.AppointmentID,
		MedicalVisitID: req.MedicalVisitID,
		DueDate:        req.DueDate,
		Discount:       req.Discount,
		TaxAmount:      req.TaxAmount,
		Notes:          req.Notes,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, services.InvoiceItemInput{
			MedicalServiceID: it.MedicalServiceID,
			MedicineID:       it.MedicineID,
			MedicalSupplyID:  it.MedicalSupplyID,
			Quantity:         it.Quantity,
			UnitPrice:        it.UnitPrice,
			Description:      it.Description,
		})
	}
	inv, err := h.invoices.Create(c.Request.Context(), in)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Created(c, "Invoice created successfully", inv)
}

func (h *InvoiceHandler) GetInvoiceByID(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	inv, err := h.invoices.Get(c.Request.Context(), id)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Invoice retrieved successfully", inv)
}

func invoiceFilter(c *gin.Context) (services.InvoiceFilter, bool) {
	f := services.InvoiceFilter{Status: domain.InvoiceStatus(c.Query("status"))}
	if f.Status != "" && !f.Status.IsValid() {
		utils.Fail(c, apperr.Validation(apperr.CodeValidation, "unknown invoice status"))
		return f, false
	}
	var ok bool
	f.PatientID, ok = queryUUID(c, "patientId")
	return f, ok
}

// GetInvoices lists the clinic's invoices.
func (h *InvoiceHandler) GetInvoices(c *gin.Context) {
	h.list(c, h.invoices.List)
}

// GetAllInvoices lists invoices of every clinic. Super admins only.
func (h *InvoiceHandler) GetAllInvoices(c *gin.Context) {
	h.list(c, h.invoices.ListAllTenants)
}

func (h *InvoiceHandler) list(c *gin.Context, fn func(context.Context, services.InvoiceFilter, int, int) ([]services.InvoiceView, int64, error)) {
	f, ok := invoiceFilter(c)
	if !ok {
		return
	}
	page, size := utils.Pagination(c)
	list, total, err := fn(c.Request.Context(), f, page, size)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Invoices retrieved successfully", utils.PagedData{
		Items: list,
		Meta:  utils.PageMeta{Page: page, PageSize: size, Total: total},
	})
}

type RecordPaymentRequest struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method" binding:"required,oneof=cash card bank_transfer insurance"`
	Reference string          `json:"reference" binding:"max=100"`
	PaidAt    time.Time       `json:"paidAt"`
}

func (h *InvoiceHandler) RecordPayment(c *gin.Context) {
	id, ok := utils.ParamUUID(c, "id")
	if !ok {
		return
	}
	var req RecordPaymentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}
	inv, err := h.invoices.RecordPayment(c.Request.Context(), id, domain.PaymentParams{
		Amount:    req.Amount,
		Method:    domain.PaymentMethod(req.Method),
		Reference: req.Reference,
		PaidAt:    req.PaidAt,
	})
	if err != nil {
		utils.Fail(c, err)
		return
	}
	utils.Success(c, "Payment recorded successfully", inv)
}
