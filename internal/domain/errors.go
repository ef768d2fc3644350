package domain

import "clinic-management-server/internal/apperr"

var (
	ErrInvalidDiscount = apperr.Validation(apperr.CodeInvalidDiscount,
		"discount must not be negative or exceed the amount it applies to")
	ErrPaymentExceedsRemaining = apperr.Validation(apperr.CodePaymentExceeds,
		"payment exceeds the remaining amount")
	ErrInvalidPaymentAmount = apperr.Validation(apperr.CodeInvalidPayment,
		"payment amount must be greater than zero")
	ErrEmptyItems = apperr.Validation(apperr.CodeEmptyItems,
		"invoice must contain at least one item")
	ErrInvalidInvoiceItem = apperr.Validation(apperr.CodeInvalidInvoiceItem,
		"invoice item must reference exactly one of medical service, medicine or medical supply, with positive quantity and unit price")
	ErrInvalidPaymentMethod = apperr.Validation(apperr.CodeInvalidPaymentMethod,
		"unknown payment method")
)

// InvalidAppointmentState is returned when operation is not allowed from current.
func InvalidAppointmentState(operation string, current AppointmentStatus) error {
	return apperr.InvalidState(apperr.CodeInvalidAppointmentState, operation, string(current))
}

// AppointmentAlreadyCompleted is returned by Cancel on a completed appointment.
func AppointmentAlreadyCompleted() error {
	return apperr.InvalidState(apperr.CodeAppointmentCompleted, "cancel", string(AppointmentCompleted))
}
