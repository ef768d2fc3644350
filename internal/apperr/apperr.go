// Package apperr defines the typed errors shared by the domain, service and
// HTTP layers. Every error carries a Kind, which decides the HTTP status, and a
// stable machine-readable Code.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for translation at the HTTP boundary.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindInvalidState
	KindUnauthorized
	KindForbidden
	KindConflict
	KindRateLimited
	KindUnavailable
)

// Stable error codes.
const (
	CodeValidation              = "VALIDATION_ERROR"
	CodeNotFound                = "RESOURCE_NOT_FOUND"
	CodeInvalidAppointmentState = "INVALID_APPOINTMENT_STATE"
	CodeAppointmentCompleted    = "APPOINTMENT_ALREADY_COMPLETED"
	CodeInvalidDiscount         = "INVALID_DISCOUNT"
	CodePaymentExceeds          = "PAYMENT_EXCEEDS_REMAINING"
	CodeEmptyItems              = "EMPTY_INVOICE_ITEMS"
	CodeInvalidInvoiceItem      = "INVALID_INVOICE_ITEM"
	CodeInvalidPayment          = "INVALID_PAYMENT"
	CodeInvalidPaymentMethod    = "INVALID_PAYMENT_METHOD"
	CodeInsufficientStock       = "INSUFFICIENT_STOCK"
	CodeInvitationInvalid       = "INVITATION_INVALID"
	CodeDuplicateInvitation     = "DUPLICATE_INVITATION"
	CodeEmailTaken              = "EMAIL_ALREADY_EXISTS"
	CodeTokenInvalid            = "TOKEN_INVALID"
	CodeUserNotFound            = "USER_NOT_FOUND"
	CodeInvalidCredentials      = "INVALID_CREDENTIALS"
	CodeEmailNotConfirmed       = "EMAIL_NOT_CONFIRMED"
	CodeMissingToken            = "MISSING_TOKEN"
	CodeInsufficientPermissions = "INSUFFICIENT_PERMISSIONS"
	CodeUnscopedQuery           = "UNSCOPED_TENANT_QUERY"
	CodeFileRejected            = "FILE_REJECTED"
	CodeRateLimited             = "RATE_LIMITED"
	CodeConcurrentUpdate        = "CONCURRENT_UPDATE"
	CodeRequestCanceled         = "REQUEST_CANCELED"
	CodeInternal                = "INTERNAL_ERROR"
)

// Error is the single error type surfaced to API callers.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return e.Code + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Code so sentinel-style comparisons work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDetail returns a copy of e with key set in Details.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Status maps the kind to an HTTP status code.
func (e *Error) Status() int {
	switch e.Kind {
	case KindValidation, KindInvalidState:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

// NotFound reports a missing resource. The message never says whether the row
// exists under another clinic.
func NotFound(resource string) *Error {
	return New(KindNotFound, CodeNotFound, resource+" not found").WithDetail("resource", resource)
}

// InvalidState reports an operation the aggregate's current state forbids.
func InvalidState(code, operation, current string) *Error {
	return New(KindInvalidState, code, fmt.Sprintf("cannot %s in state %s", operation, current)).
		WithDetail("operation", operation).
		WithDetail("currentState", current)
}

func Unauthorized(code, message string) *Error {
	return New(KindUnauthorized, code, message)
}

func Forbidden(message string) *Error {
	return New(KindForbidden, CodeInsufficientPermissions, message)
}

func Conflict(code, message string) *Error {
	return New(KindConflict, code, message)
}

// Canceled wraps a context error from a wait that gave up. errors.Is still
// matches context.Canceled and context.DeadlineExceeded.
func Canceled(err error) *Error {
	return &Error{Kind: KindUnavailable, Code: CodeRequestCanceled, Message: "request was canceled before it could be served", Err: err}
}

// Internal wraps an unexpected failure. Its message is never shown to callers.
func Internal(err error, message string) *Error {
	return &Error{Kind: KindInternal, Code: CodeInternal, Message: message, Err: err}
}

// As extracts an *Error from err, wrapping unknown errors as internal.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err, "unexpected error")
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}
