// Package errors provides custom error types for the nutriwatch API.
// All service-layer errors should use AppError to ensure consistent,
// secure error responses that never leak internal details to clients.
package errors

import "net/http"

// AppError represents a structured application error with an error code,
// human-readable message, HTTP status code, and optional internal error.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string { return e.Message }

// Unwrap returns the internal error for use with errors.Is/As.
func (e *AppError) Unwrap() error { return e.Internal }

// Is reports whether target carries the same error code, so callers can
// match a wrapped or re-messaged error against its sentinel.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap creates a new AppError with the same code/message/status but wraps an internal error.
func Wrap(sentinel *AppError, internal error) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    sentinel.Message,
		StatusCode: sentinel.StatusCode,
		Internal:   internal,
	}
}

// WithMessage creates a new AppError with a custom message.
func WithMessage(sentinel *AppError, message string) *AppError {
	return &AppError{
		Code:       sentinel.Code,
		Message:    message,
		StatusCode: sentinel.StatusCode,
		Internal:   sentinel.Internal,
	}
}

// Authentication & authorization errors.
var (
	ErrUnauthorized = &AppError{Code: "UNAUTHORIZED", Message: "Authentication required", StatusCode: http.StatusUnauthorized}
	ErrForbidden    = &AppError{Code: "FORBIDDEN", Message: "Access denied", StatusCode: http.StatusForbidden}
)

// General errors.
var (
	ErrInvalidInput   = &AppError{Code: "INVALID_INPUT", Message: "Invalid input", StatusCode: http.StatusBadRequest}
	ErrNotFound       = &AppError{Code: "NOT_FOUND", Message: "Resource not found", StatusCode: http.StatusNotFound}
	ErrConflict       = &AppError{Code: "CONFLICT", Message: "The request conflicts with the current state", StatusCode: http.StatusConflict}
	ErrInternalServer = &AppError{Code: "INTERNAL_ERROR", Message: "An internal error occurred", StatusCode: http.StatusInternalServerError}
)

// Item category errors.
var (
	ErrCategoryNotFound = &AppError{Code: "CATEGORY_NOT_FOUND", Message: "Item category not found", StatusCode: http.StatusNotFound}
	ErrCategoryInUse    = &AppError{Code: "CATEGORY_IN_USE", Message: "Item category is used by inventory items", StatusCode: http.StatusConflict}
)

// Inventory errors.
var (
	ErrItemNotFound        = &AppError{Code: "ITEM_NOT_FOUND", Message: "Inventory item not found", StatusCode: http.StatusNotFound}
	ErrTransactionNotFound = &AppError{Code: "TRANSACTION_NOT_FOUND", Message: "Inventory transaction not found", StatusCode: http.StatusNotFound}
	ErrInsufficientStock   = &AppError{Code: "INSUFFICIENT_STOCK", Message: "Insufficient stock for this adjustment", StatusCode: http.StatusBadRequest}
	ErrAdjustmentFailed    = &AppError{Code: "ADJUSTMENT_FAILED", Message: "The stock adjustment could not be applied", StatusCode: http.StatusInternalServerError}
)

// Audit errors.
var (
	ErrAuditLogNotFound = &AppError{Code: "AUDIT_LOG_NOT_FOUND", Message: "Audit log entry not found", StatusCode: http.StatusNotFound}
)

// Food catalog and food request errors.
var (
	ErrFoodNotFound        = &AppError{Code: "FOOD_NOT_FOUND", Message: "Food not found", StatusCode: http.StatusNotFound}
	ErrFoodRequestNotFound = &AppError{Code: "FOOD_REQUEST_NOT_FOUND", Message: "Food request not found", StatusCode: http.StatusNotFound}
	ErrAlreadyProcessed    = &AppError{Code: "ALREADY_PROCESSED", Message: "Food request has already been processed", StatusCode: http.StatusConflict}
	ErrDuplicateCandidate  = &AppError{Code: "DUPLICATE_CANDIDATE", Message: "A similar food already exists or is pending review", StatusCode: http.StatusConflict}
	ErrSubmissionInFlight  = &AppError{Code: "SUBMISSION_IN_FLIGHT", Message: "An identical submission is already being processed", StatusCode: http.StatusConflict}
)
