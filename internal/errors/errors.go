package errors

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
)

// APIError represents a structured API error response
type APIError struct {
	StatusCode int         `json:"status_code"`
	ErrorCode  string      `json:"error_code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// Render implements the render.Renderer interface for chi/render
func (e *APIError) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.StatusCode)
	return nil
}

// New creates a new APIError with the given parameters
func New(statusCode int, errorCode, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
	}
}

// NewWithDetails creates a new APIError with additional details
func NewWithDetails(statusCode int, errorCode, message string, details interface{}) *APIError {
	return &APIError{
		StatusCode: statusCode,
		ErrorCode:  errorCode,
		Message:    message,
		Details:    details,
	}
}

// Predefined error types for common scenarios
var (
	// 400 Bad Request
	ErrInvalidRequest   = New(http.StatusBadRequest, "INVALID_REQUEST", "Invalid request format")
	ErrValidationFailed = New(http.StatusBadRequest, "VALIDATION_FAILED", "Request validation failed")
	ErrMissingParameter = New(http.StatusBadRequest, "MISSING_PARAMETER", "Required parameter is missing")
	ErrEmptyResult      = New(http.StatusBadRequest, "EMPTY_RESULT", "No data left after applying filters")
	ErrModelFit         = New(http.StatusBadRequest, "MODEL_FIT_FAILED", "Statistical model could not be fit")

	// 404 Not Found
	ErrNotFound      = New(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	ErrNoDataset     = New(http.StatusNotFound, "NO_DATASET", "No dataset uploaded for this session")
	ErrUploadMissing = New(http.StatusNotFound, "UPLOAD_MISSING", "Uploaded file no longer exists")

	// 413 Payload Too Large
	ErrUploadTooLarge = New(http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "Uploaded file exceeds size limit")

	// 429 Too Many Requests
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Rate limit exceeded")

	// 500 Internal Server Error
	ErrInternalServer = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	ErrFileSystem     = New(http.StatusInternalServerError, "FILESYSTEM_ERROR", "File system error")
)

// ValidationError signals malformed parameters or absent required columns.
// Surfaced to callers as a 400 with a message naming what was wrong.
func ValidationError(message string) *APIError {
	return New(http.StatusBadRequest, "VALIDATION_FAILED", message)
}

// MissingColumns builds a ValidationError naming the absent dataset columns
func MissingColumns(cols ...string) *APIError {
	return NewWithDetails(http.StatusBadRequest, "VALIDATION_FAILED",
		fmt.Sprintf("Required columns missing: %s", strings.Join(cols, ", ")), cols)
}

// EmptyResultError signals that filtering produced zero rows. Callers render
// "no data" rather than treating it as a system fault.
func EmptyResultError() *APIError {
	return ErrEmptyResult
}

// ModelFitError signals that a statistical fit lacked signal or could not
// converge. Never produces a silent wrong answer.
func ModelFitError(reason string) *APIError {
	return New(http.StatusBadRequest, "MODEL_FIT_FAILED", reason)
}

// InternalError wraps an unexpected failure without leaking internals
func InternalError(err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error", err.Error())
}

// FileSystemError creates a filesystem error with operation context
func FileSystemError(operation string, err error) *APIError {
	return NewWithDetails(http.StatusInternalServerError, "FILESYSTEM_ERROR",
		fmt.Sprintf("File system error during %s", operation), err.Error())
}

// ErrorResponse represents a standard error response envelope
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *APIError `json:"error"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(err *APIError) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Error:   err,
	}
}

// Render implements the render.Renderer interface
func (e *ErrorResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return e.Error.Render(w, r)
}

// IsEmptyResult reports whether err is the empty-after-filter condition
func IsEmptyResult(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.ErrorCode == "EMPTY_RESULT"
}

// IsValidation reports whether err is a validation failure
func IsValidation(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.ErrorCode == "VALIDATION_FAILED"
}

// IsModelFit reports whether err is a model fit failure
func IsModelFit(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.ErrorCode == "MODEL_FIT_FAILED"
}
