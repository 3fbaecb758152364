// Package services provides the business logic layer between handlers and the
// catalog, store, and analytics packages. Services encapsulate validation,
// orchestration, and the mapping of failures to coded errors.
package services

import "net/http"

// ServiceError carries a machine-readable code alongside the message.
// Handlers translate the code into an HTTP status; everything else
// treats it as a regular error.
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string { return e.Message }

// statusByCode maps error codes onto HTTP statuses.
var statusByCode = map[string]int{
	"DATASET_NOT_FOUND": http.StatusNotFound,
	"COLUMN_NOT_FOUND":  http.StatusNotFound,

	"DATASET_EXISTS": http.StatusConflict,
	"COLUMN_EXISTS":  http.StatusConflict,

	"INVALID_NAME":      http.StatusBadRequest,
	"INVALID_REQUEST":   http.StatusBadRequest,
	"INVALID_POINT":     http.StatusBadRequest,
	"INVALID_METHOD":    http.StatusBadRequest,
	"INVALID_PARAMETER": http.StatusBadRequest,
	"INVALID_TRANSFORM": http.StatusBadRequest,

	"TOO_MANY_POINTS": http.StatusRequestEntityTooLarge,

	"DETECTION_FAILED": http.StatusUnprocessableEntity,
	"TRANSFORM_FAILED": http.StatusUnprocessableEntity,
	"SUMMARY_FAILED":   http.StatusUnprocessableEntity,
}

// HTTPStatus returns the status the HTTP layer answers with. Codes
// without a mapping report as internal errors.
func (e *ServiceError) HTTPStatus() int {
	if status, ok := statusByCode[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// NewServiceError creates a ServiceError without details.
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}

// NewServiceErrorWithDetails creates a ServiceError carrying structured
// details for the client.
func NewServiceErrorWithDetails(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{Code: code, Message: message, Details: details}
}
