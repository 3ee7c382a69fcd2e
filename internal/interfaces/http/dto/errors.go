package dto

import "net/http"

// Error codes returned in the response envelope.
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	ErrCodeUnknown  = "ERR_UNKNOWN"
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUnavailable is returned while the session context is still loading
	ErrCodeUnavailable = "ERR_UNAVAILABLE"
)

// Validation error codes
const (
	ErrCodeValidation         = "ERR_VALIDATION"
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	ErrCodeValidationFormat   = "ERR_VALIDATION_FORMAT"
)

// Authentication error codes
const (
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Session context error codes
const (
	// ErrCodeContextNotReady is returned by tenant-scoped routes when no company is active
	ErrCodeContextNotReady = "ERR_CONTEXT_NOT_READY"
	// ErrCodeUnknownCompany is returned when switching to a company the user does not belong to
	ErrCodeUnknownCompany = "ERR_UNKNOWN_COMPANY"
)

// Resource error codes
const (
	ErrCodeNotFound      = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	ErrCodeConflict      = "ERR_CONFLICT"
)

// Business rule error codes
const (
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	ErrCodeBusinessRule = "ERR_BUSINESS_RULE"
)

// Input error codes
const (
	ErrCodeBadRequest    = "ERR_BAD_REQUEST"
	ErrCodeInvalidInput  = "ERR_INVALID_INPUT"
	ErrCodeInvalidJSON   = "ERR_INVALID_JSON"
	ErrCodeBodyTooLarge  = "ERR_BODY_TOO_LARGE"
	ErrCodeInvalidDate   = "ERR_INVALID_DATE"
	ErrCodeInvalidTime   = "ERR_INVALID_TIME"
	ErrCodeInvalidEmail  = "ERR_INVALID_EMAIL"
	ErrCodeInvalidPhone  = "ERR_INVALID_PHONE"
	ErrCodeInvalidName   = "ERR_INVALID_NAME"
	ErrCodeInvalidPrice  = "ERR_INVALID_PRICE"
	ErrCodeInvalidStage  = "ERR_INVALID_STAGE"
	ErrCodeInvalidClient = "ERR_INVALID_CLIENT"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:     http.StatusInternalServerError,
	ErrCodeInternal:    http.StatusInternalServerError,
	ErrCodeUnavailable: http.StatusServiceUnavailable,

	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	ErrCodeContextNotReady: http.StatusConflict,
	ErrCodeUnknownCompany:  http.StatusForbidden,

	ErrCodeNotFound:      http.StatusNotFound,
	ErrCodeAlreadyExists: http.StatusConflict,
	ErrCodeConflict:      http.StatusConflict,

	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeBusinessRule: http.StatusUnprocessableEntity,

	ErrCodeBadRequest:    http.StatusBadRequest,
	ErrCodeInvalidInput:  http.StatusBadRequest,
	ErrCodeInvalidJSON:   http.StatusBadRequest,
	ErrCodeBodyTooLarge:  http.StatusRequestEntityTooLarge,
	ErrCodeInvalidDate:   http.StatusBadRequest,
	ErrCodeInvalidTime:   http.StatusBadRequest,
	ErrCodeInvalidEmail:  http.StatusBadRequest,
	ErrCodeInvalidPhone:  http.StatusBadRequest,
	ErrCodeInvalidName:   http.StatusBadRequest,
	ErrCodeInvalidPrice:  http.StatusBadRequest,
	ErrCodeInvalidStage:  http.StatusBadRequest,
	ErrCodeInvalidClient: http.StatusBadRequest,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":               ErrCodeNotFound,
	"ALREADY_EXISTS":          ErrCodeAlreadyExists,
	"INVALID_INPUT":           ErrCodeInvalidInput,
	"INVALID_STATE":           ErrCodeInvalidState,
	"UNAUTHORIZED":            ErrCodeUnauthorized,
	"FORBIDDEN":               ErrCodeForbidden,
	"CONTEXT_NOT_READY":       ErrCodeContextNotReady,
	"UNKNOWN_COMPANY":         ErrCodeUnknownCompany,
	"INVALID_DATE":            ErrCodeInvalidDate,
	"INVALID_TIME":            ErrCodeInvalidTime,
	"INVALID_EMAIL":           ErrCodeInvalidEmail,
	"INVALID_PHONE":           ErrCodeInvalidPhone,
	"INVALID_NAME":            ErrCodeInvalidName,
	"INVALID_PRICE":           ErrCodeInvalidPrice,
	"INVALID_COMMISSION_RATE": ErrCodeInvalidPrice,
	"INVALID_STAGE":           ErrCodeInvalidStage,
	"INVALID_CLIENT":          ErrCodeInvalidClient,
	"INTERNAL_ERROR":          ErrCodeInternal,
}

// NormalizeErrorCode converts a domain error code to its API form.
// Codes without a mapping are reported as business rule violations.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	if _, ok := ErrorCodeHTTPStatus[code]; ok {
		return code
	}
	return ErrCodeBusinessRule
}
