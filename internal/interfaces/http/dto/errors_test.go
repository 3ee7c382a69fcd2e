package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeUnavailable, http.StatusServiceUnavailable},
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenInvalid, http.StatusUnauthorized},
		{ErrCodeContextNotReady, http.StatusConflict},
		{ErrCodeUnknownCompany, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeBusinessRule, http.StatusUnprocessableEntity},
		{ErrCodeInvalidDate, http.StatusBadRequest},
		{ErrCodeBodyTooLarge, http.StatusRequestEntityTooLarge},
		{"UNKNOWN_CODE", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"NOT_FOUND", ErrCodeNotFound},
		{"CONTEXT_NOT_READY", ErrCodeContextNotReady},
		{"UNKNOWN_COMPANY", ErrCodeUnknownCompany},
		{"INVALID_COMMISSION_RATE", ErrCodeInvalidPrice},
		{"INVALID_TIME", ErrCodeInvalidTime},
		{ErrCodeConflict, ErrCodeConflict},
		{"SOMETHING_NEW", ErrCodeBusinessRule},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeErrorCode(tt.input))
		})
	}
}

func TestEveryMappedCodeHasAStatus(t *testing.T) {
	for domainCode, apiCode := range DomainErrorCodeMapping {
		_, ok := ErrorCodeHTTPStatus[apiCode]
		assert.True(t, ok, "%s maps to %s which has no status", domainCode, apiCode)
	}
}

func TestResponses(t *testing.T) {
	t.Run("list response never has null data", func(t *testing.T) {
		resp := NewListResponse[string](nil)
		raw, err := json.Marshal(resp)
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":true,"data":[],"meta":{"total":0}}`, string(raw))
	})

	t.Run("validation response", func(t *testing.T) {
		resp := NewValidationErrorResponse("Request validation failed", "req-9", []ValidationDetail{
			{Field: "date", Message: "This field is required"},
		})
		assert.False(t, resp.Success)
		assert.Equal(t, ErrCodeValidation, resp.Error.Code)
		assert.Equal(t, "req-9", resp.Error.RequestID)
		assert.Len(t, resp.Error.Details, 1)
	})
}
