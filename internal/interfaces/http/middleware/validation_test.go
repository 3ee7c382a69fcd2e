package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyops/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type slotRequest struct {
	Date  string `json:"date" binding:"required,calendar_date"`
	Start string `json:"start_time" binding:"required,clock_time"`
	Email string `json:"email" binding:"omitempty,email"`
}

func TestSetupValidator(t *testing.T) {
	require.NoError(t, SetupValidator())

	r := gin.New()
	r.POST("/slots", func(c *gin.Context) {
		var req slotRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		body   string
		status int
		fields []string
	}{
		{"valid", `{"date":"2024-03-15","start_time":"09:30"}`, http.StatusNoContent, nil},
		{"bad date", `{"date":"15/03/2024","start_time":"09:30"}`, http.StatusBadRequest, []string{"date"}},
		{"impossible date", `{"date":"2024-02-30","start_time":"09:30"}`, http.StatusBadRequest, []string{"date"}},
		{"bad time", `{"date":"2024-03-15","start_time":"25:00"}`, http.StatusBadRequest, []string{"start_time"}},
		{"missing fields", `{"email":"nope"}`, http.StatusBadRequest, []string{"date", "start_time", "email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/slots", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.fields == nil {
				return
			}
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
			var got []string
			for _, d := range resp.Error.Details {
				got = append(got, d.Field)
			}
			assert.ElementsMatch(t, tt.fields, got)
		})
	}
}

func TestSetupValidator_PathFieldNames(t *testing.T) {
	require.NoError(t, SetupValidator())

	r := gin.New()
	r.GET("/items/:id", func(c *gin.Context) {
		var req dto.IDRequest
		if err := c.ShouldBindUri(&req); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "id", resp.Error.Details[0].Field)
	assert.Equal(t, "Invalid UUID format", resp.Error.Details[0].Message)
}
