package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidyops/backend/internal/domain/scheduling"
	"github.com/tidyops/backend/internal/interfaces/http/dto"
)

func TestAppointmentHandler_Reschedule(t *testing.T) {
	f := newHandlerFixture(t)
	f.signIn(t)
	client := f.createClient(t, "Amy")
	appt := f.createAppointment(t, client.ID, "2024-03-15", "09:00", "11:00")
	path := "/api/v1/appointments/" + appt.ID.String() + "/reschedule"

	t.Run("moves the job to another day", func(t *testing.T) {
		code, env := f.do(t, http.MethodPut, path, RescheduleAppointmentRequest{Date: "2024-03-16", StartTime: "13:00", EndTime: "15:00"})
		require.Equal(t, http.StatusOK, code)
		moved := decode[AppointmentResponse](t, env.Data)
		assert.Equal(t, "2024-03-16", moved.Date)
		assert.Equal(t, "13:00", moved.StartTime)
		assert.Equal(t, "15:00", moved.EndTime)
		assert.Equal(t, scheduling.AppointmentStatusScheduled, moved.Status)

		code, env = f.do(t, http.MethodGet, "/api/v1/appointments?date=2024-03-15", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Empty(t, decode[[]AppointmentResponse](t, env.Data))

		code, env = f.do(t, http.MethodGet, "/api/v1/appointments?date=2024-03-16", nil)
		require.Equal(t, http.StatusOK, code)
		assert.Len(t, decode[[]AppointmentResponse](t, env.Data), 1)
	})

	t.Run("rejects a malformed date", func(t *testing.T) {
		code, env := f.do(t, http.MethodPut, path, RescheduleAppointmentRequest{Date: "16/03/2024", StartTime: "13:00", EndTime: "15:00"})
		assert.Equal(t, http.StatusBadRequest, code)
		require.NotNil(t, env.Error)
		assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
		require.NotEmpty(t, env.Error.Details)
		assert.Equal(t, "date", env.Error.Details[0].Field)
	})

	t.Run("rejects a window ending before it starts", func(t *testing.T) {
		code, env := f.do(t, http.MethodPut, path, RescheduleAppointmentRequest{Date: "2024-03-16", StartTime: "15:00", EndTime: "13:00"})
		assert.Equal(t, http.StatusBadRequest, code)
		require.NotNil(t, env.Error)
		assert.Equal(t, dto.ErrCodeInvalidTime, env.Error.Code)
		assert.Equal(t, "End time must be after start time", env.Error.Message)
	})

	t.Run("rejects a malformed body", func(t *testing.T) {
		code, env := f.do(t, http.MethodPut, path, "not an object")
		assert.Equal(t, http.StatusBadRequest, code)
		require.NotNil(t, env.Error)
		assert.Equal(t, dto.ErrCodeInvalidJSON, env.Error.Code)
	})

	t.Run("refuses a closed job", func(t *testing.T) {
		code, _ := f.do(t, http.MethodPut, "/api/v1/appointments/"+appt.ID.String()+"/complete", nil)
		require.Equal(t, http.StatusOK, code)

		code, env := f.do(t, http.MethodPut, path, RescheduleAppointmentRequest{Date: "2024-03-17", StartTime: "09:00", EndTime: "10:00"})
		assert.Equal(t, http.StatusUnprocessableEntity, code)
		require.NotNil(t, env.Error)
		assert.Equal(t, dto.ErrCodeInvalidState, env.Error.Code)
	})
}

func TestAppointmentHandler_Delete(t *testing.T) {
	f := newHandlerFixture(t)
	f.signIn(t)
	client := f.createClient(t, "Amy")
	appt := f.createAppointment(t, client.ID, "2024-03-15", "09:00", "11:00")
	path := "/api/v1/appointments/" + appt.ID.String()

	code, _ := f.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusNoContent, code)

	code, env := f.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)

	code, env = f.do(t, http.MethodDelete, path, nil)
	assert.Equal(t, http.StatusNotFound, code)
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeNotFound, env.Error.Code)

	code, env = f.do(t, http.MethodGet, "/api/v1/appointments?date=2024-03-15", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decode[[]AppointmentResponse](t, env.Data))
}

func TestAppointmentHandler_InvalidID(t *testing.T) {
	f := newHandlerFixture(t)
	f.signIn(t)

	tests := []struct {
		method string
		path   string
		body   any
	}{
		{http.MethodGet, "/api/v1/appointments/not-a-uuid", nil},
		{http.MethodPut, "/api/v1/appointments/not-a-uuid/reschedule", RescheduleAppointmentRequest{Date: "2024-03-16", StartTime: "13:00", EndTime: "15:00"}},
		{http.MethodPut, "/api/v1/appointments/not-a-uuid/complete", nil},
		{http.MethodPut, "/api/v1/appointments/not-a-uuid/cancel", nil},
		{http.MethodDelete, "/api/v1/appointments/not-a-uuid", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			code, env := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			require.NotNil(t, env.Error)
			assert.Equal(t, dto.ErrCodeValidation, env.Error.Code)
			require.NotEmpty(t, env.Error.Details)
			assert.Equal(t, "id", env.Error.Details[0].Field)
		})
	}
}

func TestAppointmentHandler_ContextStillLoading(t *testing.T) {
	f := newHandlerFixture(t)

	code, env := f.do(t, http.MethodDelete, "/api/v1/appointments/not-a-uuid", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code, "context still loading")
	require.NotNil(t, env.Error)
	assert.Equal(t, dto.ErrCodeUnavailable, env.Error.Code)
}
